package main

import (
	"encoding/csv"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/cran/literanger/data"
	"github.com/cran/literanger/rferrors"
)

// loadCSV reads a header-having CSV file into column-major predictor data
// plus a single response column, converting a character-typed response
// into an integer factor code and logging a warning when it does so. The
// returned response levels carry the original strings of a character-typed
// response (parallel to the returned response values; nil for a numeric
// response), so predictions can be reported with the caller's own labels.
// The returned predictor names carry the header text for each predictor
// column, in column order, so a trained forest can later be merged with
// another by name rather than by position.
func loadCSV(path, responseColumn string, log *logrus.Logger) (*data.Dense, []float64, []string, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, nil, nil, nil, err
	}

	responseCol := -1
	for i, h := range header {
		if h == responseColumn {
			responseCol = i
		}
	}
	if responseCol < 0 {
		return nil, nil, nil, nil, rferrors.InvalidArgument("response column %q not found in header", responseColumn)
	}

	predictorCols := make([]int, 0, len(header)-1)
	for i := range header {
		if i != responseCol {
			predictorCols = append(predictorCols, i)
		}
	}
	predictorNames := make([]string, len(predictorCols))
	for j, c := range predictorCols {
		predictorNames[j] = header[c]
	}

	var columns [][]string
	var response []string
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, nil, nil, err
		}
		if columns == nil {
			columns = make([][]string, len(predictorCols))
		}
		for j, c := range predictorCols {
			columns[j] = append(columns[j], row[c])
		}
		response = append(response, row[responseCol])
	}

	x := make([][]float64, len(predictorCols))
	isOrdered := make([]bool, len(predictorCols))
	for j := range x {
		vals, ordered, err := parseColumn(columns[j])
		if err != nil {
			return nil, nil, nil, nil, err
		}
		x[j] = vals
		isOrdered[j] = ordered
	}

	y, responseValues, responseLevels := encodeResponse(response, log)

	d, err := data.NewDense(x, [][]float64{y}, isOrdered)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	return d, responseValues, responseLevels, predictorNames, nil
}

// parseColumn converts a CSV column to float64, treating a column that
// fails to parse numerically as an unordered factor instead.
func parseColumn(raw []string) ([]float64, bool, error) {
	out := make([]float64, len(raw))
	ordered := true
	for i, s := range raw {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			ordered = false
			break
		}
		out[i] = v
	}
	if ordered {
		return out, true, nil
	}
	out, _, _ = encodeFactor(raw)
	return out, false, nil
}

// encodeResponse converts the response column to numeric response keys.
// Character-typed responses are converted to a factor, with a logged
// warning since the caller may not have intended a categorical response;
// the returned level names preserve the original strings for reporting.
func encodeResponse(raw []string, log *logrus.Logger) ([]float64, []float64, []string) {
	if _, err := strconv.ParseFloat(raw[0], 64); err == nil {
		numeric := make([]float64, len(raw))
		allNumeric := true
		for i, s := range raw {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				allNumeric = false
				break
			}
			numeric[i] = v
		}
		if allNumeric {
			return numeric, nil, nil
		}
	}
	if log != nil {
		log.Warn("Converting character response to factor")
	}
	return encodeFactor(raw)
}

// encodeFactor maps the distinct strings of a character column onto the
// codes 0..n-1 in sorted-name order, returning the per-row codes, the code
// values, and the level names the codes index into.
func encodeFactor(raw []string) ([]float64, []float64, []string) {
	levels := make(map[string]bool)
	for _, s := range raw {
		levels[s] = true
	}
	names := make([]string, 0, len(levels))
	for s := range levels {
		names = append(names, s)
	}
	sort.Strings(names)

	index := make(map[string]int, len(names))
	values := make([]float64, len(names))
	for i, n := range names {
		index[n] = i
		values[i] = float64(i)
	}

	out := make([]float64, len(raw))
	for i, s := range raw {
		out[i] = float64(index[s])
	}
	return out, values, names
}
