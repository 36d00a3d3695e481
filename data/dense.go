package data

import (
	"github.com/cran/literanger/rferrors"
)

// Dense is a column-major dense predictor matrix: each column is a
// contiguous []float64 of length NRow.
type Dense struct {
	baseData
	columns [][]float64 // nCol columns, each length nRow
}

// NewDense builds a Dense data source. columns[c][r] is the value of
// predictor c for row r; y[k][r] is response column k for row r.
// isOrdered may be nil, meaning every predictor is ordered.
func NewDense(columns [][]float64, y [][]float64, isOrdered []bool) (*Dense, error) {
	if len(columns) == 0 {
		return nil, rferrors.InvalidArgument("dense data requires at least one predictor column")
	}
	nRow := len(columns[0])
	for c, col := range columns {
		if len(col) != nRow {
			return nil, rferrors.InvalidArgument("predictor column %d has length %d, want %d", c, len(col), nRow)
		}
	}
	for k, col := range y {
		if len(col) != nRow {
			return nil, rferrors.InvalidArgument("response column %d has length %d, want %d", k, len(col), nRow)
		}
	}
	if isOrdered != nil && len(isOrdered) != len(columns) {
		return nil, rferrors.InvalidArgument("is_ordered has length %d, want %d", len(isOrdered), len(columns))
	}

	return &Dense{
		baseData: newBaseData(nRow, len(columns), isOrdered, y),
		columns:  columns,
	}, nil
}

func (d *Dense) rawGetX(row, col int) float64 {
	return d.columns[col][row]
}

func (d *Dense) GetX(sampleKey, predictorKey int, permute bool) (float64, error) {
	if predictorKey < 0 || predictorKey >= d.nCol {
		return 0, rferrors.OutOfRange("predictor key %d out of range [0,%d)", predictorKey, d.nCol)
	}
	row := d.AsRowOffset(sampleKey, permute)
	if row < 0 || row >= d.nRow {
		return 0, rferrors.OutOfRange("sample key %d out of range [0,%d)", row, d.nRow)
	}
	return d.columns[predictorKey][row], nil
}

func (d *Dense) GetAllValues(sampleKeys []int, col, lo, hi int, permute bool) ([]float64, error) {
	if lo > hi {
		return nil, rferrors.InvalidArgument("range [%d,%d) is invalid", lo, hi)
	}
	if col < 0 || col >= d.nCol {
		return nil, rferrors.OutOfRange("predictor key %d out of range [0,%d)", col, d.nCol)
	}
	vs := make([]float64, 0, hi-lo)
	for i := lo; i < hi; i++ {
		row := d.AsRowOffset(sampleKeys[i], permute)
		vs = append(vs, d.columns[col][row])
	}
	return sortedUnique(vs), nil
}

func (d *Dense) GetMinMaxValues(sampleKeys []int, col, lo, hi int, permute bool) (float64, float64, error) {
	if lo > hi {
		return 0, 0, rferrors.InvalidArgument("range [%d,%d) is invalid", lo, hi)
	}
	if col < 0 || col >= d.nCol {
		return 0, 0, rferrors.OutOfRange("predictor key %d out of range [0,%d)", col, d.nCol)
	}
	if lo == hi {
		return 0, 0, nil
	}
	row := d.AsRowOffset(sampleKeys[lo], permute)
	min, max := d.columns[col][row], d.columns[col][row]
	for i := lo + 1; i < hi; i++ {
		row := d.AsRowOffset(sampleKeys[i], permute)
		v := d.columns[col][row]
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max, nil
}

func (d *Dense) NewPredictorIndex() {
	d.buildPredictorIndex(d.rawGetX)
}
