package data

import (
	"sort"

	"github.com/cran/literanger/rferrors"
)

// Sparse is a compressed-sparse-column predictor matrix. Values not
// explicitly stored read as zero.
type Sparse struct {
	baseData
	rowIndex []int // row index of each stored value, grouped by column
	colPtr   []int // length nCol+1; column c's entries are rowIndex[colPtr[c]:colPtr[c+1]]
	values   []float64
}

// NewSparse builds a Sparse data source from a CSC triple. dim is
// {nRow, nCol}. colPtr must have length dim[1]+1, and rowIndex/values must
// be sorted by row index within each column.
func NewSparse(dim [2]int, rowIndex, colPtr []int, values []float64, y [][]float64, isOrdered []bool) (*Sparse, error) {
	nRow, nCol := dim[0], dim[1]
	if len(colPtr) != nCol+1 {
		return nil, rferrors.InvalidArgument("col_ptr has length %d, want %d", len(colPtr), nCol+1)
	}
	if len(rowIndex) != len(values) {
		return nil, rferrors.InvalidArgument("row_index and values have different lengths (%d vs %d)", len(rowIndex), len(values))
	}
	for k, col := range y {
		if len(col) != nRow {
			return nil, rferrors.InvalidArgument("response column %d has length %d, want %d", k, len(col), nRow)
		}
	}
	if isOrdered != nil && len(isOrdered) != nCol {
		return nil, rferrors.InvalidArgument("is_ordered has length %d, want %d", len(isOrdered), nCol)
	}

	return &Sparse{
		baseData: newBaseData(nRow, nCol, isOrdered, y),
		rowIndex: rowIndex,
		colPtr:   colPtr,
		values:   values,
	}, nil
}

func (s *Sparse) rawGetX(row, col int) float64 {
	lo, hi := s.colPtr[col], s.colPtr[col+1]
	seg := s.rowIndex[lo:hi]
	i := sort.SearchInts(seg, row)
	if i < len(seg) && seg[i] == row {
		return s.values[lo+i]
	}
	return 0
}

func (s *Sparse) GetX(sampleKey, predictorKey int, permute bool) (float64, error) {
	if predictorKey < 0 || predictorKey >= s.nCol {
		return 0, rferrors.OutOfRange("predictor key %d out of range [0,%d)", predictorKey, s.nCol)
	}
	row := s.AsRowOffset(sampleKey, permute)
	if row < 0 || row >= s.nRow {
		return 0, rferrors.OutOfRange("sample key %d out of range [0,%d)", row, s.nRow)
	}
	return s.rawGetX(row, predictorKey), nil
}

func (s *Sparse) GetAllValues(sampleKeys []int, col, lo, hi int, permute bool) ([]float64, error) {
	if lo > hi {
		return nil, rferrors.InvalidArgument("range [%d,%d) is invalid", lo, hi)
	}
	if col < 0 || col >= s.nCol {
		return nil, rferrors.OutOfRange("predictor key %d out of range [0,%d)", col, s.nCol)
	}
	vs := make([]float64, 0, hi-lo)
	for i := lo; i < hi; i++ {
		row := s.AsRowOffset(sampleKeys[i], permute)
		vs = append(vs, s.rawGetX(row, col))
	}
	return sortedUnique(vs), nil
}

func (s *Sparse) GetMinMaxValues(sampleKeys []int, col, lo, hi int, permute bool) (float64, float64, error) {
	if lo > hi {
		return 0, 0, rferrors.InvalidArgument("range [%d,%d) is invalid", lo, hi)
	}
	if col < 0 || col >= s.nCol {
		return 0, 0, rferrors.OutOfRange("predictor key %d out of range [0,%d)", col, s.nCol)
	}
	if lo == hi {
		return 0, 0, nil
	}
	row := s.AsRowOffset(sampleKeys[lo], permute)
	min, max := s.rawGetX(row, col), s.rawGetX(row, col)
	for i := lo + 1; i < hi; i++ {
		row := s.AsRowOffset(sampleKeys[i], permute)
		v := s.rawGetX(row, col)
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max, nil
}

func (s *Sparse) NewPredictorIndex() {
	s.buildPredictorIndex(s.rawGetX)
}
