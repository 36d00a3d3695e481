// Package data implements the predictor/response access model used by tree
// and forest growth: a column-major or sparse CSC matrix of predictors, a
// response matrix, and the lazily materialized indices (per-column unique
// value index, response index, response-stratified sample key bags, and an
// optional row permutation) described by the training engine's contract.
//
// Data is immutable once constructed. The indices are built once, before
// trees start growing, and shared read-only across worker goroutines.
package data

import (
	"math/rand"
	"sort"

	"github.com/cran/literanger/rferrors"
)

// Data is the abstract predictor/response matrix consumed by tree and
// forest growth.
type Data interface {
	NRow() int
	NCol() int
	NColY() int
	IsOrdered(predictorKey int) bool

	GetX(sampleKey, predictorKey int, permute bool) (float64, error)
	GetY(sampleKey, column int) (float64, error)

	GetAllValues(sampleKeys []int, col, lo, hi int, permute bool) ([]float64, error)
	GetMinMaxValues(sampleKeys []int, col, lo, hi int, permute bool) (min, max float64, err error)

	NewPredictorIndex()
	HasPredictorIndex() bool
	GetUniqueKey(row, col int, permute bool) (int, error)
	RawGetUniqueKey(row, col int) int
	GetUniqueValue(col, offset int) float64
	GetNUniqueValue(col int) int
	MaxNUniqueValue() int

	NewResponseIndex(responseValues []float64)
	ResponseIndex() []int
	ResponseValues() []float64
	NewSampleKeysByResponse()
	SampleKeysByResponse() [][]int

	NewPermutation(seed uint64)
	AsRowOffset(k int, permute bool) int

	// Finalize releases the indices built for a single plant/predict
	// job. Safe to call even if the indices were never built.
	Finalize()
}

// rawAccessor reads predictor column col, row r, ignoring permutation. Dense
// and Sparse each supply their own; it's used only to build the per-column
// indices once, up front.
type rawAccessor func(row, col int) float64

// baseData holds the fields and index-building logic shared by Dense and
// Sparse. It is embedded, not used standalone.
type baseData struct {
	nRow      int
	nCol      int
	nColY     int
	isOrdered []bool
	y         [][]float64 // nColY columns, each length nRow

	uniquePredictorValues [][]float64
	predictorIndex        [][]int
	maxNUniqueValue       int
	hasPredictorIndex     bool

	responseValues       []float64
	responseIndex        []int
	sampleKeysByResponse [][]int

	permutedSampleKeys []int
}

func newBaseData(nRow, nCol int, isOrdered []bool, y [][]float64) baseData {
	ordered := make([]bool, nCol)
	if isOrdered == nil {
		for i := range ordered {
			ordered[i] = true
		}
	} else {
		copy(ordered, isOrdered)
	}
	return baseData{
		nRow:      nRow,
		nCol:      nCol,
		nColY:     len(y),
		isOrdered: ordered,
		y:         y,
	}
}

func (b *baseData) NRow() int                 { return b.nRow }
func (b *baseData) NCol() int                 { return b.nCol }
func (b *baseData) NColY() int                { return b.nColY }
func (b *baseData) IsOrdered(col int) bool    { return b.isOrdered[col] }
func (b *baseData) HasPredictorIndex() bool   { return b.hasPredictorIndex }
func (b *baseData) MaxNUniqueValue() int      { return b.maxNUniqueValue }
func (b *baseData) ResponseIndex() []int      { return b.responseIndex }
func (b *baseData) ResponseValues() []float64 { return b.responseValues }
func (b *baseData) SampleKeysByResponse() [][]int {
	return b.sampleKeysByResponse
}

func (b *baseData) GetY(sampleKey, column int) (float64, error) {
	if column < 0 || column >= b.nColY {
		return 0, rferrors.OutOfRange("response column %d out of range [0,%d)", column, b.nColY)
	}
	if sampleKey < 0 || sampleKey >= b.nRow {
		return 0, rferrors.OutOfRange("sample key %d out of range [0,%d)", sampleKey, b.nRow)
	}
	return b.y[column][sampleKey], nil
}

// buildPredictorIndex is shared by Dense/Sparse's NewPredictorIndex; raw is
// the backend's zero-permutation accessor.
func (b *baseData) buildPredictorIndex(raw rawAccessor) {
	b.uniquePredictorValues = make([][]float64, b.nCol)
	b.predictorIndex = make([][]int, b.nCol)
	maxUnique := 3

	colBuf := make([]float64, b.nRow)
	for c := 0; c < b.nCol; c++ {
		for r := 0; r < b.nRow; r++ {
			colBuf[r] = raw(r, c)
		}
		uniq := sortedUnique(colBuf)
		b.uniquePredictorValues[c] = uniq

		idx := make([]int, b.nRow)
		for r := 0; r < b.nRow; r++ {
			idx[r] = searchFloat64s(uniq, colBuf[r])
		}
		b.predictorIndex[c] = idx

		if len(uniq) > maxUnique {
			maxUnique = len(uniq)
		}
	}

	b.maxNUniqueValue = maxUnique
	b.hasPredictorIndex = true
}

func (b *baseData) GetUniqueKey(row, col int, permute bool) (int, error) {
	if !b.hasPredictorIndex {
		return 0, rferrors.InvalidArgument("predictor index not built")
	}
	if col < 0 || col >= b.nCol {
		return 0, rferrors.OutOfRange("predictor key %d out of range [0,%d)", col, b.nCol)
	}
	r := b.AsRowOffset(row, permute)
	if r < 0 || r >= b.nRow {
		return 0, rferrors.OutOfRange("sample key %d out of range [0,%d)", r, b.nRow)
	}
	return b.predictorIndex[col][r], nil
}

// RawGetUniqueKey is the hot-path accessor used by the candidate-loop
// scratchpad build when iterating by unique-value index rather than by raw
// value: no bounds checks, no permutation. Callers must have already
// validated row/col.
func (b *baseData) RawGetUniqueKey(row, col int) int {
	return b.predictorIndex[col][row]
}

func (b *baseData) GetUniqueValue(col, offset int) float64 {
	return b.uniquePredictorValues[col][offset]
}

func (b *baseData) GetNUniqueValue(col int) int {
	if !b.hasPredictorIndex {
		return 0
	}
	return len(b.uniquePredictorValues[col])
}

func (b *baseData) NewResponseIndex(responseValues []float64) {
	b.responseValues = make([]float64, len(responseValues))
	copy(b.responseValues, responseValues)

	pos := make(map[float64]int, len(responseValues))
	for i, v := range responseValues {
		pos[v] = i
	}

	b.responseIndex = make([]int, b.nRow)
	for r := 0; r < b.nRow; r++ {
		b.responseIndex[r] = pos[b.y[0][r]]
	}
}

func (b *baseData) NewSampleKeysByResponse() {
	bags := make([][]int, len(b.responseValues))
	for r, k := range b.responseIndex {
		bags[k] = append(bags[k], r)
	}
	b.sampleKeysByResponse = bags
}

func (b *baseData) NewPermutation(seed uint64) {
	src := newSeededSource(seed)
	r := rand.New(src)

	perm := make([]int, b.nRow)
	for i := range perm {
		perm[i] = i
	}
	r.Shuffle(len(perm), func(i, j int) { perm[i], perm[j] = perm[j], perm[i] })
	b.permutedSampleKeys = perm
}

func (b *baseData) AsRowOffset(k int, permute bool) int {
	if permute && b.permutedSampleKeys != nil {
		return b.permutedSampleKeys[k]
	}
	return k
}

func (b *baseData) Finalize() {
	b.uniquePredictorValues = nil
	b.predictorIndex = nil
	b.hasPredictorIndex = false
	b.permutedSampleKeys = nil
}

// sortedUnique returns the sorted distinct values of vs.
func sortedUnique(vs []float64) []float64 {
	cp := make([]float64, len(vs))
	copy(cp, vs)
	sort.Float64s(cp)

	out := cp[:0]
	for i, v := range cp {
		if i == 0 || v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}

// searchFloat64s returns the index of v within the sorted slice uniq.
func searchFloat64s(uniq []float64, v float64) int {
	return sort.SearchFloat64s(uniq, v)
}
