package data

import (
	"testing"

	"github.com/cran/literanger/rferrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDensePredictorIndexInvariant(t *testing.T) {
	columns := [][]float64{
		{1.0, 3.0, 2.0, 3.0, 1.0},
		{0.1, 0.2, 0.1, 0.4, 0.5},
	}
	y := [][]float64{{0, 1, 0, 1, 0}}

	d, err := NewDense(columns, y, nil)
	require.NoError(t, err)

	d.NewPredictorIndex()
	require.True(t, d.HasPredictorIndex())

	for c := 0; c < d.NCol(); c++ {
		for r := 0; r < d.NRow(); r++ {
			offset, err := d.GetUniqueKey(r, c, false)
			require.NoError(t, err)
			got := d.GetUniqueValue(c, offset)
			want, err := d.GetX(r, c, false)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}
	}

	assert.GreaterOrEqual(t, d.MaxNUniqueValue(), 3)
}

func TestDenseOutOfRange(t *testing.T) {
	d, err := NewDense([][]float64{{1, 2, 3}}, [][]float64{{0, 1, 0}}, nil)
	require.NoError(t, err)

	_, err = d.GetX(0, 5, false)
	assert.ErrorIs(t, err, rferrors.ErrOutOfRange)

	_, _, err = d.GetMinMaxValues([]int{0, 1, 2}, 0, 2, 1, false)
	assert.Error(t, err)
}

func TestDenseGetAllValuesSortedUnique(t *testing.T) {
	d, err := NewDense([][]float64{{3, 1, 2, 1, 3}}, [][]float64{{0, 0, 0, 0, 0}}, nil)
	require.NoError(t, err)

	keys := []int{0, 1, 2, 3, 4}
	vals, err := d.GetAllValues(keys, 0, 0, 5, false)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, vals)

	vals, err = d.GetAllValues(keys, 0, 1, 4, false)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, vals)

	_, err = d.GetAllValues(keys, 0, 3, 1, false)
	assert.ErrorIs(t, err, rferrors.ErrInvalidArgument)
}

func TestSparseZeroForUnstoredEntries(t *testing.T) {
	// 3x2 matrix, only (0,0)=5 and (2,1)=7 stored.
	dim := [2]int{3, 2}
	rowIndex := []int{0, 2}
	colPtr := []int{0, 1, 2}
	values := []float64{5, 7}

	s, err := NewSparse(dim, rowIndex, colPtr, values, [][]float64{{0, 1, 0}}, nil)
	require.NoError(t, err)

	v, err := s.GetX(1, 0, false)
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)

	v, err = s.GetX(0, 0, false)
	require.NoError(t, err)
	assert.Equal(t, 5.0, v)

	v, err = s.GetX(2, 1, false)
	require.NoError(t, err)
	assert.Equal(t, 7.0, v)
}

func TestPermutationRowOffset(t *testing.T) {
	d, err := NewDense([][]float64{{1, 2, 3, 4}}, [][]float64{{0, 1, 0, 1}}, nil)
	require.NoError(t, err)

	// without a permutation, AsRowOffset is the identity
	for k := 0; k < d.NRow(); k++ {
		assert.Equal(t, k, d.AsRowOffset(k, true))
	}

	d.NewPermutation(42)
	seen := make(map[int]bool)
	for k := 0; k < d.NRow(); k++ {
		r := d.AsRowOffset(k, true)
		assert.False(t, seen[r], "permutation should be a bijection")
		seen[r] = true
	}
}
