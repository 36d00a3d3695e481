package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cran/literanger/forest"
	"github.com/cran/literanger/tree"
)

func TestEncodeFactorPreservesLevelNames(t *testing.T) {
	raw := []string{"versicolor", "setosa", "virginica", "setosa"}
	codes, values, names := encodeFactor(raw)

	assert.Equal(t, []string{"setosa", "versicolor", "virginica"}, names)
	assert.Equal(t, []float64{0, 1, 2}, values)
	for i, s := range raw {
		assert.Equal(t, s, names[int(codes[i])])
	}
}

func TestEncodeResponseNumericHasNoLevels(t *testing.T) {
	y, values, names := encodeResponse([]string{"1.5", "2.5", "1.5"}, nil)
	assert.Equal(t, []float64{1.5, 2.5, 1.5}, y)
	assert.Nil(t, values)
	assert.Nil(t, names)
}

func TestEncodeResponseCharacterConvertsToFactor(t *testing.T) {
	y, values, names := encodeResponse([]string{"b", "a", "b"}, nil)
	assert.Equal(t, []float64{1, 0, 1}, y)
	assert.Equal(t, []float64{0, 1}, values)
	assert.Equal(t, []string{"a", "b"}, names)
}

func TestFormatClassReportsOriginalStrings(t *testing.T) {
	params := tree.DefaultClassificationParameters(1, tree.LogRank)
	f := forest.NewClassification(params, 2, []float64{0, 1}, []string{"x1"})
	f.ResponseLevels = []string{"setosa", "versicolor"}

	require.Equal(t, "setosa", formatClass(f, 0))
	require.Equal(t, "versicolor", formatClass(f, 1))

	f.ResponseLevels = nil
	assert.Equal(t, "0", formatClass(f, 0))
	assert.Equal(t, "1", formatClass(f, 1))
}
