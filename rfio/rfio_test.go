package rfio

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cran/literanger/data"
	"github.com/cran/literanger/forest"
	"github.com/cran/literanger/tree"
)

func plantedClassification(t *testing.T) (*forest.Classification, *data.Dense) {
	t.Helper()
	n := 40
	x1 := make([]float64, n)
	y := make([]float64, n)
	for i := range x1 {
		x1[i] = float64(i)
		if i < 20 {
			y[i] = 0
		} else {
			y[i] = 1
		}
	}
	d, err := data.NewDense([][]float64{x1}, [][]float64{y}, []bool{true})
	require.NoError(t, err)
	d.NewPredictorIndex()
	d.NewResponseIndex([]float64{0, 1})

	params := tree.DefaultClassificationParameters(1, tree.LogRank)
	params.NTry = 1
	params.MinSplitNSample = 2
	params.MinLeafNSample = 1

	f := forest.NewClassification(params, 2, []float64{0, 1}, []string{"x1"})
	f.ResponseLevels = []string{"setosa", "versicolor"}
	require.NoError(t, f.Plant(context.Background(), d, 5, nil, true, 1, 3, forest.NoopProgress{}, false))
	return f, d
}

func TestClassificationRoundTrip(t *testing.T) {
	f, d := plantedClassification(t)

	var buf bytes.Buffer
	runID := NewRunID()
	require.NoError(t, WriteClassification(&buf, f, d.NCol(), []bool{true}, runID))

	got, err := ReadClassification(&buf)
	require.NoError(t, err)

	assert.Equal(t, f.NClass, got.NClass)
	assert.Equal(t, f.ResponseValues, got.ResponseValues)
	assert.Equal(t, f.ResponseLevels, got.ResponseLevels)
	assert.Equal(t, f.OOBError, got.OOBError)
	assert.Equal(t, f.PredictorNames, got.PredictorNames)
	require.Len(t, got.Trees, len(f.Trees))
	for i := range f.Trees {
		assert.Equal(t, f.Trees[i].SplitKeys, got.Trees[i].SplitKeys)
		assert.Equal(t, f.Trees[i].SplitValues, got.Trees[i].SplitValues)
		assert.Equal(t, f.Trees[i].LeafKeys, got.Trees[i].LeafKeys)
	}
}

func TestRoundTripPredictionsMatch(t *testing.T) {
	f, d := plantedClassification(t)

	var buf bytes.Buffer
	require.NoError(t, WriteClassification(&buf, f, d.NCol(), []bool{true}, NewRunID()))
	got, err := ReadClassification(&buf)
	require.NoError(t, err)

	want, err := f.Predict(context.Background(), d, forest.Bagged, 123, 1)
	require.NoError(t, err)
	have, err := got.Predict(context.Background(), d, forest.Bagged, 123, 1)
	require.NoError(t, err)
	assert.Equal(t, want.PredictedClass, have.PredictedClass)
}

func TestWriteIsDeterministic(t *testing.T) {
	f, d := plantedClassification(t)
	runID := NewRunID()

	var first, second bytes.Buffer
	require.NoError(t, WriteClassification(&first, f, d.NCol(), []bool{true}, runID))
	require.NoError(t, WriteClassification(&second, f, d.NCol(), []bool{true}, runID))
	assert.Equal(t, first.Bytes(), second.Bytes())
}

func TestReadRejectsWrongFamily(t *testing.T) {
	f, d := plantedClassification(t)
	var buf bytes.Buffer
	require.NoError(t, WriteClassification(&buf, f, d.NCol(), []bool{true}, NewRunID()))

	_, err := ReadRegression(&buf)
	assert.Error(t, err)
}

func TestReadRejectsBadMagic(t *testing.T) {
	_, err := ReadClassification(bytes.NewReader([]byte("nope")))
	assert.Error(t, err)
}

func TestRegressionRoundTrip(t *testing.T) {
	n := 30
	x1 := make([]float64, n)
	y := make([]float64, n)
	for i := range x1 {
		x1[i] = float64(i)
		y[i] = float64(i) * 3
	}
	d, err := data.NewDense([][]float64{x1}, [][]float64{y}, []bool{true})
	require.NoError(t, err)
	d.NewPredictorIndex()

	params := tree.DefaultRegressionParameters(1, tree.LogRank)
	params.NTry = 1
	params.MinSplitNSample = 2
	params.MinLeafNSample = 1

	f := forest.NewRegression(params, []string{"x1"})
	require.NoError(t, f.Plant(context.Background(), d, 4, nil, true, 1, 9, forest.NoopProgress{}, false))

	var buf bytes.Buffer
	require.NoError(t, WriteRegression(&buf, f, d.NCol(), []bool{true}, NewRunID()))

	got, err := ReadRegression(&buf)
	require.NoError(t, err)
	assert.Equal(t, f.OOBError, got.OOBError)
	require.Len(t, got.Trees, len(f.Trees))
	for i := range f.Trees {
		assert.Equal(t, f.Trees[i].SplitValues, got.Trees[i].SplitValues)
		assert.Equal(t, f.Trees[i].LeafValues, got.Trees[i].LeafValues)
	}
}
