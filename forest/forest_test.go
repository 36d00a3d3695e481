package forest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cran/literanger/data"
	"github.com/cran/literanger/rferrors"
	"github.com/cran/literanger/tree"
)

func irisLikeData(t *testing.T) *data.Dense {
	t.Helper()
	n := 60
	x1 := make([]float64, n)
	y := make([]float64, n)
	for i := range x1 {
		x1[i] = float64(i % 10)
		if i < 30 {
			y[i] = 0
		} else {
			y[i] = 1
		}
	}
	d, err := data.NewDense([][]float64{x1}, [][]float64{y}, []bool{true})
	require.NoError(t, err)
	d.NewPredictorIndex()
	d.NewResponseIndex([]float64{0, 1})
	d.NewSampleKeysByResponse()
	return d
}

func TestClassificationPlantAndPredictBagged(t *testing.T) {
	d := irisLikeData(t)
	params := tree.DefaultClassificationParameters(1, tree.LogRank)
	params.NTry = 1
	params.MinSplitNSample = 2
	params.MinLeafNSample = 1

	f := NewClassification(params, 2, []float64{0, 1}, []string{"x1"})
	err := f.Plant(context.Background(), d, 10, nil, true, 2, 42, NoopProgress{}, false)
	require.NoError(t, err)
	assert.Len(t, f.Trees, 10)

	preds, err := f.Predict(context.Background(), d, Bagged, 0, 2)
	require.NoError(t, err)
	assert.Len(t, preds.PredictedClass, d.NRow())
}

func TestClassificationPlantRequiresPositiveNTree(t *testing.T) {
	d := irisLikeData(t)
	params := tree.DefaultClassificationParameters(1, tree.LogRank)
	f := NewClassification(params, 2, []float64{0, 1}, []string{"x1"})
	err := f.Plant(context.Background(), d, 0, nil, false, 1, 1, NoopProgress{}, false)
	assert.Error(t, err)
}

func TestClassificationInbagReproducibleUnderSeed(t *testing.T) {
	d := irisLikeData(t)
	params := tree.DefaultClassificationParameters(1, tree.LogRank)
	params.NTry = 1
	f := NewClassification(params, 2, []float64{0, 1}, []string{"x1"})
	require.NoError(t, f.Plant(context.Background(), d, 5, nil, false, 1, 1, NoopProgress{}, false))

	first, err := f.Predict(context.Background(), d, Inbag, 99, 1)
	require.NoError(t, err)
	second, err := f.Predict(context.Background(), d, Inbag, 99, 3)
	require.NoError(t, err)
	assert.Equal(t, first.InbagClass, second.InbagClass)
}

func TestClassificationInbagDoesNotRequireOOB(t *testing.T) {
	d := irisLikeData(t)
	params := tree.DefaultClassificationParameters(1, tree.LogRank)
	params.NTry = 1
	f := NewClassification(params, 2, []float64{0, 1}, []string{"x1"})
	require.NoError(t, f.Plant(context.Background(), d, 5, nil, false, 1, 1, NoopProgress{}, false))

	preds, err := f.Predict(context.Background(), d, Inbag, 7, 1)
	require.NoError(t, err)
	assert.Len(t, preds.InbagClass, d.NRow())
}

func TestMergeClassificationCombinesTrees(t *testing.T) {
	d := irisLikeData(t)
	params := tree.DefaultClassificationParameters(1, tree.LogRank)
	params.NTry = 1
	params.MinSplitNSample = 2
	params.MinLeafNSample = 1

	a := NewClassification(params, 2, []float64{0, 1}, []string{"x1"})
	require.NoError(t, a.Plant(context.Background(), d, 4, nil, true, 1, 1, NoopProgress{}, false))
	b := NewClassification(params, 2, []float64{0, 1}, []string{"x1"})
	require.NoError(t, b.Plant(context.Background(), d, 3, nil, true, 1, 2, NoopProgress{}, false))

	merged, err := MergeClassification(a, b, nil)
	require.NoError(t, err)
	assert.Len(t, merged.Trees, 7)
}

func TestClassificationTrainingAccuracyOnSeparableData(t *testing.T) {
	n := 60
	x1 := make([]float64, n)
	y := make([]float64, n)
	for i := range x1 {
		x1[i] = float64(i)
		if i >= 30 {
			y[i] = 1
		}
	}
	d, err := data.NewDense([][]float64{x1}, [][]float64{y}, []bool{true})
	require.NoError(t, err)
	d.NewResponseIndex([]float64{0, 1})

	params := tree.DefaultClassificationParameters(1, tree.LogRank)
	params.NTry = 1
	params.MinSplitNSample = 2
	params.MinLeafNSample = 1

	f := NewClassification(params, 2, []float64{0, 1}, []string{"x1"})
	require.NoError(t, f.Plant(context.Background(), d, 10, nil, false, 1, 42, NoopProgress{}, false))

	preds, err := f.Predict(context.Background(), d, Bagged, 123, 1)
	require.NoError(t, err)

	responseIndex := d.ResponseIndex()
	correct := 0
	for row, k := range preds.PredictedClass {
		if k == responseIndex[row] {
			correct++
		}
	}
	assert.Greater(t, float64(correct)/float64(n), 0.9)
}

func TestClassificationOOBErrorWithinBounds(t *testing.T) {
	d := irisLikeData(t)
	params := tree.DefaultClassificationParameters(1, tree.LogRank)
	params.NTry = 1
	params.MinSplitNSample = 2
	params.MinLeafNSample = 1

	f := NewClassification(params, 2, []float64{0, 1}, []string{"x1"})
	require.NoError(t, f.Plant(context.Background(), d, 10, nil, true, 1, 42, NoopProgress{}, false))
	assert.GreaterOrEqual(t, f.OOBError, 0.0)
	assert.LessOrEqual(t, f.OOBError, 1.0)
}

func TestMergeNodesPredictionConcatenatesColumns(t *testing.T) {
	d := irisLikeData(t)
	params := tree.DefaultClassificationParameters(1, tree.LogRank)
	params.NTry = 1
	params.MinSplitNSample = 2
	params.MinLeafNSample = 1

	a := NewClassification(params, 2, []float64{0, 1}, []string{"x1"})
	require.NoError(t, a.Plant(context.Background(), d, 4, nil, false, 1, 1, NoopProgress{}, false))
	b := NewClassification(params, 2, []float64{0, 1}, []string{"x1"})
	require.NoError(t, b.Plant(context.Background(), d, 3, nil, false, 1, 2, NoopProgress{}, false))

	merged, err := MergeClassification(a, b, nil)
	require.NoError(t, err)

	nodesA, err := a.Predict(context.Background(), d, Nodes, 0, 1)
	require.NoError(t, err)
	nodesB, err := b.Predict(context.Background(), d, Nodes, 0, 1)
	require.NoError(t, err)
	nodesM, err := merged.Predict(context.Background(), d, Nodes, 0, 1)
	require.NoError(t, err)

	for row := 0; row < d.NRow(); row++ {
		want := append(append([]int(nil), nodesA.Nodes[row]...), nodesB.Nodes[row]...)
		assert.Equal(t, want, nodesM.Nodes[row])
	}
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	d := irisLikeData(t)
	params := tree.DefaultClassificationParameters(1, tree.LogRank)
	params.NTry = 1

	a := NewClassification(params, 2, []float64{0, 1}, []string{"x1"})
	require.NoError(t, a.Plant(context.Background(), d, 2, nil, false, 1, 1, NoopProgress{}, false))
	b := NewClassification(params, 2, []float64{1, 0}, []string{"x1"})
	require.NoError(t, b.Plant(context.Background(), d, 2, nil, false, 1, 2, NoopProgress{}, false))

	beforeKeys := append([]int(nil), b.Trees[0].SplitKeys...)

	_, err := MergeClassification(a, b, nil)
	require.NoError(t, err)
	assert.Equal(t, beforeKeys, b.Trees[0].SplitKeys)
}

func TestPlantCancelledContextSurfacesCancelled(t *testing.T) {
	d := irisLikeData(t)
	params := tree.DefaultClassificationParameters(1, tree.LogRank)
	params.NTry = 1

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := NewClassification(params, 2, []float64{0, 1}, []string{"x1"})
	err := f.Plant(ctx, d, 50, nil, false, 2, 1, NoopProgress{}, false)
	require.Error(t, err)
	assert.True(t, rferrors.Is(err, rferrors.ErrCancelled))
}

func TestRegressionPlantAndPredict(t *testing.T) {
	n := 40
	x1 := make([]float64, n)
	y := make([]float64, n)
	for i := range x1 {
		x1[i] = float64(i)
		y[i] = float64(i) * 2
	}
	d, err := data.NewDense([][]float64{x1}, [][]float64{y}, []bool{true})
	require.NoError(t, err)
	d.NewPredictorIndex()

	params := tree.DefaultRegressionParameters(1, tree.LogRank)
	params.NTry = 1
	params.MinSplitNSample = 2
	params.MinLeafNSample = 1

	f := NewRegression(params, []string{"x1"})
	require.NoError(t, f.Plant(context.Background(), d, 8, nil, true, 2, 7, NoopProgress{}, false))

	preds, err := f.Predict(context.Background(), d, Bagged, 0, 2)
	require.NoError(t, err)
	assert.Len(t, preds.PredictedValue, d.NRow())
}
