package tree

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cran/literanger/data"
	"github.com/cran/literanger/rferrors"
)

func toyRegressionData(t *testing.T) *data.Dense {
	t.Helper()
	x := make([]float64, 40)
	y := make([]float64, 40)
	for i := range x {
		x[i] = float64(i)
		if i < 20 {
			y[i] = 1.0
		} else {
			y[i] = 10.0
		}
	}
	d, err := data.NewDense([][]float64{x}, [][]float64{y}, []bool{true})
	require.NoError(t, err)
	d.NewPredictorIndex()
	return d
}

func TestGrowRegressionSplitsOnThreshold(t *testing.T) {
	d := toyRegressionData(t)
	params := DefaultRegressionParameters(1, LogRank)
	params.NTry = 1
	params.MinSplitNSample = 2
	params.MinLeafNSample = 1

	rt := NewRegression(1, []bool{true}, false)
	rng := rand.New(rand.NewSource(42))

	_, err := Grow(rt, &params, d, nil, false, rng)
	require.NoError(t, err)
	assert.True(t, rt.NNode() >= 1)
}

func TestGrowRegressionEmptyTreeRequired(t *testing.T) {
	d := toyRegressionData(t)
	params := DefaultRegressionParameters(1, LogRank)
	rt := NewRegression(1, []bool{true}, false)
	rng := rand.New(rand.NewSource(1))

	_, err := Grow(rt, &params, d, nil, false, rng)
	require.NoError(t, err)

	_, err = Grow(rt, &params, d, nil, false, rng)
	assert.Error(t, err)
}

func toyClassificationData(t *testing.T) *data.Dense {
	t.Helper()
	x := make([]float64, 30)
	y := make([]float64, 30)
	for i := range x {
		x[i] = float64(i)
		if i < 15 {
			y[i] = 0
		} else {
			y[i] = 1
		}
	}
	d, err := data.NewDense([][]float64{x}, [][]float64{y}, []bool{true})
	require.NoError(t, err)
	d.NewPredictorIndex()
	d.NewResponseIndex([]float64{0, 1})
	return d
}

func TestGrowClassificationSplitsOnThreshold(t *testing.T) {
	d := toyClassificationData(t)
	params := DefaultClassificationParameters(1, LogRank)
	params.NTry = 1
	params.MinSplitNSample = 2
	params.MinLeafNSample = 1

	ct := NewClassification(1, []bool{true}, 2, nil, false)
	rng := rand.New(rand.NewSource(7))

	_, err := Grow(ct, &params, d, nil, false, rng)
	require.NoError(t, err)
	assert.True(t, ct.NNode() >= 1)

	for node := 0; node < ct.NNode(); node++ {
		if ct.IsLeaf(node) {
			ct.MostFrequent(rng, node)
		}
	}
}

func TestGrowRejectsCaseWeightsWithStratifiedSampling(t *testing.T) {
	d := toyClassificationData(t)
	d.NewSampleKeysByResponse()
	params := DefaultClassificationParameters(1, LogRank)
	params.NTry = 1
	params.SampleFraction = []float64{0.3, 0.3}

	weights := make([]float64, d.NRow())
	for i := range weights {
		weights[i] = 1
	}

	ct := NewClassification(1, []bool{true}, 2, nil, false)
	_, err := Grow(ct, &params, d, weights, false, rand.New(rand.NewSource(1)))
	require.Error(t, err)
	assert.True(t, rferrors.Is(err, rferrors.ErrInvalidArgument))
	assert.Contains(t, err.Error(), "class-wise sampling not supported")
}

func TestGrowStratifiedRejectsDeficientClass(t *testing.T) {
	d := toyClassificationData(t)
	d.NewSampleKeysByResponse()
	params := DefaultClassificationParameters(1, LogRank)
	params.NTry = 1
	params.Replace = false
	params.SampleFraction = []float64{0.9, 0.9}

	ct := NewClassification(1, []bool{true}, 2, nil, false)
	_, err := Grow(ct, &params, d, nil, false, rand.New(rand.NewSource(1)))
	assert.Error(t, err)
}

func TestClassificationLeafKeysAreResponseKeys(t *testing.T) {
	d := toyClassificationData(t)
	params := DefaultClassificationParameters(1, LogRank)
	params.NTry = 1
	params.MinSplitNSample = 2
	params.MinLeafNSample = 1

	ct := NewClassification(1, []bool{true}, 2, nil, false)
	_, err := Grow(ct, &params, d, nil, false, rand.New(rand.NewSource(11)))
	require.NoError(t, err)

	require.NotEmpty(t, ct.LeafKeys)
	for node, keys := range ct.LeafKeys {
		assert.True(t, ct.IsLeaf(node))
		for _, k := range keys {
			assert.True(t, k == 0 || k == 1, "leaf payload must hold response keys")
		}
	}
}

func TestGrowMaxDepthOneYieldsSingleSplit(t *testing.T) {
	d := toyRegressionData(t)
	params := DefaultRegressionParameters(1, LogRank)
	params.NTry = 1
	params.MinSplitNSample = 2
	params.MinLeafNSample = 1
	params.MaxDepth = 1

	rt := NewRegression(1, []bool{true}, false)
	_, err := Grow(rt, &params, d, nil, false, rand.New(rand.NewSource(5)))
	require.NoError(t, err)
	assert.True(t, rt.NNode() <= 3, "max_depth 1 allows at most one split")
}

func TestGrowChildrenHaveGreaterIndices(t *testing.T) {
	d := toyClassificationData(t)
	params := DefaultClassificationParameters(1, LogRank)
	params.NTry = 1
	params.MinSplitNSample = 2
	params.MinLeafNSample = 1

	ct := NewClassification(1, []bool{true}, 2, nil, false)
	_, err := Grow(ct, &params, d, nil, false, rand.New(rand.NewSource(13)))
	require.NoError(t, err)

	for node := 0; node < ct.NNode(); node++ {
		if ct.IsLeaf(node) {
			_, isTerminal := ct.LeafKeys[node]
			assert.True(t, isTerminal, "leaf %d must carry a terminal payload", node)
			continue
		}
		assert.Greater(t, ct.LeftChildren[node], node)
		assert.Greater(t, ct.RightChildren[node], node)
		assert.Less(t, ct.LeftChildren[node], ct.NNode())
		assert.Less(t, ct.RightChildren[node], ct.NNode())
		_, isTerminal := ct.LeafKeys[node]
		assert.False(t, isTerminal, "internal node %d must not carry a terminal payload", node)
	}
}

func TestUnorderedSubsetsCanonical(t *testing.T) {
	masks := unorderedSubsets([]int{1, 2, 3})
	assert.Len(t, masks, 3)
	for _, m := range masks {
		assert.Zero(t, m&1, "lowest level must stay on the left in every mask")
		assert.NotZero(t, m, "trivial partitions must not be enumerated")
	}

	assert.Nil(t, unorderedSubsets([]int{1}))
	assert.Len(t, unorderedSubsets([]int{1, 2, 3, 4}), 7)
}

func TestRouteMatchesGrownSplit(t *testing.T) {
	d := toyRegressionData(t)
	params := DefaultRegressionParameters(1, LogRank)
	params.NTry = 1
	params.MinSplitNSample = 2
	params.MinLeafNSample = 1

	rt := NewRegression(1, []bool{true}, false)
	rng := rand.New(rand.NewSource(3))
	_, err := Grow(rt, &params, d, nil, false, rng)
	require.NoError(t, err)

	for row := 0; row < d.NRow(); row++ {
		node, err := Route(d, rt.base(), row, false)
		require.NoError(t, err)
		assert.True(t, rt.IsLeaf(node))
	}
}
