package sample

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithoutReplacementDistinct(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	got := WithoutReplacement(r, 10, 4)
	assert.Len(t, got, 4)
	seen := make(map[int]bool)
	for _, v := range got {
		assert.False(t, seen[v])
		seen[v] = true
		assert.True(t, v >= 0 && v < 10)
	}
}

func TestWeightedWithReplacementRejectsNegativeWeight(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	_, err := WeightedWithReplacement(r, []float64{1, -1, 2}, 3)
	assert.Error(t, err)
}

func TestDrawCandidatesAlwaysIncludesAlwaysDraw(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	out, err := DrawCandidates(r, 10, 3, []int{5}, nil)
	require.NoError(t, err)
	assert.Len(t, out, 4)
	assert.Contains(t, out, 5)
}

func TestDrawCandidatesExcludesZeroWeight(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	weights := []float64{1, 1, 0, 1, 1}
	out, err := DrawCandidates(r, 5, 4, nil, weights)
	require.NoError(t, err)
	assert.NotContains(t, out, 2)
}

func TestStratifiedRejectsZeroSamples(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	_, err := Stratified(r, [][]int{{0, 1}, {2, 3}}, 4, []float64{0, 0}, true)
	assert.Error(t, err)
}

func TestStratifiedRejectsDeficientClassWithoutReplacement(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	_, err := Stratified(r, [][]int{{0, 1}, {2, 3, 4}}, 5, []float64{0.8, 0.8}, false)
	assert.Error(t, err)
}

func TestBetaMomentsAndLikelihood(t *testing.T) {
	values := []float64{0.2, 0.3, 0.25, 0.4, 0.35, 0.1, 0.5}
	alpha, beta := BetaMoments(values)
	require.False(t, math.IsNaN(alpha))
	ll := BetaLogLikelihood(values, alpha, beta)
	assert.False(t, math.IsNaN(ll) || math.IsInf(ll, -1))
}

func TestBetaLogLikelihoodRejectsOutOfRange(t *testing.T) {
	ll := BetaLogLikelihood([]float64{0.5, 1.2}, 2, 2)
	assert.True(t, math.IsInf(ll, -1))
}
