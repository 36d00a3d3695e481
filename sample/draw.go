// Package sample implements the resampling and candidate-drawing utilities
// used by tree growth: unweighted/weighted draws with and without
// replacement, response-stratified sampling, predictor candidate drawing,
// and the numeric helpers (beta log-likelihood, MAXSTAT p-value
// approximations) needed by the BETA and MAXSTAT split rules.
package sample

import (
	"math/rand"
	"sort"

	"github.com/cran/literanger/rferrors"
)

// WithReplacement draws k indices uniformly from [0,n) with replacement.
func WithReplacement(r *rand.Rand, n, k int) []int {
	out := make([]int, k)
	for i := range out {
		out[i] = r.Intn(n)
	}
	return out
}

// WithoutReplacement draws k distinct indices uniformly from [0,n) by
// partial Fisher-Yates shuffle: shuffle the index range and take the
// prefix of length k.
func WithoutReplacement(r *rand.Rand, n, k int) []int {
	if k > n {
		k = n
	}
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	for i := 0; i < k; i++ {
		j := i + r.Intn(n-i)
		perm[i], perm[j] = perm[j], perm[i]
	}
	out := make([]int, k)
	copy(out, perm[:k])
	return out
}

// WeightedWithReplacement draws k indices from [0,len(weights)) with
// replacement, each draw proportional to weights (a categorical
// distribution built once via cumulative sum + binary search).
func WeightedWithReplacement(r *rand.Rand, weights []float64, k int) ([]int, error) {
	cum, total, err := cumulativeWeights(weights)
	if err != nil {
		return nil, err
	}
	out := make([]int, k)
	for i := range out {
		out[i] = drawOne(r, cum, total)
	}
	return out, nil
}

// WeightedWithoutReplacement draws k distinct indices from [0,len(weights))
// without replacement, using sequential weighted sampling: draw one
// categorical sample, remove it from the pool, repeat against the reduced
// weight vector.
func WeightedWithoutReplacement(r *rand.Rand, weights []float64, k int) ([]int, error) {
	if k > len(weights) {
		k = len(weights)
	}
	remaining := make([]float64, len(weights))
	copy(remaining, weights)

	out := make([]int, 0, k)
	for len(out) < k {
		cum, total, err := cumulativeWeights(remaining)
		if err != nil {
			return nil, err
		}
		if total <= 0 {
			break
		}
		i := drawOne(r, cum, total)
		out = append(out, i)
		remaining[i] = 0
	}
	return out, nil
}

func cumulativeWeights(weights []float64) ([]float64, float64, error) {
	cum := make([]float64, len(weights))
	total := 0.0
	for i, w := range weights {
		if w < 0 {
			return nil, 0, rferrors.Domain("draw_predictor_weight %d is negative: %v", i, w)
		}
		total += w
		cum[i] = total
	}
	return cum, total, nil
}

func drawOne(r *rand.Rand, cum []float64, total float64) int {
	u := r.Float64() * total
	i := sort.SearchFloat64s(cum, u)
	if i >= len(cum) {
		i = len(cum) - 1
	}
	return i
}

// Stratified draws in-bag sample keys per response class: for each class k,
// it draws round(nRow*(cumEnd-cumStart)) keys from sampleKeysByResponse[k],
// with or without replacement, accumulating cumulative fraction across
// classes so each class's in-bag count tracks its own sampleFraction entry.
func Stratified(r *rand.Rand, sampleKeysByResponse [][]int, nRow int, sampleFraction []float64, replace bool) ([]int, error) {
	if len(sampleFraction) != len(sampleKeysByResponse) {
		return nil, rferrors.InvalidArgument(
			"sample_fraction has %d entries, need one per response class (%d)",
			len(sampleFraction), len(sampleKeysByResponse))
	}

	var inbag []int
	cumFraction := 0.0
	for k, frac := range sampleFraction {
		if frac < 0 {
			return nil, rferrors.InvalidArgument("sample_fraction[%d] is negative", k)
		}
		cumStart := cumFraction
		cumFraction += frac
		cumEnd := cumFraction

		nDraw := int(roundHalfAwayFromZero(float64(nRow) * (cumEnd - cumStart)))
		bag := sampleKeysByResponse[k]

		if !replace && nDraw > len(bag) {
			return nil, rferrors.InvalidArgument(
				"class %d has only %d samples, cannot draw %d without replacement", k, len(bag), nDraw)
		}

		var drawn []int
		if replace {
			drawn = WithReplacement(r, len(bag), nDraw)
		} else {
			drawn = WithoutReplacement(r, len(bag), nDraw)
		}
		for _, i := range drawn {
			inbag = append(inbag, bag[i])
		}
	}

	if len(inbag) == 0 {
		return nil, rferrors.InvalidArgument("stratified sampling results in zero samples")
	}

	return inbag, nil
}

func roundHalfAwayFromZero(x float64) float64 {
	if x >= 0 {
		return float64(int64(x + 0.5))
	}
	return float64(int64(x - 0.5))
}

// DrawCandidates draws the set of candidate predictors considered at one
// node: unweighted or weighted sampling without replacement of nTry
// predictor keys, unioned with alwaysDraw (which bypasses the weight
// distribution).
// Weights of zero on predictors not in alwaysDraw exclude them; weights on
// always-draw predictors are ignored.
func DrawCandidates(r *rand.Rand, nPredictor, nTry int, alwaysDraw []int, weights []float64) ([]int, error) {
	if nTry <= 0 {
		return nil, rferrors.InvalidArgument("n_try must be > 0, got %d", nTry)
	}
	if nTry > nPredictor {
		return nil, rferrors.InvalidArgument("n_try (%d) exceeds n_predictor (%d)", nTry, nPredictor)
	}
	if weights != nil && len(weights) != nPredictor {
		return nil, rferrors.InvalidArgument("draw_predictor_weights has length %d, want %d", len(weights), nPredictor)
	}

	always := make(map[int]bool, len(alwaysDraw))
	for _, k := range alwaysDraw {
		always[k] = true
	}

	var pool []int
	var poolWeights []float64
	for p := 0; p < nPredictor; p++ {
		if always[p] {
			continue
		}
		w := 1.0
		if weights != nil {
			w = weights[p]
		}
		if w < 0 {
			return nil, rferrors.Domain("draw_predictor_weight[%d] is negative: %v", p, w)
		}
		if weights != nil && w == 0 {
			continue // excluded
		}
		pool = append(pool, p)
		poolWeights = append(poolWeights, w)
	}

	remaining := nTry
	if len(pool) == 0 {
		if len(always) < nPredictor {
			return nil, rferrors.InvalidArgument("no eligible predictors to draw: all weights are zero")
		}
		remaining = 0
	}

	var drawnIdx []int
	var err error
	if weights == nil {
		drawnIdx = WithoutReplacement(r, len(pool), remaining)
	} else {
		drawnIdx, err = WeightedWithoutReplacement(r, poolWeights, remaining)
		if err != nil {
			return nil, err
		}
	}

	out := make([]int, 0, nTry)
	for k := range always {
		out = append(out, k)
	}
	for _, idx := range drawnIdx {
		out = append(out, pool[idx])
	}
	sort.Ints(out)
	return out, nil
}
