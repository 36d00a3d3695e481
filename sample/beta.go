package sample

import (
	"math"

	"gonum.org/v1/gonum/mathext"
)

// BetaMoments estimates Beta(alpha, beta) shape parameters from values in
// (0,1) via method-of-moments, the per-side estimate the BETA split rule
// scores candidate cuts with. Returns NaN, NaN when the sample variance
// doesn't admit a valid Beta fit (too few samples, degenerate variance).
func BetaMoments(values []float64) (alpha, beta float64) {
	n := float64(len(values))
	if n < 2 {
		return math.NaN(), math.NaN()
	}

	var sum, sumSq float64
	for _, v := range values {
		sum += v
		sumSq += v * v
	}
	mean := sum / n
	variance := sumSq/n - mean*mean
	if variance <= 0 {
		return math.NaN(), math.NaN()
	}

	phi := mean*(1-mean)/variance - 1
	if phi <= 0 {
		return math.NaN(), math.NaN()
	}
	return mean * phi, (1 - mean) * phi
}

// BetaLogLikelihood returns sum_i log Beta(values[i]; alpha, beta), using
// the log of gonum's complete Beta function for the normalizing constant. Any non-finite result
// (invalid shape parameters, a response outside (0,1)) is reported as -Inf
// rather than NaN, so a degenerate fit simply loses the comparison against
// every other candidate split instead of propagating a NaN into it.
func BetaLogLikelihood(values []float64, alpha, beta float64) float64 {
	if math.IsNaN(alpha) || math.IsNaN(beta) || alpha <= 0 || beta <= 0 {
		return math.Inf(-1)
	}

	logNormalizer := math.Log(mathext.Beta(alpha, beta))

	total := 0.0
	for _, y := range values {
		if y <= 0 || y >= 1 {
			return math.Inf(-1)
		}
		ll := (alpha-1)*math.Log(y) + (beta-1)*math.Log(1-y) - logNormalizer
		if math.IsNaN(ll) || math.IsInf(ll, 0) {
			return math.Inf(-1)
		}
		total += ll
	}
	if math.IsNaN(total) {
		return math.Inf(-1)
	}
	return total
}
