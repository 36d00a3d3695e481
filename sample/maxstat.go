package sample

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

var stdNormal = distuv.Normal{Mu: 0, Sigma: 1}

func stdNormalPDF(x float64) float64 {
	return stdNormal.Prob(x)
}

func stdNormalCDF(x float64) float64 {
	return stdNormal.CDF(x)
}

// RankTransform returns the 1-indexed average-rank transform of values: tied
// values receive the mean of the ranks they span. A node's responses are
// rank-transformed exactly once before sweeping candidate splits.
func RankTransform(values []float64) []float64 {
	n := len(values)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(i, j int) bool { return values[idx[i]] < values[idx[j]] })

	ranks := make([]float64, n)
	i := 0
	for i < n {
		j := i
		for j+1 < n && values[idx[j+1]] == values[idx[i]] {
			j++
		}
		avgRank := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[idx[k]] = avgRank
		}
		i = j + 1
	}
	return ranks
}

// MaxstatStatistic computes the standardized rank-sum statistic
// |(S-E)/sqrt(V)| for a candidate split putting nL of n total samples on the
// left, given the left-side rank sum sumRanksLeft and the node's overall
// rank sum/sum-of-squared-ranks (ties-corrected variance, Wilcoxon
// rank-sum form).
func MaxstatStatistic(sumRanksLeft float64, nL, n int, sumRanks, sumSqRanks float64) float64 {
	fn := float64(n)
	fnL := float64(nL)
	fnR := fn - fnL
	if nL <= 0 || fnR <= 0 || n <= 1 {
		return 0
	}
	meanRank := sumRanks / fn
	e := fnL * meanRank
	v := (fnL * fnR / (fn * (fn - 1))) * (sumSqRanks - fn*meanRank*meanRank)
	if v <= 0 {
		return 0
	}
	return math.Abs((sumRanksLeft - e) / math.Sqrt(v))
}

// MaxstatPValueLausen92 approximates the p-value of a standardized maximally
// selected rank statistic b via the boundary-crossing approximation for a
// Brownian bridge (Lausen & Schumacher, 1992, "Maximally Selected Rank
// Statistics", Biometrics).
func MaxstatPValueLausen92(b, minProp, maxProp float64) float64 {
	if b <= 0 {
		return 1
	}
	phi := stdNormalPDF(b)
	p := 4*phi/b + phi*(b-1/b)*math.Log((maxProp*(1-minProp))/((1-maxProp)*minProp))
	return clampProb(p)
}

// MaxstatPValueLausen94 approximates the p-value of a standardized maximally
// selected rank statistic b via the alternative asymptotic bound of Lausen,
// Sauerbrei & Schumacher (1994), "Classification and Regression Trees (CART)
// Used for the Exploration of Prognostic Factors Measured on Different
// Scales": twice the upper normal tail at b, plus a correction term summed
// over every cut actually evaluated in the node (eligibleNLeft holds each
// cut's left-side sample count), independent of the Lausen92 approximation
// so the caller's min(p92, p94) is a genuine choice between two bounds
// rather than a one-sided refinement of p92.
func MaxstatPValueLausen94(b float64, eligibleNLeft []int, n int) float64 {
	if b <= 0 {
		return 1
	}
	base := 2 * (1 - stdNormalCDF(b))
	if n <= 1 || len(eligibleNLeft) == 0 {
		return clampProb(base)
	}
	fn := float64(n)
	var d float64
	for _, nLeft := range eligibleNLeft {
		m1 := float64(nLeft) / fn
		denom := m1 * (1 - m1)
		if denom <= 0 {
			continue
		}
		d += 1 / denom
	}
	phi := stdNormalPDF(b)
	return clampProb(base + phi*b*d/fn)
}

func clampProb(p float64) float64 {
	if math.IsNaN(p) || p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
