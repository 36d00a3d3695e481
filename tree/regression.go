package tree

import (
	"math"
	"math/rand"

	"github.com/cran/literanger/data"
	"github.com/cran/literanger/sample"
)

// Regression is a tree whose leaves hold the in-bag response values (with
// their mean cached on demand) for a continuous or beta-valued response.
type Regression struct {
	Base

	y []float64 // response value per row, cached once per growth call

	LeafValues map[int][]float64
	LeafMean   map[int]float64
}

// NewRegression allocates an empty regression tree.
func NewRegression(nPredictor int, isOrdered []bool, saveMemory bool) *Regression {
	return &Regression{
		Base:       NewBase(nPredictor, isOrdered, saveMemory),
		LeafValues: make(map[int][]float64),
		LeafMean:   make(map[int]float64),
	}
}

func (t *Regression) base() *Base { return &t.Base }

// validateParams has no regression-specific preconditions.
func (t *Regression) validateParams(params *TrainingParameters) error { return nil }

// Clone returns a deep copy of t, used by forest merge so remapping split
// keys on the copy never mutates the source forest's tree.
func (t *Regression) Clone() *Regression {
	out := &Regression{
		Base:       t.Base.clone(),
		LeafValues: make(map[int][]float64, len(t.LeafValues)),
		LeafMean:   make(map[int]float64, len(t.LeafMean)),
	}
	for node, values := range t.LeafValues {
		out.LeafValues[node] = append([]float64(nil), values...)
	}
	for node, m := range t.LeafMean {
		out.LeafMean[node] = m
	}
	return out
}

func (t *Regression) newGrowth(d data.Data, caseWeights []float64) {
	n := d.NRow()
	t.y = make([]float64, n)
	for r := 0; r < n; r++ {
		t.y[r], _ = d.GetY(r, 0)
	}
}

func (t *Regression) isPure(d data.Data, start, end int) bool {
	sk := t.sampleKeys
	first := t.y[sk[start]]
	for i := start + 1; i < end; i++ {
		if t.y[sk[i]] != first {
			return false
		}
	}
	return true
}

func (t *Regression) addTerminalNode(nodeKey, start, end int) {
	sk := t.sampleKeys
	values := make([]float64, end-start)
	for i, k := range sk[start:end] {
		values[i] = t.y[k]
	}
	t.LeafValues[nodeKey] = values
}

// Mean returns (and caches) the in-bag response mean for leaf node.
func (t *Regression) Mean(node int) float64 {
	if v, ok := t.LeafMean[node]; ok {
		return v
	}
	values := t.LeafValues[node]
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := 0.0
	if len(values) > 0 {
		mean = sum / float64(len(values))
	}
	t.LeafMean[node] = mean
	return mean
}

// CacheLeafStatistics populates the mean cache for every leaf. Prediction
// fans rows out across goroutines that all read the cache; filling it up
// front keeps those reads free of map writes.
func (t *Regression) CacheLeafStatistics() {
	for node := 0; node < t.NNode(); node++ {
		if _, ok := t.LeafValues[node]; ok {
			t.Mean(node)
		}
	}
}

func (t *Regression) finaliseGrowth() {}

// DrawLeafValue draws one response value uniformly at random from node's
// in-bag payload, the per-tree rule INBAG prediction uses.
func (t *Regression) DrawLeafValue(rng *rand.Rand, node int) float64 {
	values := t.LeafValues[node]
	return values[rng.Intn(len(values))]
}

func (t *Regression) pushBestSplit(d data.Data, params *TrainingParameters, rng *rand.Rand, nodeKey, start, end int) (int, float64, bool) {
	candidates, err := sample.DrawCandidates(rng, t.nPredictor, params.NTry, params.DrawAlwaysPredictorKeys, params.DrawPredictorWeights)
	if err != nil {
		return 0, 0, false
	}

	rows := append([]int(nil), t.sampleKeys[start:end]...)

	bestKey := -1
	bestValue := 0.0
	bestScore := math.Inf(-1)

	for _, key := range candidates {
		value, score, ok := t.bestSplitForPredictor(d, params, rng, rows, key)
		if !ok {
			continue
		}
		if score > bestScore {
			bestKey, bestValue, bestScore = key, value, score
		}
	}

	if bestKey < 0 || bestScore <= params.MinMetricDecrease {
		return 0, 0, false
	}
	return bestKey, bestValue, true
}

func (t *Regression) bestSplitForPredictor(d data.Data, params *TrainingParameters, rng *rand.Rand, rows []int, key int) (float64, float64, bool) {
	xs := make([]float64, len(rows))
	for i, r := range rows {
		xs[i], _ = d.GetX(r, key, false)
	}

	if !d.IsOrdered(key) && params.UnorderedStrategy != Ignore {
		return t.bestUnorderedSplit(d, params, rng, rows, xs, key)
	}

	switch params.SplitRule {
	case ExtraTrees:
		return t.bestExtraTreesSplit(rng, rows, xs, params)
	default:
		return t.bestOrderedSplit(d, rows, xs, params, key)
	}
}

func (t *Regression) bestOrderedSplit(d data.Data, rows []int, xs []float64, params *TrainingParameters, key int) (float64, float64, bool) {
	sortedRows, sortedXs := sortRowsByPredictor(d, key, rows, xs, t.saveMemory)
	n := len(sortedRows)

	switch params.SplitRule {
	case Beta:
		return t.bestBetaSplit(sortedRows, sortedXs, params)
	case MaxStat:
		return t.bestMaxStatSplit(sortedRows, sortedXs, params)
	default:
		return t.bestVarianceSplit(sortedRows, sortedXs, n, params)
	}
}

func (t *Regression) bestVarianceSplit(sortedRows []int, sortedXs []float64, n int, params *TrainingParameters) (float64, float64, bool) {
	var sumAll, sumSqAll float64
	for _, r := range sortedRows {
		y := t.y[r]
		sumAll += y
		sumSqAll += y * y
	}
	sseParent := sumSqAll - sumAll*sumAll/float64(n)

	var sumLeft, sumSqLeft float64
	bestScore := math.Inf(-1)
	bestValue := 0.0
	found := false

	for i := 0; i < n-1; i++ {
		y := t.y[sortedRows[i]]
		sumLeft += y
		sumSqLeft += y * y
		nLeft := i + 1
		nRight := n - nLeft

		if sortedXs[i] == sortedXs[i+1] {
			continue
		}
		if nLeft < params.MinLeafNSample || nRight < params.MinLeafNSample {
			continue
		}

		sumRight := sumAll - sumLeft
		sumSqRight := sumSqAll - sumSqLeft
		sseLeft := sumSqLeft - sumLeft*sumLeft/float64(nLeft)
		sseRight := sumSqRight - sumRight*sumRight/float64(nRight)
		decrease := sseParent - sseLeft - sseRight

		if decrease > bestScore {
			bestScore = decrease
			bestValue = (sortedXs[i] + sortedXs[i+1]) / 2
			found = true
		}
	}
	return bestValue, bestScore, found
}

func (t *Regression) bestExtraTreesSplit(rng *rand.Rand, rows []int, xs []float64, params *TrainingParameters) (float64, float64, bool) {
	lo, hi := xs[0], xs[0]
	for _, x := range xs {
		if x < lo {
			lo = x
		}
		if x > hi {
			hi = x
		}
	}
	if hi <= lo {
		return 0, 0, false
	}

	bestScore := math.Inf(-1)
	bestValue := 0.0
	found := false

	var sumAll, sumSqAll float64
	for _, r := range rows {
		y := t.y[r]
		sumAll += y
		sumSqAll += y * y
	}
	n := len(rows)
	sseParent := sumSqAll - sumAll*sumAll/float64(n)

	for s := 0; s < params.NRandomSplit; s++ {
		cut := lo + rng.Float64()*(hi-lo)

		var sumLeft, sumSqLeft float64
		nLeft := 0
		for i, r := range rows {
			if xs[i] <= cut {
				y := t.y[r]
				sumLeft += y
				sumSqLeft += y * y
				nLeft++
			}
		}
		nRight := n - nLeft
		if nLeft < params.MinLeafNSample || nRight < params.MinLeafNSample {
			continue
		}
		sumRight := sumAll - sumLeft
		sumSqRight := sumSqAll - sumSqLeft
		sseLeft := sumSqLeft - sumLeft*sumLeft/float64(nLeft)
		sseRight := sumSqRight - sumRight*sumRight/float64(nRight)
		decrease := sseParent - sseLeft - sseRight

		if decrease > bestScore {
			bestScore = decrease
			bestValue = cut
			found = true
		}
	}
	return bestValue, bestScore, found
}

func (t *Regression) bestBetaSplit(sortedRows []int, sortedXs []float64, params *TrainingParameters) (float64, float64, bool) {
	n := len(sortedRows)
	values := make([]float64, n)
	for i, r := range sortedRows {
		values[i] = t.y[r]
	}
	alphaAll, betaAll := sample.BetaMoments(values)
	llAll := sample.BetaLogLikelihood(values, alphaAll, betaAll)

	bestScore := math.Inf(-1)
	bestValue := 0.0
	found := false

	minLeaf := params.MinLeafNSample
	if minLeaf < 2 {
		minLeaf = 2
	}
	for i := minLeaf - 1; i < n-minLeaf; i++ {
		if sortedXs[i] == sortedXs[i+1] {
			continue
		}
		left := values[:i+1]
		right := values[i+1:]

		aL, bL := sample.BetaMoments(left)
		aR, bR := sample.BetaMoments(right)
		llL := sample.BetaLogLikelihood(left, aL, bL)
		llR := sample.BetaLogLikelihood(right, aR, bR)
		if math.IsInf(llL, -1) || math.IsInf(llR, -1) {
			continue
		}

		gain := (llL + llR) - llAll
		if gain > bestScore {
			bestScore = gain
			bestValue = (sortedXs[i] + sortedXs[i+1]) / 2
			found = true
		}
	}
	return bestValue, bestScore, found
}

// bestMaxStatSplit tracks the maximum standardized rank statistic over every
// eligible cut in the node, then converts that single maximum to a p-value
// via both the Lausen92 and Lausen94 approximations and keeps the smaller of
// the two, rather than re-deriving a p-value at every candidate cut.
func (t *Regression) bestMaxStatSplit(sortedRows []int, sortedXs []float64, params *TrainingParameters) (float64, float64, bool) {
	n := len(sortedRows)
	values := make([]float64, n)
	for i, r := range sortedRows {
		values[i] = t.y[r]
	}
	ranks := sample.RankTransform(values)

	var sumRanks, sumSqRanks float64
	for _, rk := range ranks {
		sumRanks += rk
		sumSqRanks += rk * rk
	}

	minProp, maxProp := params.MinProp, 1-params.MinProp
	if maxProp <= minProp {
		return 0, 0, false
	}

	bestB := -1.0
	bestValue := 0.0
	found := false
	var eligibleNLeft []int

	var sumRanksLeft float64
	for i := 0; i < n-1; i++ {
		sumRanksLeft += ranks[i]
		nLeft := i + 1
		prop := float64(nLeft) / float64(n)
		if prop < minProp || prop > maxProp {
			continue
		}
		if sortedXs[i] == sortedXs[i+1] {
			continue
		}
		eligibleNLeft = append(eligibleNLeft, nLeft)

		b := sample.MaxstatStatistic(sumRanksLeft, nLeft, n, sumRanks, sumSqRanks)
		if b > bestB {
			bestB = b
			bestValue = (sortedXs[i] + sortedXs[i+1]) / 2
			found = true
		}
	}
	if !found {
		return 0, 0, false
	}

	p92 := sample.MaxstatPValueLausen92(bestB, minProp, maxProp)
	p94 := sample.MaxstatPValueLausen94(bestB, eligibleNLeft, n)
	p := math.Min(p92, p94)
	return bestValue, -p, true
}

func (t *Regression) bestUnorderedSplit(d data.Data, params *TrainingParameters, rng *rand.Rand, rows []int, xs []float64, key int) (float64, float64, bool) {
	groups := groupByLevel(xs)
	levels := sortedLevelsOf(groups)

	var sumAll, sumSqAll float64
	for _, r := range rows {
		y := t.y[r]
		sumAll += y
		sumSqAll += y * y
	}
	n := len(rows)
	sseParent := sumSqAll - sumAll*sumAll/float64(n)

	var candidateMasks []uint64
	switch {
	case params.SplitRule == ExtraTrees:
		candidateMasks = randomPartitions(rng, levels, params.NRandomSplit)
	case params.UnorderedStrategy == Partition:
		candidateMasks = unorderedSubsets(levels)
	case params.UnorderedStrategy == Order:
		ordered := orderLevels(levels, params.UnorderedOrdering[key])
		for i := 1; i < len(ordered); i++ {
			var mask uint64
			for _, lvl := range ordered[:i] {
				mask |= uint64(1) << uint(lvl-1)
			}
			candidateMasks = append(candidateMasks, mask)
		}
	}
	if candidateMasks == nil {
		return t.bestOrderedSplit(d, rows, xs, params, key)
	}

	bestScore := math.Inf(-1)
	bestMask := uint64(0)
	found := false

	for _, mask := range candidateMasks {
		var sumLeft, sumSqLeft float64
		nLeft := 0
		for lvl, positions := range groups {
			bit := uint(lvl - 1)
			if bit >= 64 || mask&(uint64(1)<<bit) != 0 {
				continue // this level routes right
			}
			for _, pos := range positions {
				y := t.y[rows[pos]]
				sumLeft += y
				sumSqLeft += y * y
				nLeft++
			}
		}
		nRight := n - nLeft
		if nLeft < params.MinLeafNSample || nRight < params.MinLeafNSample {
			continue
		}
		sumRight := sumAll - sumLeft
		sumSqRight := sumSqAll - sumSqLeft
		sseLeft := sumSqLeft - sumLeft*sumLeft/float64(nLeft)
		sseRight := sumSqRight - sumRight*sumRight/float64(nRight)
		decrease := sseParent - sseLeft - sseRight

		if decrease > bestScore {
			bestScore = decrease
			bestMask = mask
			found = true
		}
	}
	if !found {
		return 0, 0, false
	}
	return PartitionMask(bestMask), bestScore, true
}
