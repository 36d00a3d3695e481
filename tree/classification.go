package tree

import (
	"math"
	"math/rand"

	"github.com/cran/literanger/data"
	"github.com/cran/literanger/rferrors"
	"github.com/cran/literanger/sample"
)

// Classification is a tree whose leaves hold the response key of every
// in-bag row that reached them, for a categorical response.
type Classification struct {
	Base

	nClass          int
	responseWeights []float64
	y               []int // response key per row, cached once per growth call

	LeafKeys         map[int][]int
	LeafMostFrequent map[int]int
}

// NewClassification allocates an empty classification tree over nClass
// response levels.
func NewClassification(nPredictor int, isOrdered []bool, nClass int, responseWeights []float64, saveMemory bool) *Classification {
	return &Classification{
		Base:             NewBase(nPredictor, isOrdered, saveMemory),
		nClass:           nClass,
		responseWeights:  responseWeights,
		LeafKeys:         make(map[int][]int),
		LeafMostFrequent: make(map[int]int),
	}
}

func (t *Classification) base() *Base { return &t.Base }

// validateParams rejects split_rule hellinger against a response with other
// than two classes: Hellinger distance between the left/right class-1
// fractions is only defined for a binary response.
func (t *Classification) validateParams(params *TrainingParameters) error {
	if params.SplitRule == Hellinger && t.nClass != 2 {
		return rferrors.Domain("split_rule hellinger requires exactly two response classes, got %d", t.nClass)
	}
	return nil
}

// Clone returns a deep copy of t, used by forest merge so remapping split or
// response keys on the copy never mutates the source forest's tree.
func (t *Classification) Clone() *Classification {
	out := &Classification{
		Base:             t.Base.clone(),
		nClass:           t.nClass,
		responseWeights:  append([]float64(nil), t.responseWeights...),
		LeafKeys:         make(map[int][]int, len(t.LeafKeys)),
		LeafMostFrequent: make(map[int]int, len(t.LeafMostFrequent)),
	}
	for node, keys := range t.LeafKeys {
		out.LeafKeys[node] = append([]int(nil), keys...)
	}
	for node, k := range t.LeafMostFrequent {
		out.LeafMostFrequent[node] = k
	}
	return out
}

func (t *Classification) newGrowth(d data.Data, caseWeights []float64) {
	t.y = d.ResponseIndex()
}

func (t *Classification) isPure(d data.Data, start, end int) bool {
	sk := t.sampleKeys
	first := t.y[sk[start]]
	for i := start + 1; i < end; i++ {
		if t.y[sk[i]] != first {
			return false
		}
	}
	return true
}

func (t *Classification) addTerminalNode(nodeKey, start, end int) {
	sk := t.sampleKeys
	keys := make([]int, end-start)
	for i, row := range sk[start:end] {
		keys[i] = t.y[row]
	}
	t.LeafKeys[nodeKey] = keys
}

func (t *Classification) weight(classKey int) float64 {
	if len(t.responseWeights) == 0 {
		return 1.0
	}
	return t.responseWeights[classKey]
}

// MostFrequent returns (and caches) the plurality response key in leaf
// node, weighted by response_weights when supplied. Ties over the argmax
// set are broken by a uniform draw from rng, matching the bagged-prediction
// tie-breaking rule; the result is cached on first computation, so only the
// rng passed on a node's first lookup can influence it.
func (t *Classification) MostFrequent(rng *rand.Rand, node int) int {
	if v, ok := t.LeafMostFrequent[node]; ok {
		return v
	}
	counts := make([]float64, t.nClass)
	for _, k := range t.LeafKeys[node] {
		counts[k] += t.weight(k)
	}
	best := argmaxTieBreak(rng, counts)
	t.LeafMostFrequent[node] = best
	return best
}

// CacheLeafStatistics populates the plurality cache for every leaf, in node
// order so rng consumption is reproducible. Prediction fans rows out across
// goroutines that all read the cache; filling it up front keeps those reads
// free of map writes.
func (t *Classification) CacheLeafStatistics(rng *rand.Rand) {
	for node := 0; node < t.NNode(); node++ {
		if _, ok := t.LeafKeys[node]; ok {
			t.MostFrequent(rng, node)
		}
	}
}

// argmaxTieBreak returns the index of the largest entry in counts, breaking
// ties by a uniform draw from rng over the tied indices.
func argmaxTieBreak(rng *rand.Rand, counts []float64) int {
	bestCount := counts[0]
	ties := []int{0}
	for k := 1; k < len(counts); k++ {
		switch c := counts[k]; {
		case c > bestCount:
			bestCount = c
			ties = ties[:0]
			ties = append(ties, k)
		case c == bestCount:
			ties = append(ties, k)
		}
	}
	if len(ties) == 1 || rng == nil {
		return ties[0]
	}
	return ties[rng.Intn(len(ties))]
}

func (t *Classification) finaliseGrowth() {}

// TransformResponseKeys remaps every leaf's in-bag response keys through m
// (Y_response_key -> X_response_key), used by forest merge when the two
// forests enumerated the same response levels in a different order. The
// cached plurality map is rebuilt lazily since the mapping can change which
// key is the plurality.
func (t *Classification) TransformResponseKeys(m map[int]int) {
	for node, keys := range t.LeafKeys {
		remapped := make([]int, len(keys))
		for i, k := range keys {
			nk, ok := m[k]
			if !ok {
				nk = k
			}
			remapped[i] = nk
		}
		t.LeafKeys[node] = remapped
	}
	t.LeafMostFrequent = make(map[int]int)
}

// DrawLeafKey draws one response key uniformly at random from node's in-bag
// payload, the per-tree rule INBAG prediction uses.
func (t *Classification) DrawLeafKey(rng *rand.Rand, node int) int {
	keys := t.LeafKeys[node]
	return keys[rng.Intn(len(keys))]
}

func (t *Classification) pushBestSplit(d data.Data, params *TrainingParameters, rng *rand.Rand, nodeKey, start, end int) (int, float64, bool) {
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

func (t *Classification) bestSplitForPredictor(d data.Data, params *TrainingParameters, rng *rand.Rand, rows []int, key int) (float64, float64, bool) {
	xs := make([]float64, len(rows))
	for i, r := range rows {
		xs[i], _ = d.GetX(r, key, false)
	}

	if !d.IsOrdered(key) && params.UnorderedStrategy != Ignore {
		return t.bestUnorderedSplit(d, params, rng, rows, xs, key)
	}

	if params.SplitRule == ExtraTrees {
		return t.bestExtraTreesSplit(rng, rows, xs, params)
	}
	return t.bestOrderedSplit(d, rows, xs, params, key)
}

// classCounts returns weighted per-class totals for the given rows.
func (t *Classification) classCounts(rows []int) []float64 {
	counts := make([]float64, t.nClass)
	for _, r := range rows {
		cls := t.y[r]
		counts[cls] += t.weight(cls)
	}
	return counts
}

func gini(counts []float64, total float64) float64 {
	if total <= 0 {
		return 0
	}
	sumSq := 0.0
	for _, c := range counts {
		p := c / total
		sumSq += p * p
	}
	return 1 - sumSq
}

func (t *Classification) bestOrderedSplit(d data.Data, rows []int, xs []float64, params *TrainingParameters, key int) (float64, float64, bool) {
	sortedRows, sortedXs := sortRowsByPredictor(d, key, rows, xs, t.saveMemory)
	n := len(sortedRows)

	totalCounts := t.classCounts(sortedRows)
	var total float64
	for _, c := range totalCounts {
		total += c
	}
	giniParent := gini(totalCounts, total)

	if params.SplitRule == Hellinger {
		return t.bestHellingerCut(sortedRows, sortedXs, params, totalCounts, total)
	}

	leftCounts := make([]float64, t.nClass)
	var leftTotal float64

	bestScore := math.Inf(-1)
	bestValue := 0.0
	found := false

	for i := 0; i < n-1; i++ {
		cls := t.y[sortedRows[i]]
		w := t.weight(cls)
		leftCounts[cls] += w
		leftTotal += w
		nLeft := i + 1
		nRight := n - nLeft

		if sortedXs[i] == sortedXs[i+1] {
			continue
		}
		if nLeft < params.MinLeafNSample || nRight < params.MinLeafNSample {
			continue
		}

		rightTotal := total - leftTotal
		giniLeft := gini(leftCounts, leftTotal)
		rightCounts := make([]float64, t.nClass)
		for k := range rightCounts {
			rightCounts[k] = totalCounts[k] - leftCounts[k]
		}
		giniRight := gini(rightCounts, rightTotal)

		decrease := giniParent - (leftTotal/total)*giniLeft - (rightTotal/total)*giniRight
		if decrease > bestScore {
			bestScore = decrease
			bestValue = (sortedXs[i] + sortedXs[i+1]) / 2
			found = true
		}
	}
	return bestValue, bestScore, found
}

// bestHellingerCut scores candidate cuts with Hellinger distance between the
// left/right class-1 fractions. validateParams guarantees nClass == 2
// before growth ever reaches this call.
func (t *Classification) bestHellingerCut(sortedRows []int, sortedXs []float64, params *TrainingParameters, totalCounts []float64, total float64) (float64, float64, bool) {
	p0, p1 := totalCounts[0], totalCounts[1]
	if p0 <= 0 || p1 <= 0 {
		return 0, 0, false
	}

	n := len(sortedRows)
	var left0, left1 float64
	bestScore := math.Inf(-1)
	bestValue := 0.0
	found := false

	for i := 0; i < n-1; i++ {
		cls := t.y[sortedRows[i]]
		w := t.weight(cls)
		if cls == 0 {
			left0 += w
		} else {
			left1 += w
		}
		nLeft := i + 1
		nRight := n - nLeft
		if sortedXs[i] == sortedXs[i+1] {
			continue
		}
		if nLeft < params.MinLeafNSample || nRight < params.MinLeafNSample {
			continue
		}
		right0 := p0 - left0
		right1 := p1 - left1

		tL := math.Sqrt(left1/p1) - math.Sqrt(left0/p0)
		tR := math.Sqrt(right1/p1) - math.Sqrt(right0/p0)
		hellinger := math.Sqrt(tL*tL + tR*tR)

		if hellinger > bestScore {
			bestScore = hellinger
			bestValue = (sortedXs[i] + sortedXs[i+1]) / 2
			found = true
		}
	}
	return bestValue, bestScore, found
}

func (t *Classification) bestExtraTreesSplit(rng *rand.Rand, rows []int, xs []float64, params *TrainingParameters) (float64, float64, bool) {
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

	totalCounts := t.classCounts(rows)
	var total float64
	for _, c := range totalCounts {
		total += c
	}
	giniParent := gini(totalCounts, total)

	bestScore := math.Inf(-1)
	bestValue := 0.0
	found := false

	for s := 0; s < params.NRandomSplit; s++ {
		cut := lo + rng.Float64()*(hi-lo)

		leftCounts := make([]float64, t.nClass)
		var leftTotal float64
		nLeft := 0
		for i, r := range rows {
			if xs[i] <= cut {
				cls := t.y[r]
				w := t.weight(cls)
				leftCounts[cls] += w
				leftTotal += w
				nLeft++
			}
		}
		nRight := len(rows) - nLeft
		if nLeft < params.MinLeafNSample || nRight < params.MinLeafNSample {
			continue
		}
		rightTotal := total - leftTotal
		rightCounts := make([]float64, t.nClass)
		for k := range rightCounts {
			rightCounts[k] = totalCounts[k] - leftCounts[k]
		}
		decrease := giniParent - (leftTotal/total)*gini(leftCounts, leftTotal) - (rightTotal/total)*gini(rightCounts, rightTotal)
		if decrease > bestScore {
			bestScore = decrease
			bestValue = cut
			found = true
		}
	}
	return bestValue, bestScore, found
}

func (t *Classification) bestUnorderedSplit(d data.Data, params *TrainingParameters, rng *rand.Rand, rows []int, xs []float64, key int) (float64, float64, bool) {
	groups := groupByLevel(xs)
	levels := sortedLevelsOf(groups)

	totalCounts := t.classCounts(rows)
	var total float64
	for _, c := range totalCounts {
		total += c
	}
	giniParent := gini(totalCounts, total)

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
		leftCounts := make([]float64, t.nClass)
		var leftTotal float64
		nLeft := 0
		for lvl, positions := range groups {
			bit := uint(lvl - 1)
			if bit >= 64 || mask&(uint64(1)<<bit) != 0 {
				continue
			}
			for _, pos := range positions {
				cls := t.y[rows[pos]]
				w := t.weight(cls)
				leftCounts[cls] += w
				leftTotal += w
				nLeft++
			}
		}
		nRight := len(rows) - nLeft
		if nLeft < params.MinLeafNSample || nRight < params.MinLeafNSample {
			continue
		}
		rightTotal := total - leftTotal
		rightCounts := make([]float64, t.nClass)
		for k := range rightCounts {
			rightCounts[k] = totalCounts[k] - leftCounts[k]
		}
		decrease := giniParent - (leftTotal/total)*gini(leftCounts, leftTotal) - (rightTotal/total)*gini(rightCounts, rightTotal)
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
