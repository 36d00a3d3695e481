package tree

import (
	"math/bits"
	"math/rand"
	"sort"

	"github.com/cran/literanger/data"
)

// sortByPredictorValues returns rows sorted ascending by their raw predictor
// value, together with the parallel sorted x values.
func sortByPredictorValues(rows []int, xs []float64) ([]int, []float64) {
	n := len(rows)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(i, j int) bool { return xs[idx[i]] < xs[idx[j]] })
	outRows := make([]int, n)
	outXs := make([]float64, n)
	for i, k := range idx {
		outRows[i] = rows[k]
		outXs[i] = xs[k]
	}
	return outRows, outXs
}

// sortByPredictorIndex sorts rows by predictor col using the data's
// precomputed per-column unique-value index instead of re-sorting raw
// values: it buckets each row by its unique-value key in one pass (a
// counting sort against the column's sorted unique-value table), then
// concatenates the buckets in key order. Returns ok == false when the index
// isn't available for col, so the caller can fall back to value-sorting.
func sortByPredictorIndex(d data.Data, rows []int, col int) (sortedRows []int, sortedXs []float64, ok bool) {
	if !d.HasPredictorIndex() {
		return nil, nil, false
	}
	nUnique := d.GetNUniqueValue(col)
	if nUnique == 0 {
		return nil, nil, false
	}
	buckets := make([][]int, nUnique)
	for _, row := range rows {
		key := d.RawGetUniqueKey(row, col)
		buckets[key] = append(buckets[key], row)
	}
	sortedRows = make([]int, 0, len(rows))
	sortedXs = make([]float64, 0, len(rows))
	for key, bucket := range buckets {
		if len(bucket) == 0 {
			continue
		}
		v := d.GetUniqueValue(col, key)
		for _, row := range bucket {
			sortedRows = append(sortedRows, row)
			sortedXs = append(sortedXs, v)
		}
	}
	return sortedRows, sortedXs, true
}

// sortRowsByPredictor is the ordered-split entry point every split-rule
// search goes through: it takes the index-accelerated counting sort when
// the tree was grown with save_memory false (so the forest built the
// per-column unique-value index up front) and the index covers col, falling
// back to sorting the already-materialized raw values otherwise.
func sortRowsByPredictor(d data.Data, col int, rows []int, xs []float64, saveMemory bool) ([]int, []float64) {
	if !saveMemory {
		if sortedRows, sortedXs, ok := sortByPredictorIndex(d, rows, col); ok {
			return sortedRows, sortedXs
		}
	}
	return sortByPredictorValues(rows, xs)
}

// groupByLevel buckets row indices (positions into rows/xs, not sample
// keys) by their integral factor level.
func groupByLevel(xs []float64) map[int][]int {
	groups := make(map[int][]int)
	for i, x := range xs {
		lvl := int(x)
		groups[lvl] = append(groups[lvl], i)
	}
	return groups
}

func sortedLevelsOf(groups map[int][]int) []int {
	levels := make([]int, 0, len(groups))
	for lvl := range groups {
		levels = append(levels, lvl)
	}
	sort.Ints(levels)
	return levels
}

// orderLevels returns levels ordered by a precomputed ranking (the Order
// unordered-predictor strategy) or by raw level value when ordering is nil.
func orderLevels(levels []int, ordering []int) []int {
	if ordering == nil {
		out := append([]int(nil), levels...)
		sort.Ints(out)
		return out
	}
	rank := make(map[int]int, len(ordering))
	for i, lvl := range ordering {
		rank[lvl] = i
	}
	out := append([]int(nil), levels...)
	sort.Slice(out, func(i, j int) bool { return rank[out[i]] < rank[out[j]] })
	return out
}

// unorderedSubsets enumerates the 2^(n-1)-1 non-trivial partitions of
// levels as bit masks over factor levels (bit b set means level b+1 routes
// right). The lowest level is pinned to the left side: a mask and its
// complement describe the same partition with the sides swapped and score
// identically, so enumerating both would double the work for nothing.
// Enumeration is only attempted for small factor cardinalities; callers
// fall back to the ordered search above that bound.
const maxPartitionLevels = 20

// randomPartitions draws n uniformly random non-trivial level subsets, the
// unordered-predictor analogue of extratrees' random thresholds. Trivial
// masks (every level on one side) are redrawn.
func randomPartitions(rng *rand.Rand, levels []int, n int) []uint64 {
	if len(levels) < 2 {
		return nil
	}
	out := make([]uint64, 0, n)
	for len(out) < n {
		var mask uint64
		for _, lvl := range levels {
			if rng.Intn(2) == 1 {
				mask |= uint64(1) << uint(lvl-1)
			}
		}
		if mask == 0 || bits.OnesCount64(mask) == len(levels) {
			continue
		}
		out = append(out, mask)
	}
	return out
}

func unorderedSubsets(levels []int) []uint64 {
	n := len(levels)
	if n < 2 || n > maxPartitionLevels {
		return nil
	}
	total := uint64(1) << uint(n-1)
	out := make([]uint64, 0, total-1)
	for m := uint64(1); m < total; m++ {
		var mask uint64
		for i, lvl := range levels[1:] {
			if m&(uint64(1)<<uint(i)) != 0 {
				mask |= uint64(1) << uint(lvl-1)
			}
		}
		out = append(out, mask)
	}
	return out
}
