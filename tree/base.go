// Package tree implements the node-split search and growth state machine
// shared by classification and regression trees: a closed set of split
// rules (LOGRANK/GINI, EXTRATREES, BETA, MAXSTAT, HELLINGER) dispatched
// through family-specific hooks rather than an open interface per rule,
// BFS node expansion over flat arrays, and in-place sample-key
// partitioning for both ordered and unordered (factor) predictors.
package tree

import (
	"math"
	"math/rand"

	"github.com/cran/literanger/data"
	"github.com/cran/literanger/rferrors"
	"github.com/cran/literanger/sample"
)

// Base holds the flat node arrays shared by every tree family. Node 0 is
// always the root; children are appended with strictly greater indices; a
// leaf has LeftChildren[n] == RightChildren[n] == 0, which is safe because
// no real child can ever be node 0.
type Base struct {
	SplitKeys     []int
	SplitValues   []float64
	LeftChildren  []int
	RightChildren []int

	// StartPos/EndPos and depths are transient growth-time bookkeeping;
	// they are not part of the serialized schema.
	StartPos []int
	EndPos   []int
	depths   []int

	// sampleKeys is this tree's private in-bag row buffer, partitioned in
	// place as the tree grows. Its contents are transient.
	sampleKeys []int

	nPredictor int
	isOrdered  []bool
	saveMemory bool
}

// NewBase initializes the per-tree state shared across families. Called by
// the family constructors NewClassification and NewRegression.
func NewBase(nPredictor int, isOrdered []bool, saveMemory bool) Base {
	return Base{nPredictor: nPredictor, isOrdered: isOrdered, saveMemory: saveMemory}
}

// NNode returns the number of nodes allocated so far.
func (b *Base) NNode() int { return len(b.SplitKeys) }

// NPredictor returns the predictor-column count this tree was grown against.
func (b *Base) NPredictor() int { return b.nPredictor }

// IsOrderedCol reports whether predictor column col was ordered when this
// tree was grown.
func (b *Base) IsOrderedCol(col int) bool { return b.isOrdered[col] }

// IsEmpty reports whether the tree has not yet started growing.
func (b *Base) IsEmpty() bool { return len(b.SplitKeys) == 0 }

// IsLeaf reports whether node is a leaf.
func (b *Base) IsLeaf(node int) bool {
	return b.LeftChildren[node] == 0 && b.RightChildren[node] == 0
}

func (b *Base) newNode(start, end, depth int) int {
	b.SplitKeys = append(b.SplitKeys, -1)
	b.SplitValues = append(b.SplitValues, 0)
	b.LeftChildren = append(b.LeftChildren, 0)
	b.RightChildren = append(b.RightChildren, 0)
	b.StartPos = append(b.StartPos, start)
	b.EndPos = append(b.EndPos, end)
	b.depths = append(b.depths, depth)
	return len(b.SplitKeys) - 1
}

// clone returns a copy of b with its own backing arrays, so transforming the
// copy (e.g. during forest merge) never mutates the tree it was cloned from.
func (b *Base) clone() Base {
	out := *b
	out.SplitKeys = append([]int(nil), b.SplitKeys...)
	out.SplitValues = append([]float64(nil), b.SplitValues...)
	out.LeftChildren = append([]int(nil), b.LeftChildren...)
	out.RightChildren = append([]int(nil), b.RightChildren...)
	out.isOrdered = append([]bool(nil), b.isOrdered...)
	return out
}

// TransformSplitKeys remaps every internal node's split key through m, used
// when folding a tree grown against one predictor key space into a forest
// whose combined key space renumbers predictors.
func (b *Base) TransformSplitKeys(m map[int]int) {
	for i := range b.SplitKeys {
		if b.IsLeaf(i) {
			continue
		}
		if nk, ok := m[b.SplitKeys[i]]; ok {
			b.SplitKeys[i] = nk
		}
	}
}

// Route reports which leaf a row falls into, walking the tree with the
// same branching rule used while growing it.
func Route(d data.Data, b *Base, row int, permute bool) (int, error) {
	node := 0
	for !b.IsLeaf(node) {
		x, err := d.GetX(row, b.SplitKeys[node], permute)
		if err != nil {
			return 0, err
		}
		if routeLeft(x, b.SplitValues[node], d.IsOrdered(b.SplitKeys[node])) {
			node = b.LeftChildren[node]
		} else {
			node = b.RightChildren[node]
		}
	}
	return node, nil
}

// routeLeft is the branching rule shared by growth and prediction: ordered
// predictors split on x <= splitValue; unordered (partitioning) predictors
// reinterpret splitValue's IEEE-754 bit pattern as a 64-bit subset mask,
// routing left iff bit floor(x-1) (the factor level, 1-indexed) is clear.
func routeLeft(x, splitValue float64, ordered bool) bool {
	if ordered {
		return x <= splitValue
	}
	mask := math.Float64bits(splitValue)
	bit := uint(int(x) - 1)
	if bit >= 64 {
		return true
	}
	return mask&(uint64(1)<<bit) == 0
}

// PartitionMask converts a 64-bit level subset (bit b set => level b+1 goes
// right) into the real-valued field stored in SplitValues.
func PartitionMask(mask uint64) float64 {
	return math.Float64frombits(mask)
}

// Tree is the family-specific hook set the generic growth engine drives; it
// avoids downcasting by keeping the family dispatch as a small closed
// interface rather than a type switch scattered through Grow.
type Tree interface {
	base() *Base
	validateParams(params *TrainingParameters) error
	newGrowth(d data.Data, caseWeights []float64)
	isPure(d data.Data, start, end int) bool
	addTerminalNode(nodeKey, start, end int)
	pushBestSplit(d data.Data, params *TrainingParameters, rng *rand.Rand, nodeKey, start, end int) (splitKey int, splitValue float64, ok bool)
	finaliseGrowth()
}

// Grow runs the tree's full growth state machine: init, root node, resample,
// then a breadth-first split loop over the node queue until every open node
// has been tested and either split or finalized as a leaf. It returns the
// out-of-bag row keys when computeOOBError is requested.
func Grow(t Tree, params *TrainingParameters, d data.Data, caseWeights []float64, computeOOBError bool, rng *rand.Rand) ([]int, error) {
	b := t.base()
	if !b.IsEmpty() {
		return nil, rferrors.InvalidArgument("tree must be empty before growth")
	}
	if err := params.Validate(b.nPredictor); err != nil {
		return nil, err
	}
	if err := t.validateParams(params); err != nil {
		return nil, err
	}

	t.newGrowth(d, caseWeights)

	inbag, inBagMask, err := resample(params, d, caseWeights, rng)
	if err != nil {
		return nil, err
	}
	b.sampleKeys = inbag

	b.newNode(0, len(inbag), 0)

	for nodeKey := 0; nodeKey < b.NNode(); nodeKey++ {
		start, end := b.StartPos[nodeKey], b.EndPos[nodeKey]
		depth := b.depths[nodeKey]

		if !shouldAttemptSplit(t, params, d, start, end, depth) {
			t.addTerminalNode(nodeKey, start, end)
			continue
		}

		splitKey, splitValue, ok := t.pushBestSplit(d, params, rng, nodeKey, start, end)
		if !ok {
			t.addTerminalNode(nodeKey, start, end)
			continue
		}

		mid := partitionInPlace(d, b, start, end, splitKey, splitValue)
		if mid <= start || mid >= end {
			// defensive: a split that doesn't actually separate the node
			// is treated as no split found.
			t.addTerminalNode(nodeKey, start, end)
			continue
		}

		b.SplitKeys[nodeKey] = splitKey
		b.SplitValues[nodeKey] = splitValue

		left := b.newNode(start, mid, depth+1)
		right := b.newNode(mid, end, depth+1)
		b.LeftChildren[nodeKey] = left
		b.RightChildren[nodeKey] = right
	}

	t.finaliseGrowth()

	if !computeOOBError {
		return nil, nil
	}
	oob := make([]int, 0, d.NRow())
	for row, in := range inBagMask {
		if !in {
			oob = append(oob, row)
		}
	}
	return oob, nil
}

func shouldAttemptSplit(t Tree, params *TrainingParameters, d data.Data, start, end, depth int) bool {
	n := end - start
	if params.MaxDepth > 0 && depth >= params.MaxDepth {
		return false
	}
	if n <= params.MinSplitNSample {
		return false
	}
	if t.isPure(d, start, end) {
		return false
	}
	return true
}

func partitionInPlace(d data.Data, b *Base, start, end, splitKey int, splitValue float64) int {
	ordered := d.IsOrdered(splitKey)
	i, j := start, end
	for i < j {
		row := b.sampleKeys[i]
		x, _ := d.GetX(row, splitKey, false)
		if routeLeft(x, splitValue, ordered) {
			i++
		} else {
			j--
			b.sampleKeys[i], b.sampleKeys[j] = b.sampleKeys[j], b.sampleKeys[i]
		}
	}
	return i
}

// resample runs exactly one of the three resampling strategies: weighted
// (case_weights supplied), response-stratified, or plain unweighted.
func resample(params *TrainingParameters, d data.Data, caseWeights []float64, rng *rand.Rand) ([]int, []bool, error) {
	nRow := d.NRow()

	var inbag []int
	switch {
	case len(caseWeights) > 0:
		if params.IsStratified() {
			return nil, nil, rferrors.InvalidArgument(
				"Combination of 'case_weights' argument and class-wise sampling not supported.")
		}
		if len(caseWeights) != nRow {
			return nil, nil, rferrors.InvalidArgument("case_weights has length %d, want %d", len(caseWeights), nRow)
		}
		n := drawCount(params, nRow)
		var err error
		if params.Replace {
			inbag, err = sample.WeightedWithReplacement(rng, caseWeights, n)
		} else {
			inbag, err = sample.WeightedWithoutReplacement(rng, caseWeights, n)
		}
		if err != nil {
			return nil, nil, err
		}

	case params.IsStratified():
		bags := d.SampleKeysByResponse()
		if bags == nil {
			return nil, nil, rferrors.InvalidArgument("stratified sampling requires a response index")
		}
		var err error
		inbag, err = sample.Stratified(rng, bags, nRow, params.SampleFraction, params.Replace)
		if err != nil {
			return nil, nil, err
		}

	default:
		n := drawCount(params, nRow)
		if params.Replace {
			inbag = sample.WithReplacement(rng, nRow, n)
		} else {
			inbag = sample.WithoutReplacement(rng, nRow, n)
		}
	}

	if len(inbag) == 0 {
		return nil, nil, rferrors.InvalidArgument("sample_fraction results in zero samples")
	}

	inBagMask := make([]bool, nRow)
	for _, k := range inbag {
		inBagMask[k] = true
	}
	return inbag, inBagMask, nil
}

func drawCount(params *TrainingParameters, nRow int) int {
	frac := 1.0
	if len(params.SampleFraction) > 0 {
		frac = params.SampleFraction[0]
	}
	if params.Replace {
		return int(math.Round(float64(nRow) * frac))
	}
	return int(math.Floor(float64(nRow) * frac))
}
