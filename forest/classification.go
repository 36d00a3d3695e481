package forest

import (
	"context"
	"math"
	"math/rand"
	"sync"

	"github.com/cran/literanger/data"
	"github.com/cran/literanger/rferrors"
	"github.com/cran/literanger/tree"
)

// Classification is a forest of classification trees over a shared set of
// response levels.
type Classification struct {
	Params         tree.TrainingParameters
	NClass         int
	ResponseValues []float64
	// ResponseLevels holds the original string labels of a character-typed
	// response, parallel to ResponseValues; empty when the response was
	// numeric. Carried so the boundary can report predictions with the
	// caller's own labels.
	ResponseLevels []string
	// PredictorNames holds the predictor column names this forest was
	// trained against, in column order. Carried so a later merge can map
	// another forest's columns onto this one by name rather than by
	// position.
	PredictorNames []string

	Trees   []*tree.Classification
	OOBKeys [][]int

	// SaveMemory records whether the forest was grown without the
	// per-column value index, so a deserialized forest reconstructs its
	// trees with the same split-search path.
	SaveMemory bool

	// OOBError is the out-of-bag misclassification rate across rows with
	// at least one out-of-bag prediction, or NaN if no row qualified.
	// Populated only when Plant was called with computeOOB true.
	OOBError float64
}

// NewClassification allocates an empty classification forest.
func NewClassification(params tree.TrainingParameters, nClass int, responseValues []float64, predictorNames []string) *Classification {
	return &Classification{Params: params, NClass: nClass, ResponseValues: responseValues, PredictorNames: predictorNames}
}

// Plant grows nTree trees in parallel, each against an independent bootstrap
// of d, capped at nThread concurrent goroutines. When saveMemory is false,
// Plant builds d's per-column unique-value index before growth (unless the
// caller already built one) and releases it once every tree in this job has
// finished growing, so the index-accelerated split search in tree.Grow has
// something to consume; saveMemory true skips the index entirely and falls
// back to sorting raw values at every candidate split.
func (f *Classification) Plant(ctx context.Context, d data.Data, nTree int, caseWeights []float64, computeOOB bool, nThread int, seed uint64, progress ProgressSink, saveMemory bool) error {
	if !saveMemory && !d.HasPredictorIndex() {
		d.NewPredictorIndex()
	}
	defer d.Finalize()

	trees := make([]*tree.Classification, nTree)
	oob := make([][]int, nTree)
	isOrdered := orderedFlags(d)

	err := plantLoop(ctx, nTree, nThread, seed, progress, func(i int, rng *rand.Rand) error {
		ct := tree.NewClassification(d.NCol(), isOrdered, f.NClass, f.Params.ResponseWeights, saveMemory)
		oobKeys, growErr := tree.Grow(ct, &f.Params, d, caseWeights, computeOOB, rng)
		if growErr != nil {
			return growErr
		}
		trees[i] = ct
		oob[i] = oobKeys
		return nil
	})
	if err != nil {
		return err
	}

	f.Trees = trees
	f.OOBKeys = oob
	f.SaveMemory = saveMemory

	if computeOOB {
		if err := f.computeOOBError(d); err != nil {
			return err
		}
	}
	return nil
}

// computeOOBError scores the forest on its out-of-bag rows: each row
// with at least one out-of-bag tree gets a bagged (plurality) prediction
// from just those trees; the error is the misclassification rate across
// such rows, or NaN if no row was ever out-of-bag.
func (f *Classification) computeOOBError(d data.Data) error {
	nRow := d.NRow()
	counts := make([][]float64, nRow)
	hasOOB := make([]bool, nRow)
	rng := rand.New(rand.NewSource(1))

	for ti, ct := range f.Trees {
		for _, row := range f.OOBKeys[ti] {
			node, err := tree.Route(d, &ct.Base, row, false)
			if err != nil {
				return err
			}
			if counts[row] == nil {
				counts[row] = make([]float64, f.NClass)
			}
			counts[row][ct.MostFrequent(rng, node)]++
			hasOOB[row] = true
		}
	}

	responseIndex := d.ResponseIndex()
	var wrong, total int
	for row := 0; row < nRow; row++ {
		if !hasOOB[row] {
			continue
		}
		total++
		if argmaxTieBreak(rng, counts[row]) != responseIndex[row] {
			wrong++
		}
	}

	if total == 0 {
		f.OOBError = math.NaN()
		return nil
	}
	f.OOBError = float64(wrong) / float64(total)
	return nil
}

// Predictions holds the result of a Predict call; exactly one of
// PredictedClass, InbagClass, or Nodes is populated, matching Mode.
type Predictions struct {
	Mode           PredictionMode
	PredictedClass []int
	InbagClass     []int
	Nodes          [][]int
}

// Predict classifies every row of d against the forest. seed controls the
// one-time per-row tree assignment used by Inbag mode, so the same seed
// reproduces the same predictions regardless of nThread.
func (f *Classification) Predict(ctx context.Context, d data.Data, mode PredictionMode, seed uint64, nThread int) (*Predictions, error) {
	if len(f.Trees) == 0 {
		return nil, rferrors.InvalidArgument("forest has no trees")
	}

	nRow := d.NRow()
	preds := &Predictions{Mode: mode}
	switch mode {
	case Nodes:
		preds.Nodes = make([][]int, nRow)
	case Inbag:
		preds.InbagClass = make([]int, nRow)
	default:
		preds.PredictedClass = make([]int, nRow)
	}

	var mu sync.Mutex

	var assignedTree []int
	switch mode {
	case Inbag:
		assignRng := rand.New(rand.NewSource(int64(seed)))
		assignedTree = make([]int, nRow)
		for row := range assignedTree {
			assignedTree[row] = assignRng.Intn(len(f.Trees))
		}
	case Bagged:
		cacheRng := rand.New(rand.NewSource(int64(seed)))
		for _, ct := range f.Trees {
			ct.CacheLeafStatistics(cacheRng)
		}
	}

	err := predictLoop(ctx, nRow, nThread, func(row int) error {
		switch mode {
		case Nodes:
			nodes := make([]int, len(f.Trees))
			for ti, ct := range f.Trees {
				node, err := tree.Route(d, &ct.Base, row, false)
				if err != nil {
					return err
				}
				nodes[ti] = node
			}
			mu.Lock()
			preds.Nodes[row] = nodes
			mu.Unlock()

		case Inbag:
			ct := f.Trees[assignedTree[row]]
			node, err := tree.Route(d, &ct.Base, row, false)
			if err != nil {
				return err
			}
			rowRng := rand.New(rand.NewSource(int64(seed) ^ int64(row)<<1 ^ 1))
			key := ct.DrawLeafKey(rowRng, node)
			mu.Lock()
			preds.InbagClass[row] = key
			mu.Unlock()

		default:
			rowRng := rand.New(rand.NewSource(int64(seed) ^ int64(row)<<2 ^ 2))
			counts := make([]float64, f.NClass)
			for _, ct := range f.Trees {
				node, err := tree.Route(d, &ct.Base, row, false)
				if err != nil {
					return err
				}
				counts[ct.MostFrequent(rowRng, node)]++
			}
			mu.Lock()
			preds.PredictedClass[row] = argmaxTieBreak(rowRng, counts)
			mu.Unlock()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return preds, nil
}

// argmaxTieBreak returns the index of the largest value in counts, drawing
// uniformly from rng over the full set of tied maxima rather than always
// returning the first.
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
