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

// Regression is a forest of regression trees.
type Regression struct {
	Params tree.TrainingParameters
	// PredictorNames holds the predictor column names this forest was
	// trained against, in column order. Carried so a later merge can map
	// another forest's columns onto this one by name rather than by
	// position.
	PredictorNames []string

	Trees   []*tree.Regression
	OOBKeys [][]int

	// SaveMemory records whether the forest was grown without the
	// per-column value index, so a deserialized forest reconstructs its
	// trees with the same split-search path.
	SaveMemory bool

	// OOBError is the out-of-bag mean squared error across rows with at
	// least one out-of-bag prediction, or NaN if no row qualified.
	// Populated only when Plant was called with computeOOB true.
	OOBError float64
}

// NewRegression allocates an empty regression forest.
func NewRegression(params tree.TrainingParameters, predictorNames []string) *Regression {
	return &Regression{Params: params, PredictorNames: predictorNames}
}

// Plant grows nTree trees in parallel, each against an independent bootstrap
// of d, capped at nThread concurrent goroutines. See Classification.Plant for
// the saveMemory/index-lifecycle contract.
func (f *Regression) Plant(ctx context.Context, d data.Data, nTree int, caseWeights []float64, computeOOB bool, nThread int, seed uint64, progress ProgressSink, saveMemory bool) error {
	if !saveMemory && !d.HasPredictorIndex() {
		d.NewPredictorIndex()
	}
	defer d.Finalize()

	trees := make([]*tree.Regression, nTree)
	oob := make([][]int, nTree)
	isOrdered := orderedFlags(d)

	err := plantLoop(ctx, nTree, nThread, seed, progress, func(i int, rng *rand.Rand) error {
		rt := tree.NewRegression(d.NCol(), isOrdered, saveMemory)
		oobKeys, growErr := tree.Grow(rt, &f.Params, d, caseWeights, computeOOB, rng)
		if growErr != nil {
			return growErr
		}
		trees[i] = rt
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

// computeOOBError scores the forest on its out-of-bag rows: each row's
// out-of-bag prediction is the mean of the trees it was out-of-bag for; the
// error is the mean squared error against the observed response across rows
// with at least one such tree, or NaN if no row was ever out-of-bag.
func (f *Regression) computeOOBError(d data.Data) error {
	nRow := d.NRow()
	sums := make([]float64, nRow)
	counts := make([]int, nRow)

	for ti, rt := range f.Trees {
		for _, row := range f.OOBKeys[ti] {
			node, err := tree.Route(d, &rt.Base, row, false)
			if err != nil {
				return err
			}
			sums[row] += rt.Mean(node)
			counts[row]++
		}
	}

	var sse float64
	var total int
	for row := 0; row < nRow; row++ {
		if counts[row] == 0 {
			continue
		}
		total++
		predicted := sums[row] / float64(counts[row])
		y, err := d.GetY(row, 0)
		if err != nil {
			return err
		}
		diff := predicted - y
		sse += diff * diff
	}

	if total == 0 {
		f.OOBError = math.NaN()
		return nil
	}
	f.OOBError = sse / float64(total)
	return nil
}

// RegressionPredictions holds the result of a Regression.Predict call;
// exactly one of PredictedValue, InbagValue, or Nodes is populated,
// matching Mode.
type RegressionPredictions struct {
	Mode           PredictionMode
	PredictedValue []float64
	InbagValue     []float64
	Nodes          [][]int
}

// Predict predicts a response value for every row of d against the forest.
// seed controls the one-time per-row tree assignment used by Inbag mode, so
// the same seed reproduces the same predictions regardless of nThread.
func (f *Regression) Predict(ctx context.Context, d data.Data, mode PredictionMode, seed uint64, nThread int) (*RegressionPredictions, error) {
	if len(f.Trees) == 0 {
		return nil, rferrors.InvalidArgument("forest has no trees")
	}

	nRow := d.NRow()
	preds := &RegressionPredictions{Mode: mode}
	switch mode {
	case Nodes:
		preds.Nodes = make([][]int, nRow)
	case Inbag:
		preds.InbagValue = make([]float64, nRow)
	default:
		preds.PredictedValue = make([]float64, nRow)
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
		for _, rt := range f.Trees {
			rt.CacheLeafStatistics()
		}
	}

	err := predictLoop(ctx, nRow, nThread, func(row int) error {
		switch mode {
		case Nodes:
			nodes := make([]int, len(f.Trees))
			for ti, rt := range f.Trees {
				node, err := tree.Route(d, &rt.Base, row, false)
				if err != nil {
					return err
				}
				nodes[ti] = node
			}
			mu.Lock()
			preds.Nodes[row] = nodes
			mu.Unlock()

		case Inbag:
			rt := f.Trees[assignedTree[row]]
			node, err := tree.Route(d, &rt.Base, row, false)
			if err != nil {
				return err
			}
			rowRng := rand.New(rand.NewSource(int64(seed) ^ int64(row)<<1 ^ 1))
			value := rt.DrawLeafValue(rowRng, node)
			mu.Lock()
			preds.InbagValue[row] = value
			mu.Unlock()

		default:
			var sum float64
			for _, rt := range f.Trees {
				node, err := tree.Route(d, &rt.Base, row, false)
				if err != nil {
					return err
				}
				sum += rt.Mean(node)
			}
			mu.Lock()
			preds.PredictedValue[row] = sum / float64(len(f.Trees))
			mu.Unlock()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return preds, nil
}
