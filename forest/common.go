// Package forest implements the parallel scheduler that grows a collection
// of trees into a forest, predicts from it in bulk, and merges two
// compatible forests into one.
package forest

import (
	"context"
	"math/rand"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cran/literanger/data"
	"github.com/cran/literanger/rferrors"
)

// PredictionMode selects how Predict aggregates per-tree results.
type PredictionMode int

const (
	// Bagged aggregates every tree's prediction for each row (the
	// standard forest prediction).
	Bagged PredictionMode = iota
	// Inbag assigns each row to one pseudo-randomly chosen tree and
	// reports one element drawn uniformly from that tree's leaf payload,
	// without aggregating across trees.
	Inbag
	// Nodes reports each tree's terminal node index per row, without
	// aggregating, for downstream proximity/importance computations.
	Nodes
)

func orderedFlags(d data.Data) []bool {
	out := make([]bool, d.NCol())
	for c := range out {
		out[c] = d.IsOrdered(c)
	}
	return out
}

// plantLoop runs fn(treeIndex, rng) for every tree in [0,nTree), capped at
// nThread concurrent goroutines, reporting progress and honoring context
// cancellation checked once per tree before it starts.
func plantLoop(ctx context.Context, nTree, nThread int, baseSeed uint64, progress ProgressSink, fn func(i int, rng *rand.Rand) error) error {
	if nTree <= 0 {
		return rferrors.InvalidArgument("n_tree must be > 0")
	}
	nThread, err := resolveNThread(nThread)
	if err != nil {
		return err
	}
	if progress == nil {
		progress = NoopProgress{}
	}

	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, nThread)

	start := time.Now()
	var mu sync.Mutex
	done := 0

	for i := 0; i < nTree; i++ {
		i := i
		sem <- struct{}{}
		g.Go(func() error {
			defer func() { <-sem }()
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			rng := rand.New(rand.NewSource(int64(treeSeed(baseSeed, i))))
			if err := fn(i, rng); err != nil {
				return err
			}

			mu.Lock()
			done++
			elapsed := time.Since(start)
			eta := time.Duration(0)
			if done > 0 {
				eta = elapsed / time.Duration(done) * time.Duration(nTree-done)
			}
			progress.OnProgress(done, nTree, elapsed, eta)
			mu.Unlock()
			return nil
		})
	}
	return translateCancellation(g.Wait())
}

// resolveNThread substitutes the platform hardware concurrency when the
// caller passes zero, failing when even that cannot be determined.
func resolveNThread(nThread int) (int, error) {
	if nThread > 0 {
		return nThread, nil
	}
	if n := runtime.NumCPU(); n > 0 {
		return n, nil
	}
	return 0, rferrors.InvalidArgument("n_thread resolved to zero workers")
}

// translateCancellation maps a context cancellation observed by the worker
// loop onto the engine's error taxonomy; any other error passes through
// unchanged as the first error a worker reported.
func translateCancellation(err error) error {
	if err == nil {
		return nil
	}
	if rferrors.Is(err, context.Canceled) || rferrors.Is(err, context.DeadlineExceeded) {
		return rferrors.Cancelled("run interrupted: %v", err)
	}
	return err
}

// predictLoop runs fn(row) for every row in [0,nRow), capped at nThread
// concurrent goroutines.
func predictLoop(ctx context.Context, nRow, nThread int, fn func(row int) error) error {
	nThread, err := resolveNThread(nThread)
	if err != nil {
		return err
	}
	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, nThread)

	for r := 0; r < nRow; r++ {
		r := r
		sem <- struct{}{}
		g.Go(func() error {
			defer func() { <-sem }()
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			return fn(r)
		})
	}
	return translateCancellation(g.Wait())
}
