package tree

import (
	"math"
	"sort"

	"github.com/cran/literanger/rferrors"
)

// SplitRule selects the candidate-split scoring rule used at every node.
type SplitRule int

const (
	LogRank SplitRule = iota
	ExtraTrees
	Beta
	MaxStat
	Hellinger
)

func (r SplitRule) String() string {
	switch r {
	case LogRank:
		return "logrank"
	case ExtraTrees:
		return "extratrees"
	case Beta:
		return "beta"
	case MaxStat:
		return "maxstat"
	case Hellinger:
		return "hellinger"
	default:
		return "unknown"
	}
}

// UnorderedStrategy selects how an unordered (factor) predictor is
// considered for splitting.
type UnorderedStrategy int

const (
	// Ignore treats the predictor as ordered.
	Ignore UnorderedStrategy = iota
	// Partition enumerates all non-trivial subsets of levels.
	Partition
	// Order consumes a precomputed per-level ordering supplied by the
	// data-ingestion collaborator.
	Order
)

// TrainingParameters is the value struct carrying one tree's sampling,
// drawing, and splitting policy.
type TrainingParameters struct {
	Replace                 bool
	SampleFraction          []float64
	NTry                    int
	DrawAlwaysPredictorKeys []int // sorted
	DrawPredictorWeights    []float64
	ResponseWeights         []float64
	SplitRule               SplitRule
	MinMetricDecrease       float64
	MaxDepth                int // 0 means unbounded
	MinSplitNSample         int
	MinLeafNSample          int
	NRandomSplit            int // EXTRATREES only
	MinProp                 float64
	UnorderedStrategy       UnorderedStrategy
	// UnorderedOrdering[col] is the precomputed level ordering for an
	// unordered predictor when UnorderedStrategy == Order; nil otherwise.
	UnorderedOrdering map[int][]int
}

// DefaultRegressionParameters returns the default parameter set for a
// regression tree slot under rule.
func DefaultRegressionParameters(nCol int, rule SplitRule) TrainingParameters {
	p := TrainingParameters{
		Replace:         true,
		SampleFraction:  []float64{defaultSampleFraction(true)},
		NTry:            defaultNTry(nCol),
		SplitRule:       rule,
		MaxDepth:        0,
		MinSplitNSample: 5,
		MinLeafNSample:  1,
		MinProp:         0.1,
	}
	p.MinMetricDecrease = defaultMinMetricDecrease(rule)
	return p
}

// DefaultClassificationParameters returns the default parameter set for a
// classification tree slot under rule.
func DefaultClassificationParameters(nCol int, rule SplitRule) TrainingParameters {
	p := TrainingParameters{
		Replace:         true,
		SampleFraction:  []float64{defaultSampleFraction(true)},
		NTry:            defaultNTry(nCol),
		SplitRule:       rule,
		MaxDepth:        0,
		MinSplitNSample: 2,
		MinLeafNSample:  1,
		MinProp:         0.1,
	}
	p.MinMetricDecrease = defaultMinMetricDecrease(rule)
	return p
}

func defaultNTry(nCol int) int {
	n := int(math.Sqrt(float64(nCol)))
	if n < 1 {
		n = 1
	}
	return n
}

// defaultSampleFraction is 1.0 for bootstrap (with-replacement) sampling and
// 0.632 for subsampling without replacement, matching the in-bag fraction a
// bootstrap draw produces in expectation.
func defaultSampleFraction(replace bool) float64 {
	if replace {
		return 1.0
	}
	return 0.632
}

// defaultMinMetricDecrease is the minimum-improvement threshold below which
// a candidate split is rejected, one value per split rule since each rule's
// score lives on a different scale: LOGRANK/EXTRATREES/HELLINGER reject only
// non-improving splits (threshold 0), BETA's log-likelihood gain has no
// natural floor (threshold -Inf), and MAXSTAT rejects by a significance
// level alpha rather than a raw statistic, so the threshold is -alpha on the
// stored (negated p-value) comparison scale.
func defaultMinMetricDecrease(rule SplitRule) float64 {
	switch rule {
	case Beta:
		return math.Inf(-1)
	case MaxStat:
		return -0.05
	default:
		return 0
	}
}

// Validate checks the internal consistency of a parameter set before
// growth begins.
func (p *TrainingParameters) Validate(nPredictor int) error {
	if p.NTry <= 0 {
		return rferrors.InvalidArgument("n_try must be > 0")
	}
	if p.NTry > nPredictor {
		return rferrors.InvalidArgument("n_try (%d) exceeds n_predictor (%d)", p.NTry, nPredictor)
	}
	if p.SplitRule == ExtraTrees && p.NRandomSplit <= 0 {
		return rferrors.InvalidArgument("split_rule extratrees requires n_random_split > 0")
	}
	if len(p.SampleFraction) == 0 {
		return rferrors.InvalidArgument("sample_fraction must not be empty")
	}
	sum := 0.0
	for _, f := range p.SampleFraction {
		if f < 0 || f > 1 {
			return rferrors.InvalidArgument("sample_fraction entries must lie in [0,1]")
		}
		sum += f
	}
	if sum <= 0 {
		return rferrors.InvalidArgument("sample_fraction results in zero samples")
	}
	sortedAlways := append([]int(nil), p.DrawAlwaysPredictorKeys...)
	sort.Ints(sortedAlways)
	for i := 1; i < len(sortedAlways); i++ {
		if sortedAlways[i] == sortedAlways[i-1] {
			return rferrors.InvalidArgument("draw_always_predictor_keys contains a duplicate: %d", sortedAlways[i])
		}
	}
	return nil
}

// IsStratified reports whether sampling is response-wise stratified: a
// sample_fraction with more than one entry gives one in-bag fraction per
// response class, drawn independently within each class.
func (p *TrainingParameters) IsStratified() bool {
	return len(p.SampleFraction) > 1
}
