package main

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cran/literanger/rferrors"
	"github.com/cran/literanger/tree"
)

// Config is the YAML-loaded training configuration for the train
// subcommand; predict and merge take their inputs from flags instead since
// they have no comparable policy surface to configure.
type Config struct {
	NTree             int       `yaml:"n_tree"`
	NThread           int       `yaml:"n_thread"`
	Seed              uint64    `yaml:"seed"`
	Replace           bool      `yaml:"replace"`
	SampleFraction    []float64 `yaml:"sample_fraction"`
	NTry              int       `yaml:"n_try"`
	SplitRule         string    `yaml:"split_rule"`
	MinSplitNSample   int       `yaml:"min_split_n_sample"`
	MinLeafNSample    int       `yaml:"min_leaf_n_sample"`
	MaxDepth          int       `yaml:"max_depth"`
	NRandomSplit      int       `yaml:"n_random_split"`
	MinProp           float64   `yaml:"min_prop"`
	UnorderedStrategy string    `yaml:"unordered_strategy"`
	ComputeOOBError   bool      `yaml:"compute_oob_error"`
	SaveMemory        bool      `yaml:"save_memory"`
}

func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func defaultConfig() Config {
	return Config{
		NTree:           500,
		NThread:         1,
		Replace:         true,
		SampleFraction:  []float64{1.0},
		SplitRule:       "logrank",
		MinSplitNSample: 5,
		MinLeafNSample:  1,
		MinProp:         0.1,
		ComputeOOBError: true,
	}
}

func (c Config) splitRule() (tree.SplitRule, error) {
	switch c.SplitRule {
	case "", "logrank", "gini", "variance":
		return tree.LogRank, nil
	case "extratrees":
		return tree.ExtraTrees, nil
	case "beta":
		return tree.Beta, nil
	case "maxstat":
		return tree.MaxStat, nil
	case "hellinger":
		return tree.Hellinger, nil
	default:
		return 0, rferrors.InvalidArgument("unknown split_rule %q", c.SplitRule)
	}
}

func (c Config) unorderedStrategy() tree.UnorderedStrategy {
	switch c.UnorderedStrategy {
	case "partition":
		return tree.Partition
	case "order":
		return tree.Order
	default:
		return tree.Ignore
	}
}
