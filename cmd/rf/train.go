package main

import (
	"context"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cran/literanger/data"
	"github.com/cran/literanger/forest"
	"github.com/cran/literanger/rfio"
	"github.com/cran/literanger/tree"
)

func newTrainCmd() *cobra.Command {
	var (
		csvPath    string
		configPath string
		outPath    string
		response   string
		classify   bool
	)

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Grow a forest from a CSV training set",
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := uuid.New()
			log.WithField("run_id", runID).Info("starting training run")

			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			rule, err := cfg.splitRule()
			if err != nil {
				return err
			}

			d, responseValues, responseLevels, predictorNames, err := loadCSV(csvPath, response, log)
			if err != nil {
				return err
			}

			out, err := os.Create(outPath)
			if err != nil {
				return err
			}
			defer out.Close()

			isOrdered := make([]bool, d.NCol())
			for c := range isOrdered {
				isOrdered[c] = d.IsOrdered(c)
			}
			progress := &forest.LogrusProgress{Log: log, ReportEvery: maxInt(cfg.NTree/10, 1)}

			if classify {
				if responseValues == nil {
					responseValues = distinctResponseValues(d)
				}
				d.NewResponseIndex(responseValues)
				d.NewSampleKeysByResponse()
				params := tree.DefaultClassificationParameters(d.NCol(), rule)
				applyConfig(&params, cfg)

				f := forest.NewClassification(params, len(responseValues), responseValues, predictorNames)
				f.ResponseLevels = responseLevels
				if err := f.Plant(context.Background(), d, cfg.NTree, nil, cfg.ComputeOOBError, cfg.NThread, cfg.Seed, progress, cfg.SaveMemory); err != nil {
					return err
				}
				log.WithField("oob_error", f.OOBError).Info("training complete")
				return rfio.WriteClassification(out, f, d.NCol(), isOrdered, runID)
			}

			params := tree.DefaultRegressionParameters(d.NCol(), rule)
			applyConfig(&params, cfg)

			f := forest.NewRegression(params, predictorNames)
			if err := f.Plant(context.Background(), d, cfg.NTree, nil, cfg.ComputeOOBError, cfg.NThread, cfg.Seed, progress, cfg.SaveMemory); err != nil {
				return err
			}
			log.WithField("oob_error", f.OOBError).Info("training complete")
			return rfio.WriteRegression(out, f, d.NCol(), isOrdered, runID)
		},
	}

	cmd.Flags().StringVar(&csvPath, "data", "", "path to the training CSV")
	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML training configuration")
	cmd.Flags().StringVar(&outPath, "out", "forest.bin", "path to write the serialized forest")
	cmd.Flags().StringVar(&response, "response", "y", "name of the response column")
	cmd.Flags().BoolVar(&classify, "classify", false, "train a classification forest instead of regression")
	cmd.MarkFlagRequired("data")

	return cmd
}

// distinctResponseValues enumerates the response levels of a numeric-coded
// categorical response in order of first appearance.
func distinctResponseValues(d *data.Dense) []float64 {
	seen := make(map[float64]bool)
	var out []float64
	for r := 0; r < d.NRow(); r++ {
		v, err := d.GetY(r, 0)
		if err != nil {
			break
		}
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func applyConfig(p *tree.TrainingParameters, cfg Config) {
	p.Replace = cfg.Replace
	if len(cfg.SampleFraction) > 0 {
		p.SampleFraction = cfg.SampleFraction
	} else if !cfg.Replace {
		p.SampleFraction = []float64{0.632}
	}
	if cfg.NTry > 0 {
		p.NTry = cfg.NTry
	}
	if cfg.MinSplitNSample > 0 {
		p.MinSplitNSample = cfg.MinSplitNSample
	}
	if cfg.MinLeafNSample > 0 {
		p.MinLeafNSample = cfg.MinLeafNSample
	}
	p.MaxDepth = cfg.MaxDepth
	p.NRandomSplit = cfg.NRandomSplit
	if cfg.MinProp > 0 {
		p.MinProp = cfg.MinProp
	}
	p.UnorderedStrategy = cfg.unorderedStrategy()
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
