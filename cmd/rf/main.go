// Command rf is a thin CLI front end over the training/prediction engine:
// CSV ingestion, YAML configuration, and train/predict/merge subcommands.
// It deliberately does not reimplement any part of the engine itself.
package main

import (
	"os"
	"runtime/pprof"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var log = logrus.New()

func main() {
	var cpuProfile string

	root := &cobra.Command{
		Use:   "rf",
		Short: "Train, predict, and merge random forests",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cpuProfile == "" {
				return nil
			}
			f, err := os.Create(cpuProfile)
			if err != nil {
				return err
			}
			return pprof.StartCPUProfile(f)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if cpuProfile != "" {
				pprof.StopCPUProfile()
			}
		},
	}
	root.PersistentFlags().StringVar(&cpuProfile, "cpuprofile", "", "write a CPU profile to this path")
	root.AddCommand(newTrainCmd())
	root.AddCommand(newPredictCmd())
	root.AddCommand(newMergeCmd())

	if err := root.Execute(); err != nil {
		log.WithError(err).Error("rf failed")
		os.Exit(1)
	}
}
