package main

import (
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cran/literanger/forest"
	"github.com/cran/literanger/rferrors"
	"github.com/cran/literanger/rfio"
)

func newMergeCmd() *cobra.Command {
	var (
		leftPath, rightPath, outPath string
		classify                     bool
	)

	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Merge two compatible forests into one",
		RunE: func(cmd *cobra.Command, args []string) error {
			lf, err := os.Open(leftPath)
			if err != nil {
				return err
			}
			defer lf.Close()
			rf, err := os.Open(rightPath)
			if err != nil {
				return err
			}
			defer rf.Close()

			out, err := os.Create(outPath)
			if err != nil {
				return err
			}
			defer out.Close()

			if classify {
				x, err := rfio.ReadClassification(lf)
				if err != nil {
					return err
				}
				y, err := rfio.ReadClassification(rf)
				if err != nil {
					return err
				}
				predictorMap, err := predictorMapFor(x.PredictorNames, y.PredictorNames)
				if err != nil {
					return err
				}
				merged, err := forest.MergeClassification(x, y, predictorMap)
				if err != nil {
					return err
				}
				nPredictor, isOrdered, err := predictorLayoutOfClassification(merged)
				if err != nil {
					return err
				}
				return rfio.WriteClassification(out, merged, nPredictor, isOrdered, uuid.New())
			}

			x, err := rfio.ReadRegression(lf)
			if err != nil {
				return err
			}
			y, err := rfio.ReadRegression(rf)
			if err != nil {
				return err
			}
			predictorMap, err := predictorMapFor(x.PredictorNames, y.PredictorNames)
			if err != nil {
				return err
			}
			merged, err := forest.MergeRegression(x, y, predictorMap)
			if err != nil {
				return err
			}
			nPredictor, isOrdered, err := predictorLayoutOfRegression(merged)
			if err != nil {
				return err
			}
			return rfio.WriteRegression(out, merged, nPredictor, isOrdered, uuid.New())
		},
	}

	cmd.Flags().StringVar(&leftPath, "a", "", "first forest file")
	cmd.Flags().StringVar(&rightPath, "b", "", "second forest file")
	cmd.Flags().StringVar(&outPath, "out", "merged.bin", "path to write the merged forest")
	cmd.Flags().BoolVar(&classify, "classify", false, "the inputs are classification forests")
	cmd.MarkFlagRequired("a")
	cmd.MarkFlagRequired("b")

	return cmd
}

// predictorMapFor remaps the second forest's predictor columns onto the
// first's by name; when the two forests already agree column for column no
// remapping is needed.
func predictorMapFor(xNames, yNames []string) (map[int]int, error) {
	if sameNames(xNames, yNames) {
		return nil, nil
	}
	return forest.BuildPredictorMap(xNames, yNames)
}

func sameNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func predictorLayoutOfClassification(f *forest.Classification) (int, []bool, error) {
	if len(f.Trees) == 0 {
		return 0, nil, rferrors.InvalidArgument("merged forest has no trees")
	}
	n := f.Trees[0].NPredictor()
	isOrdered := make([]bool, n)
	for c := range isOrdered {
		isOrdered[c] = f.Trees[0].IsOrderedCol(c)
	}
	return n, isOrdered, nil
}

func predictorLayoutOfRegression(f *forest.Regression) (int, []bool, error) {
	if len(f.Trees) == 0 {
		return 0, nil, rferrors.InvalidArgument("merged forest has no trees")
	}
	n := f.Trees[0].NPredictor()
	isOrdered := make([]bool, n)
	for c := range isOrdered {
		isOrdered[c] = f.Trees[0].IsOrderedCol(c)
	}
	return n, isOrdered, nil
}
