package main

import (
	"context"
	"encoding/csv"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/cran/literanger/forest"
	"github.com/cran/literanger/rferrors"
	"github.com/cran/literanger/rfio"
)

func parsePredictionMode(s string) (forest.PredictionMode, error) {
	switch s {
	case "bagged":
		return forest.Bagged, nil
	case "inbag":
		return forest.Inbag, nil
	case "nodes":
		return forest.Nodes, nil
	default:
		return 0, rferrors.InvalidArgument("prediction_type must be one of bagged, inbag, nodes, got %q", s)
	}
}

func newPredictCmd() *cobra.Command {
	var (
		forestPath string
		csvPath    string
		outPath    string
		response   string
		classify   bool
		nThread    int
		seed       uint64
		modeFlag   string
	)

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict against a serialized forest",
		RunE: func(cmd *cobra.Command, args []string) error {
			ff, err := os.Open(forestPath)
			if err != nil {
				return err
			}
			defer ff.Close()

			d, _, _, _, err := loadCSV(csvPath, response, log)
			if err != nil {
				return err
			}

			mode, err := parsePredictionMode(modeFlag)
			if err != nil {
				return err
			}

			out, err := os.Create(outPath)
			if err != nil {
				return err
			}
			defer out.Close()
			w := csv.NewWriter(out)
			defer w.Flush()

			if classify {
				f, err := rfio.ReadClassification(ff)
				if err != nil {
					return err
				}
				preds, err := f.Predict(context.Background(), d, mode, seed, nThread)
				if err != nil {
					return err
				}
				return writeClassificationPredictions(w, f, preds)
			}

			f, err := rfio.ReadRegression(ff)
			if err != nil {
				return err
			}
			preds, err := f.Predict(context.Background(), d, mode, seed, nThread)
			if err != nil {
				return err
			}
			return writeRegressionPredictions(w, preds)
		},
	}

	cmd.Flags().StringVar(&forestPath, "forest", "", "path to a serialized forest")
	cmd.Flags().StringVar(&csvPath, "data", "", "path to the prediction CSV")
	cmd.Flags().StringVar(&outPath, "out", "predictions.csv", "path to write predictions")
	cmd.Flags().StringVar(&response, "response", "y", "name of the response column (ignored, required by the CSV reader)")
	cmd.Flags().BoolVar(&classify, "classify", false, "the forest is a classification forest")
	cmd.Flags().IntVar(&nThread, "n-thread", 1, "number of concurrent prediction workers")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "prediction seed (inbag tree assignment and leaf draws; bagged classification tie-breaks)")
	cmd.Flags().StringVar(&modeFlag, "prediction-type", "bagged", "one of bagged, inbag, nodes")
	cmd.MarkFlagRequired("forest")
	cmd.MarkFlagRequired("data")

	return cmd
}

func writeClassificationPredictions(w *csv.Writer, f *forest.Classification, preds *forest.Predictions) error {
	switch preds.Mode {
	case forest.Nodes:
		if len(preds.Nodes) > 0 {
			header := make([]string, len(preds.Nodes[0]))
			for i := range header {
				header[i] = "tree_" + strconv.Itoa(i)
			}
			w.Write(header)
		}
		for _, row := range preds.Nodes {
			rec := make([]string, len(row))
			for i, n := range row {
				rec[i] = strconv.Itoa(n)
			}
			w.Write(rec)
		}
	case forest.Inbag:
		w.Write([]string{"inbag_class"})
		for _, k := range preds.InbagClass {
			w.Write([]string{formatClass(f, k)})
		}
	default:
		w.Write([]string{"predicted_class"})
		for _, k := range preds.PredictedClass {
			w.Write([]string{formatClass(f, k)})
		}
	}
	return nil
}

// formatClass renders response key k with the original string label when the
// forest was trained on a character-typed response, and as the numeric
// response value otherwise.
func formatClass(f *forest.Classification, k int) string {
	if len(f.ResponseLevels) > 0 {
		return f.ResponseLevels[k]
	}
	return strconv.FormatFloat(f.ResponseValues[k], 'g', -1, 64)
}

func writeRegressionPredictions(w *csv.Writer, preds *forest.RegressionPredictions) error {
	switch preds.Mode {
	case forest.Nodes:
		if len(preds.Nodes) > 0 {
			header := make([]string, len(preds.Nodes[0]))
			for i := range header {
				header[i] = "tree_" + strconv.Itoa(i)
			}
			w.Write(header)
		}
		for _, row := range preds.Nodes {
			rec := make([]string, len(row))
			for i, n := range row {
				rec[i] = strconv.Itoa(n)
			}
			w.Write(rec)
		}
	case forest.Inbag:
		w.Write([]string{"inbag_value"})
		for _, v := range preds.InbagValue {
			w.Write([]string{strconv.FormatFloat(v, 'g', -1, 64)})
		}
	default:
		w.Write([]string{"predicted_value"})
		for _, v := range preds.PredictedValue {
			w.Write([]string{strconv.FormatFloat(v, 'g', -1, 64)})
		}
	}
	return nil
}
