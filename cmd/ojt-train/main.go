// Command ojt-train trains the OJT performance ensemble from a CSV grading
// sheet and writes its artifacts, evaluation charts and a report.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/jrmsu/ojtinsight/ensemble"
	"github.com/jrmsu/ojtinsight/internal/config"
	"github.com/jrmsu/ojtinsight/internal/training"
	"github.com/jrmsu/ojtinsight/pkg/log"
)

var flagBindings = map[string]string{
	"training.data":            "data",
	"models.dir":               "models-dir",
	"training.plots_dir":       "plots-dir",
	"training.test_size":       "test-size",
	"training.seed":            "seed",
	"training.sorted_ordinals": "sorted-ordinals",
	"ensemble.lr_weight":       "lr-weight",
	"ensemble.rf_weight":       "rf-weight",
	"ensemble.nb_weight":       "nb-weight",
	"ensemble.n_estimators":    "n-estimators",
	"logger.level":             "log-level",
}

func main() {
	fs := pflag.NewFlagSet("ojt-train", pflag.ExitOnError)
	configPath := fs.String("config", "", "path to config.yaml")
	fs.String("data", "data/ojt_performance.csv", "training CSV")
	fs.String("models-dir", "models", "directory receiving the model artifacts")
	fs.String("plots-dir", "plots", "directory receiving the charts, empty to skip")
	fs.Float64("test-size", 0.2, "share of each class held out for evaluation")
	fs.Int64("seed", 42, "random seed for the split and the forest")
	fs.Bool("sorted-ordinals", false, "score unknown categorical values in sorted order instead of first-seen order")
	fs.Float64("lr-weight", 0.3, "logistic regression blend weight")
	fs.Float64("rf-weight", 0.5, "random forest blend weight")
	fs.Float64("nb-weight", 0.2, "naive Bayes blend weight")
	fs.Int("n-estimators", 100, "number of trees in the forest")
	fs.String("log-level", "info", "debug, info, warn or error")
	_ = fs.Parse(os.Args[1:])

	cfg, err := config.Load(*configPath, config.WithDotEnv(".env"), config.WithFlags(fs, flagBindings))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	log.SetGlobalProvider(log.NewConsoleProvider(log.ToLogLevel(cfg.Logger.Level)))
	logger := log.GetLoggerWithName("ojt-train")

	sum, err := training.Run(training.Options{
		DataPath:       cfg.Training.Data,
		ModelsDir:      cfg.Models.Dir,
		PlotsDir:       cfg.Training.PlotsDir,
		TestSize:       cfg.Training.TestSize,
		Seed:           cfg.Training.Seed,
		Weights:        cfg.Ensemble.Weights(),
		NEstimators:    cfg.Ensemble.NEstimators,
		SortedOrdinals: cfg.Training.SortedOrdinals,
	})
	if err != nil {
		logger.Error("Training failed", log.ErrorKey, err)
		os.Exit(1)
	}

	printSummary(sum)
}

func printSummary(sum *training.Summary) {
	w := os.Stdout
	fmt.Fprintf(w, "Target: %s\n", sum.Target)
	fmt.Fprintf(w, "Features (%d): %v\n", len(sum.Features), sum.Features)
	fmt.Fprintf(w, "Samples: %d (train %d, test %d)\n", sum.Samples, sum.TrainSamples, sum.TestSamples)
	fmt.Fprintf(w, "Cleaning: imputed=%d dropped=%d infinite=%d clipped_low=%d clipped_high=%d\n\n",
		sum.Clean.Imputed, sum.Clean.Dropped, sum.Clean.Infinite, sum.Clean.ClippedLow, sum.Clean.ClippedHigh)

	fmt.Fprintln(w, "Accuracy:")
	for _, name := range append(append([]string{}, ensemble.SubModels...), training.EnsembleName) {
		fmt.Fprintf(w, "  %-20s %.4f\n", name, sum.Accuracy[name])
	}
	fmt.Fprintf(w, "\nWeighted precision=%.4f recall=%.4f f1=%.4f\n\n", sum.Precision, sum.Recall, sum.F1)
	fmt.Fprintln(w, sum.Report.String())

	fmt.Fprintf(w, "Confusion matrix %v:\n", sum.ConfusionLabels)
	r, c := sum.Confusion.Dims()
	for i := 0; i < r; i++ {
		fmt.Fprint(w, " ")
		for j := 0; j < c; j++ {
			fmt.Fprintf(w, " %4.0f", sum.Confusion.At(i, j))
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "\nFeature importance:")
	for _, fi := range sum.Importances {
		fmt.Fprintf(w, "  %-50s %.4f\n", fi.Name, fi.Importance)
	}

	fmt.Fprintln(w, "\nProbes:")
	for _, p := range sum.Probes {
		fmt.Fprintf(w, "  %-7s -> %s (%.1f%%, risk %s)\n",
			p.Name, p.Prediction.Label, p.Prediction.Confidence*100, p.RiskLevel)
	}
	for _, path := range sum.Plots {
		fmt.Fprintf(w, "Wrote %s\n", path)
	}
}
