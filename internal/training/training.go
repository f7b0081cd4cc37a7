// Package training runs the end-to-end training pipeline: load, preprocess,
// split, fit, evaluate, persist, plot and probe.
package training

import (
	"path/filepath"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/jrmsu/ojtinsight/dataset"
	"github.com/jrmsu/ojtinsight/ensemble"
	"github.com/jrmsu/ojtinsight/features"
	"github.com/jrmsu/ojtinsight/insight"
	"github.com/jrmsu/ojtinsight/metrics"
	ojtErrors "github.com/jrmsu/ojtinsight/pkg/errors"
	"github.com/jrmsu/ojtinsight/pkg/log"
	"github.com/jrmsu/ojtinsight/report"
)

// EnsembleName keys the blended model in Summary.Accuracy.
const EnsembleName = "ensemble"

// Options configure a training run.
type Options struct {
	DataPath  string
	ModelsDir string
	// PlotsDir receives the charts; empty skips plotting.
	PlotsDir       string
	TestSize       float64
	Seed           int64
	Weights        ensemble.Weights
	NEstimators    int
	SortedOrdinals bool
}

// Probe is a synthetic student run through the trained model.
type Probe struct {
	Name       string                     `json:"name"`
	Features   map[string]float64         `json:"features"`
	Prediction *ensemble.SinglePrediction `json:"prediction"`
	RiskLevel  insight.RiskLevel          `json:"risk_level"`
}

// Summary is the outcome of Run.
type Summary struct {
	Target       string
	Features     []string
	Samples      int
	TrainSamples int
	TestSamples  int
	Clean        features.CleanReport

	// Accuracy on the test split per sub-model and for the ensemble.
	Accuracy        map[string]float64
	Precision       float64
	Recall          float64
	F1              float64
	Report          *metrics.Report
	Confusion       *mat.Dense
	ConfusionLabels []string
	// Importances sorted by decreasing importance.
	Importances []ensemble.FeatureImportance
	Probes      []Probe
	Plots       []string
}

// Run trains, evaluates and saves the ensemble described by opts.
func Run(opts Options) (*Summary, error) {
	logger := log.GetLoggerWithName("training")
	start := time.Now()

	ds, err := dataset.ReadCSVFile(opts.DataPath)
	if err != nil {
		return nil, err
	}
	logger.Info("Dataset loaded", "path", opts.DataPath, log.SamplesKey, ds.NRows(), "columns", len(ds.Columns))

	var preOpts []features.Option
	if opts.SortedOrdinals {
		preOpts = append(preOpts, features.WithSortedOrdinals())
	}
	pre := features.NewPreprocessor(preOpts...)
	res, err := pre.Fit(ds)
	if err != nil {
		return nil, err
	}

	trainIdx, testIdx, err := dataset.StratifiedSplit(res.Labels, opts.TestSize, opts.Seed)
	if err != nil {
		return nil, err
	}
	if len(testIdx) == 0 || len(trainIdx) == 0 {
		return nil, ojtErrors.NewValueError("training.Run", "dataset too small to split into train and test sets")
	}
	Xtrain, yTrain := selectRows(res.X, res.Labels, trainIdx)
	Xtest, yTest := selectRows(res.X, res.Labels, testIdx)

	m := ensemble.New(
		ensemble.WithWeights(opts.Weights.LR, opts.Weights.RF, opts.Weights.NB),
		ensemble.WithRandomState(opts.Seed),
		ensemble.WithNEstimators(opts.NEstimators),
	)
	if err := m.Fit(Xtrain, yTrain, res.FeatureNames); err != nil {
		return nil, err
	}

	sum := &Summary{
		Target:       res.Target,
		Features:     res.FeatureNames,
		Samples:      len(res.Labels),
		TrainSamples: len(trainIdx),
		TestSamples:  len(testIdx),
		Clean:        res.Report,
	}
	if err := evaluate(sum, m, Xtest, yTest); err != nil {
		return nil, err
	}

	if err := m.Save(opts.ModelsDir); err != nil {
		return nil, err
	}
	if err := pre.Save(opts.ModelsDir); err != nil {
		return nil, err
	}

	if opts.PlotsDir != "" {
		if err := writePlots(sum, opts.PlotsDir); err != nil {
			return nil, err
		}
	}

	sum.Probes, err = probes(m, pre.Engineer(), Xtrain)
	if err != nil {
		return nil, err
	}

	logger.Info("Training pipeline completed",
		log.SamplesKey, sum.Samples,
		log.FeaturesKey, len(sum.Features),
		"ensemble_accuracy", sum.Accuracy[EnsembleName],
		"f1", sum.F1,
		"models_dir", opts.ModelsDir,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return sum, nil
}

func selectRows(X *mat.Dense, labels []string, idx []int) (*mat.Dense, []string) {
	_, c := X.Dims()
	out := mat.NewDense(len(idx), c, nil)
	y := make([]string, len(idx))
	for i, r := range idx {
		out.SetRow(i, X.RawRowView(r))
		y[i] = labels[r]
	}
	return out, y
}

func evaluate(sum *Summary, m *ensemble.Model, Xtest *mat.Dense, yTest []string) error {
	sum.Accuracy = make(map[string]float64, len(ensemble.SubModels)+1)

	sub, err := m.SubModelPredict(Xtest)
	if err != nil {
		return err
	}
	for name, pred := range sub {
		acc, err := metrics.Accuracy(yTest, pred)
		if err != nil {
			return err
		}
		sum.Accuracy[name] = acc
	}

	pred, err := m.Predict(Xtest)
	if err != nil {
		return err
	}
	if sum.Accuracy[EnsembleName], err = metrics.Accuracy(yTest, pred); err != nil {
		return err
	}
	if sum.Precision, sum.Recall, sum.F1, err = metrics.PrecisionRecallF1(yTest, pred); err != nil {
		return err
	}
	if sum.Report, err = metrics.ClassificationReport(yTest, pred); err != nil {
		return err
	}
	if sum.Confusion, sum.ConfusionLabels, err = metrics.ConfusionMatrix(yTest, pred, nil); err != nil {
		return err
	}

	imp, err := m.FeatureImportances()
	if err != nil {
		return err
	}
	sort.SliceStable(imp, func(a, b int) bool { return imp[a].Importance > imp[b].Importance })
	sum.Importances = imp
	return nil
}

func writePlots(sum *Summary, dir string) error {
	names := make([]string, len(sum.Importances))
	values := make([]float64, len(sum.Importances))
	for i, fi := range sum.Importances {
		names[i] = fi.Name
		values[i] = fi.Importance
	}

	impPath := filepath.Join(dir, report.FeatureImportanceFile)
	if err := report.FeatureImportancePlot(names, values, impPath); err != nil {
		return err
	}
	accPath := filepath.Join(dir, report.ModelAccuracyFile)
	if err := report.ModelAccuracyPlot(sum.Accuracy, accPath); err != nil {
		return err
	}
	sum.Plots = []string{impPath, accPath}
	return nil
}

// probes builds a low, a medium and a high student from the per-feature
// minimum, mean and maximum of the training split, recomputes the derived
// features and predicts each.
func probes(m *ensemble.Model, eng *features.Engineer, Xtrain *mat.Dense) ([]Probe, error) {
	names := m.FeatureNames()
	r, _ := Xtrain.Dims()
	col := make([]float64, r)

	low := make(map[string]float64, len(names))
	mid := make(map[string]float64, len(names))
	high := make(map[string]float64, len(names))
	for j, name := range names {
		mat.Col(col, j, Xtrain)
		low[name] = floats.Min(col)
		mid[name] = stat.Mean(col, nil)
		high[name] = floats.Max(col)
	}

	out := make([]Probe, 0, 3)
	for _, p := range []struct {
		name   string
		values map[string]float64
	}{{"low", low}, {"medium", mid}, {"high", high}} {
		values := p.values
		if len(eng.Derived) > 0 {
			refreshed, err := features.RefreshRow(eng, values)
			if err != nil {
				return nil, err
			}
			values = refreshed
		}
		pred, err := m.PredictSingle(values)
		if err != nil {
			return nil, err
		}
		out = append(out, Probe{
			Name:       p.name,
			Features:   values,
			Prediction: pred,
			RiskLevel:  insight.ClassifyRisk(pred.Label),
		})
	}
	return out, nil
}
