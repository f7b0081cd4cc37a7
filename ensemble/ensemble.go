// Package ensemble blends logistic regression, a random forest and Gaussian
// naive Bayes into one performance-category classifier.
//
// Labels are encoded with a sorted LabelEncoder, so class columns of every
// probability matrix follow the lexicographic order of the labels. Logistic
// regression and naive Bayes see standardized features; the forest sees the
// raw ones. The blended probability of a class is the weighted sum of the
// three sub-model probabilities.
//
// A Model is fitted once. After Fit or Load it is immutable and may be shared
// by concurrent readers.
package ensemble

import (
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/jrmsu/ojtinsight/core/model"
	ojtErrors "github.com/jrmsu/ojtinsight/pkg/errors"
	"github.com/jrmsu/ojtinsight/pkg/log"
	"github.com/jrmsu/ojtinsight/preprocessing"
	skensemble "github.com/jrmsu/ojtinsight/sklearn/ensemble"
	"github.com/jrmsu/ojtinsight/sklearn/linear_model"
	"github.com/jrmsu/ojtinsight/sklearn/naive_bayes"
	"github.com/jrmsu/ojtinsight/sklearn/tree"
)

var globalProvider log.LoggerProvider

// Sub-model names used in reports and artifact files.
const (
	LogisticRegression = "logistic_regression"
	RandomForest       = "random_forest"
	NaiveBayes         = "naive_bayes"
)

// SubModels lists the sub-model names in blend order.
var SubModels = []string{LogisticRegression, RandomForest, NaiveBayes}

// Weights are the blend weights of the three sub-models.
type Weights struct {
	LR float64 `json:"lr"`
	RF float64 `json:"rf"`
	NB float64 `json:"nb"`
}

// DefaultWeights favour the forest.
var DefaultWeights = Weights{LR: 0.3, RF: 0.5, NB: 0.2}

// Sum returns LR + RF + NB.
func (w Weights) Sum() float64 { return w.LR + w.RF + w.NB }

// Validate rejects non-finite or negative weights and an all-zero triple.
func (w Weights) Validate() error {
	for _, v := range []float64{w.LR, w.RF, w.NB} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return ojtErrors.NewValueError("ensemble.Weights",
				fmt.Sprintf("weights must be finite, got lr=%v rf=%v nb=%v", w.LR, w.RF, w.NB))
		}
	}
	if w.LR < 0 || w.RF < 0 || w.NB < 0 {
		return ojtErrors.NewValueError("ensemble.Weights",
			fmt.Sprintf("weights must be non-negative, got lr=%v rf=%v nb=%v", w.LR, w.RF, w.NB))
	}
	if w.Sum() <= 0 {
		return ojtErrors.NewValueError("ensemble.Weights", "at least one weight must be positive")
	}
	return nil
}

// SinglePrediction is the result of PredictSingle.
type SinglePrediction struct {
	Label         string             `json:"predicted_label"`
	Confidence    float64            `json:"probability"`
	Probabilities map[string]float64 `json:"class_probabilities"`
}

// FeatureImportance pairs a feature name with its forest importance.
type FeatureImportance struct {
	Name       string  `json:"name"`
	Importance float64 `json:"importance"`
}

// Model is the three-model ensemble.
type Model struct {
	state  *model.StateManager
	logger log.Logger

	weights      Weights
	randomState  int64
	nEstimators  int
	nJobs        int
	lrMaxIter    int
	featureNames []string

	scaler  *preprocessing.StandardScaler
	encoder *preprocessing.LabelEncoder
	lr      *linear_model.LogisticRegression
	rf      *skensemble.RandomForestClassifier
	nb      *naive_bayes.GaussianNB
}

// Option configures a Model.
type Option func(*Model)

// WithWeights overrides DefaultWeights.
func WithWeights(lr, rf, nb float64) Option {
	return func(m *Model) { m.weights = Weights{LR: lr, RF: rf, NB: nb} }
}

// WithRandomState sets the forest seed (default 42).
func WithRandomState(seed int64) Option {
	return func(m *Model) { m.randomState = seed }
}

// WithNEstimators sets the number of forest trees (default 100).
func WithNEstimators(n int) Option {
	return func(m *Model) { m.nEstimators = n }
}

// WithNJobs bounds concurrent tree fitting.
func WithNJobs(n int) Option {
	return func(m *Model) { m.nJobs = n }
}

// WithLRMaxIter sets the logistic regression iteration cap (default 1000).
func WithLRMaxIter(n int) Option {
	return func(m *Model) { m.lrMaxIter = n }
}

// New returns an unfitted ensemble.
func New(opts ...Option) *Model {
	m := &Model{
		state:       model.NewStateManager(),
		weights:     DefaultWeights,
		randomState: 42,
		nEstimators: 100,
		lrMaxIter:   1000,
	}
	for _, opt := range opts {
		opt(m)
	}
	if globalProvider == nil {
		globalProvider = log.NewZerologProvider(log.ToLogLevel("info"))
	}
	m.logger = globalProvider.GetLoggerWithName("EnsembleModel").With(
		log.ModelNameKey, "EnsembleModel",
	)
	return m
}

// Fit trains the three sub-models on X, whose columns follow featureNames,
// against the string labels. The sub-models are fitted concurrently.
func (m *Model) Fit(X mat.Matrix, labels []string, featureNames []string) (err error) {
	defer ojtErrors.Recover(&err, "EnsembleModel.Fit")

	if m.state.IsFitted() {
		return ojtErrors.NewModelError("EnsembleModel.Fit", "model is already fitted; create a new one", nil)
	}
	if err := m.weights.Validate(); err != nil {
		return err
	}
	if X == nil {
		return ojtErrors.NewModelError("EnsembleModel.Fit", "nil input", ojtErrors.ErrEmptyData)
	}
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return ojtErrors.NewModelError("EnsembleModel.Fit", "empty data", ojtErrors.ErrEmptyData)
	}
	if r != len(labels) {
		return ojtErrors.NewDimensionError("EnsembleModel.Fit", r, len(labels), 0)
	}
	if c != len(featureNames) {
		return ojtErrors.NewDimensionError("EnsembleModel.Fit", len(featureNames), c, 1)
	}
	seen := make(map[string]bool, c)
	for _, n := range featureNames {
		if seen[n] {
			return ojtErrors.NewValueError("EnsembleModel.Fit", fmt.Sprintf("duplicate feature %q", n))
		}
		seen[n] = true
	}

	start := time.Now()
	encoder := preprocessing.NewLabelEncoder()
	codes, err := encoder.FitTransform(labels)
	if err != nil {
		return err
	}
	if encoder.NClasses() < 2 {
		return ojtErrors.NewModelError("EnsembleModel.Fit",
			fmt.Sprintf("got %d class", encoder.NClasses()), ojtErrors.ErrSingleClass)
	}

	m.logger.Info("Training started",
		log.OperationKey, log.OperationFit,
		log.PhaseKey, log.PhaseTraining,
		log.SamplesKey, r,
		log.FeaturesKey, c,
		log.ClassesKey, encoder.NClasses(),
	)

	y := mat.NewDense(r, 1, nil)
	for i, code := range codes {
		y.Set(i, 0, float64(code))
	}

	scaler := preprocessing.NewStandardScalerDefault()
	scaled, err := scaler.FitTransform(X)
	if err != nil {
		return ojtErrors.Wrap(err, "scale features")
	}

	lr := linear_model.NewLogisticRegression(
		linear_model.WithLRC(1.0),
		linear_model.WithLRMaxIter(m.lrMaxIter),
	)
	rf := skensemble.NewRandomForestClassifier(
		skensemble.WithNEstimators(m.nEstimators),
		skensemble.WithMaxDepth(10),
		skensemble.WithMinSamplesSplit(5),
		skensemble.WithMaxFeatures(tree.MaxFeaturesSqrt),
		skensemble.WithBootstrap(true),
		skensemble.WithRandomState(m.randomState),
		skensemble.WithNJobs(m.nJobs),
	)
	nb := naive_bayes.NewGaussianNB(naive_bayes.WithVarSmoothing(1e-9))

	var g errgroup.Group
	g.Go(func() error { return ojtErrors.Wrap(lr.Fit(scaled, y), LogisticRegression) })
	g.Go(func() error { return ojtErrors.Wrap(rf.Fit(X, y), RandomForest) })
	g.Go(func() error { return ojtErrors.Wrap(nb.Fit(scaled, y), NaiveBayes) })
	if err := g.Wait(); err != nil {
		return err
	}

	m.scaler = scaler
	m.encoder = encoder
	m.lr, m.rf, m.nb = lr, rf, nb
	m.featureNames = append([]string(nil), featureNames...)
	m.state.SetDimensions(c, r)
	m.state.SetFitted()

	m.logger.Info("Training completed",
		log.OperationKey, log.OperationFit,
		log.PhaseKey, log.PhaseTraining,
		log.DurationMsKey, time.Since(start).Milliseconds(),
		"lr_iterations", lr.NIter(),
	)
	return nil
}

func (m *Model) checkInput(X mat.Matrix, op string) error {
	if !m.state.IsFitted() {
		return ojtErrors.NewNotFittedError("EnsembleModel", op)
	}
	if X == nil {
		return ojtErrors.NewValueError("EnsembleModel."+op, "input cannot be nil")
	}
	if _, c := X.Dims(); c != len(m.featureNames) {
		return ojtErrors.NewDimensionError("EnsembleModel."+op, len(m.featureNames), c, 1)
	}
	return nil
}

// subProba returns the probabilities of each sub-model, in SubModels order.
func (m *Model) subProba(X mat.Matrix) ([]*mat.Dense, error) {
	scaled, err := m.scaler.Transform(X)
	if err != nil {
		return nil, err
	}
	inputs := []mat.Matrix{scaled, X, scaled}
	members := []model.ProbabilisticClassifier{m.lr, m.rf, m.nb}

	k := m.encoder.NClasses()
	out := make([]*mat.Dense, len(members))
	for i, clf := range members {
		p, err := clf.PredictProba(inputs[i])
		if err != nil {
			return nil, ojtErrors.Wrap(err, SubModels[i])
		}
		if _, pc := p.Dims(); pc != k {
			return nil, ojtErrors.NewModelError("EnsembleModel.PredictProba",
				fmt.Sprintf("%s returned %d classes, want %d", SubModels[i], pc, k), nil)
		}
		out[i] = p
	}
	return out, nil
}

// PredictProba returns the weighted sum of the sub-model probabilities. Each
// row sums to the sum of the weights.
func (m *Model) PredictProba(X mat.Matrix) (_ *mat.Dense, err error) {
	defer ojtErrors.Recover(&err, "EnsembleModel.PredictProba")
	if err := m.checkInput(X, "PredictProba"); err != nil {
		return nil, err
	}

	probas, err := m.subProba(X)
	if err != nil {
		return nil, err
	}
	r, k := probas[0].Dims()
	blend := mat.NewDense(r, k, nil)
	w := []float64{m.weights.LR, m.weights.RF, m.weights.NB}
	var tmp mat.Dense
	for i, p := range probas {
		tmp.Scale(w[i], p)
		blend.Add(blend, &tmp)
	}
	for i := 0; i < r; i++ {
		for _, v := range blend.RawRowView(i) {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, ojtErrors.NewValueError("EnsembleModel.PredictProba",
					fmt.Sprintf("row %d has non-finite probabilities", i))
			}
		}
	}

	m.logger.Debug("Prediction completed",
		log.OperationKey, log.OperationPredict,
		log.PhaseKey, log.PhaseInference,
		log.PredsKey, r,
	)
	return blend, nil
}

// Predict returns the decoded label of the most probable class of each row.
// Ties go to the first class in label order.
func (m *Model) Predict(X mat.Matrix) (_ []string, err error) {
	defer ojtErrors.Recover(&err, "EnsembleModel.Predict")
	proba, err := m.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return m.decode(proba)
}

func (m *Model) decode(proba *mat.Dense) ([]string, error) {
	r, _ := proba.Dims()
	codes := make([]int, r)
	for i := 0; i < r; i++ {
		codes[i] = floats.MaxIdx(proba.RawRowView(i))
	}
	return m.encoder.InverseTransform(codes)
}

// PredictSingle predicts one row given as a feature mapping. Values are read
// in feature-set order; extra keys are ignored.
func (m *Model) PredictSingle(features map[string]float64) (_ *SinglePrediction, err error) {
	defer ojtErrors.Recover(&err, "EnsembleModel.PredictSingle")
	if !m.state.IsFitted() {
		return nil, ojtErrors.NewNotFittedError("EnsembleModel", "PredictSingle")
	}

	row := make([]float64, len(m.featureNames))
	for i, name := range m.featureNames {
		v, ok := features[name]
		if !ok {
			return nil, ojtErrors.Wrapf(ojtErrors.ErrMissingFeature, "feature %q", name)
		}
		row[i] = v
	}

	proba, err := m.PredictProba(mat.NewDense(1, len(row), row))
	if err != nil {
		return nil, err
	}
	p := proba.RawRowView(0)
	best := floats.MaxIdx(p)

	out := &SinglePrediction{
		Label:         m.encoder.Classes[best],
		Confidence:    p[best],
		Probabilities: make(map[string]float64, len(p)),
	}
	for i, label := range m.encoder.Classes {
		out.Probabilities[label] = p[i]
	}
	return out, nil
}

// SubModelPredict returns each sub-model's decoded predictions, keyed by
// sub-model name.
func (m *Model) SubModelPredict(X mat.Matrix) (_ map[string][]string, err error) {
	defer ojtErrors.Recover(&err, "EnsembleModel.SubModelPredict")
	if err := m.checkInput(X, "SubModelPredict"); err != nil {
		return nil, err
	}
	probas, err := m.subProba(X)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]string, len(probas))
	for i, p := range probas {
		labels, err := m.decode(p)
		if err != nil {
			return nil, err
		}
		out[SubModels[i]] = labels
	}
	return out, nil
}

// FeatureImportances returns the forest importances in feature-set order.
func (m *Model) FeatureImportances() ([]FeatureImportance, error) {
	if !m.state.IsFitted() {
		return nil, ojtErrors.NewNotFittedError("EnsembleModel", "FeatureImportances")
	}
	imp := m.rf.FeatureImportances()
	out := make([]FeatureImportance, len(m.featureNames))
	for i, name := range m.featureNames {
		out[i] = FeatureImportance{Name: name, Importance: imp[i]}
	}
	return out, nil
}

// IsFitted reports whether Fit or Load completed.
func (m *Model) IsFitted() bool { return m.state.IsFitted() }

// FeatureNames returns a copy of the feature set.
func (m *Model) FeatureNames() []string {
	return append([]string(nil), m.featureNames...)
}

// Classes returns the labels in class-column order.
func (m *Model) Classes() []string {
	if m.encoder == nil {
		return nil
	}
	return append([]string(nil), m.encoder.Classes...)
}

// Weights returns the blend weights.
func (m *Model) Weights() Weights { return m.weights }
