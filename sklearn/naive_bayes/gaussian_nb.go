// Package naive_bayes provides the Gaussian naive Bayes member of the ensemble.
package naive_bayes

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/jrmsu/ojtinsight/core/model"
	"github.com/jrmsu/ojtinsight/pkg/errors"
	"github.com/jrmsu/ojtinsight/pkg/log"
)

var globalProvider log.LoggerProvider

// GaussianNB implements the Gaussian Naive Bayes classifier for continuous
// features. Each feature is modeled per class as an independent normal
// distribution; priors are the class frequencies.
type GaussianNB struct {
	state  *model.StateManager
	logger log.Logger

	// Hyperparameters
	varSmoothing float64 // Fraction of the largest feature variance added to every variance

	// Learned parameters
	classes_    []int
	nClasses_   int
	classPrior_ []float64
	theta_      [][]float64 // per-class feature means
	var_        [][]float64 // per-class feature variances, smoothed
	epsilon_    float64
	nFeatures_  int
	classCount_ []float64

	mu sync.RWMutex
}

var _ model.ProbabilisticClassifier = (*GaussianNB)(nil)

// GaussianNBOption is a configuration option for GaussianNB
type GaussianNBOption func(*GaussianNB)

// WithVarSmoothing sets the variance smoothing fraction (default 1e-9).
func WithVarSmoothing(v float64) GaussianNBOption {
	return func(nb *GaussianNB) {
		nb.varSmoothing = v
	}
}

// NewGaussianNB creates a new Gaussian Naive Bayes classifier
func NewGaussianNB(options ...GaussianNBOption) *GaussianNB {
	nb := &GaussianNB{
		varSmoothing: 1e-9,
	}
	for _, opt := range options {
		opt(nb)
	}

	nb.state = model.NewStateManager()
	if globalProvider == nil {
		globalProvider = log.NewZerologProvider(log.ToLogLevel("info"))
	}
	nb.logger = globalProvider.GetLoggerWithName("GaussianNB").With(log.ModelNameKey, "GaussianNB")
	return nb
}

// Fit estimates per-class means, variances and priors.
func (nb *GaussianNB) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "GaussianNB.Fit")
	nb.mu.Lock()
	defer nb.mu.Unlock()

	nb.reset()
	if err := nb.validateInput(X, y); err != nil {
		return err
	}

	start := time.Now()
	rows, cols := X.Dims()
	nb.nFeatures_ = cols
	nb.extractClasses(y)
	if nb.nClasses_ < 2 {
		return errors.NewModelError("GaussianNB.Fit",
			fmt.Sprintf("got %d class", nb.nClasses_), errors.ErrSingleClass)
	}

	nb.logger.Info("Training started",
		log.OperationKey, log.OperationFit,
		log.PhaseKey, log.PhaseTraining,
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
	)

	// epsilon is relative to the largest per-feature variance of the whole X.
	col := make([]float64, rows)
	maxVar := 0.0
	for j := 0; j < cols; j++ {
		mat.Col(col, j, X)
		if v := stat.PopVariance(col, nil); v > maxVar {
			maxVar = v
		}
	}
	nb.epsilon_ = nb.varSmoothing * maxVar

	members := make([][]int, nb.nClasses_)
	for i := 0; i < rows; i++ {
		c := nb.getClassIndex(int(y.At(i, 0)))
		members[c] = append(members[c], i)
	}

	nb.theta_ = make([][]float64, nb.nClasses_)
	nb.var_ = make([][]float64, nb.nClasses_)
	nb.classCount_ = make([]float64, nb.nClasses_)
	nb.classPrior_ = make([]float64, nb.nClasses_)
	vals := make([]float64, 0, rows)
	for c, idx := range members {
		nb.classCount_[c] = float64(len(idx))
		nb.classPrior_[c] = float64(len(idx)) / float64(rows)
		nb.theta_[c] = make([]float64, cols)
		nb.var_[c] = make([]float64, cols)
		for j := 0; j < cols; j++ {
			vals = vals[:0]
			for _, i := range idx {
				vals = append(vals, X.At(i, j))
			}
			mean, variance := stat.PopMeanVariance(vals, nil)
			nb.theta_[c][j] = mean
			nb.var_[c][j] = variance + nb.epsilon_
		}
	}
	if err := nb.guardVariance(); err != nil {
		return err
	}

	nb.state.SetFitted()
	nb.state.SetDimensions(cols, rows)
	nb.logger.Info("Training completed",
		log.OperationKey, log.OperationFit,
		log.PhaseKey, log.PhaseTraining,
		log.DurationMsKey, time.Since(start).Milliseconds(),
		log.ClassesKey, nb.nClasses_,
	)
	return nil
}

// guardVariance replaces zero variances, which only occur when every feature
// is constant over the whole training set.
func (nb *GaussianNB) guardVariance() error {
	for c := range nb.var_ {
		for j, v := range nb.var_[c] {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return errors.NewValueError("GaussianNB.Fit", "non-finite variance")
			}
			if v <= 0 {
				nb.var_[c][j] = 1e-9
			}
		}
	}
	return nil
}

// Predict performs classification on samples in X
func (nb *GaussianNB) Predict(X mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "GaussianNB.Predict")
	logProba, err := nb.PredictLogProba(X)
	if err != nil {
		return nil, err
	}

	rows, _ := logProba.Dims()
	predictions := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		predictions.Set(i, 0, float64(nb.classes_[floats.MaxIdx(logProba.RawRowView(i))]))
	}
	return predictions, nil
}

// PredictProba returns probability estimates for samples in X
func (nb *GaussianNB) PredictProba(X mat.Matrix) (_ *mat.Dense, err error) {
	defer errors.Recover(&err, "GaussianNB.PredictProba")
	logProba, err := nb.PredictLogProba(X)
	if err != nil {
		return nil, err
	}

	rows, cols := logProba.Dims()
	proba := mat.NewDense(rows, cols, nil)
	proba.Apply(func(_, _ int, v float64) float64 { return math.Exp(v) }, logProba)

	// Re-normalize so rows sum to 1 despite exp rounding.
	for i := 0; i < rows; i++ {
		row := proba.RawRowView(i)
		floats.Scale(1.0/floats.Sum(row), row)
	}
	return proba, nil
}

// PredictLogProba returns normalized log probability estimates for samples in X
func (nb *GaussianNB) PredictLogProba(X mat.Matrix) (_ *mat.Dense, err error) {
	defer errors.Recover(&err, "GaussianNB.PredictLogProba")
	nb.mu.RLock()
	defer nb.mu.RUnlock()

	if !nb.state.IsFitted() {
		return nil, errors.NewNotFittedError("GaussianNB", "PredictLogProba")
	}

	rows, cols := X.Dims()
	if cols != nb.nFeatures_ {
		return nil, errors.NewDimensionError("GaussianNB.PredictLogProba", nb.nFeatures_, cols, 1)
	}

	logProba := mat.NewDense(rows, nb.nClasses_, nil)
	row := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(row, i, X)
		jll := logProba.RawRowView(i)
		for c := 0; c < nb.nClasses_; c++ {
			jll[c] = nb.jointLogLikelihood(c, row)
		}
		lse := floats.LogSumExp(jll)
		if math.IsInf(lse, -1) || math.IsNaN(lse) {
			// Every class likelihood underflowed; the priors are all that is left.
			for c := range jll {
				jll[c] = math.Log(nb.classPrior_[c])
			}
			lse = floats.LogSumExp(jll)
		}
		for c := range jll {
			jll[c] -= lse
		}
	}

	nb.logger.Debug("Prediction completed",
		log.OperationKey, log.OperationPredict,
		log.PredsKey, rows,
	)
	return logProba, nil
}

func (nb *GaussianNB) jointLogLikelihood(c int, x []float64) float64 {
	ll := math.Log(nb.classPrior_[c])
	for j, v := range x {
		variance := nb.var_[c][j]
		diff := v - nb.theta_[c][j]
		ll -= 0.5 * (math.Log(2*math.Pi*variance) + diff*diff/variance)
	}
	return ll
}

// Score returns the mean accuracy on the given test data and labels
func (nb *GaussianNB) Score(X, y mat.Matrix) (float64, error) {
	predictions, err := nb.Predict(X)
	if err != nil {
		return 0, err
	}

	rows, _ := y.Dims()
	correct := 0
	for i := 0; i < rows; i++ {
		if int(predictions.At(i, 0)) == int(y.At(i, 0)) {
			correct++
		}
	}
	return float64(correct) / float64(rows), nil
}

// IsFitted reports whether Fit or Import completed.
func (nb *GaussianNB) IsFitted() bool {
	return nb.state.IsFitted()
}

// Classes returns the class labels
func (nb *GaussianNB) Classes() []int {
	nb.mu.RLock()
	defer nb.mu.RUnlock()

	if nb.classes_ == nil {
		return nil
	}
	return append([]int(nil), nb.classes_...)
}

// Theta returns a copy of the per-class feature means.
func (nb *GaussianNB) Theta() [][]float64 {
	nb.mu.RLock()
	defer nb.mu.RUnlock()
	return copy2D(nb.theta_)
}

// Var returns a copy of the smoothed per-class feature variances.
func (nb *GaussianNB) Var() [][]float64 {
	nb.mu.RLock()
	defer nb.mu.RUnlock()
	return copy2D(nb.var_)
}

// GaussianNBParams is the persisted form of a fitted model.
type GaussianNBParams struct {
	VarSmoothing float64     `json:"var_smoothing"`
	Epsilon      float64     `json:"epsilon"`
	Classes      []int       `json:"classes"`
	ClassPrior   []float64   `json:"class_prior"`
	ClassCount   []float64   `json:"class_count"`
	Theta        [][]float64 `json:"theta"`
	Var          [][]float64 `json:"var"`
	NFeatures    int         `json:"n_features"`
}

// Export returns the fitted parameters.
func (nb *GaussianNB) Export() (*GaussianNBParams, error) {
	nb.mu.RLock()
	defer nb.mu.RUnlock()
	if !nb.state.IsFitted() {
		return nil, errors.NewNotFittedError("GaussianNB", "Export")
	}
	return &GaussianNBParams{
		VarSmoothing: nb.varSmoothing,
		Epsilon:      nb.epsilon_,
		Classes:      append([]int(nil), nb.classes_...),
		ClassPrior:   append([]float64(nil), nb.classPrior_...),
		ClassCount:   append([]float64(nil), nb.classCount_...),
		Theta:        copy2D(nb.theta_),
		Var:          copy2D(nb.var_),
		NFeatures:    nb.nFeatures_,
	}, nil
}

// Import restores a model exported by Export.
func (nb *GaussianNB) Import(p *GaussianNBParams) error {
	if p == nil {
		return errors.NewValueError("GaussianNB.Import", "params cannot be nil")
	}
	k := len(p.Classes)
	if k < 2 || len(p.ClassPrior) != k || len(p.Theta) != k || len(p.Var) != k {
		return errors.NewValueError("GaussianNB.Import", "inconsistent class dimensions")
	}
	for c := 0; c < k; c++ {
		if len(p.Theta[c]) != p.NFeatures || len(p.Var[c]) != p.NFeatures {
			return errors.NewDimensionError("GaussianNB.Import", p.NFeatures, len(p.Theta[c]), 1)
		}
		for _, v := range p.Var[c] {
			if v <= 0 {
				return errors.NewValueError("GaussianNB.Import", "variances must be positive")
			}
		}
	}

	nb.mu.Lock()
	defer nb.mu.Unlock()
	nb.reset()
	nb.varSmoothing = p.VarSmoothing
	nb.epsilon_ = p.Epsilon
	nb.classes_ = append([]int(nil), p.Classes...)
	nb.nClasses_ = k
	nb.classPrior_ = p.ClassPrior
	nb.classCount_ = p.ClassCount
	nb.theta_ = p.Theta
	nb.var_ = p.Var
	nb.nFeatures_ = p.NFeatures
	nb.state.SetDimensions(p.NFeatures, 0)
	nb.state.SetFitted()
	return nil
}

// validateInput validates the input data
func (nb *GaussianNB) validateInput(X, y mat.Matrix) error {
	xRows, xCols := X.Dims()
	yRows, yCols := y.Dims()

	if xRows == 0 || xCols == 0 {
		return errors.NewModelError("GaussianNB.Fit", "empty data", errors.ErrEmptyData)
	}
	if xRows != yRows {
		return errors.NewDimensionError("GaussianNB.Fit", xRows, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewValueError("GaussianNB.Fit",
			fmt.Sprintf("y must be a column vector: got shape (%d, %d)", yRows, yCols))
	}
	return nil
}

// extractClasses extracts sorted unique classes from y
func (nb *GaussianNB) extractClasses(y mat.Matrix) {
	rows, _ := y.Dims()
	classSet := make(map[int]bool)
	for i := 0; i < rows; i++ {
		classSet[int(y.At(i, 0))] = true
	}

	classes := make([]int, 0, len(classSet))
	for class := range classSet {
		classes = append(classes, class)
	}
	sort.Ints(classes)

	nb.classes_ = classes
	nb.nClasses_ = len(classes)
}

// getClassIndex returns the index of a class
func (nb *GaussianNB) getClassIndex(class int) int {
	for i, c := range nb.classes_ {
		if c == class {
			return i
		}
	}
	return -1
}

// reset resets the internal state
func (nb *GaussianNB) reset() {
	nb.classes_ = nil
	nb.nClasses_ = 0
	nb.classPrior_ = nil
	nb.classCount_ = nil
	nb.theta_ = nil
	nb.var_ = nil
	nb.epsilon_ = 0
	nb.nFeatures_ = 0
	nb.state.Reset()
}

func copy2D(src [][]float64) [][]float64 {
	if src == nil {
		return nil
	}
	out := make([][]float64, len(src))
	for i := range src {
		out[i] = append([]float64(nil), src[i]...)
	}
	return out
}
