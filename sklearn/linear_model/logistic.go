// Package linear_model provides the logistic regression member of the
// ensemble.
//
// LogisticRegression fits an L2-regularized model with gonum's L-BFGS
// optimizer: a sigmoid model for two classes and a multinomial (softmax)
// model for three or more, matching scikit-learn's lbfgs solver.
//
// Example usage:
//
//	lr := linear_model.NewLogisticRegression(
//		linear_model.WithLRC(1.0),
//		linear_model.WithLRMaxIter(1000),
//	)
//	if err := lr.Fit(XScaled, y); err != nil {
//		return err
//	}
//	proba, err := lr.PredictProba(XTestScaled)
package linear_model

import (
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/jrmsu/ojtinsight/core/model"
	ojtErrors "github.com/jrmsu/ojtinsight/pkg/errors"
	"github.com/jrmsu/ojtinsight/pkg/log"
)

const (
	binaryClassCount = 2
	epsilonSmall     = 1e-15
)

var globalProvider log.LoggerProvider

// LogisticRegression implements logistic regression for classification.
// After Fit it is read-only and safe for concurrent Predict calls.
type LogisticRegression struct {
	state  *model.StateManager
	logger log.Logger

	// Hyperparameters
	C            float64 // Inverse regularization strength
	fitIntercept bool
	maxIter      int
	tol          float64

	// Model parameters
	coef_      [][]float64 // n_classes x n_features, or 1 x n_features for binary
	intercept_ []float64
	classes_   []int
	nClasses_  int
	nFeatures_ int
	nIter_     int
}

var _ model.ProbabilisticClassifier = (*LogisticRegression)(nil)

// LogisticRegressionOption is a functional option for LogisticRegression
type LogisticRegressionOption func(*LogisticRegression)

// NewLogisticRegression creates a new LogisticRegression classifier with
// C=1, max_iter=100 and tol=1e-4.
func NewLogisticRegression(opts ...LogisticRegressionOption) *LogisticRegression {
	lr := &LogisticRegression{
		state:        model.NewStateManager(),
		C:            1.0,
		fitIntercept: true,
		maxIter:      100,
		tol:          1e-4,
	}
	for _, opt := range opts {
		opt(lr)
	}

	if globalProvider == nil {
		globalProvider = log.NewZerologProvider(log.ToLogLevel("info"))
	}
	lr.logger = globalProvider.GetLoggerWithName("LogisticRegression").With(
		log.ModelNameKey, "LogisticRegression",
	)
	return lr
}

// WithLRC sets the inverse regularization strength
func WithLRC(c float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.C = c
	}
}

// WithLogisticFitIntercept sets whether to fit intercept
func WithLogisticFitIntercept(fit bool) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.fitIntercept = fit
	}
}

// WithLRMaxIter sets the maximum number of L-BFGS iterations
func WithLRMaxIter(maxIter int) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.maxIter = maxIter
	}
}

// WithLRTol sets the gradient-norm tolerance for stopping
func WithLRTol(tol float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.tol = tol
	}
}

// stableSigmoid computes sigmoid(z) in a numerically stable way.
func stableSigmoid(z float64) float64 {
	if z >= 0 {
		ez := math.Exp(-z)
		return 1.0 / (1.0 + ez)
	}
	ez := math.Exp(z)
	return ez / (1.0 + ez)
}

// clampProbability clamps probability to avoid log(0).
func clampProbability(p float64) float64 {
	if p < epsilonSmall {
		return epsilonSmall
	}
	if p > 1-epsilonSmall {
		return 1 - epsilonSmall
	}
	return p
}

// Fit trains the model on X (n_samples x n_features) and integer class codes
// y (n_samples x 1).
//
// The objective is the mean negative log-likelihood plus ||W||^2 / (2*C*n),
// which has the same minimizer as scikit-learn's summed loss plus ||W||^2/(2C).
// Intercepts are not penalized.
//
// Errors:
//   - ErrEmptyData: if X is empty
//   - DimensionError: if X and y row counts differ
//   - ErrSingleClass: if y holds fewer than two classes
//   - ModelError: if the optimizer fails with non-finite parameters
func (lr *LogisticRegression) Fit(X, y mat.Matrix) (err error) {
	defer ojtErrors.Recover(&err, "LogisticRegression.Fit")

	startTime := time.Now()
	nSamples, nFeatures := X.Dims()
	yRows, yCols := y.Dims()

	if nSamples == 0 || nFeatures == 0 {
		return ojtErrors.NewModelError("LogisticRegression.Fit", "empty data", ojtErrors.ErrEmptyData)
	}
	if nSamples != yRows {
		return ojtErrors.NewDimensionError("LogisticRegression.Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return ojtErrors.NewValueError("LogisticRegression.Fit", "y must be a column vector")
	}
	if lr.C <= 0 {
		return ojtErrors.NewValueError("LogisticRegression.Fit", fmt.Sprintf("C must be > 0, got %v", lr.C))
	}

	lr.extractClasses(y)
	if lr.nClasses_ < binaryClassCount {
		return ojtErrors.NewModelError("LogisticRegression.Fit",
			fmt.Sprintf("got %d class", lr.nClasses_), ojtErrors.ErrSingleClass)
	}
	lr.nFeatures_ = nFeatures

	lr.logger.Info("Training started",
		log.OperationKey, log.OperationFit,
		log.PhaseKey, log.PhaseTraining,
		log.SamplesKey, nSamples,
		log.FeaturesKey, nFeatures,
		log.ClassesKey, lr.nClasses_,
	)

	xD := mat.DenseCopyOf(X)
	codes := lr.encodeTargets(y)

	if lr.nClasses_ == binaryClassCount {
		err = lr.fitBinaryLBFGS(xD, codes)
	} else {
		err = lr.fitMultinomial(xD, codes)
	}
	if err != nil {
		return err
	}

	lr.state.SetFitted()
	lr.state.SetDimensions(nFeatures, nSamples)

	lr.logger.Info("Training completed",
		log.OperationKey, log.OperationFit,
		log.PhaseKey, log.PhaseTraining,
		log.DurationMsKey, time.Since(startTime).Milliseconds(),
		"iterations", lr.nIter_,
	)
	return nil
}

// extractClasses identifies the sorted unique class labels
func (lr *LogisticRegression) extractClasses(y mat.Matrix) {
	rows, _ := y.Dims()
	classMap := make(map[int]bool)
	for i := range rows {
		classMap[int(y.At(i, 0))] = true
	}

	lr.classes_ = make([]int, 0, len(classMap))
	for class := range classMap {
		lr.classes_ = append(lr.classes_, class)
	}
	sort.Ints(lr.classes_)
	lr.nClasses_ = len(lr.classes_)
}

// encodeTargets maps each label to its index in classes_.
func (lr *LogisticRegression) encodeTargets(y mat.Matrix) []int {
	index := make(map[int]int, lr.nClasses_)
	for i, c := range lr.classes_ {
		index[c] = i
	}
	rows, _ := y.Dims()
	codes := make([]int, rows)
	for i := range rows {
		codes[i] = index[int(y.At(i, 0))]
	}
	return codes
}

// fitBinaryLBFGS fits the sigmoid model; classes_[1] is the positive class.
func (lr *LogisticRegression) fitBinaryLBFGS(xD *mat.Dense, codes []int) error {
	nSamples, nFeatures := xD.Dims()
	lambda := 1.0 / (lr.C * float64(nSamples))
	invN := 1.0 / float64(nSamples)

	prob := optimize.Problem{
		Func: func(theta []float64) float64 {
			w := theta[:nFeatures]
			b := lr.interceptOf(theta, nFeatures)
			loss := 0.0
			for i := range nSamples {
				p := clampProbability(stableSigmoid(floats.Dot(w, xD.RawRowView(i)) + b))
				if codes[i] == 1 {
					loss -= math.Log(p)
				} else {
					loss -= math.Log(1.0 - p)
				}
			}
			return loss*invN + 0.5*lambda*floats.Dot(w, w)
		},
		Grad: func(grad, theta []float64) {
			w := theta[:nFeatures]
			b := lr.interceptOf(theta, nFeatures)
			for j := range grad {
				grad[j] = 0
			}
			for i := range nSamples {
				row := xD.RawRowView(i)
				diff := stableSigmoid(floats.Dot(w, row)+b) - float64(codes[i])
				floats.AddScaled(grad[:nFeatures], diff, row)
				if lr.fitIntercept {
					grad[nFeatures] += diff
				}
			}
			floats.Scale(invN, grad)
			floats.AddScaled(grad[:nFeatures], lambda, w)
		},
	}

	theta, err := lr.minimize(prob, nFeatures+lr.interceptDim(1))
	if err != nil {
		return err
	}

	lr.coef_ = [][]float64{append([]float64(nil), theta[:nFeatures]...)}
	lr.intercept_ = []float64{lr.interceptOf(theta, nFeatures)}
	return nil
}

// fitMultinomial fits the softmax model with one weight row per class.
// theta is laid out as k blocks of [w_0..w_{d-1}] followed by k intercepts.
func (lr *LogisticRegression) fitMultinomial(xD *mat.Dense, codes []int) error {
	nSamples, nFeatures := xD.Dims()
	k := lr.nClasses_
	nW := k * nFeatures
	lambda := 1.0 / (lr.C * float64(nSamples))
	invN := 1.0 / float64(nSamples)

	scores := func(theta, row, out []float64) {
		for c := 0; c < k; c++ {
			s := floats.Dot(theta[c*nFeatures:(c+1)*nFeatures], row)
			if lr.fitIntercept {
				s += theta[nW+c]
			}
			out[c] = s
		}
	}

	prob := optimize.Problem{
		Func: func(theta []float64) float64 {
			z := make([]float64, k)
			loss := 0.0
			for i := range nSamples {
				scores(theta, xD.RawRowView(i), z)
				loss += floats.LogSumExp(z) - z[codes[i]]
			}
			w := theta[:nW]
			return loss*invN + 0.5*lambda*floats.Dot(w, w)
		},
		Grad: func(grad, theta []float64) {
			for j := range grad {
				grad[j] = 0
			}
			z := make([]float64, k)
			for i := range nSamples {
				row := xD.RawRowView(i)
				scores(theta, row, z)
				softmaxInPlace(z)
				z[codes[i]] -= 1.0
				for c := 0; c < k; c++ {
					floats.AddScaled(grad[c*nFeatures:(c+1)*nFeatures], z[c], row)
					if lr.fitIntercept {
						grad[nW+c] += z[c]
					}
				}
			}
			floats.Scale(invN, grad)
			floats.AddScaled(grad[:nW], lambda, theta[:nW])
		},
	}

	theta, err := lr.minimize(prob, nW+lr.interceptDim(k))
	if err != nil {
		return err
	}

	lr.coef_ = make([][]float64, k)
	lr.intercept_ = make([]float64, k)
	for c := 0; c < k; c++ {
		lr.coef_[c] = append([]float64(nil), theta[c*nFeatures:(c+1)*nFeatures]...)
		if lr.fitIntercept {
			lr.intercept_[c] = theta[nW+c]
		}
	}
	return nil
}

// minimize runs L-BFGS from the zero vector. Stopping at the iteration limit,
// or an optimizer failure that still leaves finite parameters, is reported as
// a ConvergenceWarning.
func (lr *LogisticRegression) minimize(prob optimize.Problem, dim int) ([]float64, error) {
	settings := optimize.Settings{
		GradientThreshold: lr.tol,
		MajorIterations:   lr.maxIter,
	}
	result, err := optimize.Minimize(prob, make([]float64, dim), &settings, &optimize.LBFGS{})
	if result == nil || !allFinite(result.X) {
		if err == nil {
			err = ojtErrors.New("non-finite parameters")
		}
		return nil, ojtErrors.NewModelError("LogisticRegression.Fit", "lbfgs optimization failed", err)
	}

	lr.nIter_ = result.Stats.MajorIterations
	switch {
	case err != nil:
		ojtErrors.Warn(ojtErrors.NewConvergenceWarning("lbfgs", lr.nIter_, err.Error()))
	case result.Status == optimize.IterationLimit:
		ojtErrors.Warn(ojtErrors.NewConvergenceWarning("lbfgs", lr.nIter_,
			"increase max_iter or scale the data"))
	}
	return result.X, nil
}

func (lr *LogisticRegression) interceptDim(k int) int {
	if lr.fitIntercept {
		return k
	}
	return 0
}

func (lr *LogisticRegression) interceptOf(theta []float64, nFeatures int) float64 {
	if lr.fitIntercept {
		return theta[nFeatures]
	}
	return 0
}

func softmaxInPlace(z []float64) {
	maxZ := floats.Max(z)
	sum := 0.0
	for i := range z {
		z[i] = math.Exp(z[i] - maxZ)
		sum += z[i]
	}
	floats.Scale(1.0/sum, z)
}

func allFinite(xs []float64) bool {
	for _, v := range xs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Predict returns the most probable class for each row of X.
func (lr *LogisticRegression) Predict(X mat.Matrix) (_ mat.Matrix, err error) {
	defer ojtErrors.Recover(&err, "LogisticRegression.Predict")
	proba, err := lr.PredictProba(X)
	if err != nil {
		return nil, err
	}

	nSamples, _ := proba.Dims()
	predictions := mat.NewDense(nSamples, 1, nil)
	for i := range nSamples {
		predictions.Set(i, 0, float64(lr.classes_[floats.MaxIdx(proba.RawRowView(i))]))
	}
	return predictions, nil
}

// PredictProba returns probability estimates for each class, with columns in
// sorted class order.
func (lr *LogisticRegression) PredictProba(X mat.Matrix) (_ *mat.Dense, err error) {
	defer ojtErrors.Recover(&err, "LogisticRegression.PredictProba")
	if !lr.state.IsFitted() {
		return nil, ojtErrors.NewNotFittedError("LogisticRegression", "PredictProba")
	}

	nSamples, nFeatures := X.Dims()
	if nFeatures != lr.nFeatures_ {
		return nil, ojtErrors.NewDimensionError("LogisticRegression.PredictProba", lr.nFeatures_, nFeatures, 1)
	}

	probas := mat.NewDense(nSamples, lr.nClasses_, nil)
	row := make([]float64, nFeatures)
	for i := range nSamples {
		mat.Row(row, i, X)
		if lr.nClasses_ == binaryClassCount {
			p1 := stableSigmoid(floats.Dot(lr.coef_[0], row) + lr.intercept_[0])
			probas.Set(i, 0, 1.0-p1)
			probas.Set(i, 1, p1)
			continue
		}
		z := probas.RawRowView(i)
		for c := 0; c < lr.nClasses_; c++ {
			z[c] = floats.Dot(lr.coef_[c], row) + lr.intercept_[c]
		}
		softmaxInPlace(z)
	}

	lr.logger.Debug("Prediction completed",
		log.OperationKey, log.OperationPredict,
		log.PredsKey, nSamples,
	)
	return probas, nil
}

// Score returns the mean accuracy on the given test data and labels
func (lr *LogisticRegression) Score(X, y mat.Matrix) float64 {
	predictions, err := lr.Predict(X)
	if err != nil {
		return 0.0
	}

	nSamples, _ := X.Dims()
	correct := 0
	for i := range nSamples {
		if predictions.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(nSamples)
}

// IsFitted reports whether Fit or Import completed.
func (lr *LogisticRegression) IsFitted() bool {
	return lr.state.IsFitted()
}

// Classes returns the sorted class codes seen in Fit.
func (lr *LogisticRegression) Classes() []int {
	return append([]int(nil), lr.classes_...)
}

// NIter returns the number of L-BFGS iterations of the last Fit.
func (lr *LogisticRegression) NIter() int {
	return lr.nIter_
}

// LogisticRegressionParams is the persisted form of a fitted model.
type LogisticRegressionParams struct {
	C            float64     `json:"C"`
	FitIntercept bool        `json:"fit_intercept"`
	MaxIter      int         `json:"max_iter"`
	Tol          float64     `json:"tol"`
	Coef         [][]float64 `json:"coef"`
	Intercept    []float64   `json:"intercept"`
	Classes      []int       `json:"classes"`
	NFeatures    int         `json:"n_features"`
	NIter        int         `json:"n_iter"`
}

// Export returns the fitted parameters.
func (lr *LogisticRegression) Export() (*LogisticRegressionParams, error) {
	if !lr.state.IsFitted() {
		return nil, ojtErrors.NewNotFittedError("LogisticRegression", "Export")
	}
	coef := make([][]float64, len(lr.coef_))
	for i := range lr.coef_ {
		coef[i] = append([]float64(nil), lr.coef_[i]...)
	}
	return &LogisticRegressionParams{
		C:            lr.C,
		FitIntercept: lr.fitIntercept,
		MaxIter:      lr.maxIter,
		Tol:          lr.tol,
		Coef:         coef,
		Intercept:    append([]float64(nil), lr.intercept_...),
		Classes:      lr.Classes(),
		NFeatures:    lr.nFeatures_,
		NIter:        lr.nIter_,
	}, nil
}

// Import restores a model exported by Export.
func (lr *LogisticRegression) Import(p *LogisticRegressionParams) error {
	if p == nil {
		return ojtErrors.NewValueError("LogisticRegression.Import", "params cannot be nil")
	}
	k := len(p.Classes)
	rows := k
	if k == binaryClassCount {
		rows = 1
	}
	if k < binaryClassCount || len(p.Coef) != rows || len(p.Intercept) != rows {
		return ojtErrors.NewValueError("LogisticRegression.Import",
			fmt.Sprintf("inconsistent shapes: classes=%d coef=%d intercept=%d", k, len(p.Coef), len(p.Intercept)))
	}
	for _, w := range p.Coef {
		if len(w) != p.NFeatures {
			return ojtErrors.NewDimensionError("LogisticRegression.Import", p.NFeatures, len(w), 1)
		}
	}

	lr.C = p.C
	lr.fitIntercept = p.FitIntercept
	lr.maxIter = p.MaxIter
	lr.tol = p.Tol
	lr.coef_ = p.Coef
	lr.intercept_ = p.Intercept
	lr.classes_ = append([]int(nil), p.Classes...)
	lr.nClasses_ = k
	lr.nFeatures_ = p.NFeatures
	lr.nIter_ = p.NIter
	lr.state.SetDimensions(p.NFeatures, 0)
	lr.state.SetFitted()
	return nil
}
