package model

import "gonum.org/v1/gonum/mat"

// Fitter is implemented by every estimator that learns from data.
type Fitter interface {
	IsFitted() bool
}

// Transformer learns a transformation from X and applies it.
type Transformer interface {
	Fitter
	Fit(X mat.Matrix) error
	Transform(X mat.Matrix) (mat.Matrix, error)
}

// Classifier fits integer-encoded class labels (0..k-1) stored in a column
// vector y.
type Classifier interface {
	Fitter
	Fit(X, y mat.Matrix) error
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// ProbabilisticClassifier also exposes class probabilities. Columns of the
// returned matrix follow the sorted order of the class codes seen in Fit and
// each row sums to 1.
type ProbabilisticClassifier interface {
	Classifier
	PredictProba(X mat.Matrix) (*mat.Dense, error)
	Classes() []int
}
