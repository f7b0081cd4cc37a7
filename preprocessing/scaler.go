// Package preprocessing provides the feature and label transformers used by
// the ensemble:
//
//   - StandardScaler: removes the mean and scales features to unit variance
//   - LabelEncoder: maps string class labels to sorted integer codes
//
// Both follow the Fit / Transform / FitTransform pattern and embed
// model.BaseEstimator for fitted-state tracking. Fitted statistics are frozen
// and persisted through model.WriteArtifact.
//
// Example usage:
//
//	scaler := preprocessing.NewStandardScaler(true, true)
//	err := scaler.Fit(trainingData)
//	if err != nil {
//		return err
//	}
//	scaledData, err := scaler.Transform(testData)
package preprocessing

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/jrmsu/ojtinsight/core/model"
	"github.com/jrmsu/ojtinsight/core/parallel"
	ojtErrors "github.com/jrmsu/ojtinsight/pkg/errors"
)

// minScale is the standard deviation below which a feature is treated as
// constant and left unscaled.
const minScale = 1e-8

// StandardScaler standardizes features to zero mean and unit variance using
// the population standard deviation.
type StandardScaler struct {
	model.BaseEstimator

	// Mean of each feature
	Mean []float64 `json:"mean"`

	// Scale is each feature's standard deviation, or 1 for constant features
	Scale []float64 `json:"scale"`

	// NFeatures is the number of features seen in Fit
	NFeatures int `json:"n_features"`

	// WithMean subtracts the mean (default: true)
	WithMean bool `json:"with_mean"`

	// WithStd divides by the standard deviation (default: true)
	WithStd bool `json:"with_std"`
}

var _ model.Transformer = (*StandardScaler)(nil)

// NewStandardScaler creates a new StandardScaler for feature standardization.
//
// Parameters:
//   - withMean: whether to center the data at zero by removing the mean
//   - withStd: whether to scale the data to unit variance
//
// Returns:
//   - *StandardScaler: A new StandardScaler instance ready for fitting
//
// Example:
//
//	scaler := preprocessing.NewStandardScaler(true, true)
//	err := scaler.Fit(XTrain)
//	XScaled, err := scaler.Transform(XTest)
func NewStandardScaler(withMean, withStd bool) *StandardScaler {
	s := &StandardScaler{
		WithMean: withMean,
		WithStd:  withStd,
	}
	s.ModelType = "StandardScaler"
	return s
}

// NewStandardScalerDefault creates a StandardScaler that both centers and scales.
func NewStandardScalerDefault() *StandardScaler {
	return NewStandardScaler(true, true)
}

// Fit computes the feature-wise mean and population standard deviation.
// A feature whose standard deviation is below 1e-8 gets a scale of 1.
//
// Errors:
//   - ErrEmptyData: if X has no rows or no columns
func (s *StandardScaler) Fit(X mat.Matrix) (err error) {
	defer ojtErrors.Recover(&err, "StandardScaler.Fit")
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return ojtErrors.NewModelError("StandardScaler.Fit", "empty data", ojtErrors.ErrEmptyData)
	}

	s.NFeatures = c
	s.Mean = make([]float64, c)
	s.Scale = make([]float64, c)

	for j := 0; j < c; j++ {
		if s.WithMean {
			sum := 0.0
			for i := 0; i < r; i++ {
				sum += X.At(i, j)
			}
			s.Mean[j] = sum / float64(r)
		}

		s.Scale[j] = 1.0
		if !s.WithStd {
			continue
		}
		// The deviation is always taken around the true column mean, even
		// when centering is disabled.
		mean := s.Mean[j]
		if !s.WithMean {
			sum := 0.0
			for i := 0; i < r; i++ {
				sum += X.At(i, j)
			}
			mean = sum / float64(r)
		}
		sumSquares := 0.0
		for i := 0; i < r; i++ {
			diff := X.At(i, j) - mean
			sumSquares += diff * diff
		}
		if std := math.Sqrt(sumSquares / float64(r)); std >= minScale {
			s.Scale[j] = std
		}
	}

	s.SetFitted()
	s.LogDebug("Scaler fitted", "samples", r, "features", c)
	return nil
}

// Transform applies X_scaled = (X - mean) / scale with the fitted statistics.
//
// Errors:
//   - NotFittedError: if the scaler hasn't been fitted yet
//   - DimensionError: if X doesn't match the number of features from training
func (s *StandardScaler) Transform(X mat.Matrix) (_ mat.Matrix, err error) {
	defer ojtErrors.Recover(&err, "StandardScaler.Transform")
	if !s.IsFitted() {
		return nil, ojtErrors.NewNotFittedError("StandardScaler", "Transform")
	}

	r, c := X.Dims()
	if c != s.NFeatures {
		return nil, ojtErrors.NewDimensionError("StandardScaler.Transform", s.NFeatures, c, 1)
	}

	result := mat.NewDense(r, c, nil)
	parallel.ParallelizeWithThreshold(r, parallel.DefaultThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			for j := 0; j < c; j++ {
				result.Set(i, j, (X.At(i, j)-s.Mean[j])/s.Scale[j])
			}
		}
	})

	return result, nil
}

// FitTransform fits the scaler and transforms the training data in one step.
func (s *StandardScaler) FitTransform(X mat.Matrix) (_ mat.Matrix, err error) {
	defer ojtErrors.Recover(&err, "StandardScaler.FitTransform")
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// InverseTransform maps standardized data back: X = X_scaled * scale + mean.
func (s *StandardScaler) InverseTransform(X mat.Matrix) (_ mat.Matrix, err error) {
	defer ojtErrors.Recover(&err, "StandardScaler.InverseTransform")
	if !s.IsFitted() {
		return nil, ojtErrors.NewNotFittedError("StandardScaler", "InverseTransform")
	}

	r, c := X.Dims()
	if c != s.NFeatures {
		return nil, ojtErrors.NewDimensionError("StandardScaler.InverseTransform", s.NFeatures, c, 1)
	}

	result := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			result.Set(i, j, X.At(i, j)*s.Scale[j]+s.Mean[j])
		}
	}
	return result, nil
}

// Restore validates persisted statistics and marks the scaler fitted.
func (s *StandardScaler) Restore() error {
	if s.NFeatures == 0 || len(s.Mean) != s.NFeatures || len(s.Scale) != s.NFeatures {
		return ojtErrors.NewValueError("StandardScaler.Restore",
			fmt.Sprintf("inconsistent statistics: n_features=%d mean=%d scale=%d",
				s.NFeatures, len(s.Mean), len(s.Scale)))
	}
	for j, v := range s.Scale {
		if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return ojtErrors.NewValueError("StandardScaler.Restore",
				fmt.Sprintf("invalid scale %v for feature %d", v, j))
		}
	}
	s.ModelType = "StandardScaler"
	s.SetFitted()
	return nil
}

// String returns a short description of the scaler.
func (s *StandardScaler) String() string {
	if !s.IsFitted() {
		return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t)", s.WithMean, s.WithStd)
	}
	return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t, n_features=%d)",
		s.WithMean, s.WithStd, s.NFeatures)
}
