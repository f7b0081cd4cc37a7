// Package model provides the core abstractions shared by every estimator in
// ojtinsight.
//
// It defines:
//
//   - BaseEstimator: fitted-state tracking and logging for transformers such
//     as StandardScaler and LabelEncoder
//   - StateManager: a thread-safe fitted flag plus input dimensions, embedded
//     by the classifiers
//   - Classifier interfaces implemented by LogisticRegression,
//     RandomForestClassifier and GaussianNB
//   - Artifact: the versioned JSON envelope every trained component is
//     persisted in
//
// Example usage:
//
//	type MyModel struct {
//		model.BaseEstimator
//		// model-specific fields
//	}
//
//	func (m *MyModel) Fit(X mat.Matrix) error {
//		// training logic
//		m.SetFitted()
//		return nil
//	}
package model

import (
	"github.com/jrmsu/ojtinsight/pkg/log"
)

// EstimatorState represents the learning state of a model
type EstimatorState int

const (
	// NotFitted indicates the model is not yet trained
	NotFitted EstimatorState = iota
	// Fitted indicates the model has been trained
	Fitted
)

// BaseEstimator is embedded by transformers. It is not safe for concurrent
// Fit calls; concurrent reads after Fit are fine.
type BaseEstimator struct {
	// State holds the model's learning state. Exported so it survives JSON
	// persistence.
	State EstimatorState `json:"state"`

	// ModelType identifies the type of model
	ModelType string `json:"model_type"`

	logger log.Logger
}

// IsFitted returns whether the model has been fitted with training data.
//
// Example:
//
//	if !scaler.IsFitted() {
//	    if err := scaler.Fit(X); err != nil {
//	        return err
//	    }
//	}
func (e *BaseEstimator) IsFitted() bool {
	return e.State == Fitted
}

// SetFitted marks the estimator as fitted. Called by model implementations at
// the end of a successful Fit.
func (e *BaseEstimator) SetFitted() {
	e.State = Fitted
}

// Reset returns the estimator to its initial untrained state.
func (e *BaseEstimator) Reset() {
	e.State = NotFitted
}

// Logger returns a logger named after ModelType, created on first use.
func (e *BaseEstimator) Logger() log.Logger {
	if e.logger == nil {
		name := e.ModelType
		if name == "" {
			name = "estimator"
		}
		e.logger = log.GetLoggerWithName(name)
	}
	return e.logger
}

// LogDebug logs a debug-level message.
func (e *BaseEstimator) LogDebug(msg string, fields ...interface{}) {
	e.Logger().Debug(msg, fields...)
}
