// Package errors defines the error taxonomy shared by every package in
// ojtinsight.
//
// Errors are built on github.com/cockroachdb/errors so that wrapped errors
// carry stack traces (print them with "%+v") while staying compatible with
// the standard library's errors.Is and errors.As.
//
// The taxonomy has three layers:
//
//   - Typed errors that carry structured context: NotFittedError,
//     DimensionError, ValueError, ValidationError and ModelError.
//   - Sentinel errors for conditions callers branch on, such as
//     ErrModelsNotLoaded (a configuration error) or ErrUnseenCategory.
//   - Warnings, which are logged instead of returned (see Warn).
//
// Example:
//
//	if err := m.Fit(X, labels, names); err != nil {
//		if errors.Is(err, errors.ErrSingleClass) {
//			// need more than one class in the training data
//		}
//	}
package errors

import (
	"fmt"
	"math"

	"github.com/cockroachdb/errors"
)

const prefix = "ojt"

// Sentinel errors.
var (
	// ErrEmptyData is returned when an operation receives no samples or no columns.
	ErrEmptyData = errors.New("empty data")

	// ErrNotImplemented marks code paths that are intentionally unsupported.
	ErrNotImplemented = errors.New("not implemented")

	// ErrNotFitted is matched by every NotFittedError.
	ErrNotFitted = errors.New("model is not fitted")

	// ErrModelsNotLoaded is the configuration error raised by inference on a
	// model that was never fitted or loaded. NotFittedError matches it too.
	ErrModelsNotLoaded = errors.New("models not loaded")

	// ErrTargetUndetectable means no target column could be identified.
	ErrTargetUndetectable = errors.New("could not detect target column")

	// ErrNoFeatures means no feature column could be identified.
	ErrNoFeatures = errors.New("could not detect feature columns")

	// ErrUnseenCategory is raised when a categorical value was not seen at fit time.
	ErrUnseenCategory = errors.New("unseen category")

	// ErrUnseenLabel is raised when a label was not seen by the label encoder.
	ErrUnseenLabel = errors.New("unseen label")

	// ErrMissingFeature is raised when a feature mapping lacks a trained feature name.
	ErrMissingFeature = errors.New("missing feature")

	// ErrSingleClass is raised when training labels contain fewer than two classes.
	ErrSingleClass = errors.New("need at least two classes")

	// ErrPanic marks errors recovered from a panic by Recover.
	ErrPanic = errors.New("panic recovered")
)

// NotFittedError is returned when Predict, Transform or similar methods are
// called before the estimator was fitted.
type NotFittedError struct {
	ModelName string
	Method    string
}

// NewNotFittedError creates a NotFittedError for model and method.
func NewNotFittedError(modelName, method string) error {
	return &NotFittedError{ModelName: modelName, Method: method}
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("%s: %s: this %s instance is not fitted yet; call Fit before %s",
		prefix, e.ModelName, e.ModelName, e.Method)
}

// Is reports whether target is ErrNotFitted or ErrModelsNotLoaded.
func (e *NotFittedError) Is(target error) bool {
	return target == ErrNotFitted || target == ErrModelsNotLoaded
}

// DimensionError describes a shape mismatch along an axis
// (0 for rows, 1 for columns).
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int
}

// NewDimensionError creates a DimensionError.
func NewDimensionError(op string, expected, got, axis int) error {
	return &DimensionError{Op: op, Expected: expected, Got: got, Axis: axis}
}

func (e *DimensionError) Error() string {
	axis := "columns"
	if e.Axis == 0 {
		axis = "rows"
	}
	return fmt.Sprintf("%s: %s: dimension mismatch: expected %d %s, got %d",
		prefix, e.Op, e.Expected, axis, e.Got)
}

// ValueError reports an invalid argument value.
type ValueError struct {
	Op      string
	Message string
}

// NewValueError creates a ValueError.
func NewValueError(op, message string) error {
	return &ValueError{Op: op, Message: message}
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("%s: %s: %s", prefix, e.Op, e.Message)
}

// ValidationError reports a field that failed validation.
type ValidationError struct {
	Field   string
	Message string
	Value   interface{}
}

// NewValidationError creates a ValidationError.
func NewValidationError(field, message string, value interface{}) error {
	return &ValidationError{Field: field, Message: message, Value: value}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: invalid %s: %s (got %v)", prefix, e.Field, e.Message, e.Value)
}

// ModelError wraps an underlying cause with the failing operation.
type ModelError struct {
	Op      string
	Message string
	Err     error
}

// NewModelError creates a ModelError wrapping err.
func NewModelError(op, message string, err error) error {
	return &ModelError{Op: op, Message: message, Err: err}
}

func (e *ModelError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s: %s", prefix, e.Op, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s: %v", prefix, e.Op, e.Message, e.Err)
}

// Unwrap returns the wrapped cause.
func (e *ModelError) Unwrap() error {
	return e.Err
}

// CheckScalar returns a ValueError when v is NaN or infinite.
func CheckScalar(op string, v float64) error {
	if math.IsNaN(v) {
		return NewValueError(op, "value is NaN")
	}
	if math.IsInf(v, 0) {
		return NewValueError(op, "value is infinite")
	}
	return nil
}

// Recover converts a panic in the calling function into an error stored in
// *errp. Use it as the first deferred call of exported methods:
//
//	func (m *Model) Fit(X mat.Matrix) (err error) {
//		defer errors.Recover(&err, "Model.Fit")
//		...
//	}
func Recover(errp *error, op string) {
	if r := recover(); r != nil {
		var cause error
		switch v := r.(type) {
		case error:
			cause = v
		default:
			cause = errors.Newf("%v", v)
		}
		*errp = errors.Mark(errors.Wrapf(cause, "%s: %s: panic", prefix, op), ErrPanic)
	}
}

// New returns an error with a stack trace.
func New(msg string) error { return errors.New(msg) }

// Newf formats an error with a stack trace.
func Newf(format string, args ...interface{}) error { return errors.Newf(format, args...) }

// Wrap annotates err with msg. It returns nil when err is nil.
func Wrap(err error, msg string) error { return errors.Wrap(err, msg) }

// Wrapf annotates err with a formatted message. It returns nil when err is nil.
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// Is is errors.Is.
func Is(err, target error) bool { return errors.Is(err, target) }

// As is errors.As.
func As(err error, target interface{}) bool { return errors.As(err, target) }
