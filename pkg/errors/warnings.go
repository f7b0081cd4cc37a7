package errors

import (
	"fmt"

	"github.com/jrmsu/ojtinsight/pkg/log"
)

// ConvergenceWarning is emitted when an iterative solver stops before
// reaching its tolerance but still produced usable parameters.
type ConvergenceWarning struct {
	Algorithm  string
	Iterations int
	Message    string
}

// NewConvergenceWarning creates a ConvergenceWarning.
func NewConvergenceWarning(algorithm string, iterations int, message string) *ConvergenceWarning {
	return &ConvergenceWarning{Algorithm: algorithm, Iterations: iterations, Message: message}
}

func (w *ConvergenceWarning) Error() string {
	return fmt.Sprintf("%s: %s failed to converge after %d iterations: %s",
		prefix, w.Algorithm, w.Iterations, w.Message)
}

// DataWarning flags recoverable data issues, such as unseen labels that
// were passed through unencoded.
type DataWarning struct {
	Op      string
	Message string
}

// NewDataWarning creates a DataWarning.
func NewDataWarning(op, message string) *DataWarning {
	return &DataWarning{Op: op, Message: message}
}

func (w *DataWarning) Error() string {
	return fmt.Sprintf("%s: %s: %s", prefix, w.Op, w.Message)
}

// Warn logs a warning through the global logger. Warnings never stop execution.
func Warn(w error) {
	if w == nil {
		return
	}
	log.GetLoggerWithName("warnings").Warn(w.Error(), "warning_type", fmt.Sprintf("%T", w))
}
