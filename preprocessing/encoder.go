package preprocessing

import (
	"fmt"
	"sort"

	"github.com/jrmsu/ojtinsight/core/model"
	ojtErrors "github.com/jrmsu/ojtinsight/pkg/errors"
)

// LabelEncoder maps string class labels to integer codes 0..k-1. Classes are
// sorted lexicographically, so the code of a label does not depend on the
// order in which labels appear in the training data.
type LabelEncoder struct {
	model.BaseEstimator

	// Classes holds the distinct labels in sorted order
	Classes []string `json:"classes"`

	index map[string]int
}

// NewLabelEncoder returns an unfitted LabelEncoder.
//
// Example:
//
//	enc := preprocessing.NewLabelEncoder()
//	codes, err := enc.FitTransform([]string{"Good", "Excellent", "Good"})
//	// enc.Classes == []string{"Excellent", "Good"}, codes == []int{1, 0, 1}
func NewLabelEncoder() *LabelEncoder {
	e := &LabelEncoder{}
	e.ModelType = "LabelEncoder"
	return e
}

// Fit learns the sorted set of distinct labels.
func (e *LabelEncoder) Fit(labels []string) (err error) {
	defer ojtErrors.Recover(&err, "LabelEncoder.Fit")
	if len(labels) == 0 {
		return ojtErrors.NewModelError("LabelEncoder.Fit", "empty labels", ojtErrors.ErrEmptyData)
	}

	seen := make(map[string]bool)
	classes := make([]string, 0)
	for _, l := range labels {
		if !seen[l] {
			seen[l] = true
			classes = append(classes, l)
		}
	}
	sort.Strings(classes)

	e.Classes = classes
	e.buildIndex()
	e.SetFitted()
	return nil
}

// Transform encodes labels. An unknown label fails with ErrUnseenLabel.
func (e *LabelEncoder) Transform(labels []string) (_ []int, err error) {
	defer ojtErrors.Recover(&err, "LabelEncoder.Transform")
	if !e.IsFitted() {
		return nil, ojtErrors.NewNotFittedError("LabelEncoder", "Transform")
	}

	codes := make([]int, len(labels))
	for i, l := range labels {
		code, ok := e.index[l]
		if !ok {
			return nil, ojtErrors.Wrapf(ojtErrors.ErrUnseenLabel, "label %q", l)
		}
		codes[i] = code
	}
	return codes, nil
}

// FitTransform fits the encoder and encodes labels in one step.
func (e *LabelEncoder) FitTransform(labels []string) ([]int, error) {
	if err := e.Fit(labels); err != nil {
		return nil, err
	}
	return e.Transform(labels)
}

// InverseTransform decodes integer codes back to labels.
func (e *LabelEncoder) InverseTransform(codes []int) (_ []string, err error) {
	defer ojtErrors.Recover(&err, "LabelEncoder.InverseTransform")
	if !e.IsFitted() {
		return nil, ojtErrors.NewNotFittedError("LabelEncoder", "InverseTransform")
	}

	labels := make([]string, len(codes))
	for i, c := range codes {
		if c < 0 || c >= len(e.Classes) {
			return nil, ojtErrors.NewValueError("LabelEncoder.InverseTransform",
				fmt.Sprintf("code %d out of range [0, %d)", c, len(e.Classes)))
		}
		labels[i] = e.Classes[c]
	}
	return labels, nil
}

// Contains reports whether label was seen during Fit.
func (e *LabelEncoder) Contains(label string) bool {
	_, ok := e.index[label]
	return ok
}

// NClasses returns the number of classes.
func (e *LabelEncoder) NClasses() int {
	return len(e.Classes)
}

// Restore rebuilds the lookup index after Classes were decoded from an
// artifact and marks the encoder fitted.
func (e *LabelEncoder) Restore() error {
	if len(e.Classes) == 0 {
		return ojtErrors.NewValueError("LabelEncoder.Restore", "classes cannot be empty")
	}
	if !sort.StringsAreSorted(e.Classes) {
		return ojtErrors.NewValueError("LabelEncoder.Restore", "classes must be sorted")
	}
	e.buildIndex()
	if len(e.index) != len(e.Classes) {
		return ojtErrors.NewValueError("LabelEncoder.Restore", "classes must be distinct")
	}
	e.ModelType = "LabelEncoder"
	e.SetFitted()
	return nil
}

func (e *LabelEncoder) buildIndex() {
	e.index = make(map[string]int, len(e.Classes))
	for i, c := range e.Classes {
		e.index[c] = i
	}
}
