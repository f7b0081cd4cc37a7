// Package metrics provides the classification metrics used to evaluate the
// ensemble and its sub-models. Labels are the decoded class strings, so the
// same functions score the blended prediction and each sub-model alike.
package metrics

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"

	ojtErrors "github.com/jrmsu/ojtinsight/pkg/errors"
)

func checkPair(op string, yTrue, yPred []string) error {
	if len(yTrue) == 0 {
		return ojtErrors.NewValueError(op, "input labels cannot be empty")
	}
	if len(yTrue) != len(yPred) {
		return ojtErrors.NewDimensionError(op, len(yTrue), len(yPred), 0)
	}
	return nil
}

// ClassificationError calculates the classification error rate.
//
// The error rate is the fraction of incorrect predictions.
//
// Example:
//
//	rate, err := ClassificationError(
//		[]string{"Good", "Good", "Poor"},
//		[]string{"Good", "Poor", "Poor"},
//	)
//	fmt.Printf("Error Rate: %.3f\n", rate) // Error Rate: 0.333
func ClassificationError(yTrue, yPred []string) (float64, error) {
	if err := checkPair("ClassificationError", yTrue, yPred); err != nil {
		return 0, err
	}

	errors := 0
	for i := range yTrue {
		if yTrue[i] != yPred[i] {
			errors++
		}
	}
	return float64(errors) / float64(len(yTrue)), nil
}

// Accuracy calculates the fraction of correct predictions.
func Accuracy(yTrue, yPred []string) (float64, error) {
	errorRate, err := ClassificationError(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return 1.0 - errorRate, nil
}

// Labels returns the sorted union of the labels in yTrue and yPred.
func Labels(yTrue, yPred []string) []string {
	seen := make(map[string]bool)
	for _, l := range yTrue {
		seen[l] = true
	}
	for _, l := range yPred {
		seen[l] = true
	}
	out := make([]string, 0, len(seen))
	for l := range seen {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// ConfusionMatrix counts predictions per (true, predicted) pair. Row i holds
// the samples whose true label is labels[i]; column j the ones predicted as
// labels[j]. When labels is nil the sorted union of both inputs is used.
// Pairs involving a label outside labels are ignored.
func ConfusionMatrix(yTrue, yPred, labels []string) (*mat.Dense, []string, error) {
	if err := checkPair("ConfusionMatrix", yTrue, yPred); err != nil {
		return nil, nil, err
	}
	if labels == nil {
		labels = Labels(yTrue, yPred)
	}
	if len(labels) == 0 {
		return nil, nil, ojtErrors.NewValueError("ConfusionMatrix", "labels cannot be empty")
	}

	index := make(map[string]int, len(labels))
	for i, l := range labels {
		if _, dup := index[l]; dup {
			return nil, nil, ojtErrors.NewValueError("ConfusionMatrix",
				fmt.Sprintf("duplicate label %q", l))
		}
		index[l] = i
	}

	cm := mat.NewDense(len(labels), len(labels), nil)
	for i := range yTrue {
		ti, ok1 := index[yTrue[i]]
		pi, ok2 := index[yPred[i]]
		if ok1 && ok2 {
			cm.Set(ti, pi, cm.At(ti, pi)+1)
		}
	}
	return cm, append([]string(nil), labels...), nil
}

// ClassScores holds the per-class precision, recall and F1 with the number of
// true samples of the class (support).
type ClassScores struct {
	Label     string  `json:"label"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// Report is a per-class breakdown plus support-weighted averages.
type Report struct {
	Classes  []ClassScores `json:"classes"`
	Accuracy float64       `json:"accuracy"`
	Weighted ClassScores   `json:"weighted_avg"`
	Macro    ClassScores   `json:"macro_avg"`
}

// ClassificationReport computes precision, recall and F1 per class together
// with the macro and support-weighted averages. A score whose denominator is
// zero is reported as 0.
func ClassificationReport(yTrue, yPred []string) (*Report, error) {
	cm, labels, err := ConfusionMatrix(yTrue, yPred, nil)
	if err != nil {
		return nil, err
	}
	k := len(labels)
	acc, _ := Accuracy(yTrue, yPred)

	r := &Report{Accuracy: acc, Classes: make([]ClassScores, k)}
	total := 0
	for i := 0; i < k; i++ {
		tp := cm.At(i, i)
		predicted, actual := 0.0, 0.0
		for j := 0; j < k; j++ {
			predicted += cm.At(j, i)
			actual += cm.At(i, j)
		}
		p := safeDiv(tp, predicted)
		rc := safeDiv(tp, actual)
		cs := ClassScores{
			Label:     labels[i],
			Precision: p,
			Recall:    rc,
			F1:        safeDiv(2*p*rc, p+rc),
			Support:   int(actual),
		}
		r.Classes[i] = cs
		total += cs.Support

		r.Macro.Precision += cs.Precision / float64(k)
		r.Macro.Recall += cs.Recall / float64(k)
		r.Macro.F1 += cs.F1 / float64(k)

		w := actual
		r.Weighted.Precision += w * cs.Precision
		r.Weighted.Recall += w * cs.Recall
		r.Weighted.F1 += w * cs.F1
	}

	r.Macro.Label, r.Macro.Support = "macro avg", total
	r.Weighted.Label, r.Weighted.Support = "weighted avg", total
	r.Weighted.Precision /= float64(total)
	r.Weighted.Recall /= float64(total)
	r.Weighted.F1 /= float64(total)
	return r, nil
}

// PrecisionRecallF1 returns the support-weighted precision, recall and F1.
func PrecisionRecallF1(yTrue, yPred []string) (precision, recall, f1 float64, err error) {
	r, err := ClassificationReport(yTrue, yPred)
	if err != nil {
		return 0, 0, 0, err
	}
	return r.Weighted.Precision, r.Weighted.Recall, r.Weighted.F1, nil
}

// String renders the report as a fixed-width table.
func (r *Report) String() string {
	var b strings.Builder
	width := len("weighted avg")
	for _, c := range r.Classes {
		if len(c.Label) > width {
			width = len(c.Label)
		}
	}

	fmt.Fprintf(&b, "%*s %9s %9s %9s %9s\n", width, "", "precision", "recall", "f1-score", "support")
	b.WriteString("\n")
	for _, c := range r.Classes {
		fmt.Fprintf(&b, "%*s %9.2f %9.2f %9.2f %9d\n", width, c.Label, c.Precision, c.Recall, c.F1, c.Support)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "%*s %9s %9s %9.2f %9d\n", width, "accuracy", "", "", r.Accuracy, r.Weighted.Support)
	for _, c := range []ClassScores{r.Macro, r.Weighted} {
		fmt.Fprintf(&b, "%*s %9.2f %9.2f %9.2f %9d\n", width, c.Label, c.Precision, c.Recall, c.F1, c.Support)
	}
	return b.String()
}

// LogLoss calculates the multiclass cross-entropy of proba against yTrue.
// Columns of proba follow classes. Probabilities are clipped to
// [1e-15, 1-1e-15] before taking the logarithm.
func LogLoss(yTrue []string, proba mat.Matrix, classes []string) (float64, error) {
	if proba == nil {
		return 0, ojtErrors.NewValueError("LogLoss", "probabilities cannot be nil")
	}
	n, k := proba.Dims()
	if len(yTrue) == 0 {
		return 0, ojtErrors.NewValueError("LogLoss", "input labels cannot be empty")
	}
	if n != len(yTrue) {
		return 0, ojtErrors.NewDimensionError("LogLoss", len(yTrue), n, 0)
	}
	if k != len(classes) {
		return 0, ojtErrors.NewDimensionError("LogLoss", len(classes), k, 1)
	}

	index := make(map[string]int, k)
	for i, c := range classes {
		index[c] = i
	}

	const epsilon = 1e-15
	loss := 0.0
	for i, y := range yTrue {
		j, ok := index[y]
		if !ok {
			return 0, ojtErrors.NewValidationError("yTrue",
				fmt.Sprintf("label %q at index %d is not a known class", y, i), y)
		}
		p := math.Min(math.Max(proba.At(i, j), epsilon), 1-epsilon)
		loss -= math.Log(p)
	}
	return loss / float64(n), nil
}

func safeDiv(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}
