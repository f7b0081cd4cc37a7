package features

import (
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	ojtErrors "github.com/jrmsu/ojtinsight/pkg/errors"
)

// Derived feature names, in the order they are appended.
const (
	OverallAverage         = "overall_average"
	PerformanceConsistency = "performance_consistency"
	ProgressEvalRatio      = "progress_eval_ratio"
	MinScore               = "min_score"
	MaxScore               = "max_score"
	ScoreRange             = "score_range"
)

var derivedOrder = []string{
	OverallAverage, PerformanceConsistency, ProgressEvalRatio, MinScore, MaxScore, ScoreRange,
}

const ratioEpsilon = 1e-8

// Engineer derives aggregate features from the base features of a row.
// Aggregates need at least two base features; the progress/evaluation ratio
// additionally needs a base feature whose name contains "progress" and one
// whose name contains "eval".
type Engineer struct {
	Base     []string `json:"base"`
	Derived  []string `json:"derived"`
	Progress []int    `json:"progress"`
	Eval     []int    `json:"eval"`
}

// NewEngineer decides which derived features the base set supports.
func NewEngineer(base []string) *Engineer {
	e := &Engineer{Base: append([]string(nil), base...)}
	for i, name := range base {
		lower := strings.ToLower(name)
		if strings.Contains(lower, "progress") {
			e.Progress = append(e.Progress, i)
		}
		if strings.Contains(lower, "eval") {
			e.Eval = append(e.Eval, i)
		}
	}

	if len(base) < 2 {
		return e
	}
	e.Derived = []string{OverallAverage, PerformanceConsistency}
	if len(e.Progress) > 0 && len(e.Eval) > 0 {
		e.Derived = append(e.Derived, ProgressEvalRatio)
	}
	e.Derived = append(e.Derived, MinScore, MaxScore, ScoreRange)
	return e
}

// EngineerFromFeatureSet rebuilds an Engineer from a trained feature set by
// treating every name that is not a derived name as a base feature.
func EngineerFromFeatureSet(names []string) *Engineer {
	var base []string
	for _, n := range names {
		if !IsDerived(n) {
			base = append(base, n)
		}
	}
	return NewEngineer(base)
}

// IsDerived reports whether name is one of the derived feature names.
func IsDerived(name string) bool {
	return equalsAny(name, derivedOrder)
}

// Names returns the base names followed by the derived names.
func (e *Engineer) Names() []string {
	out := make([]string, 0, len(e.Base)+len(e.Derived))
	out = append(out, e.Base...)
	return append(out, e.Derived...)
}

// Extend returns base followed by the derived values. base must hold one
// value per base feature.
func (e *Engineer) Extend(base []float64) []float64 {
	out := make([]float64, 0, len(base)+len(e.Derived))
	out = append(out, base...)
	for _, name := range e.Derived {
		out = append(out, e.compute(name, base))
	}
	return out
}

func (e *Engineer) compute(name string, base []float64) float64 {
	switch name {
	case OverallAverage:
		return stat.Mean(base, nil)
	case PerformanceConsistency:
		return stat.StdDev(base, nil)
	case ProgressEvalRatio:
		return groupMean(base, e.Progress) / (groupMean(base, e.Eval) + ratioEpsilon)
	case MinScore:
		return floats.Min(base)
	case MaxScore:
		return floats.Max(base)
	case ScoreRange:
		return floats.Max(base) - floats.Min(base)
	}
	return math.NaN()
}

func groupMean(values []float64, idx []int) float64 {
	sum := 0.0
	for _, i := range idx {
		sum += values[i]
	}
	return sum / float64(len(idx))
}

// Row recomputes the derived features of a single feature mapping. The
// returned map is a copy of values with every derived entry overwritten.
func (e *Engineer) Row(values map[string]float64) (map[string]float64, error) {
	base := make([]float64, len(e.Base))
	for i, name := range e.Base {
		v, ok := values[name]
		if !ok {
			return nil, ojtErrors.Wrapf(ojtErrors.ErrMissingFeature, "base feature %q", name)
		}
		base[i] = v
	}

	out := make(map[string]float64, len(values)+len(e.Derived))
	for k, v := range values {
		out[k] = v
	}
	full := e.Extend(base)
	for i, name := range e.Derived {
		out[name] = full[len(e.Base)+i]
	}
	return out, nil
}
