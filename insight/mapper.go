// Package insight serves performance predictions: it maps runtime student
// snapshots onto the trained feature set, runs the ensemble and attaches a
// risk tier to the predicted label.
package insight

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Snapshot keys sent by the backend.
const (
	DailyProgressScore    = "daily_progress_score"
	NarrativeScore        = "narrative_score"
	CoordEvalScore        = "coord_eval_score"
	PartnerEvalScore      = "partner_eval_score"
	AttendanceDaysPresent = "attendance_days_present"
)

// snapshotKeys translates trained feature names to snapshot keys. Both the
// long headers of the grading sheet and the short canonical names map to the
// same key.
var snapshotKeys = map[string]string{
	"Weekly Progress Report (Score)":                  DailyProgressScore,
	"Practicum Narrative Report (Score)":              NarrativeScore,
	"Practicum Coordinator Evaluation (Score)":        CoordEvalScore,
	"Practicum Partner Supervisor Evaluation (Score)": PartnerEvalScore,
	"Attendance (Days Present out of 25)":             AttendanceDaysPresent,

	"weekly_progress":        DailyProgressScore,
	"narrative_report":       NarrativeScore,
	"coordinator_evaluation": CoordEvalScore,
	"partner_evaluation":     PartnerEvalScore,
	"attendance":             AttendanceDaysPresent,
}

// SnapshotKey returns the snapshot key feeding a trained feature name.
func SnapshotKey(feature string) (string, bool) {
	k, ok := snapshotKeys[feature]
	return k, ok
}

// Sanitized is a numeric value with a flag telling whether it was replaced
// by the 0 default.
type Sanitized struct {
	Value     float64
	Defaulted bool
}

// SanitizeNumeric converts v to a finite float. Go numbers, json.Number and
// numeric strings are accepted; anything else, including bools, NaN and
// infinities, becomes 0 with Defaulted set.
func SanitizeNumeric(v any) Sanitized {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int8:
		f = float64(x)
	case int16:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	case uint:
		f = float64(x)
	case uint8:
		f = float64(x)
	case uint16:
		f = float64(x)
	case uint32:
		f = float64(x)
	case uint64:
		f = float64(x)
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return Sanitized{Defaulted: true}
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return Sanitized{Defaulted: true}
		}
		f = parsed
	default:
		return Sanitized{Defaulted: true}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Sanitized{Defaulted: true}
	}
	return Sanitized{Value: f}
}

// Mapping is a feature mapping built from a snapshot.
type Mapping struct {
	Values map[string]float64
	// Defaulted lists, in feature-set order, the names that got 0 because the
	// name has no snapshot key or the snapshot value was absent or unusable
	Defaulted []string
}

// BuildFeaturesFromSnapshot produces a value for every name in featureNames.
// It never fails.
func BuildFeaturesFromSnapshot(featureNames []string, snapshot map[string]any) Mapping {
	m := Mapping{Values: make(map[string]float64, len(featureNames))}
	for _, name := range featureNames {
		key, ok := snapshotKeys[name]
		if !ok {
			m.Values[name] = 0
			m.Defaulted = append(m.Defaulted, name)
			continue
		}
		s := SanitizeNumeric(snapshot[key])
		m.Values[name] = s.Value
		if s.Defaulted {
			m.Defaulted = append(m.Defaulted, name)
		}
	}
	return m
}
