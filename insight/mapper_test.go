package insight

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

var canonical = []string{"weekly_progress", "narrative_report", "coordinator_evaluation", "partner_evaluation", "attendance"}

func TestBuildFeaturesFromSnapshotCanonical(t *testing.T) {
	snapshot := map[string]any{
		"daily_progress_score":    82,
		"narrative_score":         85,
		"coord_eval_score":        88,
		"partner_eval_score":      90,
		"attendance_days_present": 18,
	}
	m := BuildFeaturesFromSnapshot(canonical, snapshot)

	assert.Equal(t, map[string]float64{
		"weekly_progress":        82,
		"narrative_report":       85,
		"coordinator_evaluation": 88,
		"partner_evaluation":     90,
		"attendance":             18,
	}, m.Values)
	assert.Empty(t, m.Defaulted)
}

func TestBuildFeaturesFromSnapshotLongNames(t *testing.T) {
	names := []string{
		"Weekly Progress Report (Score)",
		"Attendance (Days Present out of 25)",
		"overall_average",
		"Practicum Narrative Report (Score)",
	}
	m := BuildFeaturesFromSnapshot(names, map[string]any{
		"daily_progress_score":    json.Number("77.5"),
		"attendance_days_present": "20",
		"narrative_score":         true,
	})

	assert.Equal(t, 77.5, m.Values["Weekly Progress Report (Score)"])
	assert.Equal(t, 20.0, m.Values["Attendance (Days Present out of 25)"])
	assert.Equal(t, 0.0, m.Values["overall_average"])
	assert.Equal(t, 0.0, m.Values["Practicum Narrative Report (Score)"])
	assert.Equal(t, []string{"overall_average", "Practicum Narrative Report (Score)"}, m.Defaulted)
}

func TestSanitizeNumeric(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want Sanitized
	}{
		{"int", 7, Sanitized{Value: 7}},
		{"uint8", uint8(3), Sanitized{Value: 3}},
		{"float32", float32(1.5), Sanitized{Value: 1.5}},
		{"string", " 82.5 ", Sanitized{Value: 82.5}},
		{"json number", json.Number("90"), Sanitized{Value: 90}},
		{"bad json number", json.Number("x"), Sanitized{Defaulted: true}},
		{"text", "excellent", Sanitized{Defaulted: true}},
		{"nil", nil, Sanitized{Defaulted: true}},
		{"bool", true, Sanitized{Defaulted: true}},
		{"nan", math.NaN(), Sanitized{Defaulted: true}},
		{"inf string", "Inf", Sanitized{Defaulted: true}},
		{"slice", []int{1}, Sanitized{Defaulted: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeNumeric(tt.in))
		})
	}
}
