package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ojtErrors "github.com/jrmsu/ojtinsight/pkg/errors"
)

func TestDetectTarget(t *testing.T) {
	tests := []struct {
		name string
		csv  string
		want string
	}{
		{"exact priority beats order", "label,x,performance_category\na,1,b\n", "performance_category"},
		{"case-insensitive substring", "score,Final Status\n1,ok\n", "Final Status"},
		{"single text column", "score,remark\n1,ok\n", "remark"},
		{"last text column", "name,mentor,score\nA,B,1\n", "mentor"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectTarget(readCSV(t, tt.csv))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := DetectTarget(readCSV(t, "a,b\n1,2\n"))
	assert.ErrorIs(t, err, ojtErrors.ErrTargetUndetectable)
}

func TestDetectFeatures(t *testing.T) {
	ds := readCSV(t, "Weekly,Notes,Grade,Result Score,level,attendance\n"+
		"1,n1,A,5,low,20\n2,n2,B,6,high,21\n")

	got, err := DetectFeatures(ds, "Result Score")
	require.NoError(t, err)
	// Grade is an exact exclusion, Result Score is the target and level is
	// a low-cardinality text column.
	assert.Equal(t, []string{"Weekly", "Notes", "level", "attendance"}, got)
}

func TestDetectFeaturesFallback(t *testing.T) {
	ds := readCSV(t, "x1,x2,final_grade_pct,label\n1,2,3,a\n")
	got, err := DetectFeatures(ds, "label")
	require.NoError(t, err)
	assert.Equal(t, []string{"x1", "x2"}, got)

	_, err = DetectFeatures(readCSV(t, "label\na\n"), "label")
	assert.ErrorIs(t, err, ojtErrors.ErrNoFeatures)
}

func TestDetect(t *testing.T) {
	d, err := Detect(readCSV(t, gradingCSV))
	require.NoError(t, err)
	assert.Equal(t, "performance_category", d.Target)
	assert.Equal(t, []string{weekly, narrative, coordinator, partner}, d.Features)
}
