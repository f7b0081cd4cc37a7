package features

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jrmsu/ojtinsight/dataset"
	ojtErrors "github.com/jrmsu/ojtinsight/pkg/errors"
	"github.com/jrmsu/ojtinsight/pkg/log"
)

const (
	weekly      = "Weekly Progress Report (Score)"
	narrative   = "Practicum Narrative Report (Score)"
	coordinator = "Practicum Coordinator Evaluation (Score)"
	partner     = "Practicum Partner Supervisor Evaluation (Score)"
)

const gradingCSV = `Weekly Progress Report (Score),Practicum Narrative Report (Score),Practicum Coordinator Evaluation (Score),Practicum Partner Supervisor Evaluation (Score),performance_category
90,92,94,91,Excellent
,88,90,93,Excellent
60,55,58,62,Poor
,50,52,57,Poor
85,95,96,90,Excellent
55,60,50,54,Poor
`

func readCSV(t *testing.T, text string) *dataset.Dataset {
	t.Helper()
	ds, err := dataset.ReadCSV(strings.NewReader(text))
	require.NoError(t, err)
	return ds
}

func TestPreprocessorFitGradingScenario(t *testing.T) {
	ds := readCSV(t, gradingCSV)

	res, err := NewPreprocessor().Fit(ds)
	require.NoError(t, err)

	assert.Equal(t, "performance_category", res.Target)
	assert.Equal(t, []string{
		weekly, narrative, coordinator, partner,
		OverallAverage, PerformanceConsistency, ProgressEvalRatio, MinScore, MaxScore, ScoreRange,
	}, res.FeatureNames)
	assert.Len(t, res.FeatureNames, 10)
	assert.Equal(t, 2, res.Report.Imputed)
	assert.Equal(t, 0, res.Report.Dropped)

	r, c := res.X.Dims()
	assert.Equal(t, 6, r)
	assert.Equal(t, 10, c)

	// weekly is mean-imputed from the four present values.
	assert.InDelta(t, 72.5, res.X.At(1, 0), 1e-12)
	assert.InDelta(t, 72.5, res.X.At(3, 0), 1e-12)

	// Derived values of the first row.
	row := res.X.RawRowView(0)
	assert.InDelta(t, (90+92+94+91)/4.0, row[4], 1e-12)
	assert.InDelta(t, 90.0/((94+91)/2.0+1e-8), row[6], 1e-12)
	assert.Equal(t, 90.0, row[7])
	assert.Equal(t, 94.0, row[8])
	assert.Equal(t, 4.0, row[9])

	assert.Equal(t, []string{"Excellent", "Excellent", "Poor", "Poor", "Excellent", "Poor"}, res.Labels)
	assert.Equal(t, append(res.FeatureNames, "performance_category"), res.Cleaned.Columns)

	// The input dataset is untouched.
	assert.True(t, ds.Rows[1][0].IsMissing())
}

func TestPreprocessorLogsComponentOnce(t *testing.T) {
	var buf bytes.Buffer
	saved := globalProvider
	globalProvider = log.NewZerologProviderWithWriter(&buf, zerolog.DebugLevel)
	t.Cleanup(func() { globalProvider = saved })

	_, err := NewPreprocessor().Fit(readCSV(t, gradingCSV))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.NotEmpty(t, lines)
	for _, line := range lines {
		assert.Equal(t, 1, strings.Count(line, `"component":`), line)
		assert.Contains(t, line, `"component":"features"`)
	}
}

func TestPreprocessorClipsAndDropsMissingTarget(t *testing.T) {
	ds := readCSV(t, `attendance,score,grade
120,-5,A
80,inf,C
70,,
50,70,B
`)
	res, err := NewPreprocessor().Fit(ds)
	require.NoError(t, err)

	assert.Equal(t, "grade", res.Target)
	assert.Equal(t, 1, res.Report.Imputed)
	assert.Equal(t, 1, res.Report.Dropped)
	assert.GreaterOrEqual(t, res.Report.Infinite, 1)
	assert.GreaterOrEqual(t, res.Report.ClippedHigh, 1)
	assert.GreaterOrEqual(t, res.Report.ClippedLow, 1)
	assert.Equal(t, []string{"A", "C", "B"}, res.Labels)

	assert.Equal(t, 100.0, res.X.At(0, 0))
	assert.Equal(t, 0.0, res.X.At(0, 1))
	// inf is replaced by the mean of the finite scores.
	assert.Equal(t, 32.5, res.X.At(1, 1))

	r, c := res.X.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := res.X.At(i, j)
			assert.False(t, math.IsInf(v, 0) || math.IsNaN(v))
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 100.0)
		}
	}
}

func TestPreprocessorRefitFails(t *testing.T) {
	p := NewPreprocessor()
	_, err := p.Fit(readCSV(t, gradingCSV))
	require.NoError(t, err)
	_, err = p.Fit(readCSV(t, gradingCSV))
	var me *ojtErrors.ModelError
	assert.ErrorAs(t, err, &me)
}

func TestPreprocessorTransformAndLabels(t *testing.T) {
	p := NewPreprocessor()
	res, err := p.Fit(readCSV(t, gradingCSV))
	require.NoError(t, err)

	X, labels, err := p.Transform(readCSV(t, gradingCSV))
	require.NoError(t, err)
	assert.True(t, floatsEqual(res.X.RawMatrix().Data, X.RawMatrix().Data))
	assert.Equal(t, res.Labels, labels)

	codes, ok := p.TransformLabels([]string{"Poor", "Excellent"})
	assert.True(t, ok)
	assert.Equal(t, []int{1, 0}, codes)

	codes, ok = p.TransformLabels([]string{"Average"})
	assert.False(t, ok)
	assert.Nil(t, codes)

	// Without the target column labels are nil.
	full := readCSV(t, gradingCSV)
	noTarget, err := dataset.New(full.Columns[:4], nil)
	require.NoError(t, err)
	for _, r := range full.Rows {
		noTarget.Rows = append(noTarget.Rows, r[:4])
	}
	X, labels, err = p.Transform(noTarget)
	require.NoError(t, err)
	assert.Nil(t, labels)
	r, _ := X.Dims()
	assert.Equal(t, 6, r)
}

func TestPreprocessorRow(t *testing.T) {
	p := NewPreprocessor()
	_, err := p.Fit(readCSV(t, gradingCSV))
	require.NoError(t, err)

	row, err := p.Row(map[string]float64{
		weekly: 80, narrative: 85, coordinator: 120, partner: 90,
		OverallAverage: 0,
	})
	require.NoError(t, err)
	assert.Equal(t, 100.0, row[coordinator])
	assert.InDelta(t, (80+85+100+90)/4.0, row[OverallAverage], 1e-12)
	assert.Equal(t, 20.0, row[ScoreRange])

	_, err = p.Row(map[string]float64{weekly: 1})
	assert.ErrorIs(t, err, ojtErrors.ErrMissingFeature)
}

func TestPreprocessorSaveLoad(t *testing.T) {
	dir := t.TempDir()
	p := NewPreprocessor(WithSortedOrdinals())
	res, err := p.Fit(readCSV(t, gradingCSV))
	require.NoError(t, err)
	require.NoError(t, p.Save(dir))

	loaded, err := LoadPreprocessor(dir)
	require.NoError(t, err)
	assert.True(t, loaded.IsFitted())
	assert.Equal(t, res.FeatureNames, loaded.FeatureNames())
	assert.Equal(t, "performance_category", loaded.Target())

	X, _, err := loaded.Transform(readCSV(t, gradingCSV))
	require.NoError(t, err)
	assert.True(t, floatsEqual(res.X.RawMatrix().Data, X.RawMatrix().Data))

	_, err = LoadPreprocessor(t.TempDir())
	assert.Error(t, err)
}

func TestPreprocessorNotFitted(t *testing.T) {
	p := NewPreprocessor()
	_, _, err := p.Transform(readCSV(t, gradingCSV))
	assert.ErrorIs(t, err, ojtErrors.ErrNotFitted)
	assert.Error(t, p.Save(t.TempDir()))
}

func floatsEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i]-b[i]) > 1e-9 {
			return false
		}
	}
	return true
}
