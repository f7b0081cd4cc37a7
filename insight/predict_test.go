package insight

import (
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/jrmsu/ojtinsight/dataset"
	"github.com/jrmsu/ojtinsight/ensemble"
	"github.com/jrmsu/ojtinsight/features"
	ojtErrors "github.com/jrmsu/ojtinsight/pkg/errors"
)

// trainCanonical fits an ensemble on the five canonical names plus their
// derived features.
func trainCanonical(t *testing.T) *ensemble.Model {
	t.Helper()
	eng := features.NewEngineer(canonical)
	rng := rand.New(rand.NewSource(3))
	centers := []float64{55, 75, 92}
	labels := []string{"Needs Improvement", "Good", "Excellent"}

	n := 60
	X := mat.NewDense(n, len(eng.Names()), nil)
	y := make([]string, n)
	for i := 0; i < n; i++ {
		c := i % 3
		base := make([]float64, len(canonical))
		for j := range base {
			base[j] = centers[c] + rng.NormFloat64()*3
		}
		base[4] = math.Min(25, centers[c]/4+rng.NormFloat64())
		X.SetRow(i, eng.Extend(base))
		y[i] = labels[c]
	}

	m := ensemble.New(ensemble.WithNEstimators(10))
	require.NoError(t, m.Fit(X, y, eng.Names()))
	return m
}

func TestPredictPerformance(t *testing.T) {
	te, err := NewTrainedEnsemble(trainCanonical(t))
	require.NoError(t, err)

	values, err := features.RefreshRow(te.engineer, map[string]float64{
		"weekly_progress": 54, "narrative_report": 56, "coordinator_evaluation": 53,
		"partner_evaluation": 57, "attendance": 13,
	})
	require.NoError(t, err)

	p, err := te.PredictPerformance(values)
	require.NoError(t, err)
	assert.Equal(t, "Needs Improvement", p.PredictedLabel)
	assert.Equal(t, RiskHigh, p.RiskLevel)
	assert.Equal(t, p.ClassProbabilities[p.PredictedLabel], p.Probability)
	assert.Empty(t, p.Defaulted)

	_, err = te.PredictPerformance(map[string]float64{"weekly_progress": 1})
	assert.ErrorIs(t, err, ojtErrors.ErrMissingFeature)
}

func TestPredictPerformanceDefaultsNonFinite(t *testing.T) {
	te, err := NewTrainedEnsemble(trainCanonical(t))
	require.NoError(t, err)

	values := map[string]float64{}
	for _, n := range te.FeatureNames() {
		values[n] = 80
	}
	values["attendance"] = math.Inf(1)

	p, err := te.PredictPerformance(values)
	require.NoError(t, err)
	assert.Equal(t, []string{"attendance"}, p.Defaulted)
}

func TestPredictSnapshot(t *testing.T) {
	te, err := NewTrainedEnsemble(trainCanonical(t))
	require.NoError(t, err)

	p, err := te.PredictSnapshot(map[string]any{
		"daily_progress_score":    93,
		"narrative_score":         91,
		"coord_eval_score":        94,
		"partner_eval_score":      92,
		"attendance_days_present": 23,
	})
	require.NoError(t, err)
	assert.Equal(t, "Excellent", p.PredictedLabel)
	assert.Equal(t, RiskLow, p.RiskLevel)
	assert.Empty(t, p.Defaulted, "derived features are recomputed, not defaulted")

	p, err = te.PredictSnapshot(map[string]any{"daily_progress_score": "abc"})
	require.NoError(t, err)
	assert.Equal(t, canonical, p.Defaulted)
}

func TestNewTrainedEnsembleRequiresFittedModel(t *testing.T) {
	_, err := NewTrainedEnsemble(ensemble.New())
	assert.ErrorIs(t, err, ojtErrors.ErrModelsNotLoaded)
	_, err = NewTrainedEnsemble(nil)
	assert.ErrorIs(t, err, ojtErrors.ErrModelsNotLoaded)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, trainCanonical(t).Save(dir))

	te, err := Load(dir)
	require.NoError(t, err)
	assert.Len(t, te.FeatureNames(), 5+6)
	assert.Len(t, te.Classes(), 3)

	_, err = Load(filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, ojtErrors.ErrModelsNotLoaded)
}

func TestLoadWithPreprocessor(t *testing.T) {
	csv := "weekly_progress,narrative_report,coordinator_evaluation,partner_evaluation,attendance,performance_category\n"
	rng := rand.New(rand.NewSource(9))
	labels := []string{"Poor", "Good", "Excellent"}
	centers := []float64{55, 75, 92}
	var b strings.Builder
	b.WriteString(csv)
	for i := 0; i < 45; i++ {
		c := i % 3
		for j := 0; j < 5; j++ {
			v := centers[c] + rng.NormFloat64()*3
			if j == 4 {
				v = centers[c] / 4
			}
			b.WriteString(strconv.FormatFloat(v, 'f', 3, 64))
			b.WriteString(",")
		}
		b.WriteString(labels[c])
		b.WriteString("\n")
	}
	ds, err := dataset.ReadCSV(strings.NewReader(b.String()))
	require.NoError(t, err)

	pre := features.NewPreprocessor()
	res, err := pre.Fit(ds)
	require.NoError(t, err)
	m := ensemble.New(ensemble.WithNEstimators(10))
	require.NoError(t, m.Fit(res.X, res.Labels, res.FeatureNames))

	dir := t.TempDir()
	require.NoError(t, m.Save(dir))
	require.NoError(t, pre.Save(dir))

	te, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, pre.Engineer().Names(), te.engineer.Names())

	// A preprocessor from another feature set is rejected.
	other := features.NewPreprocessor(features.WithFeatures("weekly_progress", "narrative_report"))
	_, err = other.Fit(ds)
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(dir, features.ArtifactFile)))
	require.NoError(t, other.Save(dir))
	_, err = Load(dir)
	assert.Error(t, err)
}
