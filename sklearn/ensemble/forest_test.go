package ensemble

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/jrmsu/ojtinsight/pkg/errors"
)

// scoreBands labels rows by the mean of the first two columns; the third
// column is noise.
func scoreBands(n int, seed int64) (*mat.Dense, *mat.Dense) {
	rng := rand.New(rand.NewSource(seed))
	X := mat.NewDense(n, 3, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		a, b := 40+rng.Float64()*60, 40+rng.Float64()*60
		X.Set(i, 0, a)
		X.Set(i, 1, b)
		X.Set(i, 2, rng.Float64()*100)
		switch m := (a + b) / 2; {
		case m < 60:
			y.Set(i, 0, 0)
		case m < 80:
			y.Set(i, 0, 1)
		default:
			y.Set(i, 0, 2)
		}
	}
	return X, y
}

func TestRandomForest_FitPredict(t *testing.T) {
	X, y := scoreBands(150, 1)
	rf := NewRandomForestClassifier(
		WithNEstimators(25),
		WithMaxDepth(10),
		WithMinSamplesSplit(5),
		WithRandomState(42),
	)
	require.NoError(t, rf.Fit(X, y))
	assert.Equal(t, 25, rf.NEstimators())
	assert.Equal(t, []int{0, 1, 2}, rf.Classes())

	pred, err := rf.Predict(X)
	require.NoError(t, err)
	correct := 0
	for i := 0; i < 150; i++ {
		if pred.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	assert.GreaterOrEqual(t, float64(correct)/150, 0.9)

	proba, err := rf.PredictProba(X)
	require.NoError(t, err)
	for i := 0; i < 150; i++ {
		assert.InDelta(t, 1.0, floats.Sum(proba.RawRowView(i)), 1e-9)
	}

	imp := rf.FeatureImportances()
	assert.InDelta(t, 1.0, floats.Sum(imp), 1e-9)
	assert.Less(t, imp[2], math.Min(imp[0], imp[1]))
}

func TestRandomForest_DeterministicAcrossConcurrency(t *testing.T) {
	X, y := scoreBands(80, 2)

	serial := NewRandomForestClassifier(WithNEstimators(10), WithRandomState(42), WithNJobs(1))
	wide := NewRandomForestClassifier(WithNEstimators(10), WithRandomState(42), WithNJobs(8))
	require.NoError(t, serial.Fit(X, y))
	require.NoError(t, wide.Fit(X, y))

	p1, err := serial.PredictProba(X)
	require.NoError(t, err)
	p2, err := wide.PredictProba(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(p1, p2))
}

func TestRandomForest_Errors(t *testing.T) {
	rf := NewRandomForestClassifier(WithNEstimators(3))
	_, err := rf.PredictProba(mat.NewDense(1, 3, nil))
	assert.ErrorIs(t, err, errors.ErrModelsNotLoaded)

	err = rf.Fit(mat.NewDense(2, 1, []float64{1, 2}), mat.NewDense(2, 1, []float64{1, 1}))
	assert.ErrorIs(t, err, errors.ErrSingleClass)

	assert.Error(t, NewRandomForestClassifier(WithNEstimators(0)).Fit(scoreBands(10, 3)))
}

func TestRandomForest_ExportImport(t *testing.T) {
	X, y := scoreBands(60, 4)
	rf := NewRandomForestClassifier(WithNEstimators(5), WithRandomState(7))
	require.NoError(t, rf.Fit(X, y))

	params, err := rf.Export()
	require.NoError(t, err)
	restored := NewRandomForestClassifier()
	require.NoError(t, restored.Import(params))

	p1, _ := rf.PredictProba(X)
	p2, err := restored.PredictProba(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(p1, p2))
	assert.InDeltaSlice(t, rf.FeatureImportances(), restored.FeatureImportances(), 1e-12)
}

func BenchmarkRandomForest_Fit(b *testing.B) {
	X, y := scoreBands(2000, 3)
	for _, jobs := range []int{1, 4} {
		b.Run(fmt.Sprintf("jobs_%d", jobs), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				rf := NewRandomForestClassifier(WithNEstimators(50), WithNJobs(jobs))
				if err := rf.Fit(X, y); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
