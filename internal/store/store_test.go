package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jrmsu/ojtinsight/insight"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// clock returns a time source advancing one second per call.
func clock() func() time.Time {
	t0 := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	n := 0
	return func() time.Time {
		n++
		return t0.Add(time.Duration(n) * time.Second)
	}
}

func TestSaveAndHistory(t *testing.T) {
	s := openStore(t)
	s.now = clock()
	ctx := context.Background()

	labels := []string{"Poor", "Good", "Excellent"}
	for _, l := range labels {
		_, err := s.Save(ctx, "2021-0001", SourceSnapshot, map[string]any{"narrative_score": 80.0},
			insight.Prediction{PredictedLabel: l, RiskLevel: insight.ClassifyRisk(l)})
		require.NoError(t, err)
	}
	// Neighbouring IDs must not leak into the range.
	_, err := s.Save(ctx, "2021-00010", SourceFeatures, nil, insight.Prediction{PredictedLabel: "Fair"})
	require.NoError(t, err)
	_, err = s.Save(ctx, "2021-000", SourceFeatures, nil, insight.Prediction{PredictedLabel: "Fair"})
	require.NoError(t, err)

	recs, err := s.History(ctx, "2021-0001", 0)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "Excellent", recs[0].Prediction.PredictedLabel)
	assert.Equal(t, "Poor", recs[2].Prediction.PredictedLabel)
	assert.True(t, recs[0].CreatedAt.After(recs[1].CreatedAt))
	assert.Equal(t, SourceSnapshot, recs[0].Source)
	assert.Equal(t, 80.0, recs[0].Input["narrative_score"])
	assert.NotEmpty(t, recs[0].ID)

	recs, err = s.History(ctx, "2021-0001", 2)
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	recs, err = s.History(ctx, "2021-00010", 0)
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	recs, err = s.History(ctx, "nobody", 0)
	require.NoError(t, err)
	assert.Empty(t, recs)

	n, err := s.Count()
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestSaveAnonymousAndInvalid(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	rec, err := s.Save(ctx, "", SourceFeatures, nil, insight.Prediction{PredictedLabel: "Good"})
	require.NoError(t, err)
	assert.Equal(t, AnonymousStudent, rec.StudentID)

	_, err = s.Save(ctx, "a/b", SourceFeatures, nil, insight.Prediction{})
	assert.Error(t, err)
}

func TestCanceledContext(t *testing.T) {
	s := openStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Save(ctx, "x", SourceFeatures, nil, insight.Prediction{})
	assert.ErrorIs(t, err, context.Canceled)
	_, err = s.History(ctx, "x", 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.Save(context.Background(), "s1", SourceFeatures, nil, insight.Prediction{PredictedLabel: "Good"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	recs, err := s.History(context.Background(), "s1", 0)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}
