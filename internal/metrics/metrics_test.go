package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObservePrediction(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())

	m.ObservePrediction("snapshot", "Good", 0.8, 2, 3*time.Millisecond)
	m.ObservePrediction("snapshot", "Good", 0.7, 0, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Predictions.WithLabelValues("snapshot", "Good")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.DefaultedFields))
	assert.Equal(t, 1, testutil.CollectAndCount(m.PredictionLatency))
}

func TestObserveRequest(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())

	m.ObserveRequest("/predict", "POST", 200, time.Millisecond)
	m.ObserveRequest("/predict", "POST", 201, time.Millisecond)
	m.ObserveRequest("/predict", "POST", 503, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/predict", "POST", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/predict", "POST", "5xx")))
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "2xx", statusClass(204))
	assert.Equal(t, "3xx", statusClass(302))
	assert.Equal(t, "4xx", statusClass(404))
	assert.Equal(t, "5xx", statusClass(500))
}

func TestRegistriesAreIsolated(t *testing.T) {
	a := NewWithRegistry(prometheus.NewRegistry())
	b := NewWithRegistry(prometheus.NewRegistry())
	a.ModelsLoaded.Set(1)
	assert.Equal(t, 0.0, testutil.ToFloat64(b.ModelsLoaded))
}
