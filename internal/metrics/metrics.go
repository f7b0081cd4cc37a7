// Package metrics defines the Prometheus metrics exposed by ojt-server.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ojt"

// Metrics holds the server's collectors.
type Metrics struct {
	HTTPRequests *prometheus.CounterVec   // requests by route, method and status
	HTTPDuration *prometheus.HistogramVec // request latency by route

	Predictions          *prometheus.CounterVec // predictions by source and label
	PredictionFailures   *prometheus.CounterVec // failed predictions by source and reason
	PredictionLatency    prometheus.Histogram
	PredictionConfidence prometheus.Histogram
	DefaultedFields      prometheus.Counter // snapshot fields replaced by 0

	ChatMessages  prometheus.Counter
	ModelsLoaded  prometheus.Gauge // 1 when an ensemble is loaded
	HistoryErrors prometheus.Counter
}

// New registers the metrics with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the metrics with registerer. Tests pass a fresh
// prometheus.NewRegistry().
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"route", "method", "status"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		Predictions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Total number of performance predictions",
		}, []string{"source", "label"}),
		PredictionFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prediction_failures_total",
			Help:      "Total number of failed performance predictions",
		}, []string{"source", "reason"}),
		PredictionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prediction_latency_seconds",
			Help:      "Ensemble prediction latency in seconds",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1},
		}),
		PredictionConfidence: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prediction_confidence",
			Help:      "Probability of the predicted label",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
		}),
		DefaultedFields: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "defaulted_fields_total",
			Help:      "Total number of snapshot fields replaced by 0",
		}),
		ChatMessages: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_messages_total",
			Help:      "Total number of chat messages answered",
		}),
		ModelsLoaded: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "models_loaded",
			Help:      "1 when the ensemble is loaded, 0 otherwise",
		}),
		HistoryErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_errors_total",
			Help:      "Total number of prediction history read or write failures",
		}),
	}
}

// ObservePrediction records a successful prediction.
func (m *Metrics) ObservePrediction(source, label string, confidence float64, defaulted int, elapsed time.Duration) {
	m.Predictions.WithLabelValues(source, label).Inc()
	m.PredictionConfidence.Observe(confidence)
	m.PredictionLatency.Observe(elapsed.Seconds())
	m.DefaultedFields.Add(float64(defaulted))
}

// ObserveRequest records a finished HTTP request.
func (m *Metrics) ObserveRequest(route, method string, status int, elapsed time.Duration) {
	m.HTTPRequests.WithLabelValues(route, method, statusClass(status)).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// statusClass keeps label cardinality low: 2xx, 4xx, 5xx.
func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
