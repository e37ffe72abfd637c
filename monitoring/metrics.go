package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// RequestCount counts HTTP requests, partitioned by method, path, and
	// final status code. Incremented exactly once per request.
	RequestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "app_request_count",
			Help: "Total HTTP requests.",
		},
		[]string{"method", "endpoint", "http_status"},
	)

	// RequestLatency times the full handler body, failure paths included.
	RequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "app_request_latency_seconds",
			Help:    "Request latency.",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"endpoint"},
	)

	// PredictionCount counts scoring outcomes.
	PredictionCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "app_prediction_count",
			Help: "Number of predictions.",
		},
		[]string{"status"},
	)

	// SinkFailures counts swallowed prediction-log write errors so operators
	// can see them even though callers never do.
	SinkFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "app_prediction_log_failures_total",
			Help: "Prediction log writes that failed and were discarded.",
		},
	)

	// DatasetDrift is 1 while the latest drift check flagged dataset drift.
	DatasetDrift = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_dataset_drift",
			Help: "Whether the latest drift check detected dataset drift.",
		},
	)

	// DriftedFeatures is the drifted-feature count from the latest check.
	DriftedFeatures = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_drifted_features",
			Help: "Number of features flagged as drifted by the latest check.",
		},
	)
)

// Register attaches all collectors to the supplied registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		RequestCount,
		RequestLatency,
		PredictionCount,
		SinkFailures,
		DatasetDrift,
		DriftedFeatures,
	}
	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveRequest records the counter and latency for one finished request.
func ObserveRequest(method, endpoint, status string, duration time.Duration) {
	RequestCount.WithLabelValues(method, endpoint, status).Inc()
	if duration < 0 {
		duration = 0
	}
	RequestLatency.WithLabelValues(endpoint).Observe(duration.Seconds())
}
