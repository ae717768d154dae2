package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Calibration metrics
	CalibrationsStarted prometheus.Counter
	CalibrationsActive  prometheus.Gauge
	InputsSubmitted     prometheus.Counter
	SnapshotPublishes   prometheus.Counter

	// Training metrics
	TrainingsStarted prometheus.Counter
	TrainingActive   prometheus.Gauge

	// WebSocket metrics
	WSConnections prometheus.Gauge

	startTime time.Time
}

// NewMetrics creates a metrics collector registered on the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		startTime: time.Now(),

		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lelab_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lelab_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		CalibrationsStarted: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "lelab_calibrations_started_total",
				Help: "Total number of calibration sessions started",
			},
		),
		CalibrationsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "lelab_calibrations_active",
				Help: "Whether a calibration session is active (0 or 1)",
			},
		),
		InputsSubmitted: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "lelab_calibration_inputs_total",
				Help: "Total number of input lines submitted to calibration sessions",
			},
		),
		SnapshotPublishes: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "lelab_calibration_snapshots_total",
				Help: "Total number of console display snapshots published",
			},
		),

		TrainingsStarted: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "lelab_trainings_started_total",
				Help: "Total number of training jobs started",
			},
		),
		TrainingActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "lelab_training_active",
				Help: "Whether a training job is active (0 or 1)",
			},
		),

		WSConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "lelab_ws_connections",
				Help: "Number of open WebSocket status streams",
			},
		),
	}
}

// RecordHTTPRequest records one served request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// Uptime reports time since the collector was created.
func (m *Metrics) Uptime() time.Duration {
	return time.Since(m.startTime)
}
