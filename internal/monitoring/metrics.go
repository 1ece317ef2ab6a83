package monitoring

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_autobatch_batches_total",
			Help: "Total number of dispatched batches",
		},
		[]string{"batcher", "status"},
	)

	ItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_autobatch_items_total",
			Help: "Total number of submissions handed to the executor",
		},
		[]string{"batcher"},
	)

	DroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_autobatch_dropped_total",
			Help: "Total number of submissions rejected because the ingress queue was full",
		},
		[]string{"batcher"},
	)

	ExecutorErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_autobatch_executor_errors_total",
			Help: "Total number of submissions that received an executor error",
		},
		[]string{"batcher"},
	)

	BatchSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_autobatch_batch_size",
			Help:    "Number of submissions per executor call",
			Buckets: []float64{1, 2, 4, 8, 16, 32, 64, 128},
		},
		[]string{"batcher"},
	)

	BatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_autobatch_batch_duration_seconds",
			Help:    "Executor call duration in seconds",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10, 30, 60, 120},
		},
		[]string{"batcher"},
	)

	QueueWait = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_autobatch_queue_wait_seconds",
			Help:    "Time the oldest submission of a batch spent waiting before dispatch",
			Buckets: []float64{0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"batcher"},
	)

	GatewayRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_autobatch_gateway_requests_total",
			Help: "Total number of gateway requests",
		},
		[]string{"endpoint", "status"},
	)

	GatewayRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_autobatch_gateway_requests_duration_seconds",
			Help:    "Gateway request duration in seconds",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 10, 30, 60, 120},
		},
		[]string{"endpoint"},
	)
)

// Metrics records batcher and gateway events into the Prometheus registry.
// It implements the batcher's Observer interface.
type Metrics struct {
	enabled bool
}

func New(enabled bool) *Metrics {
	return &Metrics{
		enabled: enabled,
	}
}

func (m *Metrics) isEnabled() bool {
	return m != nil && m.enabled
}

// BatchDispatched records one completed batch cycle.
func (m *Metrics) BatchDispatched(batcherID string, size int, queueWait, duration time.Duration, err error) {
	if !m.isEnabled() {
		return
	}

	status := "ok"
	if err != nil {
		status = "error"
		ExecutorErrorsTotal.WithLabelValues(batcherID).Add(float64(size))
	}
	BatchesTotal.WithLabelValues(batcherID, status).Inc()
	ItemsTotal.WithLabelValues(batcherID).Add(float64(size))
	BatchSize.WithLabelValues(batcherID).Observe(float64(size))
	BatchDuration.WithLabelValues(batcherID).Observe(duration.Seconds())
	QueueWait.WithLabelValues(batcherID).Observe(queueWait.Seconds())
}

// SubmissionDropped records a submission rejected under drop backpressure.
func (m *Metrics) SubmissionDropped(batcherID string) {
	if !m.isEnabled() {
		return
	}
	DroppedTotal.WithLabelValues(batcherID).Inc()
}

// RecordGatewayRequest records one HTTP request served by the gateway.
func (m *Metrics) RecordGatewayRequest(endpoint string, statusCode int, duration time.Duration) {
	if !m.isEnabled() {
		return
	}

	status := strconv.Itoa(statusCode)
	GatewayRequestsTotal.WithLabelValues(endpoint, status).Inc()
	GatewayRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}
