package metrics

import (
	"time"

	"github.com/marmos91/svnconnector/pkg/connector"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// connectorMetrics is the Prometheus implementation of connector.Metrics.
//
// It collects:
//   - Operation counts and latency by operation and outcome
//   - Time spent waiting for the transaction lock
//   - Working copies left behind by failed mutations
type connectorMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	lockWait          prometheus.Histogram
	workingCopyLeaks  prometheus.Counter
}

// NewConnectorMetrics creates a Prometheus-backed connector.Metrics.
//
// Returns nil if metrics are not enabled (InitRegistry not called), which
// makes the connector use its no-op implementation.
func NewConnectorMetrics() connector.Metrics {
	if !IsEnabled() {
		return nil
	}
	return newConnectorMetrics(GetRegistry())
}

func newConnectorMetrics(reg prometheus.Registerer) *connectorMetrics {
	return &connectorMetrics{
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "svnconnector_operations_total",
				Help: "Total number of connector operations by operation and status",
			},
			[]string{"operation", "status"},
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "svnconnector_operation_duration_seconds",
				Help: "Duration of connector operations in seconds",
				Buckets: []float64{
					0.01,  // 10ms
					0.05,  // 50ms
					0.1,   // 100ms
					0.25,  // 250ms
					0.5,   // 500ms
					1.0,   // 1s
					2.5,   // 2.5s
					5.0,   // 5s
					10.0,  // 10s
					30.0,  // 30s
					120.0, // 2min
				},
			},
			[]string{"operation"},
		),
		lockWait: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name: "svnconnector_transaction_lock_wait_seconds",
				Help: "Time mutations spent waiting for the transaction lock",
				Buckets: []float64{
					0.001, // 1ms
					0.01,  // 10ms
					0.1,   // 100ms
					1.0,   // 1s
					5.0,   // 5s
					30.0,  // 30s
					120.0, // 2min
				},
			},
		),
		workingCopyLeaks: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "svnconnector_working_copy_leaks_total",
				Help: "Working copies left in the temporary file store by failed mutations",
			},
		),
	}
}

func (m *connectorMetrics) RecordOperation(op string, duration time.Duration, err error) {
	m.operationsTotal.WithLabelValues(op, status(err)).Inc()
	m.operationDuration.WithLabelValues(op).Observe(duration.Seconds())
}

func (m *connectorMetrics) RecordLockWait(duration time.Duration) {
	m.lockWait.Observe(duration.Seconds())
}

func (m *connectorMetrics) RecordWorkingCopyLeak() {
	m.workingCopyLeaks.Inc()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
