package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTPMetrics provides observability for the HTTP adapter.
//
// Example usage:
//
//	// With metrics enabled
//	server := http.New(config, conn, metrics.NewHTTPMetrics())
//
//	// Without metrics (no-op)
//	server := http.New(config, conn, nil)
type HTTPMetrics interface {
	// RecordRequest records a completed request.
	//
	// Parameters:
	//   - operation: connector operation served (e.g., "getChildren")
	//   - duration: time taken to serve the request
	//   - code: HTTP status code of the response
	RecordRequest(operation string, duration time.Duration, code int)

	// RecordRequestStart increments the in-flight gauge of operation.
	RecordRequestStart(operation string)

	// RecordRequestEnd decrements the in-flight gauge of operation.
	RecordRequestEnd(operation string)

	// RecordBytesTransferred records content bytes served or received.
	//
	// Parameters:
	//   - direction: "read" or "write"
	//   - bytes: number of bytes transferred
	RecordBytesTransferred(direction string, bytes int64)
}

// httpMetrics is the Prometheus implementation of HTTPMetrics.
type httpMetrics struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight *prometheus.GaugeVec
	bytesTransferred *prometheus.CounterVec
}

// NewHTTPMetrics creates a Prometheus-backed HTTPMetrics instance, or a
// no-op implementation if metrics are not enabled.
func NewHTTPMetrics() HTTPMetrics {
	if !IsEnabled() {
		return NewNoopHTTPMetrics()
	}
	return newHTTPMetrics(GetRegistry())
}

func newHTTPMetrics(reg prometheus.Registerer) *httpMetrics {
	return &httpMetrics{
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "svnconnector_http_requests_total",
				Help: "Total number of HTTP requests by operation and status code",
			},
			[]string{"operation", "code"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "svnconnector_http_request_duration_seconds",
				Help: "Duration of HTTP requests in seconds",
				Buckets: []float64{
					0.005, // 5ms
					0.025, // 25ms
					0.1,   // 100ms
					0.5,   // 500ms
					1.0,   // 1s
					5.0,   // 5s
					30.0,  // 30s
				},
			},
			[]string{"operation"},
		),
		requestsInFlight: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "svnconnector_http_requests_in_flight",
				Help: "Current number of HTTP requests being processed",
			},
			[]string{"operation"},
		),
		bytesTransferred: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "svnconnector_http_content_bytes_total",
				Help: "Total content bytes transferred through the HTTP adapter",
			},
			[]string{"direction"}, // read or write
		),
	}
}

func (m *httpMetrics) RecordRequest(operation string, duration time.Duration, code int) {
	m.requestsTotal.WithLabelValues(operation, strconv.Itoa(code)).Inc()
	m.requestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *httpMetrics) RecordRequestStart(operation string) {
	m.requestsInFlight.WithLabelValues(operation).Inc()
}

func (m *httpMetrics) RecordRequestEnd(operation string) {
	m.requestsInFlight.WithLabelValues(operation).Dec()
}

func (m *httpMetrics) RecordBytesTransferred(direction string, bytes int64) {
	m.bytesTransferred.WithLabelValues(direction).Add(float64(bytes))
}

// NewNoopHTTPMetrics returns an HTTPMetrics that discards everything.
func NewNoopHTTPMetrics() HTTPMetrics {
	return noopHTTPMetrics{}
}

type noopHTTPMetrics struct{}

func (noopHTTPMetrics) RecordRequest(string, time.Duration, int) {}
func (noopHTTPMetrics) RecordRequestStart(string)                {}
func (noopHTTPMetrics) RecordRequestEnd(string)                  {}
func (noopHTTPMetrics) RecordBytesTransferred(string, int64)     {}
