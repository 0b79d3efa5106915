package metrics

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/marmos91/svnconnector/pkg/backend"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// backendMetrics holds the repository call collectors.
type backendMetrics struct {
	callsTotal   *prometheus.CounterVec
	callDuration *prometheus.HistogramVec
}

func newBackendMetrics(reg prometheus.Registerer) *backendMetrics {
	return &backendMetrics{
		callsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "svnconnector_backend_calls_total",
				Help: "Total number of repository backend calls by call and status",
			},
			[]string{"call", "status"},
		),
		callDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "svnconnector_backend_call_duration_seconds",
				Help: "Duration of repository backend calls in seconds",
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
			[]string{"call"},
		),
	}
}

func (m *backendMetrics) observe(call string, start time.Time, err error) {
	s := status(err)
	if errors.Is(err, backend.ErrNotFound) {
		s = "not_found"
	}
	m.callsTotal.WithLabelValues(call, s).Inc()
	m.callDuration.WithLabelValues(call).Observe(time.Since(start).Seconds())
}

// instrumentedClient decorates a backend.Client with call metrics.
type instrumentedClient struct {
	next    backend.Client
	metrics *backendMetrics
}

// InstrumentClient wraps client so every repository call is counted and
// timed. Returns client unchanged when metrics are disabled.
func InstrumentClient(client backend.Client) backend.Client {
	if !IsEnabled() {
		return client
	}
	return instrument(client, GetRegistry())
}

func instrument(client backend.Client, reg prometheus.Registerer) *instrumentedClient {
	return &instrumentedClient{next: client, metrics: newBackendMetrics(reg)}
}

func (c *instrumentedClient) SetCredentials(username, password string) {
	c.next.SetCredentials(username, password)
}

func (c *instrumentedClient) List(ctx context.Context, url string, rev backend.Revision) (entries []backend.Entry, err error) {
	defer func(start time.Time) { c.metrics.observe("list", start, err) }(time.Now())
	return c.next.List(ctx, url, rev)
}

func (c *instrumentedClient) Stat(ctx context.Context, url string, rev backend.Revision) (entry *backend.Entry, err error) {
	defer func(start time.Time) { c.metrics.observe("stat", start, err) }(time.Now())
	return c.next.Stat(ctx, url, rev)
}

func (c *instrumentedClient) Checkout(ctx context.Context, url, target string, rev backend.Revision) (err error) {
	defer func(start time.Time) { c.metrics.observe("checkout", start, err) }(time.Now())
	return c.next.Checkout(ctx, url, target, rev)
}

func (c *instrumentedClient) AddFile(ctx context.Context, path string) (err error) {
	defer func(start time.Time) { c.metrics.observe("add", start, err) }(time.Now())
	return c.next.AddFile(ctx, path)
}

func (c *instrumentedClient) AddDirectory(ctx context.Context, path string, recursive bool) (err error) {
	defer func(start time.Time) { c.metrics.observe("add", start, err) }(time.Now())
	return c.next.AddDirectory(ctx, path, recursive)
}

func (c *instrumentedClient) Commit(ctx context.Context, paths []string, message string, recursive bool) (rev backend.Revision, err error) {
	defer func(start time.Time) { c.metrics.observe("commit", start, err) }(time.Now())
	return c.next.Commit(ctx, paths, message, recursive)
}

func (c *instrumentedClient) Remove(ctx context.Context, urls []string, message string) (err error) {
	defer func(start time.Time) { c.metrics.observe("remove", start, err) }(time.Now())
	return c.next.Remove(ctx, urls, message)
}

func (c *instrumentedClient) Content(ctx context.Context, url string, rev backend.Revision) (rc io.ReadCloser, err error) {
	defer func(start time.Time) { c.metrics.observe("content", start, err) }(time.Now())
	return c.next.Content(ctx, url, rev)
}

// Close closes the wrapped client if it holds resources.
func (c *instrumentedClient) Close() error {
	if closer, ok := c.next.(backend.Closer); ok {
		return closer.Close()
	}
	return nil
}
