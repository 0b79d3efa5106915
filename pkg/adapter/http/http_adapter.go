// Package http exposes connector operations over a JSON/HTTP API served by
// Gin.
package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	nethttp "net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/marmos91/svnconnector/internal/logger"
	"github.com/marmos91/svnconnector/internal/ratelimiter"
	"github.com/marmos91/svnconnector/pkg/connector"
	"github.com/marmos91/svnconnector/pkg/metrics"
)

// Config holds configuration parameters for the HTTP adapter.
//
// Default values (applied by New if zero):
//   - Address: ":8080"
//   - ShutdownTimeout: 30s
type Config struct {
	// Address is the listen address, e.g. ":8080" or "127.0.0.1:0".
	Address string `mapstructure:"address"`

	// ShutdownTimeout bounds the wait for in-flight requests during Stop.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// AllowAnonymous serves secured operations to callers that present no
	// Basic credentials. They run with Username and Password.
	AllowAnonymous bool `mapstructure:"allow_anonymous"`

	// Username and Password are the credentials of anonymous callers.
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`

	// RequestsPerSecond is the sustained request rate across all callers.
	// Zero disables throttling.
	RequestsPerSecond uint `mapstructure:"requests_per_second"`

	// Burst is the number of requests served above the sustained rate.
	// Defaults to RequestsPerSecond.
	Burst uint `mapstructure:"burst"`
}

func (c *Config) applyDefaults() {
	if c.Address == "" {
		c.Address = ":8080"
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
}

// HTTPAdapter implements the adapter.Adapter interface for the JSON/HTTP API.
//
// Every route maps onto one connector operation. The traits declared in
// connector.Operations drive request handling: secured operations require
// Basic credentials (bound with Login before the call) unless AllowAnonymous
// is set, and operations not declared threadsafe are serialized. Requests
// bound to different credentials never overlap.
//
// Thread safety:
// All methods are safe for concurrent use. Stop is idempotent.
type HTTPAdapter struct {
	config    Config
	connector *connector.Connector
	metrics   metrics.HTTPMetrics
	limiter   *ratelimiter.RateLimiter

	// serial serializes operations not declared threadsafe
	serial sync.Mutex

	// gate keeps requests bound to different credentials apart
	gate *identityGate

	mu       sync.Mutex
	server   *nethttp.Server
	listener net.Listener
	port     atomic.Int32

	shutdownOnce sync.Once
	shutdown     chan struct{}
}

// New creates an HTTP adapter. A nil m selects no-op metrics.
func New(cfg Config, m metrics.HTTPMetrics) *HTTPAdapter {
	cfg.applyDefaults()
	if m == nil {
		m = metrics.NewNoopHTTPMetrics()
	}

	return &HTTPAdapter{
		config:   cfg,
		metrics:  m,
		limiter:  ratelimiter.New(cfg.RequestsPerSecond, cfg.Burst),
		gate:     newIdentityGate(),
		shutdown: make(chan struct{}),
	}
}

// SetConnector injects the connector requests are routed to.
func (a *HTTPAdapter) SetConnector(c *connector.Connector) {
	a.connector = c
}

// Handler builds the Gin engine serving the API.
func (a *HTTPAdapter) Handler() nethttp.Handler {
	r := gin.New()
	r.Use(gin.Recovery())
	a.registerRoutes(r)
	return r
}

// Serve listens on the configured address and blocks until ctx is cancelled
// or Stop is called.
func (a *HTTPAdapter) Serve(ctx context.Context) error {
	if a.connector == nil {
		return fmt.Errorf("http adapter: no connector set")
	}

	listener, err := net.Listen("tcp", a.config.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.config.Address, err)
	}
	if addr, ok := listener.Addr().(*net.TCPAddr); ok {
		a.port.Store(int32(addr.Port))
	}

	srv := &nethttp.Server{
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.mu.Lock()
	a.server = srv
	a.listener = listener
	a.mu.Unlock()

	logger.Info("HTTP adapter listening on %s", listener.Addr())

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		stopCtx, cancel := context.WithTimeout(context.Background(), a.config.ShutdownTimeout)
		defer cancel()
		if err := a.Stop(stopCtx); err != nil {
			return err
		}
		<-serveErr
		return ctx.Err()

	case <-a.shutdown:
		// Stop may have run before the server was published.
		stopCtx, cancel := context.WithTimeout(context.Background(), a.config.ShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(stopCtx)
		<-serveErr
		return nil

	case err := <-serveErr:
		if errors.Is(err, nethttp.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http adapter: %w", err)
	}
}

// Stop gracefully shuts the server down, waiting for in-flight requests
// until ctx expires.
func (a *HTTPAdapter) Stop(ctx context.Context) error {
	var err error
	a.shutdownOnce.Do(func() {
		close(a.shutdown)

		a.mu.Lock()
		srv := a.server
		a.mu.Unlock()
		if srv == nil {
			return
		}

		logger.Debug("HTTP adapter shutting down")
		if shutdownErr := srv.Shutdown(ctx); shutdownErr != nil {
			err = fmt.Errorf("http adapter shutdown: %w", shutdownErr)
		}
	})
	return err
}

// Protocol returns "HTTP".
func (a *HTTPAdapter) Protocol() string {
	return "HTTP"
}

// Port returns the bound TCP port, or 0 before Serve.
func (a *HTTPAdapter) Port() int {
	return int(a.port.Load())
}
