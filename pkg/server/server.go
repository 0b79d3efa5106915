package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/svnconnector/internal/logger"
	"github.com/marmos91/svnconnector/pkg/adapter"
	"github.com/marmos91/svnconnector/pkg/connector"
)

// DefaultStopTimeout bounds the Stop calls issued to adapters during shutdown.
const DefaultStopTimeout = 30 * time.Second

// Server manages the lifecycle of the protocol adapters exposing one shared
// connector.
//
// Lifecycle:
//  1. Creation: New() with the connector
//  2. Registration: AddAdapter() for each front end
//  3. Startup: Serve() starts all adapters concurrently
//  4. Shutdown: Context cancellation triggers graceful shutdown of all adapters
//
// Thread safety:
// Server is safe for concurrent use. AddAdapter() may be called concurrently
// with other methods until Serve() is called. Serve() may only run once.
//
// Example usage:
//
//	srv := server.New(conn)
//	if err := srv.AddAdapter(http.New(httpConfig, httpMetrics)); err != nil {
//	    log.Fatal(err)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer cancel()
//
//	if err := srv.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
//	    log.Fatal(err)
//	}
type Server struct {
	connector *connector.Connector

	// StopTimeout bounds adapter shutdown. Defaults to DefaultStopTimeout.
	StopTimeout time.Duration

	mu       sync.Mutex
	adapters []adapter.Adapter
	served   bool
}

// New creates a server routing every adapter to c.
//
// Panics if c is nil (indicates programmer error).
func New(c *connector.Connector) *Server {
	if c == nil {
		panic("connector cannot be nil")
	}

	return &Server{
		connector:   c,
		StopTimeout: DefaultStopTimeout,
		adapters:    make([]adapter.Adapter, 0, 2),
	}
}

// ErrAlreadyServed is returned by Serve and AddAdapter once Serve has been
// called.
var ErrAlreadyServed = errors.New("server already served")

// AddAdapter registers a protocol adapter and injects the connector into it.
//
// Duplicate protocols and port conflicts are rejected. Adapters reporting
// port 0 (dynamic or not yet bound) are never considered conflicting.
func (s *Server) AddAdapter(a adapter.Adapter) error {
	if a == nil {
		return fmt.Errorf("adapter cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.served {
		return ErrAlreadyServed
	}

	protocol := a.Protocol()
	port := a.Port()

	for _, existing := range s.adapters {
		if existing.Protocol() == protocol {
			return fmt.Errorf("adapter for protocol %s already registered", protocol)
		}
		if port != 0 && existing.Port() == port {
			return fmt.Errorf("port %d already in use by %s adapter", port, existing.Protocol())
		}
	}

	a.SetConnector(s.connector)
	s.adapters = append(s.adapters, a)

	logger.Info("Registered %s adapter", protocol)
	return nil
}

// Serve starts all registered adapters and blocks until the context is
// cancelled or an adapter fails.
//
// When the context is cancelled or an adapter fails, every adapter receives
// Stop() in reverse registration order and Serve waits for all of them.
//
// Returns:
//   - context.Canceled (or the context's error) after a requested shutdown
//   - the first adapter failure otherwise
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	if s.served {
		s.mu.Unlock()
		return ErrAlreadyServed
	}
	s.served = true
	if len(s.adapters) == 0 {
		s.mu.Unlock()
		return fmt.Errorf("no adapters registered; call AddAdapter() before Serve()")
	}
	adapters := make([]adapter.Adapter, len(s.adapters))
	copy(adapters, s.adapters)
	s.mu.Unlock()

	logger.Info("Starting svnconnector with %d adapter(s)", len(adapters))

	// Buffered so failing adapters never block
	errChan := make(chan adapterError, len(adapters))

	var wg sync.WaitGroup
	for _, adp := range adapters {
		wg.Add(1)
		go func(a adapter.Adapter) {
			defer wg.Done()

			protocol := a.Protocol()
			if err := a.Serve(ctx); err != nil {
				if !errors.Is(err, context.Canceled) && ctx.Err() == nil {
					logger.Error("%s adapter failed: %v", protocol, err)
					errChan <- adapterError{protocol: protocol, err: err}
				} else {
					logger.Debug("%s adapter stopped gracefully", protocol)
				}
				return
			}
			logger.Info("%s adapter stopped", protocol)
			// An adapter returning nil early must still bring the others down.
			if ctx.Err() == nil {
				errChan <- adapterError{protocol: protocol, err: errAdapterExited}
			}
		}(adp)
	}

	var shutdownErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received (reason: %v)", ctx.Err())
		s.stopAllAdapters(adapters)
		shutdownErr = ctx.Err()

	case adapterErr := <-errChan:
		logger.Error("Adapter %s failed: %v - initiating shutdown of all adapters",
			adapterErr.protocol, adapterErr.err)
		s.stopAllAdapters(adapters)
		shutdownErr = fmt.Errorf("%s adapter error: %w", adapterErr.protocol, adapterErr.err)
	}

	logger.Debug("Waiting for all adapters to complete shutdown")
	wg.Wait()

	logger.Info("svnconnector stopped")
	return shutdownErr
}

var errAdapterExited = errors.New("adapter exited")

// adapterError pairs an adapter protocol name with its error.
type adapterError struct {
	protocol string
	err      error
}

// stopAllAdapters signals shutdown to all adapters in reverse registration
// order. It does not wait for their Serve goroutines.
func (s *Server) stopAllAdapters(adapters []adapter.Adapter) {
	timeout := s.StopTimeout
	if timeout <= 0 {
		timeout = DefaultStopTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	logger.Info("Initiating graceful shutdown of %d adapter(s)", len(adapters))

	for i := len(adapters) - 1; i >= 0; i-- {
		adp := adapters[i]
		if err := adp.Stop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Error stopping %s adapter: %v", adp.Protocol(), err)
		}
	}
}

// Adapters returns a snapshot of the registered adapters.
func (s *Server) Adapters() []adapter.Adapter {
	s.mu.Lock()
	defer s.mu.Unlock()

	adapters := make([]adapter.Adapter, len(s.adapters))
	copy(adapters, s.adapters)
	return adapters
}
