package adapter

import (
	"context"

	"github.com/marmos91/svnconnector/pkg/connector"
)

// Adapter represents a protocol-specific front end that exposes a connector
// and can be managed by server.Server.
//
// Lifecycle:
//  1. Creation: Adapter is created with protocol-specific configuration
//  2. Connector injection: SetConnector() provides the shared connector
//  3. Startup: Serve() starts the protocol server and blocks until shutdown
//  4. Shutdown: Stop() initiates graceful shutdown with timeout
//
// Thread safety:
// Implementations must be safe for concurrent use. SetConnector() is called
// once before Serve(), but Stop() may be called concurrently with Serve().
type Adapter interface {
	// Serve starts the protocol server and blocks until the context is cancelled
	// or an unrecoverable error occurs.
	//
	// When the context is cancelled, Serve must initiate graceful shutdown and
	// return nil or context.Canceled.
	Serve(ctx context.Context) error

	// SetConnector injects the connector all requests are routed to.
	//
	// Called exactly once before Serve(), no synchronization needed.
	SetConnector(c *connector.Connector)

	// Stop initiates graceful shutdown of the protocol server.
	//
	// Must be idempotent and safe to call concurrently with Serve(). The
	// context bounds the shutdown.
	Stop(ctx context.Context) error

	// Protocol returns the human-readable protocol name for logging and metrics.
	Protocol() string

	// Port returns the TCP port the adapter is listening on, or 0 when it is
	// not known.
	Port() int
}
