package config

import (
	httpadapter "github.com/marmos91/svnconnector/pkg/adapter/http"
	"github.com/marmos91/svnconnector/pkg/adapter"
	"github.com/marmos91/svnconnector/pkg/metrics"
)

// CreateAdapters creates the protocol adapters exposing the connector.
//
// Parameters:
//   - cfg: The complete svnconnector configuration
//   - httpMetrics: Optional HTTP metrics collector (nil = no metrics)
//
// Returns:
//   - []adapter.Adapter: Adapters ready to be added to the server
func CreateAdapters(cfg *Config, httpMetrics metrics.HTTPMetrics) []adapter.Adapter {
	httpAdapter := httpadapter.New(httpadapter.Config{
		Address:           cfg.Server.Address,
		ShutdownTimeout:   cfg.Server.ShutdownTimeout,
		AllowAnonymous:    cfg.Server.AllowAnonymous,
		Username:          cfg.Credentials.Username,
		Password:          cfg.Credentials.Password,
		RequestsPerSecond: cfg.Server.RateLimit.RequestsPerSecond,
		Burst:             cfg.Server.RateLimit.Burst,
	}, httpMetrics)

	return []adapter.Adapter{httpAdapter}
}
