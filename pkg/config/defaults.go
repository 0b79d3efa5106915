package config

import (
	"strings"
	"time"

	"github.com/marmos91/svnconnector/pkg/metrics"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
//   - Backend-specific defaults are handled by backend implementations
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyConnectorDefaults(&cfg.Connector)
	applyBackendDefaults(&cfg.Backend)
	applyServerDefaults(&cfg.Server)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyConnectorDefaults(cfg *ConnectorConfig) {
	if cfg.ID == 0 {
		cfg.ID = 1
	}
	if cfg.Label == "" {
		cfg.Label = appName
	}
	if cfg.RepositoryPath == "" {
		cfg.RepositoryPath = "embedded:///"
	}
	// TemporaryFileStore stays empty: the connector falls back to the
	// system temporary directory.
}

// applyBackendDefaults sets backend defaults.
func applyBackendDefaults(cfg *BackendConfig) {
	if cfg.Type == "" {
		cfg.Type = "embedded"
	}

	if cfg.Svn == nil {
		cfg.Svn = make(map[string]any)
	}
	if cfg.Embedded == nil {
		cfg.Embedded = make(map[string]any)
	}
	if cfg.S3 == nil {
		cfg.S3 = make(map[string]any)
	}

	// Defaults for every backend type (for config file generation)
	if _, ok := cfg.Svn["binary"]; !ok {
		cfg.Svn["binary"] = "svn"
	}
	if _, ok := cfg.Embedded["db_path"]; !ok {
		cfg.Embedded["db_path"] = "/tmp/svnconnector-repository"
	}
	if _, ok := cfg.S3["region"]; !ok {
		cfg.S3["region"] = "us-east-1"
	}
}

// applyServerDefaults sets server defaults.
func applyServerDefaults(cfg *ServerConfig) {
	if cfg.Address == "" {
		cfg.Address = ":8080"
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = metrics.DefaultPort
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
