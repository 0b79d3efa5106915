package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// appName names the environment prefix and the configuration directory.
const appName = "svnconnector"

// Config represents the complete svnconnector configuration.
//
// This structure captures all configurable aspects of the connector process:
//   - Logging configuration
//   - Connector identity and repository location
//   - Credentials bound at startup
//   - Repository backend selection and configuration (backend-specific)
//   - HTTP surface and metrics settings
//
// Configuration sources (in order of precedence):
//  1. Environment variables (SVNCONNECTOR_*)
//  2. Configuration file (YAML or TOML)
//  3. Default values (lowest priority)
//
// Backend Configuration Pattern:
// Each backend implementation defines its own configuration type and factory
// function. The Config struct contains type-specific sections (backend.svn,
// backend.embedded, backend.s3) and only the section matching the selected
// type is used.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Connector identifies the connector and its repository
	Connector ConnectorConfig `mapstructure:"connector" yaml:"connector"`

	// Credentials are bound with Login when set
	Credentials CredentialsConfig `mapstructure:"credentials" yaml:"credentials"`

	// Backend specifies the repository backend type and type-specific configuration
	Backend BackendConfig `mapstructure:"backend" yaml:"backend"`

	// Server contains HTTP surface settings
	Server ServerConfig `mapstructure:"server" yaml:"server"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" yaml:"output" validate:"required"`
}

// ConnectorConfig is the connector configuration handed to Init.
type ConnectorConfig struct {
	// ID is copied onto every node the connector produces
	ID int64 `mapstructure:"id" yaml:"id"`

	// Label is the human-readable connector name
	Label string `mapstructure:"label" yaml:"label" validate:"required"`

	// RepositoryPath is the repository base URL (e.g. https://svn.example.com/repo)
	RepositoryPath string `mapstructure:"repository_path" yaml:"repository_path" validate:"required"`

	// TemporaryFileStore is the working copy staging root.
	// Supports ${NAME} indirection through the environment.
	TemporaryFileStore string `mapstructure:"temporary_file_store" yaml:"temporary_file_store"`
}

// CredentialsConfig holds the repository credentials used at startup.
type CredentialsConfig struct {
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
}

// BackendConfig specifies the repository backend.
//
// The Type field determines which backend implementation is used.
// Only the corresponding type-specific configuration section is used.
type BackendConfig struct {
	// Type specifies which backend implementation to use
	// Valid values: svn, embedded, s3
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=svn embedded s3"`

	// Svn contains svn command line configuration
	// Only used when Type = "svn"
	Svn map[string]any `mapstructure:"svn" yaml:"svn"`

	// Embedded contains embedded repository configuration
	// Only used when Type = "embedded"
	Embedded map[string]any `mapstructure:"embedded" yaml:"embedded"`

	// S3 contains S3-specific configuration
	// Only used when Type = "s3"
	S3 map[string]any `mapstructure:"s3" yaml:"s3"`
}

// ServerConfig contains the HTTP surface settings.
type ServerConfig struct {
	// Address is the listen address of the HTTP API (e.g. ":8080")
	Address string `mapstructure:"address" yaml:"address" validate:"required"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"required,gt=0"`

	// AllowAnonymous serves secured operations to callers without Basic
	// credentials, running them with the configured credentials
	AllowAnonymous bool `mapstructure:"allow_anonymous" yaml:"allow_anonymous"`

	// RateLimit throttles API requests
	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`

	// Metrics configures the Prometheus endpoint
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// RateLimitConfig throttles the HTTP API. A zero RequestsPerSecond disables
// throttling; a zero Burst defaults to RequestsPerSecond.
type RateLimitConfig struct {
	RequestsPerSecond uint `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	Burst             uint `mapstructure:"burst" yaml:"burst"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" yaml:"port" validate:"omitempty,min=1,max=65535"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (SVNCONNECTOR_*)
//  2. Configuration file
//  3. Default values
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Example: SVNCONNECTOR_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix(strings.ToUpper(appName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only applies to keys viper knows about. Binding the scalar
	// keys lets the environment override values absent from the file.
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// $XDG_CONFIG_HOME/svnconnector/config.{yaml,toml}
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

var envKeys = []string{
	"logging.level",
	"logging.format",
	"logging.output",
	"connector.id",
	"connector.label",
	"connector.repository_path",
	"connector.temporary_file_store",
	"credentials.username",
	"credentials.password",
	"backend.type",
	"server.address",
	"server.shutdown_timeout",
	"server.allow_anonymous",
	"server.rate_limit.requests_per_second",
	"server.rate_limit.burst",
	"server.metrics.enabled",
	"server.metrics.port",
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		// An explicit path that does not exist is treated like a missing
		// default file.
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, appName)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", appName)
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for init command).
func GetConfigDir() string {
	return getConfigDir()
}
