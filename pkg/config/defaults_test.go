package config

import (
	"testing"
	"time"
)

func TestApplyDefaults_Logging(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default log level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default log format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default log output 'stdout', got %q", cfg.Logging.Output)
	}
}

func TestApplyDefaults_Server(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown timeout 30s, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Server.Address != ":8080" {
		t.Errorf("Expected default address ':8080', got %q", cfg.Server.Address)
	}
	if cfg.Server.Metrics.Port != 9090 {
		t.Errorf("Expected default metrics port 9090, got %d", cfg.Server.Metrics.Port)
	}
}

func TestApplyDefaults_Connector(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Connector.ID != 1 {
		t.Errorf("Expected default id 1, got %d", cfg.Connector.ID)
	}
	if cfg.Connector.Label != "svnconnector" {
		t.Errorf("Expected default label 'svnconnector', got %q", cfg.Connector.Label)
	}
	if cfg.Connector.RepositoryPath != "embedded:///" {
		t.Errorf("Expected default repository_path 'embedded:///', got %q", cfg.Connector.RepositoryPath)
	}
}

func TestApplyDefaults_Backend(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Backend.Type != "embedded" {
		t.Errorf("Expected default backend type 'embedded', got %q", cfg.Backend.Type)
	}
	if cfg.Backend.Embedded == nil {
		t.Fatal("Expected Embedded map to be initialized")
	}
	if path := cfg.Backend.Embedded["db_path"]; path != "/tmp/svnconnector-repository" {
		t.Errorf("Expected default db_path '/tmp/svnconnector-repository', got %v", path)
	}
	if binary := cfg.Backend.Svn["binary"]; binary != "svn" {
		t.Errorf("Expected default svn binary 'svn', got %v", binary)
	}
	if region := cfg.Backend.S3["region"]; region != "us-east-1" {
		t.Errorf("Expected default S3 region 'us-east-1', got %v", region)
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Logging: LoggingConfig{
			Level:  "debug",
			Format: "json",
			Output: "/var/log/svnconnector.log",
		},
		Connector: ConnectorConfig{
			ID:                 9,
			Label:              "processes",
			RepositoryPath:     "https://svn.example.com/processes",
			TemporaryFileStore: "${SVNCONNECTOR_STAGING}",
		},
		Backend: BackendConfig{
			Type:     "embedded",
			Embedded: map[string]any{"db_path": "/data/repo"},
		},
		Server: ServerConfig{
			Address:         "127.0.0.1:9000",
			ShutdownTimeout: 5 * time.Second,
		},
	}

	ApplyDefaults(cfg)

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected level normalized to 'DEBUG', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Expected format 'json' preserved, got %q", cfg.Logging.Format)
	}
	if cfg.Connector.ID != 9 || cfg.Connector.Label != "processes" {
		t.Errorf("Expected connector identity preserved, got %+v", cfg.Connector)
	}
	if cfg.Connector.TemporaryFileStore != "${SVNCONNECTOR_STAGING}" {
		t.Errorf("Expected temporary_file_store preserved, got %q", cfg.Connector.TemporaryFileStore)
	}
	if cfg.Backend.Embedded["db_path"] != "/data/repo" {
		t.Errorf("Expected db_path preserved, got %v", cfg.Backend.Embedded["db_path"])
	}
	if cfg.Server.Address != "127.0.0.1:9000" {
		t.Errorf("Expected address preserved, got %q", cfg.Server.Address)
	}
	if cfg.Server.ShutdownTimeout != 5*time.Second {
		t.Errorf("Expected shutdown timeout preserved, got %v", cfg.Server.ShutdownTimeout)
	}
}
