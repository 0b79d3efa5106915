package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// InitConfig writes a commented sample configuration to the default
// location and returns its path.
//
// An existing file is only replaced when force is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a commented sample configuration to path, creating
// parent directories as needed.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	content, err := generateYAMLWithComments(GetDefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to generate config: %w", err)
	}

	// The file may carry credentials
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// serverSection renders durations as strings ("30s") rather than
// nanosecond integers.
type serverSection struct {
	Address         string          `yaml:"address"`
	ShutdownTimeout string          `yaml:"shutdown_timeout"`
	AllowAnonymous  bool            `yaml:"allow_anonymous"`
	RateLimit       RateLimitConfig `yaml:"rate_limit"`
	Metrics         MetricsConfig   `yaml:"metrics"`
}

type section struct {
	comment string
	key     string
	value   any
}

// generateYAMLWithComments renders cfg as YAML with a comment block in front
// of every top-level section.
func generateYAMLWithComments(cfg *Config) (string, error) {
	sections := []section{
		{
			comment: `Logging
level: DEBUG, INFO, WARN, ERROR
format: text, json
output: stdout, stderr or a file path`,
			key:   "logging",
			value: cfg.Logging,
		},
		{
			comment: `Connector identity and repository location
repository_path is the repository base URL, e.g. https://svn.example.com/repo,
file:///var/svn/repo, or embedded:/// for the embedded backend.
temporary_file_store is where working copies are staged. It accepts ${NAME}
to read the location from the environment; empty uses the system temp dir.`,
			key:   "connector",
			value: cfg.Connector,
		},
		{
			comment: `Credentials bound at startup (optional)
HTTP callers presenting Basic credentials replace them for later calls.`,
			key:   "credentials",
			value: cfg.Credentials,
		},
		{
			comment: `Repository backend
type: svn (svn command line), embedded (BadgerDB), s3 (object storage)
Only the section matching type is used.
embedded also accepts in_memory: true.
s3 accepts bucket, region, key_prefix, endpoint, access_key_id,
secret_access_key and max_retries.`,
			key:   "backend",
			value: cfg.Backend,
		},
		{
			comment: `HTTP API and metrics
rate_limit.requests_per_second: 0 disables throttling`,
			key:     "server",
			value: serverSection{
				Address:         cfg.Server.Address,
				ShutdownTimeout: cfg.Server.ShutdownTimeout.String(),
				AllowAnonymous:  cfg.Server.AllowAnonymous,
				RateLimit:       cfg.Server.RateLimit,
				Metrics:         cfg.Server.Metrics,
			},
		},
	}

	var b strings.Builder
	b.WriteString("# svnconnector Configuration File\n")
	b.WriteString("#\n")
	b.WriteString("# Every value can be overridden with an environment variable named\n")
	b.WriteString("# SVNCONNECTOR_<SECTION>_<KEY>, e.g. SVNCONNECTOR_LOGGING_LEVEL=DEBUG.\n")

	for _, s := range sections {
		out, err := yaml.Marshal(map[string]any{s.key: s.value})
		if err != nil {
			return "", fmt.Errorf("failed to marshal %s section: %w", s.key, err)
		}

		b.WriteString("\n")
		for _, line := range strings.Split(s.comment, "\n") {
			b.WriteString("# ")
			b.WriteString(line)
			b.WriteString("\n")
		}
		b.Write(out)
	}

	return b.String(), nil
}
