package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/marmos91/svnconnector/internal/logger"
	"github.com/marmos91/svnconnector/pkg/backend"
	"github.com/marmos91/svnconnector/pkg/backend/embedded"
	backendS3 "github.com/marmos91/svnconnector/pkg/backend/s3"
	"github.com/marmos91/svnconnector/pkg/backend/svn"
	"github.com/marmos91/svnconnector/pkg/connector"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/afero"
)

// CreateBackend creates a repository backend based on configuration.
//
// This factory function dispatches to the appropriate backend-specific
// creation function based on cfg.Type. The backend-specific options are
// decoded from the matching map.
//
// Working copies are created on fs; the svn backend shells out to the svn
// executable and therefore only works with the OS filesystem.
//
// Supported types:
//   - "svn": Subversion repository through the svn command line
//   - "embedded": BadgerDB-backed versioned repository
//   - "s3": S3-compatible object storage
func CreateBackend(ctx context.Context, cfg *BackendConfig, fs afero.Fs) (backend.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch cfg.Type {
	case "svn":
		return createSvnBackend(cfg.Svn, fs)
	case "embedded":
		return createEmbeddedBackend(ctx, cfg.Embedded, fs)
	case "s3":
		return createS3Backend(ctx, cfg.S3, fs)
	default:
		return nil, fmt.Errorf("unknown backend type: %q (supported: svn, embedded, s3)", cfg.Type)
	}
}

// createSvnBackend creates the svn command line backend.
func createSvnBackend(options map[string]any, fs afero.Fs) (backend.Client, error) {
	if fs != nil {
		if _, ok := fs.(*afero.OsFs); !ok {
			return nil, fmt.Errorf("svn backend: working copies require the OS filesystem")
		}
	}

	var backendCfg svn.Config
	if err := mapstructure.Decode(options, &backendCfg); err != nil {
		return nil, fmt.Errorf("failed to decode svn backend config: %w", err)
	}

	client := svn.New(backendCfg)
	logger.Info("svn backend initialized: binary=%s", valueOr(backendCfg.Binary, "svn"))
	return client, nil
}

// createEmbeddedBackend creates the BadgerDB-backed repository.
func createEmbeddedBackend(ctx context.Context, options map[string]any, fs afero.Fs) (backend.Client, error) {
	var backendCfg embedded.Config
	if err := mapstructure.Decode(options, &backendCfg); err != nil {
		return nil, fmt.Errorf("failed to decode embedded backend config: %w", err)
	}
	backendCfg.Fs = fs

	client, err := embedded.New(ctx, backendCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedded backend: %w", err)
	}

	if backendCfg.InMemory {
		logger.Info("Embedded backend initialized in memory")
	} else {
		logger.Info("Embedded backend initialized: db_path=%s", backendCfg.DBPath)
	}
	return client, nil
}

// createS3Backend creates the object storage backend.
func createS3Backend(ctx context.Context, options map[string]any, fs afero.Fs) (backend.Client, error) {
	type S3BackendConfig struct {
		Region          string `mapstructure:"region"`
		Bucket          string `mapstructure:"bucket"`
		KeyPrefix       string `mapstructure:"key_prefix"`
		Endpoint        string `mapstructure:"endpoint"`
		AccessKeyID     string `mapstructure:"access_key_id"`
		SecretAccessKey string `mapstructure:"secret_access_key"`
		MaxRetries      int    `mapstructure:"max_retries"`
	}

	var backendCfg S3BackendConfig
	if err := mapstructure.Decode(options, &backendCfg); err != nil {
		return nil, fmt.Errorf("failed to decode S3 backend config: %w", err)
	}

	if backendCfg.Bucket == "" {
		return nil, fmt.Errorf("S3 backend: bucket is required")
	}
	if backendCfg.Region == "" {
		return nil, fmt.Errorf("S3 backend: region is required")
	}

	var configOptions []func(*awsConfig.LoadOptions) error
	configOptions = append(configOptions, awsConfig.WithRegion(backendCfg.Region))

	if backendCfg.AccessKeyID != "" && backendCfg.SecretAccessKey != "" {
		credProvider := credentials.NewStaticCredentialsProvider(
			backendCfg.AccessKeyID,
			backendCfg.SecretAccessKey,
			"",
		)
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(credProvider))
	}

	maxRetries := backendCfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 10
	}
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	api := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// Custom endpoints (Localstack, MinIO) need path-style addressing
		if backendCfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(backendCfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	client, err := backendS3.New(backendS3.Config{
		Client:    api,
		Bucket:    backendCfg.Bucket,
		KeyPrefix: backendCfg.KeyPrefix,
		Fs:        fs,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 backend: %w", err)
	}

	logger.Info("S3 backend initialized: bucket=%s, region=%s, prefix=%s",
		backendCfg.Bucket, backendCfg.Region, backendCfg.KeyPrefix)

	return client, nil
}

// CreateConnector builds a connector over client and applies the connector
// section of cfg. Credentials, when configured, are bound immediately.
func CreateConnector(cfg *Config, client backend.Client, opts connector.Options) *connector.Connector {
	c := connector.New(client, opts)
	c.Init(ConnectorConfiguration(&cfg.Connector))

	if cfg.Credentials.Username != "" {
		c.Login(cfg.Credentials.Username, cfg.Credentials.Password)
	}
	return c
}

// ConnectorConfiguration translates the connector section into the
// configuration handed to Init.
func ConnectorConfiguration(cfg *ConnectorConfig) connector.Configuration {
	props := map[string]string{
		connector.ConfigKeyRepositoryPath: cfg.RepositoryPath,
	}
	if cfg.TemporaryFileStore != "" {
		props[connector.ConfigKeyTemporaryFileStore] = cfg.TemporaryFileStore
	}

	return connector.Configuration{
		ID:         cfg.ID,
		Label:      cfg.Label,
		Properties: props,
	}
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

