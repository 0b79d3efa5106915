package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/marmos91/svnconnector/internal/logger"
	"github.com/marmos91/svnconnector/pkg/backend"
	"github.com/marmos91/svnconnector/pkg/config"
	"github.com/marmos91/svnconnector/pkg/connector"
	"github.com/marmos91/svnconnector/pkg/metrics"
	"github.com/marmos91/svnconnector/pkg/server"
	"github.com/spf13/afero"
)

const usage = `svnconnector - expose a version-control repository as a document tree

Usage:
  svnconnector <command> [flags] [arguments]

Commands:
  init    Write a sample configuration file
  serve   Run the HTTP API
  ls      List the children of a folder node
  stat    Show a node and its content information
  cat     Write a node's content to stdout
  mkdir   Create a folder node
  touch   Create an empty file node
  put     Replace a file node's content from a local file or stdin
  rm      Delete a node
  info    Show the effective connector configuration

Every command accepts --config <path> (default: %s).
Run 'svnconnector <command> -h' for command flags.
`

func printUsage() {
	fmt.Fprintf(os.Stderr, usage, config.GetDefaultConfigPath())
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	cmd, args := os.Args[1], os.Args[2:]

	var err error
	switch cmd {
	case "init":
		err = runInit(args)
	case "serve":
		err = runServe(args)
	case "ls":
		err = runLs(args)
	case "stat":
		err = runStat(args)
	case "cat":
		err = runCat(args)
	case "mkdir":
		err = runMkdir(args)
	case "touch":
		err = runTouch(args)
	case "put":
		err = runPut(args)
	case "rm":
		err = runRm(args)
	case "info":
		err = runInfo(args)
	case "-h", "--help", "help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		printUsage()
		os.Exit(2)
	}

	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	force := fs.Bool("force", false, "Overwrite an existing configuration file")
	path := fs.String("config", "", "Write to this path instead of the default location")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *path != "" {
		if err := config.InitConfigToPath(*path, *force); err != nil {
			return err
		}
		fmt.Printf("Configuration written to %s\n", *path)
		return nil
	}

	written, err := config.InitConfig(*force)
	if err != nil {
		return err
	}
	fmt.Printf("Configuration written to %s\n", written)
	return nil
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to the configuration file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if err := initLogger(cfg); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("svnconnector starting: connector=%q repository=%s backend=%s",
		cfg.Connector.Label, cfg.Connector.RepositoryPath, cfg.Backend.Type)

	metricsResult := config.InitializeMetrics(cfg)
	if metricsResult.Server != nil {
		go func() {
			if err := metricsResult.Server.Start(ctx); err != nil {
				logger.Error("Metrics server error: %v", err)
			}
		}()
	}

	client, err := config.CreateBackend(ctx, &cfg.Backend, afero.NewOsFs())
	if err != nil {
		return err
	}
	defer closeBackend(client)

	conn := config.CreateConnector(cfg, metrics.InstrumentClient(client), connector.Options{
		Fs:      afero.NewOsFs(),
		Metrics: metricsResult.ConnectorMetrics,
	})

	srv := server.New(conn)
	srv.StopTimeout = cfg.Server.ShutdownTimeout
	for _, adp := range config.CreateAdapters(cfg, metricsResult.HTTPMetrics) {
		if err := srv.AddAdapter(adp); err != nil {
			return err
		}
	}

	logger.Info("Server is running. Press Ctrl+C to stop.")

	if err := srv.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("Server stopped gracefully")
	return nil
}

func runInfo(args []string) error {
	fs := flag.NewFlagSet("info", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to the configuration file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	connCfg := config.ConnectorConfiguration(&cfg.Connector)
	fmt.Printf("Connector:       %s (id %d)\n", connCfg.Label, connCfg.ID)
	fmt.Printf("Repository:      %s\n", connCfg.Properties[connector.ConfigKeyRepositoryPath])
	if store, ok := connCfg.Properties[connector.ConfigKeyTemporaryFileStore]; ok {
		fmt.Printf("Working copies:  %s\n", store)
	} else {
		fmt.Printf("Working copies:  %s (system default)\n", os.TempDir())
	}
	fmt.Printf("Backend:         %s\n", cfg.Backend.Type)
	if cfg.Credentials.Username != "" {
		fmt.Printf("User:            %s\n", cfg.Credentials.Username)
	}
	fmt.Printf("HTTP API:        %s\n", cfg.Server.Address)
	if cfg.Server.Metrics.Enabled {
		fmt.Printf("Metrics:         :%d/metrics\n", cfg.Server.Metrics.Port)
	} else {
		fmt.Printf("Metrics:         disabled\n")
	}

	fmt.Println()
	fmt.Println("Operations:")
	for _, op := range operationNames {
		traits := connector.Operations[op]
		fmt.Printf("  %-22s threadsafe=%-5t secured=%t\n", op, traits.Threadsafe, traits.Secured)
	}
	return nil
}

var operationNames = []string{
	connector.OpLogin,
	connector.OpGetRoot,
	connector.OpGetChildren,
	connector.OpGetNode,
	connector.OpCreateNode,
	connector.OpDeleteNode,
	connector.OpUpdateContent,
	connector.OpGetContent,
	connector.OpGetContentInformation,
}

func initLogger(cfg *config.Config) error {
	return logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

func closeBackend(client backend.Client) {
	if closer, ok := client.(backend.Closer); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close backend: %v", err)
		}
	}
}
