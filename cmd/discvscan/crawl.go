package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/discvscan/internal/config"
	"github.com/nao1215/discvscan/internal/crawler"
	"github.com/nao1215/discvscan/internal/database"
	"github.com/nao1215/discvscan/internal/discovery"
	"github.com/nao1215/discvscan/internal/log"
	"github.com/nao1215/discvscan/internal/sink"
)

// clientFactory starts the discovery client used by a crawl.
// The returned stop function releases the client.
type clientFactory func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (crawler.Client, func() error, error)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl the discovery v5 network and record measurements",
		Long: `Crawl starts a discovery v5 listener, seeds it with the given bootnodes and
measures every node it can reach. Each successful measurement is written as
one row to the CSV output file, which is truncated first.

When every known node has been measured, a new cycle starts and the same
population is measured again. Ctrl+C stops the crawl after in-flight queries
have finished.

Examples:
  # Crawl from a single bootnode
  discvscan crawl -b enr:-Ku4QImhMc1z8yCiNJ1...

  # Write to a custom file and keep the node identity across runs
  discvscan crawl -b enr:-... -o mainnet.csv -k ~/.config/discvscan/nodekey

  # Use the bootnodes from a configuration file
  discvscan crawl -c mainnet.yaml`,
		Args: cobra.NoArgs,
		RunE: runCrawlCmd,
	}

	// Discovery flags
	cmd.Flags().StringArrayP("bootnode", "b", nil,
		"Bootnode enr: or enode:// URL (repeatable)")
	cmd.Flags().StringP("listen", "l", config.DefaultListenAddress,
		"Local UDP address of the discovery socket")
	cmd.Flags().StringP("nodekey", "k", "",
		"Hex secp256k1 private key file (ephemeral key when empty)")

	// Output flags
	cmd.Flags().StringP("output", "o", config.DefaultOutputFile,
		"CSV output file (truncated on start)")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory for the crawl database")
	cmd.Flags().Bool("no-db", false,
		"Do not record measurements in the crawl database")

	// Scheduler flags
	cmd.Flags().Duration("dispatch-interval", config.DefaultDispatchInterval,
		"Pause between two dispatched queries")
	cmd.Flags().Duration("retry-interval", config.DefaultRetryInterval,
		"Wait while queries are in flight and the queue is empty")
	cmd.Flags().Duration("query-timeout", config.DefaultQueryTimeout,
		"Upper bound for a single FINDNODE exchange")
	cmd.Flags().Int("max-pending", config.DefaultMaxPending,
		"Maximum number of queries in flight (0 disables the cap)")
	cmd.Flags().Int("seed-count", config.DefaultSeedCount,
		"Number of locally known nodes seeding the first cycle")

	// Configuration file flag
	cmd.Flags().StringP("config", "c", "",
		"Path to configuration file (default: .discvscan in current or home directory)")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger, err := setupLogger(cmd.ErrOrStderr(), cfg)
	if err != nil {
		return err
	}

	// Set up context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return runCrawl(ctx, cfg, logger, startListener)
}

// buildConfig creates a Config from command flags and the configuration file.
// Flags set explicitly on the command line override file values.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	if cfg.Bootnodes, err = flags.GetStringArray("bootnode"); err != nil {
		return nil, err
	}
	if cfg.ListenAddress, err = flags.GetString("listen"); err != nil {
		return nil, err
	}
	if cfg.NodeKeyFile, err = flags.GetString("nodekey"); err != nil {
		return nil, err
	}
	if cfg.OutputFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
		return nil, err
	}
	noDB, err := flags.GetBool("no-db")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noDB

	if cfg.DispatchInterval, err = flags.GetDuration("dispatch-interval"); err != nil {
		return nil, err
	}
	if cfg.RetryInterval, err = flags.GetDuration("retry-interval"); err != nil {
		return nil, err
	}
	if cfg.QueryTimeout, err = flags.GetDuration("query-timeout"); err != nil {
		return nil, err
	}
	if cfg.MaxPending, err = flags.GetInt("max-pending"); err != nil {
		return nil, err
	}
	if cfg.SeedCount, err = flags.GetInt("seed-count"); err != nil {
		return nil, err
	}
	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	cfg.Verbose = getVerboseFlag(cmd)
	cfg.LogJSON = flagValue(cmd, "log-json") == "true"
	if level := flagValue(cmd, "log-level"); level != "" {
		cfg.LogLevel = level
	}

	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	if configPath == "" {
		if cfg.ConfigFilePath != "" {
			return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
		}
		return cfg, nil
	}

	file, err := config.LoadConfigFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration file %s: %w", configPath, err)
	}

	explicit := make(map[string]bool)
	for _, name := range []string{
		"bootnode", "listen", "nodekey", "output",
		"dispatch-interval", "retry-interval", "query-timeout", "max-pending", "seed-count",
	} {
		explicit[name] = flags.Changed(name)
	}
	if f := cmd.Flag("log-level"); f != nil {
		explicit["log-level"] = f.Changed
	}
	cfg.Apply(file, explicit)

	return cfg, nil
}

// startListener starts the discovery v5 listener described by cfg.
func startListener(ctx context.Context, cfg *config.Config, logger *slog.Logger) (crawler.Client, func() error, error) {
	bootnodes, err := discovery.ParseBootnodes(cfg.Bootnodes)
	if err != nil {
		return nil, nil, err
	}

	key, err := discovery.LoadNodeKey(cfg.NodeKeyFile)
	if err != nil {
		return nil, nil, err
	}

	listener := discovery.NewListener(key,
		discovery.WithListenAddress(cfg.ListenAddress),
		discovery.WithBootnodes(bootnodes),
		discovery.WithQueryTimeout(cfg.QueryTimeout),
		discovery.WithLogger(logger),
	)
	if err := listener.Start(ctx); err != nil {
		return nil, nil, err
	}

	local, err := listener.Local()
	if err != nil {
		_ = listener.Stop() //nolint:errcheck // already failing
		return nil, nil, err
	}
	logger.Info("advertising local node",
		"node_id", local.ID.String(),
		"endpoint", local.Endpoint(),
	)
	return listener, listener.Stop, nil
}

// runCrawl wires the sinks, the discovery client and the scheduler together
// and crawls until ctx is cancelled or a row cannot be persisted.
// The CSV file is created before the client starts, so an unwritable output
// aborts the run before any query is sent.
func runCrawl(ctx context.Context, cfg *config.Config, logger *slog.Logger, newClient clientFactory) error {
	csvSink, err := sink.CreateCSV(cfg.OutputFile)
	if err != nil {
		log.Fatal(ctx, logger, "cannot open output", "path", cfg.OutputFile, "error", err)
		return err
	}
	sinks := sink.Multi{csvSink}
	defer func() {
		if err := sinks.Close(); err != nil {
			logger.Warn("failed to close sinks", "error", err)
		}
	}()

	client, stop, err := newClient(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to start discovery listener: %w", err)
	}
	defer func() {
		if err := stop(); err != nil {
			logger.Warn("failed to stop discovery listener", "error", err)
		}
	}()

	if cfg.SaveToDB {
		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer func() {
			if err := db.Close(); err != nil {
				logger.Warn("failed to close database", "error", err)
			}
		}()

		recorder, err := db.StartSession(ctx, client.Self(), time.Now())
		if err != nil {
			return fmt.Errorf("failed to start crawl session: %w", err)
		}
		sinks = append(sinks, recorder)
		logger.Info("recording crawl session",
			"session", recorder.Session().ID,
			"db", db.Path(),
		)
	}

	c := crawler.New(client, sinks,
		crawler.WithDispatchInterval(cfg.DispatchInterval),
		crawler.WithRetryInterval(cfg.RetryInterval),
		crawler.WithMaxPending(cfg.MaxPending),
		crawler.WithSeedCount(cfg.SeedCount),
		crawler.WithLogger(logger),
	)
	return c.Run(ctx)
}
