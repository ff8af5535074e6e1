package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nao1215/discvscan/internal/config"
	"github.com/nao1215/discvscan/internal/log"
)

// NewRootCmd creates the root command for discvscan.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discvscan",
		Short: "Crawler and measurement tool for the discovery v5 network",
		Long: `discvscan crawls the Ethereum discovery v5 network.

Starting from one or more bootnodes it queries every reachable node,
measures round-trip time and reply bandwidth, extracts the attributes the
node declares in its record (public key, fork digest, attestation subnets,
client) and writes one CSV row per successful measurement.

Once every known node has been measured, the crawl starts a new cycle and
re-measures them. The crawl runs until interrupted with Ctrl+C.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")

	// Add subcommands
	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewReportCmd())
	cmd.AddCommand(NewCompareCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// flagValue looks up a flag on the command or its parents and returns its
// string value.
func flagValue(cmd *cobra.Command, name string) string {
	if f := cmd.Flag(name); f != nil {
		return f.Value.String()
	}
	return ""
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	return flagValue(cmd, "verbose") == "true"
}

// setupLogger creates the secure structured logger writing to w.
// Verbose wins over the configured log level.
func setupLogger(w io.Writer, cfg *config.Config) (*slog.Logger, error) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalidLogLevel, err)
	}
	if cfg.Verbose {
		level = slog.LevelDebug
	}

	if cfg.LogJSON {
		return log.NewSecureJSONLogger(w, level), nil
	}
	return log.NewSecureLogger(w, level), nil
}
