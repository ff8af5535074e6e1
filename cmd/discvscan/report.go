package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/nao1215/discvscan/internal/config"
)

// NewReportCmd creates the report command.
func NewReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report [session-id]",
		Short: "Summarize a recorded crawl session",
		Long: `Report reads a crawl session from the database and summarizes it:
- Nodes measured and mean RTT and bandwidth per cycle
- Distribution of declared client names
- Distribution of fork digests

Without a session ID the most recent session is reported.

Examples:
  # Report the latest crawl
  discvscan report

  # List recorded sessions
  discvscan report --list

  # Markdown report for a given session written to a file
  discvscan report 3f2c... --markdown -o crawl.md`,
		Args: cobra.MaximumNArgs(1),
		RunE: runReportCmd,
	}

	cmd.Flags().BoolP("list", "l", false,
		"List recorded crawl sessions")
	addOutputFlags(cmd, config.XDGDataDir())

	return cmd
}

// runReportCmd executes the report command.
func runReportCmd(cmd *cobra.Command, args []string) error {
	listOnly, err := cmd.Flags().GetBool("list")
	if err != nil {
		return err
	}

	// Validate format flags before opening the database
	if _, err := newReportWriter(cmd, io.Discard); err != nil {
		return err
	}

	db, err := openReadDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()

	if listOnly {
		return listSessions(ctx, cmd.OutOrStdout(), db)
	}

	session, err := resolveSession(ctx, db, args)
	if err != nil {
		return err
	}

	summary, err := db.Summary(ctx, session.ID)
	if err != nil {
		return fmt.Errorf("failed to summarize session: %w", err)
	}
	if summary == nil {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, session.ID)
	}

	return writeOutput(cmd, func(w io.Writer) error {
		writer, err := newReportWriter(cmd, w)
		if err != nil {
			return err
		}
		_, err = writer.WriteSummary(summary)
		return err
	})
}

// writeOutput runs write against stdout or the file named by --output.
func writeOutput(cmd *cobra.Command, write func(io.Writer) error) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	if outputPath == "" {
		return write(cmd.OutOrStdout())
	}

	f, err := os.Create(outputPath) //nolint:gosec // User-provided output path is intentional
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close output file: %w", err)
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Report written to %s\n", outputPath)
	return nil
}
