package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nao1215/discvscan/internal/database"
	"github.com/nao1215/discvscan/internal/model"
	"github.com/nao1215/discvscan/internal/report"
)

var (
	// ErrConflictingReportFormats is returned when --json and --markdown are combined.
	ErrConflictingReportFormats = errors.New("--json and --markdown cannot be used together")

	// ErrNoSessions is returned when the database holds no crawl session.
	ErrNoSessions = errors.New("no crawl sessions recorded (run 'discvscan crawl' first)")

	// ErrSessionNotFound is returned when the requested session does not exist.
	ErrSessionNotFound = errors.New("crawl session not found")
)

// addOutputFlags registers the flags shared by report and compare.
func addOutputFlags(cmd *cobra.Command, dbDir string) {
	cmd.Flags().String("db-dir", dbDir,
		"Directory of the crawl database")
	cmd.Flags().BoolP("json", "j", false,
		"Output in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output in Markdown format")
	cmd.Flags().StringP("output", "o", "",
		"Write the output to a file instead of stdout")
}

// openReadDB opens the crawl database named by the --db-dir flag without
// creating it.
func openReadDB(cmd *cobra.Command) (*database.CrawlDB, error) {
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return nil, err
	}
	db, err := database.Open(dbDir, database.ReadOnlyOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// resolveSession returns the session named by args, or the latest one.
func resolveSession(ctx context.Context, db *database.CrawlDB, args []string) (*model.CrawlSession, error) {
	if len(args) == 0 {
		session, err := db.LatestSession(ctx)
		if err != nil {
			return nil, err
		}
		if session == nil {
			return nil, ErrNoSessions
		}
		return session, nil
	}

	session, err := db.GetSession(ctx, args[0])
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, args[0])
	}
	return session, nil
}

// newReportWriter selects the writer for the --json and --markdown flags.
func newReportWriter(cmd *cobra.Command, out io.Writer) (report.Writer, error) {
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return nil, err
	}
	markdownOutput, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return nil, err
	}

	switch {
	case jsonOutput && markdownOutput:
		return nil, ErrConflictingReportFormats
	case jsonOutput:
		return report.NewJSONWriter(out, report.WithPrettyPrint()), nil
	case markdownOutput:
		return report.NewMarkdownWriter(out), nil
	default:
		return report.NewSimpleWriter(out, report.WithVerbose(getVerboseFlag(cmd))), nil
	}
}

// listSessions prints every recorded crawl session.
func listSessions(ctx context.Context, out io.Writer, db *database.CrawlDB) error {
	sessions, err := db.ListSessions(ctx)
	if err != nil {
		return err
	}

	if len(sessions) == 0 {
		fmt.Fprintln(out, "No crawl sessions found in database.")
		return nil
	}

	fmt.Fprintf(out, "Crawl sessions (%d):\n\n", len(sessions))
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SESSION\tSTARTED\tMEASUREMENTS\tLOCAL NODE")
	for _, s := range sessions {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n",
			s.ID,
			s.StartedAt.Local().Format("2006-01-02 15:04:05"),
			s.Measurements,
			shortNodeID(s.LocalNode),
		)
	}
	return tw.Flush()
}

// shortNodeID abbreviates a hex node ID for tables.
func shortNodeID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:16]
}
