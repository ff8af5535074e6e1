package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nao1215/discvscan/internal/config"
	"github.com/nao1215/discvscan/internal/model"
)

var (
	// ErrNotEnoughCycles is returned when a session has fewer than two completed cycles to compare.
	ErrNotEnoughCycles = errors.New("session has fewer than two completed cycles to compare")
	// ErrInvalidCycleRange is returned when --from is not lower than --to.
	ErrInvalidCycleRange = errors.New("--from must be lower than --to")
)

// NewCompareCmd creates the compare command.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare [session-id]",
		Short: "Compare the node populations of two crawl cycles",
		Long: `Compare shows which nodes joined and which left the network between two
cycles of a recorded crawl session.

By default the last two completed cycles of the most recent session are
compared. A cycle the crawl was stopped in is left out.

Examples:
  # Compare the last two completed cycles of the latest crawl
  discvscan compare

  # Compare cycle 0 with cycle 3 of a given session
  discvscan compare 3f2c... --from 0 --to 3

  # Output the comparison as JSON
  discvscan compare --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCompareCmd,
	}

	cmd.Flags().IntP("from", "f", -1,
		"Earlier cycle (default: second to last completed cycle)")
	cmd.Flags().IntP("to", "t", -1,
		"Later cycle (default: last completed cycle)")
	addOutputFlags(cmd, config.XDGDataDir())

	return cmd
}

// runCompareCmd executes the compare command.
func runCompareCmd(cmd *cobra.Command, args []string) error {
	from, err := cmd.Flags().GetInt("from")
	if err != nil {
		return err
	}
	to, err := cmd.Flags().GetInt("to")
	if err != nil {
		return err
	}

	if _, err := newReportWriter(cmd, io.Discard); err != nil {
		return err
	}

	db, err := openReadDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()

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

	from, to, err = selectCycles(summary.Cycles, from, to)
	if err != nil {
		return err
	}

	fromNodes, err := db.CycleNodes(ctx, session.ID, from)
	if err != nil {
		return err
	}
	toNodes, err := db.CycleNodes(ctx, session.ID, to)
	if err != nil {
		return err
	}

	diff := model.NewCycleDiff(session.ID, from, to, fromNodes, toNodes)

	return writeOutput(cmd, func(w io.Writer) error {
		writer, err := newReportWriter(cmd, w)
		if err != nil {
			return err
		}
		_, err = writer.WriteDiff(diff)
		return err
	})
}

// selectCycles resolves the cycles to compare. A negative to picks the last
// completed cycle and a negative from picks the completed cycle preceding to.
// A trailing cycle the crawl was stopped in is never chosen by default.
func selectCycles(cycles []model.CycleSummary, from, to int) (int, int, error) {
	if to < 0 {
		found := false
		for _, c := range cycles {
			if c.Complete {
				to = c.Cycle
				found = true
			}
		}
		if !found {
			return 0, 0, ErrNotEnoughCycles
		}
	}

	if from < 0 {
		found := false
		for _, c := range cycles {
			if c.Complete && c.Cycle < to {
				from = c.Cycle
				found = true
			}
		}
		if !found {
			return 0, 0, ErrNotEnoughCycles
		}
	}

	if from >= to {
		return 0, 0, fmt.Errorf("%w (from %d, to %d)", ErrInvalidCycleRange, from, to)
	}
	return from, to, nil
}
