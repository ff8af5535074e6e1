package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/discvscan/internal/model"
)

// SimpleWriter outputs human-readable text reports for terminal display.
type SimpleWriter struct {
	baseWriter

	// verbose lists every joined and left node in diffs instead of counts only.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// WriteSummary outputs the session summary in human-readable format.
func (w *SimpleWriter) WriteSummary(summary *model.CrawlSummary) (int, error) {
	var sb strings.Builder

	writeBanner(&sb, "DISCVSCAN CRAWL REPORT")

	sb.WriteString(fmt.Sprintf("Session:        %s\n", summary.Session.ID))
	sb.WriteString(fmt.Sprintf("Started:        %s\n", summary.Session.StartedAt.Format("2006-01-02 15:04:05 MST")))
	sb.WriteString(fmt.Sprintf("Local node:     %s\n", summary.Session.LocalNode))
	sb.WriteString(fmt.Sprintf("Measurements:   %d\n", summary.Session.Measurements))
	sb.WriteString(fmt.Sprintf("Distinct nodes: %d\n\n", summary.TotalNodes()))

	sb.WriteString("CYCLES\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	if len(summary.Cycles) == 0 {
		sb.WriteString("  No measurements recorded.\n")
	} else {
		sb.WriteString(fmt.Sprintf("  %-8s %8s %14s %14s  %s\n", "Cycle", "Nodes", "Avg RTT (ms)", "Avg BW (Mbps)", "Status"))
		for _, c := range summary.Cycles {
			sb.WriteString(fmt.Sprintf("  %-8d %8d %14.3f %14.3f  %s\n", c.Cycle, c.Nodes, c.AvgRTTMillis, c.AvgBWMbps, cycleStatus(c)))
		}
	}
	sb.WriteString("\n")

	writeCounts(&sb, "CLIENTS", summary.Clients, displayClient)
	writeCounts(&sb, "FORK DIGESTS", summary.ForkDigests, func(s string) string { return s })

	return w.output.Write([]byte(sb.String()))
}

// WriteDiff outputs the cycle diff in human-readable format.
func (w *SimpleWriter) WriteDiff(diff *model.CycleDiff) (int, error) {
	var sb strings.Builder

	writeBanner(&sb, "DISCVSCAN CYCLE COMPARISON")

	sb.WriteString(fmt.Sprintf("Session: %s\n", diff.SessionID))
	sb.WriteString(fmt.Sprintf("Cycles:  %d -> %d\n\n", diff.From, diff.To))
	sb.WriteString(fmt.Sprintf("  Joined: %d\n", len(diff.Joined)))
	sb.WriteString(fmt.Sprintf("  Left:   %d\n", len(diff.Left)))
	sb.WriteString(fmt.Sprintf("  Stable: %d\n\n", diff.Stable))

	if !diff.HasChanges() {
		sb.WriteString("No changes between the two cycles.\n")
	} else if w.verbose {
		writeIDs(&sb, "JOINED", "+", diff.Joined)
		writeIDs(&sb, "LEFT", "-", diff.Left)
	}

	return w.output.Write([]byte(sb.String()))
}

func writeBanner(sb *strings.Builder, title string) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	pad := max((70-len(title))/2, 0)
	sb.WriteString(strings.Repeat(" ", pad))
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")
}

func writeCounts(sb *strings.Builder, title string, counts []model.Count, label func(string) string) {
	if len(counts) == 0 {
		return
	}

	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	for _, c := range counts {
		sb.WriteString(fmt.Sprintf("  %-30s %6d\n", label(c.Label), c.Nodes))
	}
	sb.WriteString("\n")
}

func writeIDs(sb *strings.Builder, title, marker string, ids []string) {
	if len(ids) == 0 {
		return
	}

	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	for _, id := range ids {
		sb.WriteString(fmt.Sprintf("  %s %s\n", marker, id))
	}
	sb.WriteString("\n")
}

// cycleStatus labels a cycle the crawl finished or was stopped in.
func cycleStatus(c model.CycleSummary) string {
	if c.Complete {
		return "complete"
	}
	return "partial"
}
