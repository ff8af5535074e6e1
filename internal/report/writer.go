package report

import (
	"io"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/discvscan/internal/model"
)

// Writer defines the interface for report output.
type Writer interface {
	// WriteSummary outputs the summary of one crawl session.
	// Returns the number of bytes written and any error encountered.
	WriteSummary(summary *model.CrawlSummary) (int, error)

	// WriteDiff outputs the node changes between two cycles.
	WriteDiff(diff *model.CycleDiff) (int, error)
}

// MultiWriter writes to multiple Writers simultaneously.
// This is useful for outputting to both terminal and file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// WriteSummary outputs the summary to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) WriteSummary(summary *model.CrawlSummary) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteSummary(summary)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteDiff outputs the diff to all configured Writers.
func (m *MultiWriter) WriteDiff(diff *model.CycleDiff) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteDiff(diff)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// titleCaser capitalises client names, e.g. "lighthouse" -> "Lighthouse".
var titleCaser = cases.Title(language.English)

// displayClient returns the human-readable form of a client label.
func displayClient(label string) string {
	if label == "" {
		return "Unknown"
	}
	return titleCaser.String(label)
}

// shortID shortens a hex node ID for tables.
func shortID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:16]
}
