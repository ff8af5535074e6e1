package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/discvscan/internal/model"
)

// maxListedNodes caps the node lists in Markdown diffs.
const maxListedNodes = 50

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// WriteSummary outputs the session summary in Markdown format.
func (w *MarkdownWriter) WriteSummary(summary *model.CrawlSummary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("discvscan Crawl Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Session", "`" + summary.Session.ID + "`"},
			{"Started", summary.Session.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Local Node", "`" + shortID(summary.Session.LocalNode) + "`"},
			{"Measurements", strconv.Itoa(summary.Session.Measurements)},
			{"Distinct Nodes", strconv.Itoa(summary.TotalNodes())},
		},
	})
	md.PlainText("")

	w.writeCycles(md, summary)
	w.writeClients(md, summary)
	w.writeForkDigests(md, summary)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeCycles(md *markdown.Markdown, summary *model.CrawlSummary) {
	md.H2("Cycles")
	md.PlainText("")

	if len(summary.Cycles) == 0 {
		md.Note("No measurements were recorded in this session.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(summary.Cycles))
	for i, c := range summary.Cycles {
		rows[i] = []string{
			strconv.Itoa(c.Cycle),
			strconv.Itoa(c.Nodes),
			strconv.FormatFloat(c.AvgRTTMillis, 'f', 3, 64),
			strconv.FormatFloat(c.AvgBWMbps, 'f', 3, 64),
			cycleStatus(c),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Cycle", "Nodes", "Avg RTT (ms)", "Avg BW (Mbps)", "Status"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeClients writes the client table and a mermaid pie chart of the mix.
func (w *MarkdownWriter) writeClients(md *markdown.Markdown, summary *model.CrawlSummary) {
	md.H2("Clients")
	md.PlainText("")

	if len(summary.Clients) == 0 {
		md.PlainText("No client information recorded.")
		md.PlainText("")
		return
	}

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Client Distribution"),
		piechart.WithShowData(true),
	)

	rows := make([][]string, len(summary.Clients))
	for i, c := range summary.Clients {
		rows[i] = []string{displayClient(c.Label), strconv.Itoa(c.Nodes)}
		chart.LabelAndIntValue(displayClient(c.Label), uint64(c.Nodes)) //nolint:gosec // counts are non-negative
	}

	md.Table(markdown.TableSet{
		Header: []string{"Client", "Nodes"},
		Rows:   rows,
	})
	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeForkDigests(md *markdown.Markdown, summary *model.CrawlSummary) {
	if len(summary.ForkDigests) == 0 {
		return
	}

	md.H2("Fork Digests")
	md.PlainText("")

	rows := make([][]string, len(summary.ForkDigests))
	for i, c := range summary.ForkDigests {
		rows[i] = []string{"`" + c.Label + "`", strconv.Itoa(c.Nodes)}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Fork Digest", "Nodes"},
		Rows:   rows,
	})
	md.PlainText("")
}

// WriteDiff outputs the cycle diff in Markdown format.
func (w *MarkdownWriter) WriteDiff(diff *model.CycleDiff) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("discvscan Cycle Comparison")
	md.PlainText("")
	md.PlainTextf("Session `%s`, cycle %d compared with cycle %d.", diff.SessionID, diff.To, diff.From)
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Change", "Nodes"},
		Rows: [][]string{
			{"Joined", strconv.Itoa(len(diff.Joined))},
			{"Left", strconv.Itoa(len(diff.Left))},
			{"Stable", strconv.Itoa(diff.Stable)},
		},
	})
	md.PlainText("")

	if !diff.HasChanges() {
		md.Tip("The measured node set did not change.")
		md.PlainText("")
	} else {
		w.writeNodeList(md, "Joined", diff.Joined)
		w.writeNodeList(md, "Left", diff.Left)
	}

	w.writeFooter(md)
	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeNodeList(md *markdown.Markdown, title string, ids []string) {
	if len(ids) == 0 {
		return
	}

	md.H2(title)
	md.PlainText("")

	listed := ids
	if len(listed) > maxListedNodes {
		listed = listed[:maxListedNodes]
	}
	items := make([]string, len(listed))
	for i, id := range listed {
		items[i] = "`" + id + "`"
	}
	md.BulletList(items...)
	md.PlainText("")

	if len(ids) > maxListedNodes {
		md.PlainText(fmt.Sprintf("... and %d more.", len(ids)-maxListedNodes))
		md.PlainText("")
	}
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [discvscan](https://github.com/nao1215/discvscan)*")
}
