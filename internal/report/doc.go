// Package report renders stored crawl sessions for humans and tools.
//
// This package contains writers for different output formats:
//   - SimpleWriter: Human-readable text output for terminal display
//   - JSONWriter: Structured JSON output for tool integration
//   - MarkdownWriter: Markdown with a mermaid chart of the client mix
//
// Each writer renders two views: a CrawlSummary (per-cycle counts and the
// client and fork distributions of one session) and a CycleDiff (nodes that
// joined or left between two cycles).
package report
