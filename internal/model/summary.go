package model

import (
	"sort"
	"time"
)

// CrawlSession describes one crawler run stored in the database.
type CrawlSession struct {
	// ID is the session UUID.
	ID string `json:"id"`

	// StartedAt is when the crawl started.
	StartedAt time.Time `json:"started_at"`

	// LocalNode is the hex node ID the crawler used.
	LocalNode string `json:"local_node"`

	// Measurements is the number of rows recorded in the session.
	Measurements int `json:"measurements"`
}

// CycleSummary aggregates the measurements of one cycle.
type CycleSummary struct {
	Cycle        int     `json:"cycle"`
	Nodes        int     `json:"nodes"`
	AvgRTTMillis float64 `json:"avg_rtt_ms"`
	AvgBWMbps    float64 `json:"avg_bw_mbps"`

	// Complete is false for a cycle the crawl was interrupted in.
	Complete bool `json:"complete"`
}

// Count is a label with the number of nodes that carry it.
type Count struct {
	Label string `json:"label"`
	Nodes int    `json:"nodes"`
}

// CrawlSummary is the aggregated view of a crawl session.
type CrawlSummary struct {
	// Session is the summarised crawl session.
	Session CrawlSession `json:"session"`

	// Cycles lists per-cycle aggregates in cycle order.
	Cycles []CycleSummary `json:"cycles"`

	// Clients counts distinct nodes per declared client name.
	Clients []Count `json:"clients,omitempty"`

	// ForkDigests counts distinct nodes per fork digest.
	ForkDigests []Count `json:"fork_digests,omitempty"`

	// GeneratedAt is when the summary was produced.
	GeneratedAt time.Time `json:"generated_at"`
}

// TotalNodes returns the number of distinct nodes counted by Clients.
func (s *CrawlSummary) TotalNodes() int {
	total := 0
	for _, c := range s.Clients {
		total += c.Nodes
	}
	return total
}

// SortCounts orders counts by node count descending, then label ascending.
func SortCounts(counts []Count) {
	sort.SliceStable(counts, func(i, j int) bool {
		if counts[i].Nodes != counts[j].Nodes {
			return counts[i].Nodes > counts[j].Nodes
		}
		return counts[i].Label < counts[j].Label
	})
}

// CycleDiff describes how the measured node set changed between two cycles.
type CycleDiff struct {
	SessionID string   `json:"session_id"`
	From      int      `json:"from"`
	To        int      `json:"to"`
	Joined    []string `json:"joined"`
	Left      []string `json:"left"`
	Stable    int      `json:"stable"`
}

// NewCycleDiff compares the node IDs measured in two cycles.
// Joined and Left are returned sorted.
func NewCycleDiff(sessionID string, from, to int, fromNodes, toNodes []string) *CycleDiff {
	before := make(map[string]struct{}, len(fromNodes))
	for _, id := range fromNodes {
		before[id] = struct{}{}
	}

	diff := &CycleDiff{
		SessionID: sessionID,
		From:      from,
		To:        to,
		Joined:    []string{},
		Left:      []string{},
	}

	after := make(map[string]struct{}, len(toNodes))
	for _, id := range toNodes {
		after[id] = struct{}{}
		if _, ok := before[id]; ok {
			diff.Stable++
		} else {
			diff.Joined = append(diff.Joined, id)
		}
	}
	for id := range before {
		if _, ok := after[id]; !ok {
			diff.Left = append(diff.Left, id)
		}
	}

	sort.Strings(diff.Joined)
	sort.Strings(diff.Left)
	return diff
}

// HasChanges reports whether any node joined or left.
func (d *CycleDiff) HasChanges() bool {
	return len(d.Joined) > 0 || len(d.Left) > 0
}
