// Package model defines the data structures shared by the crawler, the
// persistence sinks and the report writers.
//
// This package contains the following main types:
//   - NodeID: the 32-byte discovery identity of a peer
//   - Node: an identity with its optional UDP endpoint and signed record
//   - NodeStats: live RTT and bandwidth figures for a queried node
//   - Attributes: the self-declared ENR attributes the crawler records
//   - MeasurementRow: one persisted measurement
//   - CrawlSummary and CycleDiff: aggregated views used by reports
//
// Models live in their own package so that crawler, sink, database and
// report can all depend on them without import cycles.
package model
