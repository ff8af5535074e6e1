// Package sink persists measurement rows.
//
// A Sink receives exactly one row per successfully completed measurement.
// The CSV sink is the primary output artifact of a crawl; Multi fans rows out
// to several sinks, e.g. the CSV file and the crawl database.
//
// Every write failure is fatal to the crawl: errors returned by Append wrap
// ErrPersistence so the caller can tell them apart from query failures.
package sink
