// Package database provides SQLite-based storage for discvscan.
//
// The CrawlDB keeps every crawl session and its measurement rows so past
// crawls can be summarised and compared after the CSV file has been moved
// away. It stores:
//   - Crawl sessions (one per crawl run, identified by a UUID)
//   - Measurement rows, the same columns as the CSV output plus the query
//     duration and the measurement time
//
// SQLite is provided by modernc.org/sqlite, a CGO-free driver, so the binary
// cross-compiles without a C toolchain. WAL mode lets report and compare read
// while a crawl is writing.
package database
