// Package database provides SQLite-based storage for crawl sessions.
//
// CrawlDB stores, keyed by session ID:
//   - session metadata and status
//   - the latest snapshot (visited set, pending frontier, discovered URLs, counters)
//   - accepted pages with their extracted data, used as a page-seen index on resume
//   - a per-URL error log
//
// SQLite (modernc.org/sqlite) keeps the store a single file with no external
// service and no CGO. A snapshot is written in one transaction, so a crash
// mid-write leaves the previous snapshot intact.
package database
