// Package model defines the data structures shared across sitecrawler.
//
// This package contains the following main types:
//   - FrontierEntry: A pending (URL, depth) pair awaiting fetch
//   - PageRecord: The immutable result of a successful fetch and extract pass
//   - Session: One logical crawl run, resumable by its ID
//   - Counters: A serializable copy of the crawl statistics
//   - Snapshot: A durable capture of crawl state used for resume
//   - ErrorKind: The classification of per-URL failures
//
// Models live in their own package so that the crawler, the checkpoint store,
// the storage sinks and the report writers can share them without import
// cycles. All types serialize to JSON for database storage and report output.
package model
