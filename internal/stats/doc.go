// Package stats aggregates crawl statistics.
//
// Workers report through an Aggregator using atomic counters only. The
// aggregator converts to model.Counters for checkpoints and to a Report for
// the final summary.
package stats
