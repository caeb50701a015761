// Package crawler runs resumable, polite crawl sessions.
//
// # Architecture
//
// The Engine owns one session. It seeds a frontier, starts a fixed pool of
// workers and writes checkpoints to a CheckpointStore while they run. Each
// worker repeatedly takes an entry from the frontier and passes it through
// the fetch-and-extract unit:
//
//  1. robots.txt check
//  2. per-host rate limit wait
//  3. fetch (decompression, charset conversion, size cap)
//  4. parse (links, metadata, clean text)
//  5. content filter
//  6. persist accepted pages to the Sink
//  7. offer discovered links back to the frontier
//
// Per-URL failures are classified, counted and logged; they never stop the
// crawl. A panic while processing one URL is recovered and counted the same
// way.
//
// # Components
//
//   - Engine: worker pool, session lifecycle and checkpoints
//   - Fetcher: HTTP GET with content negotiation and error classification
//   - Parser: HTML extraction of links, metadata and text
//   - Sink, CheckpointStore: persistence boundaries implemented elsewhere
//
// # Checkpoints
//
// A snapshot captures the visited set, the pending queue and the counters
// under one lock, so a resumed session continues with exact counts. Entries
// that were in flight when the snapshot was taken are stored as pending.
// When the store also implements PageIndex, a resumed engine skips pending
// URLs whose page was already persisted.
//
// Checkpoint requests never block workers. After several consecutive
// failures the engine stops admitting new links until a checkpoint
// succeeds again.
//
// # Shutdown
//
// Cancelling the context passed to Run stops workers from taking new
// entries. In-flight fetches get the configured grace period to finish,
// then a final snapshot marks the session interrupted.
//
// # Usage
//
//	engine, err := crawler.New(cfg, store, crawler.WithSink(sink))
//	if err != nil {
//		return err
//	}
//	result, err := engine.Run(ctx)
package crawler
