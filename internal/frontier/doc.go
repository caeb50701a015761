// Package frontier implements the URL frontier of the crawler.
//
// The frontier is a FIFO queue of (URL, depth) entries plus the visited set.
// Since every link of a page is enqueued before deeper pages are dequeued, a
// shared FIFO gives breadth-first-ish ordering without starving lower depths.
//
// URLs are compared in normalized form; see Normalize.
package frontier
