// Package main provides the entry point for the sitecrawler CLI.
//
// sitecrawler is a polite, resumable web crawler. It follows links from a
// start URL within depth and page limits, honors robots.txt and per-host
// delays, and checkpoints its state so an interrupted crawl can continue
// where it stopped.
//
// Usage:
//
//	sitecrawler crawl <url>
//	sitecrawler resume <session-id>
//	sitecrawler sessions
//
// See --help for all available options.
package main

// main is the entry point for sitecrawler.
func main() {
	Execute()
}
