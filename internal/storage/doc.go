// Package storage provides page sinks that write accepted pages to disk.
//
// FileSink mirrors the crawled sites as a directory tree of HTML files with
// their extracted data next to them. Multi combines it with other sinks,
// such as the database page index.
package storage
