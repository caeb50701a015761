// Package report renders the summary of a crawl run.
//
// Writers for three formats implement the Writer interface:
//   - SimpleWriter: plain text for the terminal
//   - MarkdownWriter: Markdown with tables and a mermaid chart of page outcomes
//   - JSONWriter: structured JSON for tool integration
//
// MultiWriter composes them, for example to print to the terminal and save
// a Markdown copy at the same time.
package report
