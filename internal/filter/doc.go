// Package filter decides which URLs are fetched and which pages are kept.
//
// Filtering runs in two stages. CheckURL runs before a fetch and looks only
// at the URL: scheme, allowed domains, path patterns, extensions and query
// parameters. CheckContent runs after extraction and looks at the title,
// text and language of the page. Both are pure functions of their input and
// the Criteria; a rejection is a Verdict with a Reason, never an error.
package filter
