package model

import "maps"

// Counters is the serializable form of crawl statistics.
// It is stored inside every snapshot so that a resumed session continues
// counting where the interrupted one stopped.
type Counters struct {
	// URLsFound counts distinct URLs discovered, including the seed.
	URLsFound int64 `json:"urls_found"`

	// Downloaded counts pages accepted and handed to the sink.
	Downloaded int64 `json:"downloaded"`

	// Filtered counts pages fetched but rejected by the content filter.
	Filtered int64 `json:"filtered"`

	// PolicyRejected counts URLs rejected by the URL filter or robots.
	PolicyRejected int64 `json:"policy_rejected"`

	// Errors counts per-URL failures across every kind.
	Errors int64 `json:"errors"`

	// Bytes is the total number of decoded body bytes fetched.
	Bytes int64 `json:"bytes"`

	// FetchCount and FetchNanos track response times for averaging.
	FetchCount int64 `json:"fetch_count"`
	FetchNanos int64 `json:"fetch_nanos"`

	// ErrorsByKind holds per-kind error totals.
	ErrorsByKind map[ErrorKind]int64 `json:"errors_by_kind,omitempty"`

	// FilterReasons holds per-reason rejection totals for both filter stages.
	FilterReasons map[string]int64 `json:"filter_reasons,omitempty"`

	// Domains lists the hosts from which at least one page was fetched.
	Domains []string `json:"domains,omitempty"`

	// ElapsedNanos is the crawl time accumulated by earlier runs of the session.
	ElapsedNanos int64 `json:"elapsed_nanos"`
}

// Clone returns a deep copy of c.
func (c Counters) Clone() Counters {
	out := c
	out.ErrorsByKind = maps.Clone(c.ErrorsByKind)
	out.FilterReasons = maps.Clone(c.FilterReasons)
	if c.Domains != nil {
		out.Domains = append([]string(nil), c.Domains...)
	}
	return out
}
