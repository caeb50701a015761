package model

// FrontierEntry is a URL waiting in the frontier together with the depth at
// which it was discovered. The seed URL has depth 0.
// Entries are created once and consumed exactly once by a worker.
type FrontierEntry struct {
	// URL is the normalized absolute URL.
	URL string `json:"url"`

	// Depth is the number of link hops from the seed URL.
	Depth int `json:"depth"`
}
