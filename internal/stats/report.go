package stats

import (
	"time"

	"github.com/nao1215/sitecrawler/internal/model"
)

// Report is the final statistics of a crawl run, returned on completion or
// interruption for rendering by the report writers.
type Report struct {
	// Duration is the total crawl time, including earlier runs of a resumed session.
	Duration time.Duration `json:"duration"`

	// URLsFound counts distinct URLs discovered.
	URLsFound int64 `json:"urls_found"`

	// Downloaded counts accepted pages.
	Downloaded int64 `json:"downloaded"`

	// Filtered counts pages rejected by the content filter.
	Filtered int64 `json:"filtered"`

	// PolicyRejected counts URLs rejected before fetch.
	PolicyRejected int64 `json:"policy_rejected"`

	// Errors counts per-URL failures.
	Errors int64 `json:"errors"`

	// ErrorsByKind breaks Errors down by kind.
	ErrorsByKind map[model.ErrorKind]int64 `json:"errors_by_kind"`

	// FilterReasons breaks rejections down by reason.
	FilterReasons map[string]int64 `json:"filter_reasons,omitempty"`

	// SuccessRate is downloaded / (downloaded + filtered + errors) * 100.
	// It is zero when nothing was processed.
	SuccessRate float64 `json:"success_rate"`

	// Domains lists hosts with at least one fetched page.
	Domains []string `json:"domains"`

	// MegabytesDownloaded is the decoded body volume in MiB.
	MegabytesDownloaded float64 `json:"mb_downloaded"`

	// AverageResponseTime is the mean HTTP exchange time.
	AverageResponseTime time.Duration `json:"avg_response_time"`

	// PagesPerMinute is the overall accepted-page rate.
	PagesPerMinute float64 `json:"pages_per_minute"`

	// RecentPagesPerMinute is the accepted-page count over the last minute.
	RecentPagesPerMinute int64 `json:"recent_pages_per_minute"`
}

// NewReport derives a report from counters.
func NewReport(c model.Counters, recentPerMinute int64) Report {
	r := Report{
		Duration:             time.Duration(c.ElapsedNanos),
		URLsFound:            c.URLsFound,
		Downloaded:           c.Downloaded,
		Filtered:             c.Filtered,
		PolicyRejected:       c.PolicyRejected,
		Errors:               c.Errors,
		ErrorsByKind:         c.ErrorsByKind,
		FilterReasons:        c.FilterReasons,
		Domains:              c.Domains,
		MegabytesDownloaded:  float64(c.Bytes) / (1024 * 1024),
		RecentPagesPerMinute: recentPerMinute,
	}
	if r.ErrorsByKind == nil {
		r.ErrorsByKind = make(map[model.ErrorKind]int64)
	}
	if processed := c.Downloaded + c.Filtered + c.Errors; processed > 0 {
		r.SuccessRate = float64(c.Downloaded) / float64(processed) * 100
	}
	if c.FetchCount > 0 {
		r.AverageResponseTime = time.Duration(c.FetchNanos / c.FetchCount)
	}
	if minutes := r.Duration.Minutes(); minutes > 0 {
		r.PagesPerMinute = float64(c.Downloaded) / minutes
	}
	return r
}
