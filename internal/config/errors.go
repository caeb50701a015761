package config

import "errors"

// Configuration validation errors returned by Config.Validate.
// Callers match them with errors.Is.
var (
	// ErrNoStartURL is returned when no seed URL is given.
	ErrNoStartURL = errors.New("no start url specified")

	// ErrInvalidStartURL is returned when the seed is not an absolute http(s) URL.
	ErrInvalidStartURL = errors.New("invalid start url: must be an absolute http or https url")

	// ErrInvalidMaxDepth is returned when the depth limit is negative.
	ErrInvalidMaxDepth = errors.New("invalid max depth: must be non-negative")

	// ErrInvalidMaxPages is returned when the page limit is not positive.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be positive")

	// ErrInvalidWorkers is returned when the worker count is not positive.
	ErrInvalidWorkers = errors.New("invalid workers: must be positive")

	// ErrInvalidDelay is returned when the per-host delay is negative.
	ErrInvalidDelay = errors.New("invalid delay: must be non-negative")

	// ErrInvalidRateWindow is returned when requests_per_window is set
	// without a positive window, or is negative.
	ErrInvalidRateWindow = errors.New("invalid rate window: requests per window needs a positive window")

	// ErrInvalidTimeout is returned when the request timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidMaxBodySize is returned when the body limit is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidCheckpointEvery is returned when the checkpoint interval is not positive.
	ErrInvalidCheckpointEvery = errors.New("invalid checkpoint interval: must be positive")

	// ErrInvalidGracePeriod is returned when the shutdown grace period is negative.
	ErrInvalidGracePeriod = errors.New("invalid grace period: must be non-negative")

	// ErrNoOutputDir is returned when no output directory is configured.
	ErrNoOutputDir = errors.New("no output directory specified")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidContentLength is returned when the content length bounds are
	// negative or min exceeds max.
	ErrInvalidContentLength = errors.New("invalid content length bounds")

	// ErrInvalidPattern is returned when a URL glob pattern is malformed.
	ErrInvalidPattern = errors.New("invalid url pattern")

	// ErrConfigNotFound is returned when the configuration file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")
)
