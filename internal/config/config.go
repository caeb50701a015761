package config

import (
	"net/url"
	"path"
	"path/filepath"
	"slices"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/sitecrawler/internal/filter"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "sitecrawler"

	// DefaultMaxDepth follows links two hops away from the seed page.
	DefaultMaxDepth = 2

	// DefaultMaxPages caps the number of accepted pages per session.
	DefaultMaxPages = 50

	// DefaultWorkers is the worker pool size.
	DefaultWorkers = 4

	// DefaultDelay is the minimum interval between two fetches from the same host.
	DefaultDelay = 1 * time.Second

	// DefaultTimeout is the per-request timeout, including the body read.
	DefaultTimeout = 30 * time.Second

	// DefaultUserAgent identifies the crawler in HTTP requests and is the
	// agent matched against robots.txt groups.
	DefaultUserAgent = "sitecrawler/1.0"

	// DefaultOutputDir is where the file sink writes downloaded pages.
	DefaultOutputDir = "downloaded_pages"

	// DefaultCheckpointEvery requests a snapshot after this many accepted pages.
	DefaultCheckpointEvery = 10

	// DefaultGracePeriod is how long in-flight fetches may continue after
	// cancellation before their requests are aborted.
	DefaultGracePeriod = 10 * time.Second

	// DefaultRobotsTimeout bounds a single robots.txt fetch.
	DefaultRobotsTimeout = 10 * time.Second

	// DefaultMaxBodySize limits how much of a response body is read.
	DefaultMaxBodySize = 10 * 1024 * 1024

	// DefaultMaxRedirects limits the redirect chain of one request.
	DefaultMaxRedirects = 10
)

// Config holds every option of a crawl session.
// It is populated from defaults, the YAML file and CLI flags, in that order,
// and is stored as JSON in the session so that a resume starts from the same
// settings.
type Config struct {
	// StartURL is the seed URL.
	StartURL string `json:"start_url"`

	// MaxDepth is the highest link depth that is fetched. The seed has depth 0.
	MaxDepth int `json:"max_depth"`

	// MaxPages is the number of accepted pages after which the crawl stops.
	MaxPages int `json:"max_pages"`

	// Workers is the number of concurrent fetch workers.
	Workers int `json:"workers"`

	// Delay is the minimum interval between two fetches from the same host.
	Delay time.Duration `json:"delay"`

	// RequestsPerWindow, together with RateWindow, adds a token bucket on top
	// of Delay. Zero disables it.
	RequestsPerWindow int `json:"requests_per_window,omitempty"`

	// RateWindow is the window for RequestsPerWindow.
	RateWindow time.Duration `json:"rate_window,omitempty"`

	// Timeout is the per-request timeout.
	Timeout time.Duration `json:"timeout"`

	// UserAgent is sent with every request and used for robots matching.
	UserAgent string `json:"user_agent"`

	// MaxBodySize is the maximum number of body bytes read per response.
	// Longer bodies are truncated.
	MaxBodySize int64 `json:"max_body_size"`

	// MaxRedirects limits the redirect chain of one request.
	MaxRedirects int `json:"max_redirects"`

	// ProxyAddress is an optional SOCKS5 proxy in "host:port" form.
	ProxyAddress string `json:"proxy_address,omitempty"`

	// Cookie is a raw cookie string sent with every request.
	Cookie string `json:"-"`

	// Headers are extra request headers.
	Headers map[string]string `json:"headers,omitempty"`

	// RespectRobots enables robots.txt checks.
	RespectRobots bool `json:"respect_robots"`

	// RobotsTimeout bounds a single robots.txt fetch.
	RobotsTimeout time.Duration `json:"robots_timeout"`

	// CheckpointEvery requests a snapshot after this many accepted pages.
	CheckpointEvery int `json:"checkpoint_every"`

	// GracePeriod is how long in-flight fetches may run after cancellation.
	GracePeriod time.Duration `json:"grace_period"`

	// OutputDir is the directory of the file sink.
	OutputDir string `json:"output_dir"`

	// DBDir is the directory holding the session database.
	// Defaults to the XDG data directory.
	DBDir string `json:"db_dir"`

	// Criteria are the URL and content filter rules.
	Criteria filter.Criteria `json:"criteria"`

	// Verbose enables debug logging.
	Verbose bool `json:"-"`

	// JSONLogs switches the log format to JSON.
	JSONLogs bool `json:"-"`

	// LogFile, when set, additionally writes logs to this rotating file.
	LogFile string `json:"-"`

	// JSONReport prints the final statistics as JSON.
	JSONReport bool `json:"-"`

	// MarkdownReport prints the final statistics as Markdown.
	MarkdownReport bool `json:"-"`

	// ReportFile is where the final statistics are written. Empty means stdout.
	ReportFile string `json:"-"`

	// ConfigFilePath is the YAML file to load. Empty means search the
	// default locations.
	ConfigFilePath string `json:"-"`
}

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		MaxDepth:        DefaultMaxDepth,
		MaxPages:        DefaultMaxPages,
		Workers:         DefaultWorkers,
		Delay:           DefaultDelay,
		Timeout:         DefaultTimeout,
		UserAgent:       DefaultUserAgent,
		MaxBodySize:     DefaultMaxBodySize,
		MaxRedirects:    DefaultMaxRedirects,
		RespectRobots:   true,
		RobotsTimeout:   DefaultRobotsTimeout,
		CheckpointEvery: DefaultCheckpointEvery,
		GracePeriod:     DefaultGracePeriod,
		OutputDir:       DefaultOutputDir,
		DBDir:           XDGDataDir(),
		Criteria: filter.Criteria{
			ExcludeExtensions: slices.Clone(filter.DefaultExcludeExtensions),
		},
	}
}

// XDGDataDir returns the XDG data directory for sitecrawler.
// On Linux: ~/.local/share/sitecrawler
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for sitecrawler.
// On Linux: ~/.config/sitecrawler
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid and returns the first
// problem found as one of the sentinel errors.
func (c *Config) Validate() error {
	if c.StartURL == "" {
		return ErrNoStartURL
	}
	u, err := url.Parse(c.StartURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidStartURL
	}
	if c.MaxDepth < 0 {
		return ErrInvalidMaxDepth
	}
	if c.MaxPages <= 0 {
		return ErrInvalidMaxPages
	}
	if c.Workers <= 0 {
		return ErrInvalidWorkers
	}
	if c.Delay < 0 {
		return ErrInvalidDelay
	}
	if c.RequestsPerWindow < 0 || (c.RequestsPerWindow > 0 && c.RateWindow <= 0) {
		return ErrInvalidRateWindow
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.CheckpointEvery <= 0 {
		return ErrInvalidCheckpointEvery
	}
	if c.GracePeriod < 0 {
		return ErrInvalidGracePeriod
	}
	if c.OutputDir == "" {
		return ErrNoOutputDir
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if c.Criteria.MinLength < 0 || c.Criteria.MaxLength < 0 ||
		(c.Criteria.MaxLength > 0 && c.Criteria.MinLength > c.Criteria.MaxLength) {
		return ErrInvalidContentLength
	}
	for _, p := range slices.Concat(c.Criteria.IncludePatterns, c.Criteria.ExcludePatterns) {
		if _, err := path.Match(p, ""); err != nil {
			return ErrInvalidPattern
		}
	}
	return nil
}
