package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nao1215/sitecrawler/internal/filter"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = "sitecrawler.yaml"

// File represents the structure of the YAML configuration file.
// Zero values leave the corresponding Config field unchanged.
type File struct {
	// Crawler holds limits and pool settings.
	Crawler CrawlerSection `yaml:"crawler,omitempty"`

	// Output holds sink settings.
	Output OutputSection `yaml:"output,omitempty"`

	// Filters holds URL and content filter rules.
	Filters filter.Criteria `yaml:"filters,omitempty"`

	// Politeness holds robots and rate limit settings.
	Politeness PolitenessSection `yaml:"politeness,omitempty"`

	// Request holds per-request settings.
	Request RequestSection `yaml:"request,omitempty"`
}

// CrawlerSection is the "crawler" section of the configuration file.
type CrawlerSection struct {
	MaxDepth        int      `yaml:"max_depth,omitempty"`
	MaxPages        int      `yaml:"max_pages,omitempty"`
	Workers         int      `yaml:"workers,omitempty"`
	UserAgent       string   `yaml:"user_agent,omitempty"`
	Timeout         Duration `yaml:"timeout,omitempty"`
	CheckpointEvery int      `yaml:"checkpoint_every,omitempty"`
	GracePeriod     Duration `yaml:"grace_period,omitempty"`
	MaxBodySize     int64    `yaml:"max_body_size,omitempty"`
	MaxRedirects    int      `yaml:"max_redirects,omitempty"`
}

// OutputSection is the "output" section of the configuration file.
type OutputSection struct {
	Directory string `yaml:"directory,omitempty"`
	DBDir     string `yaml:"db_dir,omitempty"`
	LogFile   string `yaml:"log_file,omitempty"`
}

// PolitenessSection is the "politeness" section of the configuration file.
type PolitenessSection struct {
	// RespectRobots is a pointer so that an explicit false can be told
	// apart from an absent key.
	RespectRobots     *bool    `yaml:"respect_robots,omitempty"`
	Delay             Duration `yaml:"delay,omitempty"`
	RequestsPerWindow int      `yaml:"requests_per_window,omitempty"`
	Window            Duration `yaml:"window,omitempty"`
	RobotsTimeout     Duration `yaml:"robots_timeout,omitempty"`
}

// RequestSection is the "request" section of the configuration file.
type RequestSection struct {
	// Cookie format: "name=value" or "name1=value1; name2=value2"
	Cookie  string            `yaml:"cookie,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Proxy   string            `yaml:"proxy,omitempty"`
}

// Duration accepts either a Go duration string ("1.5s") or a number of
// seconds in YAML.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var seconds float64
	if err := node.Decode(&seconds); err == nil {
		*d = Duration(seconds * float64(time.Second))
		return nil
	}
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// LoadConfigFile loads a YAML configuration file.
// If the file does not exist, it returns ErrConfigNotFound.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &cf, nil
}

// Apply copies every value set in the file into cfg.
// List-valued filter settings replace the defaults as a whole.
func (cf *File) Apply(cfg *Config) {
	cr := cf.Crawler
	setInt(&cfg.MaxDepth, cr.MaxDepth)
	setInt(&cfg.MaxPages, cr.MaxPages)
	setInt(&cfg.Workers, cr.Workers)
	setInt(&cfg.CheckpointEvery, cr.CheckpointEvery)
	setInt(&cfg.MaxRedirects, cr.MaxRedirects)
	setString(&cfg.UserAgent, cr.UserAgent)
	setDuration(&cfg.Timeout, cr.Timeout)
	setDuration(&cfg.GracePeriod, cr.GracePeriod)
	if cr.MaxBodySize != 0 {
		cfg.MaxBodySize = cr.MaxBodySize
	}

	setString(&cfg.OutputDir, cf.Output.Directory)
	setString(&cfg.DBDir, cf.Output.DBDir)
	setString(&cfg.LogFile, cf.Output.LogFile)

	p := cf.Politeness
	if p.RespectRobots != nil {
		cfg.RespectRobots = *p.RespectRobots
	}
	setDuration(&cfg.Delay, p.Delay)
	setInt(&cfg.RequestsPerWindow, p.RequestsPerWindow)
	setDuration(&cfg.RateWindow, p.Window)
	setDuration(&cfg.RobotsTimeout, p.RobotsTimeout)

	setString(&cfg.Cookie, cf.Request.Cookie)
	setString(&cfg.ProxyAddress, cf.Request.Proxy)
	if len(cf.Request.Headers) > 0 {
		if cfg.Headers == nil {
			cfg.Headers = make(map[string]string, len(cf.Request.Headers))
		}
		for k, v := range cf.Request.Headers {
			cfg.Headers[k] = v
		}
	}

	mergeCriteria(&cfg.Criteria, cf.Filters)
}

func mergeCriteria(dst *filter.Criteria, src filter.Criteria) {
	setSlice(&dst.AllowedDomains, src.AllowedDomains)
	setSlice(&dst.IncludePatterns, src.IncludePatterns)
	setSlice(&dst.ExcludePatterns, src.ExcludePatterns)
	setSlice(&dst.IncludeExtensions, src.IncludeExtensions)
	setSlice(&dst.ExcludeExtensions, src.ExcludeExtensions)
	setSlice(&dst.IncludeKeywords, src.IncludeKeywords)
	setSlice(&dst.ExcludeKeywords, src.ExcludeKeywords)
	setSlice(&dst.Languages, src.Languages)
	setInt(&dst.MinLength, src.MinLength)
	setInt(&dst.MaxLength, src.MaxLength)
	dst.SkipDynamicQueries = dst.SkipDynamicQueries || src.SkipDynamicQueries
	dst.RequireTitle = dst.RequireTitle || src.RequireTitle
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v Duration) {
	if v != 0 {
		*dst = time.Duration(v)
	}
}

func setSlice(dst *[]string, v []string) {
	if len(v) > 0 {
		*dst = append([]string(nil), v...)
	}
}

// FindConfigFile searches for the configuration file in the following order:
//  1. configPath, when specified
//  2. sitecrawler.yaml in the current directory
//  3. sitecrawler.yaml in the XDG config directory
//
// Returns the path if found, or an empty string.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	if cwd, err := os.Getwd(); err == nil {
		p := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	p := filepath.Join(XDGConfigDir(), DefaultConfigFile)
	if _, err := os.Stat(p); err == nil {
		return p
	}
	return ""
}
