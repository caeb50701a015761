package config

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/nao1215/sitecrawler/internal/filter"
)

// TestNewConfig documents the defaults. Changing a default must fail here.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	t.Run("default MaxDepth is 2", func(t *testing.T) {
		t.Parallel()
		if cfg.MaxDepth != 2 {
			t.Errorf("expected MaxDepth to be 2, got %d", cfg.MaxDepth)
		}
	})

	t.Run("default MaxPages is 50", func(t *testing.T) {
		t.Parallel()
		if cfg.MaxPages != 50 {
			t.Errorf("expected MaxPages to be 50, got %d", cfg.MaxPages)
		}
	})

	t.Run("default Delay is 1 second", func(t *testing.T) {
		t.Parallel()
		if cfg.Delay != time.Second {
			t.Errorf("expected Delay to be 1s, got %v", cfg.Delay)
		}
	})

	t.Run("default UserAgent is sitecrawler/1.0", func(t *testing.T) {
		t.Parallel()
		if cfg.UserAgent != "sitecrawler/1.0" {
			t.Errorf("expected UserAgent to be sitecrawler/1.0, got %q", cfg.UserAgent)
		}
	})

	t.Run("default OutputDir is downloaded_pages", func(t *testing.T) {
		t.Parallel()
		if cfg.OutputDir != "downloaded_pages" {
			t.Errorf("expected OutputDir to be downloaded_pages, got %q", cfg.OutputDir)
		}
	})

	t.Run("robots are respected by default", func(t *testing.T) {
		t.Parallel()
		if !cfg.RespectRobots {
			t.Error("expected RespectRobots to be true")
		}
	})

	t.Run("default exclude extensions are set", func(t *testing.T) {
		t.Parallel()
		if !slices.Contains(cfg.Criteria.ExcludeExtensions, ".pdf") {
			t.Errorf("expected .pdf in ExcludeExtensions, got %v", cfg.Criteria.ExcludeExtensions)
		}
	})

	t.Run("DBDir is the XDG data dir", func(t *testing.T) {
		t.Parallel()
		if cfg.DBDir != XDGDataDir() {
			t.Errorf("expected DBDir %q, got %q", XDGDataDir(), cfg.DBDir)
		}
	})

	t.Run("defaults are valid once a start url is set", func(t *testing.T) {
		t.Parallel()
		c := NewConfig()
		c.StartURL = "https://site.test/"
		if err := c.Validate(); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})
}

// TestConfigValidate tests one validation rule per subtest.
func TestConfigValidate(t *testing.T) {
	t.Parallel()

	validConfig := func() *Config {
		c := NewConfig()
		c.StartURL = "https://site.test/"
		return c
	}

	tests := []struct {
		name   string
		modify func(*Config)
		want   error
	}{
		{"empty start url", func(c *Config) { c.StartURL = "" }, ErrNoStartURL},
		{"relative start url", func(c *Config) { c.StartURL = "/index.html" }, ErrInvalidStartURL},
		{"ftp start url", func(c *Config) { c.StartURL = "ftp://site.test/" }, ErrInvalidStartURL},
		{"negative depth", func(c *Config) { c.MaxDepth = -1 }, ErrInvalidMaxDepth},
		{"zero pages", func(c *Config) { c.MaxPages = 0 }, ErrInvalidMaxPages},
		{"zero workers", func(c *Config) { c.Workers = 0 }, ErrInvalidWorkers},
		{"negative delay", func(c *Config) { c.Delay = -time.Second }, ErrInvalidDelay},
		{"window without duration", func(c *Config) { c.RequestsPerWindow = 5 }, ErrInvalidRateWindow},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, ErrInvalidTimeout},
		{"negative body size", func(c *Config) { c.MaxBodySize = -1 }, ErrInvalidMaxBodySize},
		{"zero checkpoint interval", func(c *Config) { c.CheckpointEvery = 0 }, ErrInvalidCheckpointEvery},
		{"negative grace period", func(c *Config) { c.GracePeriod = -time.Second }, ErrInvalidGracePeriod},
		{"empty output dir", func(c *Config) { c.OutputDir = "" }, ErrNoOutputDir},
		{"both report formats", func(c *Config) { c.JSONReport, c.MarkdownReport = true, true }, ErrConflictingReportFormats},
		{"min above max length", func(c *Config) { c.Criteria.MinLength, c.Criteria.MaxLength = 100, 10 }, ErrInvalidContentLength},
		{"malformed pattern", func(c *Config) { c.Criteria.ExcludePatterns = []string{"/a/[b"} }, ErrInvalidPattern},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.modify(cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	t.Run("zero delay is valid", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.Delay = 0
		if err := cfg.Validate(); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	t.Run("max length without min is valid", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.Criteria.MaxLength = 10
		if err := cfg.Validate(); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})
}

// TestLoadConfigFile tests the LoadConfigFile function.
func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns ErrConfigNotFound for non-existent file", func(t *testing.T) {
		t.Parallel()

		cf, err := LoadConfigFile("/nonexistent/path/sitecrawler.yaml")
		if !errors.Is(err, ErrConfigNotFound) {
			t.Fatalf("expected ErrConfigNotFound, got: %v", err)
		}
		if cf != nil {
			t.Error("expected nil config when file not found")
		}
	})

	t.Run("loads every section", func(t *testing.T) {
		t.Parallel()

		path := writeConfig(t, `crawler:
  max_depth: 3
  max_pages: 10
  workers: 8
  user_agent: "test-agent/2.0"
  timeout: 5s
output:
  directory: out
politeness:
  respect_robots: false
  delay: 0.5
request:
  cookie: "session=xyz"
  headers:
    X-Test: "1"
filters:
  allowed_domains: [site.test]
  exclude_patterns: ["/admin/*"]
  include_keywords: [alpha]
  min_content_length: 20
`)
		cf, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		cfg := NewConfig()
		cf.Apply(cfg)

		if cfg.MaxDepth != 3 || cfg.MaxPages != 10 || cfg.Workers != 8 {
			t.Errorf("crawler section not applied: depth=%d pages=%d workers=%d", cfg.MaxDepth, cfg.MaxPages, cfg.Workers)
		}
		if cfg.UserAgent != "test-agent/2.0" {
			t.Errorf("expected user agent test-agent/2.0, got %q", cfg.UserAgent)
		}
		if cfg.Timeout != 5*time.Second {
			t.Errorf("expected timeout 5s, got %v", cfg.Timeout)
		}
		if cfg.OutputDir != "out" {
			t.Errorf("expected output dir out, got %q", cfg.OutputDir)
		}
		if cfg.RespectRobots {
			t.Error("expected respect_robots: false to be applied")
		}
		if cfg.Delay != 500*time.Millisecond {
			t.Errorf("expected delay 500ms, got %v", cfg.Delay)
		}
		if cfg.Cookie != "session=xyz" || cfg.Headers["X-Test"] != "1" {
			t.Errorf("request section not applied: cookie=%q headers=%v", cfg.Cookie, cfg.Headers)
		}
		want := filter.Criteria{
			AllowedDomains:    []string{"site.test"},
			ExcludePatterns:   []string{"/admin/*"},
			IncludeKeywords:   []string{"alpha"},
			MinLength:         20,
			ExcludeExtensions: filter.DefaultExcludeExtensions,
		}
		if !slices.Equal(cfg.Criteria.AllowedDomains, want.AllowedDomains) ||
			!slices.Equal(cfg.Criteria.ExcludePatterns, want.ExcludePatterns) ||
			!slices.Equal(cfg.Criteria.IncludeKeywords, want.IncludeKeywords) ||
			!slices.Equal(cfg.Criteria.ExcludeExtensions, want.ExcludeExtensions) ||
			cfg.Criteria.MinLength != want.MinLength {
			t.Errorf("filters not applied: %+v", cfg.Criteria)
		}
	})

	t.Run("absent keys keep defaults", func(t *testing.T) {
		t.Parallel()

		path := writeConfig(t, "crawler:\n  max_pages: 7\n")
		cf, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		cfg := NewConfig()
		cf.Apply(cfg)

		if cfg.MaxPages != 7 {
			t.Errorf("expected MaxPages 7, got %d", cfg.MaxPages)
		}
		if cfg.MaxDepth != DefaultMaxDepth || !cfg.RespectRobots || cfg.Delay != DefaultDelay {
			t.Errorf("defaults overwritten: %+v", cfg)
		}
	})

	t.Run("rejects malformed YAML", func(t *testing.T) {
		t.Parallel()

		path := writeConfig(t, "crawler: [unclosed")
		if _, err := LoadConfigFile(path); err == nil {
			t.Error("expected error for malformed YAML")
		}
	})

	t.Run("rejects malformed duration", func(t *testing.T) {
		t.Parallel()

		path := writeConfig(t, "politeness:\n  delay: soon\n")
		if _, err := LoadConfigFile(path); err == nil {
			t.Error("expected error for malformed duration")
		}
	})
}

// TestFindConfigFile covers the explicit path lookup. The cwd and XDG
// lookups depend on process state and are not exercised here.
func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns explicit path when it exists", func(t *testing.T) {
		t.Parallel()
		path := writeConfig(t, "")
		if got := FindConfigFile(path); got != path {
			t.Errorf("expected %q, got %q", path, got)
		}
	})

	t.Run("returns empty string when explicit path is missing", func(t *testing.T) {
		t.Parallel()
		if got := FindConfigFile(filepath.Join(t.TempDir(), "missing.yaml")); got != "" {
			t.Errorf("expected empty string, got %q", got)
		}
	})
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultConfigFile)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}
