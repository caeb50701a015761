package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/sitecrawler/internal/config"
)

// newTestSite serves a three-page site: "/" links to "/a" and "/b".
func newTestSite(t *testing.T) *httptest.Server {
	t.Helper()

	pages := map[string]string{
		"/":  `<html><head><title>Home</title></head><body><a href="/a">A</a> <a href="/b">B</a></body></html>`,
		"/a": `<html><head><title>A</title></head><body><p>Page A</p></body></html>`,
		"/b": `<html><head><title>B</title></head><body><p>Page B</p></body></html>`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// runCLI executes the root command and returns what it wrote to stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// jsonReport is the part of the JSON report the tests inspect.
type jsonReport struct {
	Session struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"session"`
	Stats struct {
		Downloaded int `json:"downloaded"`
		URLsFound  int `json:"urls_found"`
	} `json:"stats"`
	OutputDir string `json:"output_dir"`
}

func decodeReport(t *testing.T, out string) jsonReport {
	t.Helper()

	var r jsonReport
	if err := json.Unmarshal([]byte(out), &r); err != nil {
		t.Fatalf("report is not JSON: %v\n%s", err, out)
	}
	return r
}

func TestBuildCrawlConfig(t *testing.T) {
	t.Parallel()

	t.Run("flags override the configuration file", func(t *testing.T) {
		t.Parallel()

		cfgPath := filepath.Join(t.TempDir(), "crawl.yaml")
		yaml := `crawler:
  max_depth: 5
  workers: 3
politeness:
  delay: 3s
filters:
  include_keywords: [golang]
`
		if err := os.WriteFile(cfgPath, []byte(yaml), 0600); err != nil {
			t.Fatal(err)
		}

		cmd := NewCrawlCmd()
		if err := cmd.ParseFlags([]string{
			"-c", cfgPath,
			"--workers", "8",
			"--no-robots",
			"--include-keyword", "rust,zig",
			"--output-dir", "pages",
		}); err != nil {
			t.Fatal(err)
		}

		cfg, err := buildCrawlConfig(cmd, "https://example.com/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.MaxDepth != 5 {
			t.Errorf("MaxDepth = %d, want 5 from file", cfg.MaxDepth)
		}
		if cfg.Workers != 8 {
			t.Errorf("Workers = %d, want 8 from flag", cfg.Workers)
		}
		if cfg.Delay != 3*time.Second {
			t.Errorf("Delay = %v, want 3s from file", cfg.Delay)
		}
		if cfg.MaxPages != config.DefaultMaxPages {
			t.Errorf("MaxPages = %d, want default", cfg.MaxPages)
		}
		if cfg.RespectRobots {
			t.Error("--no-robots not applied")
		}
		if !slices.Equal(cfg.Criteria.IncludeKeywords, []string{"rust", "zig"}) {
			t.Errorf("IncludeKeywords = %v", cfg.Criteria.IncludeKeywords)
		}
		if cfg.LogFile != filepath.Join("pages", defaultLogFile) {
			t.Errorf("LogFile = %q", cfg.LogFile)
		}
	})

	t.Run("missing explicit config file", func(t *testing.T) {
		t.Parallel()

		cmd := NewCrawlCmd()
		if err := cmd.ParseFlags([]string{"-c", filepath.Join(t.TempDir(), "missing.yaml")}); err != nil {
			t.Fatal(err)
		}
		if _, err := buildCrawlConfig(cmd, "https://example.com/"); err == nil {
			t.Error("expected error for missing config file")
		}
	})
}

func TestCrawlCmd(t *testing.T) {
	srv := newTestSite(t)
	dbDir := t.TempDir()
	outDir := t.TempDir()

	out, err := runCLI(t, "crawl", srv.URL+"/",
		"--db-dir", dbDir,
		"--output-dir", outDir,
		"--delay", "0",
		"--no-progress",
		"--json",
	)
	if err != nil {
		t.Fatalf("crawl failed: %v", err)
	}

	report := decodeReport(t, out)
	if report.Session.Status != "completed" {
		t.Errorf("status = %q, want completed", report.Session.Status)
	}
	if report.Stats.Downloaded != 3 || report.Stats.URLsFound != 3 {
		t.Errorf("downloaded = %d, found = %d, want 3 and 3", report.Stats.Downloaded, report.Stats.URLsFound)
	}

	html, err := filepath.Glob(filepath.Join(outDir, "*", "*.html"))
	if err != nil {
		t.Fatal(err)
	}
	if len(html) != 3 {
		t.Errorf("saved %d html files, want 3: %v", len(html), html)
	}
	if _, err := os.Stat(filepath.Join(outDir, defaultLogFile)); err != nil {
		t.Errorf("log file not written: %v", err)
	}

	t.Run("completed session is not listed as resumable", func(t *testing.T) {
		out, err := runCLI(t, "sessions", "--db-dir", dbDir)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(out, "No sessions found.") {
			t.Errorf("unexpected output:\n%s", out)
		}

		out, err = runCLI(t, "sessions", "--db-dir", dbDir, "--all")
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(out, report.Session.ID) || !strings.Contains(out, "completed") {
			t.Errorf("expected completed session in:\n%s", out)
		}
	})

	t.Run("completed session cannot be resumed", func(t *testing.T) {
		_, err := runCLI(t, "resume", report.Session.ID, "--db-dir", dbDir, "--no-progress")
		if err == nil || !strings.Contains(err.Error(), "already completed") {
			t.Errorf("expected already completed error, got %v", err)
		}
	})
}

func TestCrawlCmdWritesReportFile(t *testing.T) {
	srv := newTestSite(t)
	dir := t.TempDir()
	reportPath := filepath.Join(dir, "reports", "crawl.md")

	out, err := runCLI(t, "crawl", srv.URL+"/",
		"--db-dir", dir,
		"--output-dir", filepath.Join(dir, "pages"),
		"--delay", "0",
		"--max-depth", "0",
		"--no-progress",
		"--markdown",
		"-o", reportPath,
	)
	if err != nil {
		t.Fatalf("crawl failed: %v", err)
	}
	if !strings.Contains(out, "CRAWL SUMMARY") {
		t.Errorf("expected terminal summary:\n%s", out)
	}

	md, err := os.ReadFile(reportPath)
	if err != nil {
		t.Fatalf("report file not written: %v", err)
	}
	if !strings.Contains(string(md), "# Crawl Report") {
		t.Errorf("unexpected report file:\n%s", md)
	}
}

func TestCrawlCmdRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
	}{
		{"relative url", []string{"crawl", "example.com"}},
		{"zero workers", []string{"crawl", "https://example.com/", "--workers", "0"}},
		{"both report formats", []string{"crawl", "https://example.com/", "--json", "--markdown"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			args := append(tt.args, "--db-dir", t.TempDir(), "--no-progress")
			_, err := runCLI(t, args...)
			if err == nil || !strings.Contains(err.Error(), "configuration error") {
				t.Errorf("expected configuration error, got %v", err)
			}
		})
	}
}
