package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/sitecrawler/internal/model"
	"github.com/nao1215/sitecrawler/internal/stats"
)

// createTestSummary creates a summary with sample data for testing.
func createTestSummary(status model.SessionStatus) *Summary {
	session := model.NewSession("https://site.test/", 2, 50, 4, time.Second)
	session.ID = "3f2b8c1e-0000-4000-8000-000000000001"
	session.Finish(status)

	return &Summary{
		Session: *session,
		Stats: stats.Report{
			Duration:       90 * time.Second,
			URLsFound:      12,
			Downloaded:     6,
			Filtered:       2,
			PolicyRejected: 3,
			Errors:         2,
			ErrorsByKind: map[model.ErrorKind]int64{
				model.ErrorClient:  1,
				model.ErrorTimeout: 1,
			},
			FilterReasons: map[string]int64{
				"robots_disallowed": 2,
				"excluded_keyword":  1,
				"missing_keyword":   2,
			},
			SuccessRate:         60,
			Domains:             []string{"site.test", "docs.site.test"},
			MegabytesDownloaded: 1.5,
			AverageResponseTime: 120 * time.Millisecond,
			PagesPerMinute:      4,
		},
		OutputDir: "downloaded_pages",
	}
}

// TestSimpleWriter tests the human-readable report writer.
func TestSimpleWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes header and statistics", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(createTestSummary(model.SessionCompleted)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{
			"CRAWL SUMMARY",
			"Start URL:      https://site.test/",
			"Status:         completed",
			"URLs found:          12",
			"Pages downloaded:    6",
			"Success rate:        60.0%",
			"Domains crawled:     2",
			"Data downloaded:     1.50 MB",
			"Duration:            1m30s",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q:\n%s", want, output)
			}
		}
		if strings.Contains(output, "Resume with") {
			t.Error("completed session should not suggest resuming")
		}
	})

	t.Run("orders breakdowns by count", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(createTestSummary(model.SessionCompleted)); err != nil {
			t.Fatal(err)
		}

		output := buf.String()
		missing := strings.Index(output, "missing_keyword:")
		robots := strings.Index(output, "robots_disallowed:")
		excluded := strings.Index(output, "excluded_keyword:")
		if missing < 0 || robots < 0 || excluded < 0 {
			t.Fatalf("breakdown incomplete:\n%s", output)
		}
		if !(missing < robots && robots < excluded) {
			t.Errorf("expected ties by name then smaller counts last:\n%s", output)
		}
	})

	t.Run("interrupted session shows resume command", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		s := createTestSummary(model.SessionInterrupted)
		if _, err := NewSimpleWriter(&buf).Write(s); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(buf.String(), "INTERRUPTED") {
			t.Error("expected interrupted status")
		}
		if !strings.Contains(buf.String(), "sitecrawler resume "+s.Session.ID) {
			t.Errorf("expected resume command:\n%s", buf.String())
		}
	})

	t.Run("verbose lists domains", func(t *testing.T) {
		t.Parallel()

		var quiet, verbose bytes.Buffer
		s := createTestSummary(model.SessionCompleted)
		if _, err := NewSimpleWriter(&quiet).Write(s); err != nil {
			t.Fatal(err)
		}
		if _, err := NewSimpleWriter(&verbose, WithVerbose(true)).Write(s); err != nil {
			t.Fatal(err)
		}
		if strings.Contains(quiet.String(), "[+] docs.site.test") {
			t.Error("domains listed without verbose")
		}
		if !strings.Contains(verbose.String(), "[+] docs.site.test") {
			t.Error("domains missing with verbose")
		}
	})

	t.Run("empty run", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		s := &Summary{Session: *model.NewSession("https://site.test/", 0, 1, 1, 0)}
		s.Session.Finish(model.SessionCompleted)
		if _, err := NewSimpleWriter(&buf).Write(s); err != nil {
			t.Fatal(err)
		}
		if strings.Contains(buf.String(), "ERRORS BY KIND") {
			t.Error("empty breakdown section written")
		}
	})
}

// TestMarkdownWriter tests the Markdown report writer.
func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes report sections", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		n, err := NewMarkdownWriter(&buf).Write(createTestSummary(model.SessionCompleted))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n == 0 {
			t.Error("expected non-zero length")
		}

		output := buf.String()
		for _, want := range []string{
			"# Crawl Report",
			"## Statistics",
			"## Errors by Kind",
			"## Rejections by Reason",
			"## Domains",
			"`client_error`",
			"✅ Completed",
			"```mermaid",
			"Page Outcomes",
			"*Report generated by sitecrawler*",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
	})

	t.Run("interrupted session warns with resume command", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		s := createTestSummary(model.SessionInterrupted)
		if _, err := NewMarkdownWriter(&buf).Write(s); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(buf.String(), "sitecrawler resume "+s.Session.ID) {
			t.Errorf("expected resume command:\n%s", buf.String())
		}
		if !strings.Contains(buf.String(), "Interrupted") {
			t.Error("expected interrupted status")
		}
	})

	t.Run("no chart without processed pages", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		s := &Summary{Session: *model.NewSession("https://site.test/", 0, 1, 1, 0)}
		if _, err := NewMarkdownWriter(&buf).Write(s); err != nil {
			t.Fatal(err)
		}
		if strings.Contains(buf.String(), "mermaid") {
			t.Error("chart written for an empty run")
		}
	})
}

// TestJSONWriter tests the JSON report writer.
func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes valid json", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithVersion("v1.2.3")).Write(createTestSummary(model.SessionCompleted)); err != nil {
			t.Fatal(err)
		}

		var got map[string]any
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("invalid json: %v", err)
		}
		if got["version"] != "v1.2.3" {
			t.Errorf("version = %v", got["version"])
		}
		statsObj, ok := got["stats"].(map[string]any)
		if !ok || statsObj["downloaded"] != float64(6) {
			t.Errorf("stats = %v", got["stats"])
		}
		if _, ok := got["resume_command"]; ok {
			t.Error("completed session has a resume command")
		}
		if strings.Contains(buf.String(), "\n  ") {
			t.Error("compact output is indented")
		}
	})

	t.Run("pretty print and resume command", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		s := createTestSummary(model.SessionInterrupted)
		if _, err := NewJSONWriter(&buf, WithPrettyPrint()).Write(s); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(buf.String(), "\n  \"session\"") {
			t.Errorf("expected indented output:\n%s", buf.String())
		}
		if !strings.Contains(buf.String(), `"resume_command": "sitecrawler resume `+s.Session.ID+`"`) {
			t.Errorf("expected resume command:\n%s", buf.String())
		}
	})
}

type failingWriter struct{}

func (failingWriter) Write(*Summary) (int, error) {
	return 0, errors.New("disk full")
}

// TestMultiWriter tests writing to multiple writers.
func TestMultiWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes to all writers", func(t *testing.T) {
		t.Parallel()

		var text, md bytes.Buffer
		mw := NewMultiWriter(NewSimpleWriter(&text), NewMarkdownWriter(&md))
		n, err := mw.Write(createTestSummary(model.SessionCompleted))
		if err != nil {
			t.Fatal(err)
		}
		if text.Len() == 0 || md.Len() == 0 {
			t.Error("expected both writers to receive output")
		}
		if n < text.Len() {
			t.Errorf("n = %d, want at least %d", n, text.Len())
		}
	})

	t.Run("stops on first error", func(t *testing.T) {
		t.Parallel()

		var text bytes.Buffer
		mw := NewMultiWriter(failingWriter{}, NewSimpleWriter(&text))
		if _, err := mw.Write(createTestSummary(model.SessionCompleted)); err == nil {
			t.Error("expected error")
		}
		if text.Len() != 0 {
			t.Error("writer after the failing one was called")
		}
	})
}

func TestTruncateString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input  string
		maxLen int
		want   string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is too long", 10, "this is..."},
		{"abcdef", 3, "abc"},
		{"日本語のテキスト", 5, "日本..."},
	}
	for _, tt := range tests {
		if got := truncateString(tt.input, tt.maxLen); got != tt.want {
			t.Errorf("truncateString(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
		}
	}
}
