package report

import (
	"cmp"
	"io"
	"slices"

	"github.com/nao1215/sitecrawler/internal/model"
	"github.com/nao1215/sitecrawler/internal/stats"
)

// Summary is everything a report shows about a finished or interrupted run.
type Summary struct {
	// Session is the session in its final state.
	Session model.Session `json:"session"`

	// Stats is the final statistics of the run.
	Stats stats.Report `json:"stats"`

	// OutputDir is where pages were written. Empty when no file sink was used.
	OutputDir string `json:"output_dir,omitempty"`

	// DBPath is the checkpoint database holding the session.
	DBPath string `json:"db_path,omitempty"`
}

// Interrupted reports whether the session can be resumed.
func (s *Summary) Interrupted() bool {
	return s.Session.Status.IsResumable()
}

// Writer writes a crawl summary in one output format.
type Writer interface {
	// Write outputs the summary and returns the number of bytes written.
	Write(summary *Summary) (int, error)
}

// MultiWriter writes to multiple Writers, such as the terminal and a file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the summary to all configured Writers.
// It returns the total bytes written and stops on the first error.
func (m *MultiWriter) Write(summary *Summary) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(summary)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// count is one row of a breakdown table.
type count struct {
	name  string
	value int64
}

// sortedCounts orders a breakdown by value, largest first, then by name.
func sortedCounts[K ~string](m map[K]int64) []count {
	out := make([]count, 0, len(m))
	for k, v := range m {
		if v > 0 {
			out = append(out, count{name: string(k), value: v})
		}
	}
	slices.SortFunc(out, func(a, b count) int {
		if c := cmp.Compare(b.value, a.value); c != 0 {
			return c
		}
		return cmp.Compare(a.name, b.name)
	})
	return out
}

// truncateString truncates a string to maxLen runes with ellipsis.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// resumeCommand is the command line that continues an interrupted session.
func resumeCommand(s *Summary) string {
	return "sitecrawler resume " + s.Session.ID
}
