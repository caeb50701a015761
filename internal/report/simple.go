package report

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// SimpleWriter outputs a plain-text summary for terminal display.
type SimpleWriter struct {
	baseWriter

	// verbose lists every crawled domain instead of only counting them.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the summary in human-readable format.
func (w *SimpleWriter) Write(summary *Summary) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, summary)
	w.writeStatistics(&sb, summary)
	w.writeBreakdown(&sb, "ERRORS BY KIND", sortedCounts(summary.Stats.ErrorsByKind))
	w.writeBreakdown(&sb, "REJECTIONS BY REASON", sortedCounts(summary.Stats.FilterReasons))
	w.writeDomains(&sb, summary)
	w.writeFooter(&sb, summary)

	return w.output.Write([]byte(sb.String()))
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, s *Summary) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                          CRAWL SUMMARY\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Session:        %s\n", s.Session.ID)
	fmt.Fprintf(sb, "Start URL:      %s\n", s.Session.StartURL)
	fmt.Fprintf(sb, "Started:        %s\n", s.Session.StartedAt.Format("2006-01-02 15:04:05 MST"))
	if s.Interrupted() {
		sb.WriteString("Status:         INTERRUPTED (resumable)\n")
	} else {
		fmt.Fprintf(sb, "Status:         %s\n", s.Session.Status)
	}
	if s.OutputDir != "" {
		fmt.Fprintf(sb, "Output:         %s\n", s.OutputDir)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeStatistics(sb *strings.Builder, s *Summary) {
	r := s.Stats
	writeSection(sb, "STATISTICS")

	fmt.Fprintf(sb, "  Duration:            %s\n", r.Duration.Round(time.Second))
	fmt.Fprintf(sb, "  URLs found:          %d\n", r.URLsFound)
	fmt.Fprintf(sb, "  Pages downloaded:    %d\n", r.Downloaded)
	fmt.Fprintf(sb, "  Pages filtered:      %d\n", r.Filtered)
	fmt.Fprintf(sb, "  URLs rejected:       %d\n", r.PolicyRejected)
	fmt.Fprintf(sb, "  Errors:              %d\n", r.Errors)
	fmt.Fprintf(sb, "  Success rate:        %.1f%%\n", r.SuccessRate)
	fmt.Fprintf(sb, "  Domains crawled:     %d\n", len(r.Domains))
	fmt.Fprintf(sb, "  Data downloaded:     %.2f MB\n", r.MegabytesDownloaded)
	fmt.Fprintf(sb, "  Avg response time:   %s\n", r.AverageResponseTime.Round(time.Millisecond))
	fmt.Fprintf(sb, "  Pages per minute:    %.1f\n", r.PagesPerMinute)
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeBreakdown(sb *strings.Builder, title string, rows []count) {
	if len(rows) == 0 {
		return
	}
	writeSection(sb, title)
	for _, row := range rows {
		fmt.Fprintf(sb, "  %-26s %d\n", row.name+":", row.value)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeDomains(sb *strings.Builder, s *Summary) {
	if !w.verbose || len(s.Stats.Domains) == 0 {
		return
	}
	writeSection(sb, "DOMAINS")
	for _, d := range s.Stats.Domains {
		fmt.Fprintf(sb, "  [+] %s\n", d)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFooter(sb *strings.Builder, s *Summary) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	if s.Interrupted() {
		fmt.Fprintf(sb, "Resume with: %s\n", resumeCommand(s))
		sb.WriteString(strings.Repeat("=", 70))
		sb.WriteString("\n")
	}
}

func writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}
