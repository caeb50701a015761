package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
)

// MarkdownWriter outputs a summary in Markdown, for sharing a crawl result
// in an issue or a document.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the summary in Markdown format.
func (w *MarkdownWriter) Write(summary *Summary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, summary)
	w.writeStatistics(md, summary)
	w.writeBreakdown(md, "Errors by Kind", "Kind", sortedCounts(summary.Stats.ErrorsByKind))
	w.writeBreakdown(md, "Rejections by Reason", "Reason", sortedCounts(summary.Stats.FilterReasons))
	w.writeDomains(md, summary)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, s *Summary) {
	md.H1("Crawl Report")
	md.PlainText("")

	rows := [][]string{
		{"Session", "`" + s.Session.ID + "`"},
		{"Start URL", s.Session.StartURL},
		{"Started", s.Session.StartedAt.Format("2006-01-02 15:04:05 MST")},
		{"Status", statusText(s)},
		{"Max Depth", strconv.Itoa(s.Session.MaxDepth)},
		{"Max Pages", strconv.Itoa(s.Session.MaxPages)},
		{"Workers", strconv.Itoa(s.Session.Workers)},
	}
	if s.OutputDir != "" {
		rows = append(rows, []string{"Output", "`" + s.OutputDir + "`"})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")

	if s.Interrupted() {
		md.Warningf("The crawl was interrupted. Continue it with `%s`.", resumeCommand(s))
		md.PlainText("")
	}
}

func statusText(s *Summary) string {
	if s.Interrupted() {
		return "⚠️ Interrupted (resumable)"
	}
	return "✅ Completed"
}

func (w *MarkdownWriter) writeStatistics(md *markdown.Markdown, s *Summary) {
	r := s.Stats
	md.H2("Statistics")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Value"},
		Rows: [][]string{
			{"Duration", r.Duration.Round(time.Second).String()},
			{"URLs Found", strconv.FormatInt(r.URLsFound, 10)},
			{"Pages Downloaded", strconv.FormatInt(r.Downloaded, 10)},
			{"Pages Filtered", strconv.FormatInt(r.Filtered, 10)},
			{"URLs Rejected", strconv.FormatInt(r.PolicyRejected, 10)},
			{"Errors", strconv.FormatInt(r.Errors, 10)},
			{"Success Rate", fmt.Sprintf("%.1f%%", r.SuccessRate)},
			{"Domains Crawled", strconv.Itoa(len(r.Domains))},
			{"Data Downloaded", fmt.Sprintf("%.2f MB", r.MegabytesDownloaded)},
			{"Avg Response Time", r.AverageResponseTime.Round(time.Millisecond).String()},
			{"Pages per Minute", fmt.Sprintf("%.1f", r.PagesPerMinute)},
		},
	})
	md.PlainText("")

	if r.Downloaded+r.Filtered+r.Errors > 0 {
		w.writePieChart(md, s)
	}

	if r.Errors > 0 {
		md.Note(fmt.Sprintf("%d URL(s) failed. See the breakdown below.", r.Errors))
		md.PlainText("")
	}
}

// writePieChart writes a mermaid pie chart of page outcomes.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, s *Summary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Page Outcomes"),
		piechart.WithShowData(true),
	)

	r := s.Stats
	outcomes := []count{
		{"Downloaded", r.Downloaded},
		{"Filtered", r.Filtered},
		{"Errors", r.Errors},
	}
	for _, o := range outcomes {
		if o.value > 0 {
			chart.LabelAndIntValue(o.name, uint64(o.value))
		}
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeBreakdown(md *markdown.Markdown, title, column string, rows []count) {
	if len(rows) == 0 {
		return
	}
	md.H2(title)
	md.PlainText("")

	table := make([][]string, len(rows))
	for i, row := range rows {
		table[i] = []string{"`" + row.name + "`", strconv.FormatInt(row.value, 10)}
	}
	md.Table(markdown.TableSet{
		Header: []string{column, "Count"},
		Rows:   table,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeDomains(md *markdown.Markdown, s *Summary) {
	if len(s.Stats.Domains) == 0 {
		return
	}
	md.H2("Domains")
	md.PlainText("")

	domains := make([]string, len(s.Stats.Domains))
	for i, d := range s.Stats.Domains {
		domains[i] = truncateString(d, 80)
	}
	md.BulletList(domains...)
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainText("*Report generated by sitecrawler*")
}
