package report

import (
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/nao1215/newslettercheck/internal/model"
)

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for pasting into pull requests and issues.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, collapsible details, and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter

	// includeContent appends the sanitized content as an HTML code block.
	includeContent bool
}

// MarkdownWriterOption configures a MarkdownWriter.
type MarkdownWriterOption func(*MarkdownWriter)

// WithEmbeddedContent appends the sanitized content to the report.
func WithEmbeddedContent(include bool) MarkdownWriterOption {
	return func(w *MarkdownWriter) {
		w.includeContent = include
	}
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer, opts ...MarkdownWriterOption) *MarkdownWriter {
	w := &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the full report in Markdown format.
func (w *MarkdownWriter) Write(report *model.ScrapeReport) (int, error) {
	md := markdown.NewMarkdown(w.output)
	summary := model.NewSummary(report)

	w.writeHeader(md, summary, report)

	if summary.Audited {
		w.writeSummary(md, summary)
		w.writeDefects(md, report.Errors)
	}

	if w.includeContent && report.Content != "" {
		md.H2("Content")
		md.PlainText("")
		md.CodeBlocks(markdown.SyntaxHighlight("html"), report.Content)
		md.PlainText("")
	}

	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteSummary outputs the summary as a compact table.
func (w *MarkdownWriter) WriteSummary(summary *model.Summary) (int, error) {
	md := markdown.NewMarkdown(w.output)
	w.writeHeader(md, summary, nil)
	if summary.Audited {
		w.writeSummary(md, summary)
	}
	return len(md.String()), md.Build()
}

// writeHeader writes the report header with scrape information.
// report is nil when only a summary is written.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, summary *model.Summary, report *model.ScrapeReport) {
	md.H1("Newsletter Check Report")
	md.PlainText("")

	rows := [][]string{
		{"URL", "`" + summary.URL + "`"},
		{"Scrape Date", summary.DateScraped.Format("2006-01-02 15:04:05 MST")},
	}
	if report != nil {
		rows = append(rows, []string{"State", report.State.String()})
	}
	rows = append(rows, []string{"Status", w.getStatusText(summary)})
	if summary.ContentHash != "" {
		rows = append(rows, []string{"Content Hash", "`" + summary.ContentHash + "`"})
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

// getStatusText returns the status text based on summary state.
func (w *MarkdownWriter) getStatusText(summary *model.Summary) string {
	switch {
	case summary.TimedOut:
		return "⚠️ Timed Out"
	case summary.Error != "":
		return "❌ Error - " + summary.Error
	case summary.HasDefects():
		return "🟡 " + statusText(summary)
	default:
		return "✅ " + statusText(summary)
	}
}

// writeSummary writes the per-category defect table, chart and alert.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, summary *model.Summary) {
	md.H2("Defect Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Category", "Defects"},
		Rows: [][]string{
			{string(model.CategoryTagCheck), strconv.Itoa(summary.TagDefects)},
			{string(model.CategoryLinkCheck), strconv.Itoa(summary.LinkDefects)},
			{string(model.CategoryImageCheck), strconv.Itoa(summary.ImageDefects)},
			{"**Total**", "**" + strconv.Itoa(summary.TotalDefects()) + "**"},
		},
	})
	md.PlainText("")

	if summary.HasDefects() {
		w.writePieChart(md, summary)
	}

	w.writeAlert(md, summary)
}

// writePieChart writes a mermaid pie chart for the defect distribution.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, summary *model.Summary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Defect Distribution"),
		piechart.WithShowData(true),
	)

	if summary.TagDefects > 0 {
		chart.LabelAndIntValue("Tags", uint64(summary.TagDefects))
	}
	if summary.LinkDefects > 0 {
		chart.LabelAndIntValue("Links", uint64(summary.LinkDefects))
	}
	if summary.ImageDefects > 0 {
		chart.LabelAndIntValue("Images", uint64(summary.ImageDefects))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an alert that matches the worst defect found.
// Broken links and missing images reach readers directly, so they
// outrank cosmetic problems.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, summary *model.Summary) {
	switch {
	case summary.LinkDefects > 0 || summary.ImageDefects > 0:
		md.Cautionf(
			"%d link and %d image defect(s) found. Readers will see broken content.",
			summary.LinkDefects, summary.ImageDefects,
		)
	case summary.TagDefects > 0:
		md.Note("Only empty tags were found.")
	default:
		md.Tip("No defects found.")
	}
	md.PlainText("")
}

// writeDefects writes one table per defective category, with the full
// markup of every offending node in collapsible details.
func (w *MarkdownWriter) writeDefects(md *markdown.Markdown, errs *model.ErrorReport) {
	if !errs.HasDefects() {
		return
	}

	md.H2("Defects")
	md.PlainText("")

	for _, category := range categoryOrder {
		result, ok := errs.Get(category)
		if !ok || result.Clean() {
			continue
		}

		md.H3(string(category))
		md.PlainText("")

		rows := make([][]string, 0, len(result.Defects()))
		for _, d := range result.Defects() {
			first := "-"
			if len(d.Nodes) > 0 {
				first = "`" + escapeCell(truncateString(d.Nodes[0], 60)) + "`"
			}
			rows = append(rows, []string{string(d.Kind), strconv.Itoa(len(d.Nodes)), first})
		}
		md.Table(markdown.TableSet{
			Header: []string{"Kind", "Count", "First Node"},
			Rows:   rows,
		})
		md.PlainText("")

		for _, d := range result.Defects() {
			if len(d.Nodes) == 0 {
				continue
			}
			md.Details(string(d.Kind), "\n```html\n"+strings.Join(d.Nodes, "\n")+"\n```\n")
		}
		md.PlainText("")
	}
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [newslettercheck](https://github.com/nao1215/newslettercheck)*")
}

// escapeCell keeps table cells from splitting on pipes or line breaks.
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
