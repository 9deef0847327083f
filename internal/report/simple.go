package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/newslettercheck/internal/model"
)

// ruleWidth is the width of the section rules.
const ruleWidth = 70

// SimpleWriter outputs human-readable text reports.
// This format is designed for terminal display with clear section formatting.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors because:
// 1. It works in all terminals without compatibility issues
// 2. It's easier to pipe to files or other tools
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether clean categories are listed.
	showEmpty bool

	// verbose prints every offending node instead of a count per kind.
	verbose bool

	// showContent appends the sanitized content to the report.
	showContent bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to list clean categories.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables printing of every offending node.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// WithShowContent appends the sanitized content after the findings.
func WithShowContent(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showContent = show
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

// Write outputs the full report in human-readable format.
func (w *SimpleWriter) Write(report *model.ScrapeReport) (int, error) {
	var sb strings.Builder

	summary := model.NewSummary(report)
	w.writeHeader(&sb, summary, report.State)
	w.writeSummary(&sb, summary)
	w.writeDefects(&sb, report.Errors)
	if w.showContent && report.Content != "" {
		writeSection(&sb, "CONTENT")
		sb.WriteString(report.Content)
		sb.WriteString("\n\n")
	}
	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

// WriteSummary outputs a single status line for the summary.
func (w *SimpleWriter) WriteSummary(summary *model.Summary) (int, error) {
	line := fmt.Sprintf("%-10s tags=%d links=%d images=%d  %s\n",
		shortStatus(summary),
		summary.TagDefects,
		summary.LinkDefects,
		summary.ImageDefects,
		summary.URL,
	)
	return io.WriteString(w.output, line)
}

// writeHeader writes the report header with scrape information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, summary *model.Summary, state model.State) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString("                      NEWSLETTERCHECK REPORT\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "URL:          %s\n", summary.URL)
	fmt.Fprintf(sb, "Scrape Date:  %s\n", summary.DateScraped.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "State:        %s\n", state)
	fmt.Fprintf(sb, "Status:       %s\n", statusText(summary))
	if summary.ContentHash != "" {
		fmt.Fprintf(sb, "Content Hash: %s\n", summary.ContentHash)
	}
	sb.WriteString("\n")
}

// writeSummary writes the per-category defect counts.
func (w *SimpleWriter) writeSummary(sb *strings.Builder, summary *model.Summary) {
	if !summary.Audited {
		return
	}

	writeSection(sb, "DEFECT SUMMARY")
	fmt.Fprintf(sb, "  TAGS:    %d\n", summary.TagDefects)
	fmt.Fprintf(sb, "  LINKS:   %d\n", summary.LinkDefects)
	fmt.Fprintf(sb, "  IMAGES:  %d\n", summary.ImageDefects)
	sb.WriteString("\n")
	fmt.Fprintf(sb, "  TOTAL:   %d defects\n", summary.TotalDefects())
	sb.WriteString("\n")
}

// writeDefects writes each evaluated category with its defect kinds.
func (w *SimpleWriter) writeDefects(sb *strings.Builder, errs *model.ErrorReport) {
	if !errs.HasDefects() && !w.showEmpty {
		return
	}

	writeSection(sb, "DEFECTS")

	for _, category := range categoryOrder {
		result, ok := errs.Get(category)
		if !ok || (result.Clean() && !w.showEmpty) {
			continue
		}

		fmt.Fprintf(sb, "[%s]\n", category)
		if result.Clean() {
			sb.WriteString("  no defects\n\n")
			continue
		}

		for _, d := range result.Defects() {
			fmt.Fprintf(sb, "  * %s: %d\n", d.Kind, len(d.Nodes))
			if !w.verbose {
				continue
			}
			for _, node := range d.Nodes {
				fmt.Fprintf(sb, "      %s\n", node)
			}
		}
		sb.WriteString("\n")
	}
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString("Report generated by newslettercheck\n")
	sb.WriteString("https://github.com/nao1215/newslettercheck\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
}

// writeSection writes a ruled section title.
func writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n\n")
}

// shortStatus returns a fixed vocabulary status for one-line output.
func shortStatus(s *model.Summary) string {
	switch {
	case s.TimedOut:
		return "TIMEOUT"
	case s.Error != "":
		return "ERROR"
	case s.HasDefects():
		return "DEFECTS"
	default:
		return "OK"
	}
}
