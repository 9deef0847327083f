package report

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/nao1215/newslettercheck/internal/model"
)

// JSONWriter outputs reports in JSON format.
// This format is designed for tool integration and programmatic processing.
//
// Design decision: We use an encoding/json Encoder with HTML escaping turned
// off rather than json.Marshal because:
// 1. Reports carry HTML markup, and < escapes make it unreadable
// 2. The output is never embedded in a web page, so the escaping buys nothing
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	// When false, output is compact (no extra whitespace).
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string (typically "  " or "\t").
	indentString string

	// includeContent keeps the sanitized content in the output.
	includeContent bool
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with default indentation.
// This is a convenience wrapper for WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// WithContent controls whether the sanitized content is written.
// The content is usually large, so it is left out by default.
func WithContent(include bool) JSONWriterOption {
	return func(w *JSONWriter) {
		w.includeContent = include
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the report in JSON format.
func (w *JSONWriter) Write(report *model.ScrapeReport) (int, error) {
	return w.writeJSON(w.prepare(report))
}

// WriteSummary outputs only the summary in JSON format.
func (w *JSONWriter) WriteSummary(summary *model.Summary) (int, error) {
	return w.writeJSON(summary)
}

// prepare returns the report to encode, without content unless requested.
// The caller's report is never modified.
func (w *JSONWriter) prepare(report *model.ScrapeReport) *model.ScrapeReport {
	if w.includeContent || report.Content == "" {
		return report
	}
	trimmed := *report
	trimmed.Content = ""
	return &trimmed
}

// writeJSON encodes v and writes it to the output with a trailing newline.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if w.indent {
		enc.SetIndent(w.indentPrefix, w.indentString)
	}

	if err := enc.Encode(v); err != nil {
		return 0, err
	}

	return w.output.Write(buf.Bytes())
}

// JSONReport is a wrapper for the full report with additional metadata.
// This is used when writing the complete report with contextual information.
//
// Design decision: We wrap the report rather than modifying ScrapeReport
// because this allows us to add output-specific fields without polluting
// the core data structure.
type JSONReport struct {
	// Version is the newslettercheck version that generated this report.
	Version string `json:"version"`

	// Report is the full scrape report.
	Report *model.ScrapeReport `json:"report"`

	// Summary is the condensed view for quick access.
	Summary *model.Summary `json:"summary"`
}

// NewJSONReport creates a JSONReport wrapper with version information.
func NewJSONReport(report *model.ScrapeReport, version string) *JSONReport {
	return &JSONReport{
		Version: version,
		Report:  report,
		Summary: model.NewSummary(report),
	}
}

// FullJSONWriter outputs complete reports with metadata wrapper.
type FullJSONWriter struct {
	*JSONWriter

	// version is the newslettercheck version string.
	version string
}

// NewFullJSONWriter creates a writer for complete reports with metadata.
func NewFullJSONWriter(output io.Writer, version string, opts ...JSONWriterOption) *FullJSONWriter {
	return &FullJSONWriter{
		JSONWriter: NewJSONWriter(output, opts...),
		version:    version,
	}
}

// Write outputs the full report wrapped with metadata.
// The summary is computed before content is trimmed, so content_length
// always reflects the real content.
func (w *FullJSONWriter) Write(report *model.ScrapeReport) (int, error) {
	wrapped := NewJSONReport(report, w.version)
	wrapped.Report = w.prepare(report)
	return w.writeJSON(wrapped)
}
