package inliner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/aymerick/douceur/inliner"
)

// StylesheetSource retrieves remote stylesheets referenced by
// <link rel="stylesheet"> elements. *fetcher.Fetcher satisfies it.
type StylesheetSource interface {
	Get(ctx context.Context, rawURL string) ([]byte, error)
}

// Inliner applies CSS rules as inline style attributes.
// An Inliner is safe for concurrent use.
type Inliner struct {
	// source fetches linked stylesheets. When nil, link elements are left
	// in place and their rules are not applied.
	source StylesheetSource

	// defaultStylesheets are local CSS files used by InlineTag.
	defaultStylesheets []string

	// logger for structured logging.
	logger *slog.Logger
}

// Option configures an Inliner.
type Option func(*Inliner)

// WithStylesheetSource sets the source used to fetch linked stylesheets.
func WithStylesheetSource(source StylesheetSource) Option {
	return func(i *Inliner) {
		i.source = source
	}
}

// WithDefaultStylesheets sets the local CSS files InlineTag applies.
func WithDefaultStylesheets(paths []string) Option {
	return func(i *Inliner) {
		i.defaultStylesheets = paths
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Inliner) {
		i.logger = logger
	}
}

// New creates an Inliner.
func New(opts ...Option) *Inliner {
	i := &Inliner{}
	for _, opt := range opts {
		opt(i)
	}
	if i.logger == nil {
		i.logger = slog.Default()
	}
	return i
}

// Inline applies every stylesheet that reaches htmlText as inline style
// attributes and returns the inner HTML of the resulting <body>.
//
// Stylesheets come from three places, lowest precedence first: the local
// files in stylesheetPaths, linked stylesheets fetched through the
// StylesheetSource, and <style> elements already in the document. Existing
// style attributes win over all of them. A stylesheet that cannot be read
// is logged and skipped.
func (i *Inliner) Inline(ctx context.Context, htmlText string, stylesheetPaths []string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlText))
	if err != nil {
		return "", fmt.Errorf("failed to parse markup: %w", err)
	}

	var sheets []string
	sheets = append(sheets, i.readLocal(stylesheetPaths)...)
	sheets = append(sheets, i.collectLinked(ctx, doc)...)

	if len(sheets) > 0 {
		head := doc.Find("head").First()
		if head.Length() == 0 {
			return "", fmt.Errorf("failed to inject stylesheets: document has no head")
		}
		head.PrependHtml("<style>" + strings.Join(sheets, "\n") + "</style>")
	}

	full, err := doc.Html()
	if err != nil {
		return "", fmt.Errorf("failed to render markup: %w", err)
	}

	inlined, err := inliner.Inline(full)
	if err != nil {
		return "", fmt.Errorf("failed to inline styles: %w", err)
	}

	return bodyContents(inlined)
}

// InlineTag inlines the configured default stylesheets into a standalone
// piece of markup and returns it without the document scaffolding.
func (i *Inliner) InlineTag(ctx context.Context, tagHTML string) (string, error) {
	return i.Inline(ctx, tagHTML, i.defaultStylesheets)
}

// readLocal reads each stylesheet file, skipping the ones that fail.
func (i *Inliner) readLocal(paths []string) []string {
	sheets := make([]string, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path) //nolint:gosec // stylesheet paths come from the user's configuration
		if err != nil {
			i.logger.Warn("skipping stylesheet", "path", path, "error", err)
			continue
		}
		sheets = append(sheets, string(data))
	}
	return sheets
}

// collectLinked fetches every linked stylesheet and removes the link
// elements whose rules were collected.
func (i *Inliner) collectLinked(ctx context.Context, doc *goquery.Document) []string {
	if i.source == nil {
		return nil
	}

	var sheets []string
	doc.Find("link[href]").Each(func(_ int, link *goquery.Selection) {
		if !strings.EqualFold(strings.TrimSpace(link.AttrOr("rel", "")), "stylesheet") {
			return
		}

		href := link.AttrOr("href", "")
		data, err := i.source.Get(ctx, href)
		if err != nil {
			i.logger.Warn("skipping linked stylesheet", "href", href, "error", err)
			return
		}

		sheets = append(sheets, string(data))
		link.Remove()
	})
	return sheets
}

// bodyContents parses markup and returns the inner HTML of its body.
func bodyContents(markup string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return "", fmt.Errorf("failed to reparse inlined markup: %w", err)
	}

	body, err := doc.Find("body").First().Html()
	if err != nil {
		return "", fmt.Errorf("failed to render body: %w", err)
	}
	return body, nil
}
