package pipeline

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/crypto/sha3"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/nao1215/newslettercheck/internal/gremlin"
	"github.com/nao1215/newslettercheck/internal/model"
	"github.com/nao1215/newslettercheck/internal/resolver"
)

const (
	// ContentClass is the class of the wrapper element that holds the
	// body content while it moves through inlining and auditing.
	ContentClass = "content_div"

	// IgnoreClass marks elements that are left out of the serialized content.
	IgnoreClass = "ignore"
)

// Step names, in pipeline order.
const (
	StepFetch     = "fetch"
	StepZap       = "zap"
	StepResolve   = "resolve_urls"
	StepWrap      = "wrap_body"
	StepInline    = "inline"
	StepReparse   = "reparse"
	StepAudit     = "audit"
	StepSerialize = "serialize"
)

// PageFetcher retrieves and parses a page. *fetcher.Fetcher satisfies it.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*html.Node, error)
}

// StyleInliner applies stylesheets to markup. *inliner.Inliner satisfies it.
type StyleInliner interface {
	Inline(ctx context.Context, htmlText string, stylesheetPaths []string) (string, error)
}

// ContentAuditor audits a content fragment. *audit.Auditor satisfies it.
type ContentAuditor interface {
	Audit(ctx context.Context, fragment *html.Node) *model.ErrorReport
}

// FetchStep retrieves the page named by report.URL.
type FetchStep struct {
	fetcher PageFetcher
	logger  *slog.Logger
}

// NewFetchStep creates a fetch step.
func NewFetchStep(f PageFetcher, logger *slog.Logger) *FetchStep {
	return &FetchStep{fetcher: f, logger: orDefault(logger)}
}

// Name returns the step name.
func (s *FetchStep) Name() string { return StepFetch }

// Do fetches the page into report.Document.
func (s *FetchStep) Do(ctx context.Context, report *model.ScrapeReport) error {
	doc, err := s.fetcher.Fetch(ctx, report.URL)
	if err != nil {
		return err
	}
	report.Document = doc
	return report.Advance(model.StateFetched)
}

// ZapStep normalizes every text and comment node of the document to ASCII.
type ZapStep struct{}

// NewZapStep creates a zap step.
func NewZapStep() *ZapStep { return &ZapStep{} }

// Name returns the step name.
func (s *ZapStep) Name() string { return StepZap }

// Do zaps report.Document in place.
func (s *ZapStep) Do(_ context.Context, report *model.ScrapeReport) error {
	gremlin.ZapTree(report.Document)
	return report.Advance(model.StateZapped)
}

// ResolveStep makes src and href attributes absolute against the page URL.
type ResolveStep struct {
	logger *slog.Logger
}

// NewResolveStep creates a URL resolution step.
func NewResolveStep(logger *slog.Logger) *ResolveStep {
	return &ResolveStep{logger: orDefault(logger)}
}

// Name returns the step name.
func (s *ResolveStep) Name() string { return StepResolve }

// Do resolves URLs in report.Document.
func (s *ResolveStep) Do(_ context.Context, report *model.ScrapeReport) error {
	r, err := resolver.New(report.URL, resolver.WithLogger(s.logger))
	if err != nil {
		return err
	}
	n := r.Resolve(report.Document)
	s.logger.Debug("urls resolved", "url", report.URL, "rewritten", n)
	return report.Advance(model.StateURLsResolved)
}

// WrapStep moves every child of <body> into a single content wrapper,
// which becomes the only child of <body>.
type WrapStep struct{}

// NewWrapStep creates a body wrapping step.
func NewWrapStep() *WrapStep { return &WrapStep{} }

// Name returns the step name.
func (s *WrapStep) Name() string { return StepWrap }

// Do wraps the body of report.Document and stores the wrapper as
// report.Fragment.
func (s *WrapStep) Do(_ context.Context, report *model.ScrapeReport) error {
	body := findElement(report.Document, atom.Body)
	if body == nil {
		return fmt.Errorf("%w: %s", ErrMissingContentBody, report.URL)
	}

	wrapper := &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Div,
		Data:     "div",
		Attr:     []html.Attribute{{Key: "class", Val: ContentClass}},
	}
	for c := body.FirstChild; c != nil; c = body.FirstChild {
		body.RemoveChild(c)
		wrapper.AppendChild(c)
	}
	body.AppendChild(wrapper)

	report.Fragment = wrapper
	return report.Advance(model.StateBodyWrapped)
}

// InlineStep renders the document and applies its stylesheets inline.
type InlineStep struct {
	inliner     StyleInliner
	stylesheets []string
}

// NewInlineStep creates an inlining step. stylesheets are local CSS files
// applied in addition to those the page references.
func NewInlineStep(i StyleInliner, stylesheets []string) *InlineStep {
	return &InlineStep{inliner: i, stylesheets: stylesheets}
}

// Name returns the step name.
func (s *InlineStep) Name() string { return StepInline }

// Do stores the inlined markup in report.Inlined.
func (s *InlineStep) Do(ctx context.Context, report *model.ScrapeReport) error {
	var sb strings.Builder
	if err := html.Render(&sb, report.Document); err != nil {
		return fmt.Errorf("render document: %w", err)
	}

	inlined, err := s.inliner.Inline(ctx, sb.String(), s.stylesheets)
	if err != nil {
		return err
	}
	report.Inlined = inlined
	return report.Advance(model.StateInlined)
}

// ReparseStep parses the inlined markup and locates the content wrapper
// in the new tree.
type ReparseStep struct{}

// NewReparseStep creates a reparse step.
func NewReparseStep() *ReparseStep { return &ReparseStep{} }

// Name returns the step name.
func (s *ReparseStep) Name() string { return StepReparse }

// Do replaces report.Document and report.Fragment with the reparsed tree.
func (s *ReparseStep) Do(_ context.Context, report *model.ScrapeReport) error {
	doc, err := html.Parse(strings.NewReader(report.Inlined))
	if err != nil {
		return fmt.Errorf("reparse inlined content: %w", err)
	}

	wrapper := goquery.NewDocumentFromNode(doc).Find("div." + ContentClass).First()
	if wrapper.Length() == 0 {
		return fmt.Errorf("%w: content wrapper lost after inlining %s", ErrMissingContentBody, report.URL)
	}

	report.Document = doc
	report.Fragment = wrapper.Nodes[0]
	return report.Advance(model.StateReparsed)
}

// AuditStep runs the content auditor over the wrapper.
type AuditStep struct {
	auditor ContentAuditor
}

// NewAuditStep creates an audit step.
func NewAuditStep(a ContentAuditor) *AuditStep {
	return &AuditStep{auditor: a}
}

// Name returns the step name.
func (s *AuditStep) Name() string { return StepAudit }

// Do stores the audit result in report.Errors.
func (s *AuditStep) Do(ctx context.Context, report *model.ScrapeReport) error {
	report.Errors = s.auditor.Audit(ctx, report.Fragment)
	return report.Advance(model.StateAudited)
}

// SerializeStep renders the wrapper's children into report.Content.
type SerializeStep struct{}

// NewSerializeStep creates a serialize step.
func NewSerializeStep() *SerializeStep { return &SerializeStep{} }

// Name returns the step name.
func (s *SerializeStep) Name() string { return StepSerialize }

// Do serializes report.Fragment and hashes the result.
func (s *SerializeStep) Do(_ context.Context, report *model.ScrapeReport) error {
	content, err := Serialize(report.Fragment)
	if err != nil {
		return err
	}

	sum := sha3.Sum256([]byte(content))
	report.Content = content
	report.ContentHash = hex.EncodeToString(sum[:])
	return report.Advance(model.StateSerialized)
}

// Serialize concatenates the markup of wrapper's direct children in order.
// Element children carrying the ignore class are left out, and comments
// keep their <!-- --> delimiters.
func Serialize(wrapper *html.Node) (string, error) {
	var sb strings.Builder
	if wrapper == nil {
		return "", nil
	}

	for c := wrapper.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.ElementNode:
			if hasClass(c, IgnoreClass) {
				continue
			}
			if err := html.Render(&sb, c); err != nil {
				return "", fmt.Errorf("serialize content: %w", err)
			}
		case html.CommentNode:
			sb.WriteString("<!--")
			sb.WriteString(c.Data)
			sb.WriteString("-->")
		default:
			if err := html.Render(&sb, c); err != nil {
				return "", fmt.Errorf("serialize content: %w", err)
			}
		}
	}
	return sb.String(), nil
}

// hasClass reports whether the class attribute of n contains class as a
// whole token.
func hasClass(n *html.Node, class string) bool {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == "class" {
			return slices.Contains(strings.Fields(a.Val), class)
		}
	}
	return false
}

// findElement returns the first element with the given atom in document order.
func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n == nil {
		return nil
	}
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

func orDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
