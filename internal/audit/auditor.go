package audit

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"

	"github.com/nao1215/newslettercheck/internal/fetcher"
	"github.com/nao1215/newslettercheck/internal/model"
)

// DefaultConcurrency is the number of liveness checks run at once.
const DefaultConcurrency = 8

// contentTags are the elements the tag check flags when empty.
var contentTags = []string{"h1", "h2", "h3", "h4", "h5", "h6", "p", "li"}

// LivenessChecker reports whether a URL is alive.
// *fetcher.Fetcher satisfies it.
type LivenessChecker interface {
	Check(ctx context.Context, rawURL string) fetcher.Liveness
}

// Auditor inspects a content fragment for structural defects.
// An Auditor is safe for concurrent use.
type Auditor struct {
	// checker performs liveness checks.
	checker LivenessChecker

	// concurrency bounds concurrent liveness checks.
	concurrency int

	// skipPatterns are doublestar globs for URLs assumed alive.
	skipPatterns []string

	// logger for structured logging.
	logger *slog.Logger
}

// Option configures an Auditor.
type Option func(*Auditor)

// WithConcurrency sets how many liveness checks run at once.
// Non-positive values keep the default.
func WithConcurrency(n int) Option {
	return func(a *Auditor) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

// WithSkipPatterns sets doublestar globs for URLs that are treated as
// reachable without a request. Patterns are matched against the URL with
// its scheme removed, e.g. "*.list-manage.com/**".
func WithSkipPatterns(patterns []string) Option {
	return func(a *Auditor) {
		a.skipPatterns = patterns
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Auditor) {
		a.logger = logger
	}
}

// New creates an Auditor that checks liveness through checker.
func New(checker LivenessChecker, opts ...Option) *Auditor {
	a := &Auditor{
		checker:     checker,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	return a
}

// Audit runs the tag, link and image checks over fragment and returns a
// report holding all three categories, in that order.
//
// Liveness checks for links and images share one bounded pool and are
// joined before any defect list is built, so defects always appear in
// document order.
func (a *Auditor) Audit(ctx context.Context, fragment *html.Node) *model.ErrorReport {
	anchors := descendants(fragment, named("a"))
	images := descendants(fragment, named("img"))

	live := a.checkAll(ctx, append(targets(anchors, "href"), targets(images, "src")...))

	report := model.NewErrorReport()
	report.Set(model.CategoryTagCheck, a.TagCheck(fragment))
	report.Set(model.CategoryLinkCheck, linkResult(anchors, live))
	report.Set(model.CategoryImageCheck, imageResult(images, live))

	a.logger.Debug("audit complete",
		"anchors", len(anchors),
		"images", len(images),
		"checked_urls", len(live),
		"defects", report.DefectCount(),
	)
	return report
}

// TagCheck flags every empty heading, paragraph and list item.
func (a *Auditor) TagCheck(fragment *html.Node) model.CheckResult {
	var empty []string
	for _, n := range descendants(fragment, named(contentTags...)) {
		if isEmpty(n) {
			empty = append(empty, render(n))
		}
	}
	return model.NewCheckResult(model.DefectList{Kind: model.KindTagEmpty, Nodes: empty})
}

// LinkCheck flags anchors that are empty, lack an href, or point at a
// URL that does not answer 200. One anchor can collect several flags.
func (a *Auditor) LinkCheck(ctx context.Context, fragment *html.Node) model.CheckResult {
	anchors := descendants(fragment, named("a"))
	return linkResult(anchors, a.checkAll(ctx, targets(anchors, "href")))
}

// ImageCheck flags images that lack a src, whose src does not answer 200,
// or whose alt text is absent or blank.
func (a *Auditor) ImageCheck(ctx context.Context, fragment *html.Node) model.CheckResult {
	images := descendants(fragment, named("img"))
	return imageResult(images, a.checkAll(ctx, targets(images, "src")))
}

// linkResult builds the link category from anchors and their liveness.
func linkResult(anchors []*html.Node, live map[string]fetcher.Liveness) model.CheckResult {
	var missing, broken, empty []string
	for _, n := range anchors {
		markup := render(n)

		href, ok := attr(n, "href")
		if !ok {
			missing = append(missing, markup)
		} else if lv, checked := live[href]; !checked || !lv.Reachable() {
			broken = append(broken, markup)
		}

		if isEmpty(n) {
			empty = append(empty, markup)
		}
	}

	return model.NewCheckResult(
		model.DefectList{Kind: model.KindMissingHref, Nodes: missing},
		model.DefectList{Kind: model.KindBrokenLink, Nodes: broken},
		model.DefectList{Kind: model.KindEmptyLink, Nodes: empty},
	)
}

// imageResult builds the image category from images and their liveness.
func imageResult(images []*html.Node, live map[string]fetcher.Liveness) model.CheckResult {
	var missing, notFound, noAlt []string
	for _, n := range images {
		markup := render(n)

		src, ok := attr(n, "src")
		if !ok {
			missing = append(missing, markup)
		} else if lv, checked := live[src]; !checked || !lv.Reachable() {
			notFound = append(notFound, markup)
		}

		if alt, ok := attr(n, "alt"); !ok || strings.TrimSpace(alt) == "" {
			noAlt = append(noAlt, markup)
		}
	}

	return model.NewCheckResult(
		model.DefectList{Kind: model.KindMissingSrc, Nodes: missing},
		model.DefectList{Kind: model.KindImageNotFound, Nodes: notFound},
		model.DefectList{Kind: model.KindMissingAlt, Nodes: noAlt},
	)
}

// targets returns the value of key for every node that has it.
func targets(nodes []*html.Node, key string) []string {
	urls := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if v, ok := attr(n, key); ok {
			urls = append(urls, v)
		}
	}
	return urls
}

// checkAll checks every distinct URL once, at most a.concurrency at a time.
//
// Design decision: Each goroutine writes only to its own slot of a
// pre-sized slice, and the map is built after Wait. No lock is needed and
// the result does not depend on completion order.
func (a *Auditor) checkAll(ctx context.Context, urls []string) map[string]fetcher.Liveness {
	unique := make([]string, 0, len(urls))
	seen := make(map[string]bool, len(urls))
	for _, u := range urls {
		if !seen[u] {
			seen[u] = true
			unique = append(unique, u)
		}
	}

	results := make([]fetcher.Liveness, len(unique))

	var g errgroup.Group
	g.SetLimit(a.concurrency)
	for i, u := range unique {
		g.Go(func() error {
			results[i] = a.check(ctx, u)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // checks never return an error

	live := make(map[string]fetcher.Liveness, len(unique))
	for i, u := range unique {
		live[u] = results[i]
	}
	return live
}

// check performs one liveness check, honouring skip patterns and
// cancellation.
func (a *Auditor) check(ctx context.Context, rawURL string) fetcher.Liveness {
	if a.skipped(rawURL) {
		a.logger.Debug("liveness check skipped by pattern", "url", rawURL)
		return fetcher.Liveness{URL: rawURL, Status: fetcher.StatusReachable, StatusCode: http.StatusOK}
	}

	if err := ctx.Err(); err != nil {
		return fetcher.Liveness{URL: rawURL, Status: fetcher.StatusTransportError, StatusCode: http.StatusNotFound, Err: err}
	}

	result := a.checker.Check(ctx, rawURL)
	if !result.Reachable() {
		a.logger.Debug("resource not reachable",
			"url", rawURL,
			"status", result.Status.String(),
			"status_code", result.StatusCode,
		)
	}
	return result
}

// skipped reports whether rawURL matches a skip pattern.
func (a *Auditor) skipped(rawURL string) bool {
	if len(a.skipPatterns) == 0 {
		return false
	}

	target := rawURL
	if idx := strings.Index(target, "://"); idx >= 0 {
		target = target[idx+3:]
	}

	for _, pattern := range a.skipPatterns {
		matched, err := doublestar.Match(pattern, target)
		if err != nil {
			a.logger.Warn("invalid skip pattern", "pattern", pattern, "error", err)
			continue
		}
		if matched {
			return true
		}
	}
	return false
}
