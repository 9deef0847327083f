package pipeline

import (
	"context"
	"log/slog"

	"github.com/nao1215/newslettercheck/internal/audit"
	"github.com/nao1215/newslettercheck/internal/fetcher"
	"github.com/nao1215/newslettercheck/internal/inliner"
	"github.com/nao1215/newslettercheck/internal/model"
)

// Scraper runs the full content pipeline for one page at a time.
// A Scraper is safe for concurrent use; each scrape gets a fresh Pipeline
// and its own parse trees.
type Scraper struct {
	fetcher     PageFetcher
	inliner     StyleInliner
	auditor     ContentAuditor
	stylesheets []string
	logger      *slog.Logger
}

// ScraperOption configures a Scraper.
type ScraperOption func(*Scraper)

// WithFetcher sets the page fetcher.
func WithFetcher(f PageFetcher) ScraperOption {
	return func(s *Scraper) {
		s.fetcher = f
	}
}

// WithInliner sets the style inliner.
func WithInliner(i StyleInliner) ScraperOption {
	return func(s *Scraper) {
		s.inliner = i
	}
}

// WithAuditor sets the content auditor.
func WithAuditor(a ContentAuditor) ScraperOption {
	return func(s *Scraper) {
		s.auditor = a
	}
}

// WithStylesheets sets local CSS files applied to every scraped page.
func WithStylesheets(paths []string) ScraperOption {
	return func(s *Scraper) {
		s.stylesheets = paths
	}
}

// WithScraperLogger sets a custom logger for the scraper and its steps.
func WithScraperLogger(logger *slog.Logger) ScraperOption {
	return func(s *Scraper) {
		s.logger = logger
	}
}

// NewScraper creates a Scraper. Collaborators that are not supplied are
// built with their defaults around one shared fetcher, which then serves
// the page, linked stylesheets and liveness checks.
func NewScraper(opts ...ScraperOption) *Scraper {
	s := &Scraper{}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}

	var shared *fetcher.Fetcher
	sharedFetcher := func() *fetcher.Fetcher {
		if shared == nil {
			shared = fetcher.New(fetcher.WithLogger(s.logger))
		}
		return shared
	}

	if s.fetcher == nil {
		s.fetcher = sharedFetcher()
	}
	if s.inliner == nil {
		s.inliner = inliner.New(
			inliner.WithStylesheetSource(sharedFetcher()),
			inliner.WithLogger(s.logger),
		)
	}
	if s.auditor == nil {
		s.auditor = audit.New(sharedFetcher(), audit.WithLogger(s.logger))
	}

	return s
}

// NewPipeline returns a pipeline holding the eight scrape steps in order.
func (s *Scraper) NewPipeline() *Pipeline {
	p := New(WithLogger(s.logger))
	p.AddSteps(
		NewFetchStep(s.fetcher, s.logger),
		NewZapStep(),
		NewResolveStep(s.logger),
		NewWrapStep(),
		NewInlineStep(s.inliner, s.stylesheets),
		NewReparseStep(),
		NewAuditStep(s.auditor),
		NewSerializeStep(),
	)
	return p
}

// Run scrapes rawURL and returns the full report. The report is returned
// even on error; its State shows how far the scrape got. Parse trees are
// released before returning.
func (s *Scraper) Run(ctx context.Context, rawURL string) (*model.ScrapeReport, error) {
	report := model.NewScrapeReport(rawURL)
	err := s.NewPipeline().Execute(ctx, report)
	report.ReleaseTrees()
	return report, err
}

// Scrape fetches rawURL, sanitizes its body content and audits it.
// On error no partial content or report is returned.
func (s *Scraper) Scrape(ctx context.Context, rawURL string) (string, *model.ErrorReport, error) {
	report, err := s.Run(ctx, rawURL)
	if err != nil {
		return "", nil, err
	}
	return report.Content, report.Errors, nil
}
