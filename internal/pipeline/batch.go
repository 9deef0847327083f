package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/newslettercheck/internal/model"
)

// DefaultBatchConcurrency is the number of pages scraped at once.
const DefaultBatchConcurrency = 4

// BatchProcessor scrapes several pages concurrently.
//
// Design decision: We use a separate BatchProcessor rather than adding batch
// functionality to Pipeline because:
// 1. It keeps the Pipeline focused on a single scrape
// 2. Each page gets a fresh pipeline, so no step state leaks between pages
// 3. Liveness concurrency stays a per-page concern of the auditor
type BatchProcessor struct {
	// pipelineFactory creates a new pipeline for each page. It receives the
	// page URL so that per-site settings can be applied.
	pipelineFactory func(rawURL string) *Pipeline

	// concurrency is the maximum number of concurrent scrapes.
	concurrency int

	// logger is used for batch-level logging.
	logger *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent scrapes.
// Non-positive values keep the default.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor. pipelineFactory is
// called once per page with that page's URL.
func NewBatchProcessor(pipelineFactory func(rawURL string) *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		concurrency:     DefaultBatchConcurrency,
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessBatch scrapes every URL and returns one report per URL, in the
// order given. A failed scrape does not stop the others; its error is on
// its report. The returned error is non-nil only if ctx was cancelled.
//
// Design decision: We use errgroup.SetLimit rather than a worker pool
// because it is simpler and each goroutine writes only its own result slot.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, urls []string) ([]*model.ScrapeReport, error) {
	results := make([]*model.ScrapeReport, len(urls))

	err := bp.ProcessBatchWithCallback(ctx, urls, func(report *model.ScrapeReport, index int) {
		results[index] = report
	})

	return results, err
}

// ProcessBatchWithCallback scrapes every URL and calls callback as each
// one finishes. The callback runs on the scraping goroutine, so it must be
// safe for concurrent use if it touches shared state. Pages not started
// before ctx is cancelled are reported with the cancellation error.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	urls []string,
	callback func(report *model.ScrapeReport, index int),
) error {
	bp.logger.Info("starting batch scrape",
		"total_urls", len(urls),
		"concurrency", bp.concurrency,
	)
	startTime := time.Now()

	var g errgroup.Group
	g.SetLimit(bp.concurrency)

	for i, rawURL := range urls {
		g.Go(func() error {
			report := model.NewScrapeReport(rawURL)

			if err := ctx.Err(); err != nil {
				report.TimedOut = true
				report.SetError(err)
				callback(report, i)
				return nil
			}

			bp.logger.Info("scraping page",
				"url", rawURL,
				"index", i+1,
				"total", len(urls),
			)

			if err := bp.pipelineFactory(rawURL).Execute(ctx, report); err != nil {
				bp.logger.Warn("scrape failed", "url", rawURL, "error", err)
			} else {
				bp.logger.Info("scrape completed",
					"url", rawURL,
					"defects", report.Errors.DefectCount(),
				)
			}
			report.ReleaseTrees()

			callback(report, i)
			return nil
		})
	}

	_ = g.Wait() //nolint:errcheck // scrape errors are recorded on reports

	bp.logger.Info("batch scrape complete",
		"total_urls", len(urls),
		"elapsed", time.Since(startTime),
	)

	return ctx.Err()
}
