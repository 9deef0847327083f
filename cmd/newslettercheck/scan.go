package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/nao1215/newslettercheck/internal/audit"
	"github.com/nao1215/newslettercheck/internal/config"
	"github.com/nao1215/newslettercheck/internal/database"
	"github.com/nao1215/newslettercheck/internal/fetcher"
	"github.com/nao1215/newslettercheck/internal/inliner"
	applog "github.com/nao1215/newslettercheck/internal/log"
	"github.com/nao1215/newslettercheck/internal/model"
	"github.com/nao1215/newslettercheck/internal/pipeline"
	"github.com/nao1215/newslettercheck/internal/report"
)

var (
	// errInvalidTarget is returned for arguments that are not absolute
	// http(s) URLs.
	errInvalidTarget = errors.New("invalid target URL")

	// errScrapesFailed is returned when at least one page could not be
	// scraped. Audit defects alone never produce it.
	errScrapesFailed = errors.New("scrape failed")
)

// NewScanCmd creates the scan command.
func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [url...]",
		Short: "Scrape, sanitize and audit newsletter pages",
		Long: `Scan fetches each newsletter page and runs the content pipeline:

- Normalize stray Windows-1252 characters and transliterate to ASCII
- Rewrite relative href and src attributes to absolute URLs
- Inline linked and configured stylesheets as style attributes
- Audit the content for empty tags, broken links and image problems

The page must answer 200 with Content-Type "text/html; charset=UTF-8".
Links and images are checked concurrently; a target that does not answer
200 is reported as a defect.

Examples:
  # Scan a single newsletter
  newslettercheck scan https://news.example.com/issue-12

  # Scan several newsletters, three at a time
  newslettercheck scan -b 3 https://a.example.com/ https://b.example.com/

  # Write a Markdown report including the sanitized HTML
  newslettercheck scan -m -C -o report.md https://news.example.com/issue-12

  # Output JSON without recording history
  newslettercheck scan --json --no-history https://news.example.com/issue-12

Configuration file (.newslettercheck) example:
  defaults:
    skipPatterns:
      - "*.list-manage.com/**"
  sites:
    news.example.com:
      cookie: "session=abc123"
      stylesheets:
        - ./email.css`,
		Args: cobra.ArbitraryArgs,
		RunE: runScanCmd,
	}

	// Request flags
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each HTTP request, including link checks")
	cmd.Flags().IntP("concurrency", "n", config.DefaultConcurrency,
		"Number of link and image checks run at once per page")
	cmd.Flags().Float64P("rate-limit", "r", config.DefaultRateLimit,
		"Maximum requests per second across the whole run (0 = unlimited)")
	cmd.Flags().StringP("user-agent", "u", config.DefaultUserAgent,
		"User-Agent header sent with every request")

	// Batch flags
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of pages scraped at once")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .newslettercheck in current or home directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.Flags().BoolP("content", "C", false,
		"Include the sanitized HTML in the report")

	// History flags
	cmd.Flags().Bool("no-history", false,
		"Do not record results in the history database")
	cmd.Flags().String("db-dir", "",
		"Directory of the history database (default: XDG data directory)")

	return cmd
}

// runScanCmd executes the scan command.
func runScanCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := applog.NewSecureLogger(cmd.ErrOrStderr(), cfg.Verbose)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runScan(ctx, cfg, streams{out: cmd.OutOrStdout(), progress: cmd.ErrOrStderr()}, logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from cobra command flags.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.Concurrency, err = flags.GetInt("concurrency"); err != nil {
		return nil, err
	}
	if cfg.RateLimit, err = flags.GetFloat64("rate-limit"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
		return nil, err
	}
	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	if cfg.IncludeContent, err = flags.GetBool("content"); err != nil {
		return nil, err
	}

	noHistory, err := flags.GetBool("no-history")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noHistory

	dbDir, err := flags.GetString("db-dir")
	if err != nil {
		return nil, err
	}
	if dbDir != "" {
		cfg.DBDir = dbDir
	}

	cfg.Verbose = getVerboseFlag(cmd)

	if cfg.SiteConfigs, err = loadSiteConfigs(cfg.ConfigFilePath); err != nil {
		return nil, err
	}

	cfg.Targets = args

	return cfg, nil
}

// loadSiteConfigs loads the configuration file.
// If the user explicitly specified a path, a missing file is an error.
// Otherwise an empty configuration is used when no file is found.
func loadSiteConfigs(explicitPath string) (*config.File, error) {
	configPath := config.FindConfigFile(explicitPath)

	switch {
	case configPath != "":
		file, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		return file, nil
	case explicitPath != "":
		return nil, fmt.Errorf("configuration file not found: %s", explicitPath)
	default:
		return &config.File{Sites: make(map[string]config.SiteConfig)}, nil
	}
}

// normalizeTarget checks that raw is an absolute http(s) URL and returns
// it with a lowercase scheme and host.
func normalizeTarget(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("%w %q: %w", errInvalidTarget, raw, err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w %q: must be an absolute http or https URL", errInvalidTarget, raw)
	}
	u.Host = strings.ToLower(u.Host)

	return u.String(), nil
}

// streams holds the destinations of a scan run.
type streams struct {
	// out receives reports unless a report file is configured.
	out io.Writer

	// progress receives human-oriented progress lines.
	progress io.Writer
}

// runScan executes the scan.
func runScan(ctx context.Context, cfg *config.Config, s streams, logger *slog.Logger) error {
	for i, target := range cfg.Targets {
		normalized, err := normalizeTarget(target)
		if err != nil {
			return err
		}
		cfg.Targets[i] = normalized
	}

	logger.Info("starting scan",
		"targets", len(cfg.Targets),
		"batchSize", cfg.BatchSize,
		"saveToDB", cfg.SaveToDB,
	)

	// Open database connection if saving is enabled
	var db *database.ScrapeDB
	if cfg.SaveToDB {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Debug("database opened", "path", db.Path())
	}

	output, closeOutput, err := openReportOutput(cfg.ReportFile, s.out)
	if err != nil {
		return err
	}
	defer closeOutput()

	run := &scanRun{
		cfg:     cfg,
		writer:  newReportWriter(cfg, output),
		db:      db,
		scraper: newScraperFactory(cfg, logger),
		out:     s.progress,
		logger:  logger,
	}

	if len(cfg.Targets) > 1 && cfg.BatchSize > 1 {
		err = run.batch(ctx)
	} else {
		err = run.sequential(ctx)
	}
	if err != nil {
		return err
	}

	if run.failed > 0 {
		return fmt.Errorf("%w: %d of %d page(s) could not be scraped", errScrapesFailed, run.failed, len(cfg.Targets))
	}
	return nil
}

// scanRun holds what is shared while scraping the targets of one run.
type scanRun struct {
	cfg     *config.Config
	writer  report.Writer
	db      *database.ScrapeDB
	scraper func(rawURL string) *pipeline.Scraper
	out     io.Writer
	logger  *slog.Logger

	// mu guards failed and serializes report output.
	mu     sync.Mutex
	failed int
}

// sequential scrapes targets one at a time.
func (r *scanRun) sequential(ctx context.Context) error {
	for _, target := range r.cfg.Targets {
		if err := ctx.Err(); err != nil {
			return err
		}

		fmt.Fprintf(r.out, "Scraping %s...\n", target)
		startTime := time.Now()

		scrapeReport, err := r.scraper(target).Run(ctx, target)
		if err != nil {
			fmt.Fprintf(r.out, "Scrape error for %s: %v\n", target, err)
		} else {
			fmt.Fprintf(r.out, "Scrape completed in %s\n", time.Since(startTime).Round(time.Millisecond))
		}

		r.handle(ctx, scrapeReport)
	}

	return nil
}

// batch scrapes targets concurrently using BatchProcessor. Each page gets a
// pipeline built from its own site configuration.
func (r *scanRun) batch(ctx context.Context) error {
	fmt.Fprintf(r.out, "Starting batch scrape of %d pages (concurrency: %d)...\n",
		len(r.cfg.Targets), r.cfg.BatchSize)
	startTime := time.Now()

	bp := pipeline.NewBatchProcessor(
		func(rawURL string) *pipeline.Pipeline {
			return r.scraper(rawURL).NewPipeline()
		},
		pipeline.WithConcurrency(r.cfg.BatchSize),
		pipeline.WithBatchLogger(r.logger),
	)

	var done int
	err := bp.ProcessBatchWithCallback(ctx, r.cfg.Targets, func(scrapeReport *model.ScrapeReport, _ int) {
		r.mu.Lock()
		done++
		fmt.Fprintf(r.out, "[%d/%d] %s: %s\n", done, len(r.cfg.Targets), scrapeReport.URL, scrapeReport.State)
		r.mu.Unlock()

		r.handle(ctx, scrapeReport)
	})

	fmt.Fprintf(r.out, "Batch scrape completed in %s\n", time.Since(startTime).Round(time.Millisecond))

	return err
}

// handle writes and stores one finished report. Errors here are logged and
// do not stop the run.
func (r *scanRun) handle(ctx context.Context, scrapeReport *model.ScrapeReport) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if scrapeReport.ErrorMessage != "" {
		r.failed++
		r.logger.Error("scrape failed", "url", scrapeReport.URL, "error", scrapeReport.ErrorMessage)
	}

	if _, err := r.writer.Write(scrapeReport); err != nil {
		r.logger.Error("report failed", "url", scrapeReport.URL, "error", err)
	}

	if r.db == nil {
		return
	}
	// A cancelled run still records what finished, so storage uses its own context.
	if _, err := r.db.SaveScrape(context.WithoutCancel(ctx), scrapeReport); err != nil {
		r.logger.Error("failed to save scrape", "url", scrapeReport.URL, "error", err)
		return
	}
	r.logger.Debug("scrape saved to database", "url", scrapeReport.URL)
}

// newScraperFactory returns a function building a Scraper for one URL,
// with that URL's site configuration applied. All scrapers share one rate
// limiter so that --rate-limit bounds the whole run.
func newScraperFactory(cfg *config.Config, logger *slog.Logger) func(rawURL string) *pipeline.Scraper {
	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	return func(rawURL string) *pipeline.Scraper {
		site := cfg.SiteConfigs.GetSiteConfigForURL(rawURL)

		var host string
		if u, err := url.Parse(rawURL); err == nil {
			host = u.Hostname()
		}

		f := fetcher.New(
			fetcher.WithTimeout(cfg.Timeout),
			fetcher.WithUserAgent(cfg.UserAgent),
			fetcher.WithMaxBodySize(cfg.MaxBodySize),
			fetcher.WithContentType(cfg.ContentType),
			fetcher.WithCookie(site.Cookie),
			fetcher.WithHeaders(site.Headers),
			fetcher.WithCredentialHost(host),
			fetcher.WithLimiter(limiter),
			fetcher.WithLogger(logger),
		)

		return pipeline.NewScraper(
			pipeline.WithFetcher(f),
			pipeline.WithInliner(inliner.New(
				inliner.WithStylesheetSource(f),
				inliner.WithLogger(logger),
			)),
			pipeline.WithAuditor(audit.New(f,
				audit.WithConcurrency(cfg.Concurrency),
				audit.WithSkipPatterns(site.SkipPatterns),
				audit.WithLogger(logger),
			)),
			pipeline.WithStylesheets(site.Stylesheets),
			pipeline.WithScraperLogger(logger),
		)
	}
}

// newReportWriter returns the writer for the requested report format.
func newReportWriter(cfg *config.Config, output io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewFullJSONWriter(output, getVersion(),
			report.WithPrettyPrint(),
			report.WithContent(cfg.IncludeContent),
		)
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(output, report.WithEmbeddedContent(cfg.IncludeContent))
	default:
		return report.NewSimpleWriter(output,
			report.WithVerbose(cfg.Verbose),
			report.WithShowContent(cfg.IncludeContent),
		)
	}
}

// openReportOutput opens the report file, or returns fallback when path is
// empty. The returned function closes whatever was opened.
func openReportOutput(path string, fallback io.Writer) (io.Writer, func(), error) {
	if path == "" {
		return fallback, func() {}, nil
	}

	// Create directories if they don't exist
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	// Reports may carry subscriber-only content, so only the owner may read them.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // path comes from the user
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}

	return f, func() { _ = f.Close() }, nil
}
