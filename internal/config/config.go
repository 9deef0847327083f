package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// DefaultTimeout bounds each HTTP request, including liveness checks.
	// Newsletter hosts and image CDNs normally answer within a few seconds;
	// 30 seconds leaves room for slow trackers without stalling an audit.
	DefaultTimeout = 30 * time.Second

	// DefaultConcurrency is the number of liveness checks run at once per page.
	DefaultConcurrency = 8

	// DefaultBatchSize is the number of pages scraped at once when several
	// URLs are given.
	DefaultBatchSize = 4

	// AppName is the application name used for XDG directory paths.
	AppName = "newslettercheck"

	// DefaultUserAgent identifies newslettercheck in HTTP requests.
	DefaultUserAgent = "newslettercheck/1.0 (+https://github.com/nao1215/newslettercheck)"

	// DefaultMaxBodySize limits the response body size read per request.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultContentType is the exact Content-Type a newsletter page must
	// be served with.
	DefaultContentType = "text/html; charset=UTF-8"

	// DefaultRateLimit is the request rate limit in requests per second.
	// Zero means unlimited.
	DefaultRateLimit = 0
)

// Config holds all configuration options for newslettercheck.
// It is populated from CLI flags and passed down explicitly.
//
// Design decision: We use a single flat struct instead of nested structs
// because the number of options is small and every option maps to one flag.
type Config struct {
	// Timeout is the per-request timeout.
	Timeout time.Duration

	// Concurrency is the number of liveness checks run at once per page.
	Concurrency int

	// BatchSize is the number of pages scraped at once.
	BatchSize int

	// RateLimit caps requests per second across the whole run.
	// Zero disables the limit.
	RateLimit float64

	// Verbose enables debug logging.
	Verbose bool

	// ConfigFilePath is the path to the configuration file.
	// If empty, the standard locations are searched (see FindConfigFile).
	ConfigFilePath string

	// SiteConfigs holds site-specific configurations loaded from the config file.
	SiteConfigs *File

	// JSONReport selects JSON output. Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport selects Markdown output. Mutually exclusive with JSONReport.
	MarkdownReport bool

	// IncludeContent adds the sanitized HTML to the report.
	IncludeContent bool

	// ReportFile is the output file path. Empty means stdout.
	ReportFile string

	// Targets is the list of page URLs to scrape.
	Targets []string

	// DBDir is the directory holding the history database.
	// Defaults to the XDG data directory.
	DBDir string

	// SaveToDB indicates whether scrape results are stored for history.
	SaveToDB bool

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes to read.
	MaxBodySize int64

	// ContentType is the exact Content-Type required of scraped pages.
	ContentType string
}

// NewConfig creates a new Config with default values.
//
// Design decision: We use a constructor function instead of relying on
// zero values because most defaults are non-zero. This also serves as
// documentation of what the defaults are.
func NewConfig() *Config {
	return &Config{
		Timeout:     DefaultTimeout,
		Concurrency: DefaultConcurrency,
		BatchSize:   DefaultBatchSize,
		RateLimit:   DefaultRateLimit,
		DBDir:       XDGDataDir(),
		SaveToDB:    true,
		UserAgent:   DefaultUserAgent,
		MaxBodySize: DefaultMaxBodySize,
		ContentType: DefaultContentType,
	}
}

// XDGDataDir returns the XDG data directory for newslettercheck.
// On Linux: ~/.local/share/newslettercheck
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for newslettercheck.
// On Linux: ~/.config/newslettercheck
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid and returns the first
// problem found as a sentinel error.
//
// Design decision: We validate once after CLI parsing, before any request
// is made, so a bad flag fails fast instead of halfway through a batch.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}

	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	if c.RateLimit < 0 {
		return ErrInvalidRateLimit
	}

	return nil
}
