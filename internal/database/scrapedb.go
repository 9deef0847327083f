package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/newslettercheck/internal/model"
)

// FileName is the name of the database file inside the data directory.
const FileName = "newslettercheck.db"

// scrapedAtFormat is fixed-width so that text ordering matches time ordering.
const scrapedAtFormat = "2006-01-02T15:04:05.000000000Z07:00"

// ScrapeDB provides SQLite-based storage for scrape history.
//
// Design decision: We store the full report as JSON next to a handful of
// indexed summary columns. History listings read only the columns, while
// LatestScrape can still hand back a complete report for comparison.
type ScrapeDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures ScrapeDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a ScrapeDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error
// wrapping os.ErrNotExist is returned.
func Open(dbDir string, opts Options) (*ScrapeDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	var dsn string
	if opts.CreateIfNotExists {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = dbPath + "?mode=rwc"
	} else {
		if _, err := os.Stat(dbPath); err != nil {
			return nil, fmt.Errorf("database not found at %s: %w", dbPath, err)
		}
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	sdb := &ScrapeDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := sdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return sdb, nil
}

// Path returns the database file path.
func (sdb *ScrapeDB) Path() string {
	return sdb.dbPath
}

// Close closes the database connection.
func (sdb *ScrapeDB) Close() error {
	return sdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (sdb *ScrapeDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS scrapes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT NOT NULL,
		scraped_at TEXT NOT NULL,
		state TEXT NOT NULL,
		content_hash TEXT,
		tag_defects INTEGER DEFAULT 0,
		link_defects INTEGER DEFAULT 0,
		image_defects INTEGER DEFAULT 0,
		error TEXT,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_scrapes_url ON scrapes(url);
	CREATE INDEX IF NOT EXISTS idx_scrapes_scraped_at ON scrapes(scraped_at);
	`

	_, err := sdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveScrape stores a scrape report and returns its ID. Failed scrapes are
// stored too, so history shows when a page stopped being reachable.
func (sdb *ScrapeDB) SaveScrape(ctx context.Context, report *model.ScrapeReport) (int64, error) {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize report: %w", err)
	}

	summary := model.NewSummary(report)

	query := `
	INSERT INTO scrapes (url, scraped_at, state, content_hash, tag_defects, link_defects, image_defects, error, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := sdb.db.ExecContext(ctx, query,
		report.URL,
		report.DateScraped.UTC().Format(scrapedAtFormat),
		report.State.String(),
		report.ContentHash,
		summary.TagDefects,
		summary.LinkDefects,
		summary.ImageDefects,
		summary.Error,
		string(reportJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save scrape: %w", err)
	}

	return result.LastInsertId()
}

// LatestScrape retrieves the most recent report for url.
// It returns nil, nil when url has never been scraped.
func (sdb *ScrapeDB) LatestScrape(ctx context.Context, url string) (*model.ScrapeReport, error) {
	query := `
	SELECT report_json FROM scrapes
	WHERE url = ?
	ORDER BY scraped_at DESC, id DESC
	LIMIT 1
	`

	return sdb.queryReport(ctx, query, url)
}

// ScrapeByID retrieves a report by its database ID.
// It returns nil, nil when no such row exists.
func (sdb *ScrapeDB) ScrapeByID(ctx context.Context, id int64) (*model.ScrapeReport, error) {
	return sdb.queryReport(ctx, `SELECT report_json FROM scrapes WHERE id = ?`, id)
}

// queryReport runs a single-row query returning report_json.
func (sdb *ScrapeDB) queryReport(ctx context.Context, query string, args ...any) (*model.ScrapeReport, error) {
	var reportJSON string
	err := sdb.db.QueryRowContext(ctx, query, args...).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scrape: %w", err)
	}

	var report model.ScrapeReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}

	return &report, nil
}

// ListURLs returns every URL that has been scraped, sorted.
func (sdb *ScrapeDB) ListURLs(ctx context.Context) ([]string, error) {
	rows, err := sdb.db.QueryContext(ctx, `SELECT DISTINCT url FROM scrapes ORDER BY url`)
	if err != nil {
		return nil, fmt.Errorf("failed to list urls: %w", err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("failed to scan url: %w", err)
		}
		urls = append(urls, url)
	}

	return urls, rows.Err()
}

// ScrapeMetadata contains summary information about a stored scrape.
// It is used for history listings without loading the full report.
type ScrapeMetadata struct {
	// ID is the row ID.
	ID int64

	// URL is the scraped page.
	URL string

	// Timestamp is when the scrape started.
	Timestamp time.Time

	// State is the last pipeline state reached, e.g. "serialized".
	State string

	// ContentHash is the hash of the sanitized content, empty on failure.
	ContentHash string

	// TagDefects, LinkDefects and ImageDefects count defects per category.
	TagDefects   int
	LinkDefects  int
	ImageDefects int

	// Error is the failure message, if any.
	Error string
}

// TotalDefects returns the number of defects across all categories.
func (m ScrapeMetadata) TotalDefects() int {
	return m.TagDefects + m.LinkDefects + m.ImageDefects
}

// Failed reports whether the scrape stopped with an error.
func (m ScrapeMetadata) Failed() bool {
	return m.Error != ""
}

// History returns metadata for every scrape of url, newest first.
func (sdb *ScrapeDB) History(ctx context.Context, url string) ([]ScrapeMetadata, error) {
	query := `
	SELECT id, url, scraped_at, state, content_hash, tag_defects, link_defects, image_defects, error
	FROM scrapes
	WHERE url = ?
	ORDER BY scraped_at DESC, id DESC
	`

	rows, err := sdb.db.QueryContext(ctx, query, url)
	if err != nil {
		return nil, fmt.Errorf("failed to get scrape history: %w", err)
	}
	defer rows.Close()

	var results []ScrapeMetadata
	for rows.Next() {
		var meta ScrapeMetadata
		var scrapedAt string
		var hash, errMsg sql.NullString

		if err := rows.Scan(
			&meta.ID,
			&meta.URL,
			&scrapedAt,
			&meta.State,
			&hash,
			&meta.TagDefects,
			&meta.LinkDefects,
			&meta.ImageDefects,
			&errMsg,
		); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}

		meta.Timestamp = parseTimestamp(scrapedAt)
		meta.ContentHash = hash.String
		meta.Error = errMsg.String

		results = append(results, meta)
	}

	return results, rows.Err()
}

// timestampFormats contains the timestamp formats accepted when reading
// scraped_at. The order matters: the format written by SaveScrape comes first.
var timestampFormats = []string{
	scrapedAtFormat,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05", // SQLite default datetime format
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
