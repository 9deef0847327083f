package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/newslettercheck/internal/config"
	"github.com/nao1215/newslettercheck/internal/database"
	"github.com/nao1215/newslettercheck/internal/model"
	"github.com/nao1215/newslettercheck/internal/report"
)

// Content change markers shown in history listings.
const (
	changeNew       = "new"
	changeSame      = "same"
	changeChanged   = "changed"
	changeNoContent = "-"
)

// NewHistoryCmd creates the history command.
// This command shows scrape results stored in the database.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [url]",
		Short: "Show stored scrape history",
		Long: `History lists earlier scrapes of a newsletter page, newest first, with
the defect counts of each scrape and whether the sanitized content changed
since the previous successful scrape.

Every 'newslettercheck scan' records its results unless --no-history is given.

Examples:
  # List the history of a page
  newslettercheck history https://news.example.com/issue-12

  # Show the most recent stored report of a page
  newslettercheck history --latest https://news.example.com/issue-12

  # Show a stored report by ID
  newslettercheck history --id 7

  # List every page in the database
  newslettercheck history --list-urls`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().BoolP("list-urls", "L", false,
		"List all scraped pages in the database")
	cmd.Flags().BoolP("latest", "l", false,
		"Show the most recent stored report of the page")
	cmd.Flags().Int64P("id", "i", 0,
		"Show the stored report with this ID")
	cmd.Flags().BoolP("json", "j", false,
		"Output in JSON format")
	cmd.Flags().String("db-dir", "",
		"Directory of the history database (default: XDG data directory)")

	return cmd
}

// historyOptions holds the parsed flags of the history command.
type historyOptions struct {
	url      string
	listURLs bool
	latest   bool
	id       int64
	json     bool
	dbDir    string
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	opts, err := parseHistoryOptions(cmd, args)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	// Validate before opening the database so a usage error never
	// touches it.
	if !opts.listURLs && opts.id == 0 && opts.url == "" {
		return errors.New("URL is required (use --list-urls to see stored pages)")
	}

	db, err := database.Open(opts.dbDir, database.Options{CreateIfNotExists: false, EnableWAL: true})
	if errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(out, "No scrape history found.")
		fmt.Fprintln(out, "\nUse 'newslettercheck scan <url>' to scrape a page.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()

	switch {
	case opts.listURLs:
		return listURLs(ctx, db, out, opts.json)
	case opts.id != 0:
		stored, err := db.ScrapeByID(ctx, opts.id)
		if err != nil {
			return err
		}
		if stored == nil {
			return fmt.Errorf("no stored scrape with ID %d", opts.id)
		}
		return writeStoredReport(out, stored, opts.json)
	case opts.latest:
		stored, err := db.LatestScrape(ctx, opts.url)
		if err != nil {
			return err
		}
		if stored == nil {
			return fmt.Errorf("no stored scrape for %s", opts.url)
		}
		return writeStoredReport(out, stored, opts.json)
	default:
		return listHistory(ctx, db, out, opts.url, opts.json)
	}
}

// parseHistoryOptions reads the history flags and argument.
func parseHistoryOptions(cmd *cobra.Command, args []string) (historyOptions, error) {
	var opts historyOptions
	var err error

	if opts.listURLs, err = cmd.Flags().GetBool("list-urls"); err != nil {
		return opts, err
	}
	if opts.latest, err = cmd.Flags().GetBool("latest"); err != nil {
		return opts, err
	}
	if opts.id, err = cmd.Flags().GetInt64("id"); err != nil {
		return opts, err
	}
	if opts.json, err = cmd.Flags().GetBool("json"); err != nil {
		return opts, err
	}
	if opts.dbDir, err = cmd.Flags().GetString("db-dir"); err != nil {
		return opts, err
	}
	if opts.dbDir == "" {
		opts.dbDir = config.XDGDataDir()
	}

	if len(args) > 0 {
		if opts.url, err = normalizeTarget(args[0]); err != nil {
			return opts, err
		}
	}

	return opts, nil
}

// listURLs prints every page with stored scrapes.
func listURLs(ctx context.Context, db *database.ScrapeDB, out io.Writer, asJSON bool) error {
	urls, err := db.ListURLs(ctx)
	if err != nil {
		return err
	}

	if asJSON {
		if urls == nil {
			urls = []string{}
		}
		return json.NewEncoder(out).Encode(urls)
	}

	if len(urls) == 0 {
		fmt.Fprintln(out, "No scraped pages found in the database.")
		return nil
	}

	fmt.Fprintf(out, "Scraped pages (%d):\n\n", len(urls))
	for _, u := range urls {
		fmt.Fprintf(out, "  • %s\n", u)
	}
	fmt.Fprintln(out, "\nUse 'newslettercheck history <url>' to see the history of a page.")

	return nil
}

// historyEntry is the JSON form of one history row.
type historyEntry struct {
	ID           int64     `json:"id"`
	Date         time.Time `json:"date"`
	State        string    `json:"state"`
	ContentHash  string    `json:"content_hash,omitempty"`
	TagDefects   int       `json:"tag_defects"`
	LinkDefects  int       `json:"link_defects"`
	ImageDefects int       `json:"image_defects"`
	Error        string    `json:"error,omitempty"`
	Content      string    `json:"content"`
}

// listHistory prints the scrape history of one page.
func listHistory(ctx context.Context, db *database.ScrapeDB, out io.Writer, pageURL string, asJSON bool) error {
	history, err := db.History(ctx, pageURL)
	if err != nil {
		return err
	}
	markers := changeMarkers(history)

	if asJSON {
		entries := make([]historyEntry, len(history))
		for i, meta := range history {
			entries[i] = historyEntry{
				ID:           meta.ID,
				Date:         meta.Timestamp,
				State:        meta.State,
				ContentHash:  meta.ContentHash,
				TagDefects:   meta.TagDefects,
				LinkDefects:  meta.LinkDefects,
				ImageDefects: meta.ImageDefects,
				Error:        meta.Error,
				Content:      markers[i],
			}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	if len(history) == 0 {
		fmt.Fprintf(out, "No scrape history found for %s\n", pageURL)
		return nil
	}

	fmt.Fprintf(out, "Scrape history for %s (%d scrapes):\n\n", pageURL, len(history))
	fmt.Fprintf(out, "  %-6s  %-20s  %-8s  %-14s  %s\n", "ID", "Date", "Content", "Defects", "Status")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 66))

	for i, meta := range history {
		status := "ok"
		if meta.Failed() {
			status = meta.Error
		}
		fmt.Fprintf(out, "  %-6d  %-20s  %-8s  %-14s  %s\n",
			meta.ID,
			meta.Timestamp.Local().Format("2006-01-02 15:04:05"),
			markers[i],
			formatDefects(meta),
			status,
		)
	}

	fmt.Fprintln(out, "\nUse 'newslettercheck history --id <id>' to show a stored report.")

	return nil
}

// changeMarkers compares each successful scrape with the next older
// successful scrape. history must be ordered newest first.
func changeMarkers(history []database.ScrapeMetadata) []string {
	markers := make([]string, len(history))

	// Walk oldest to newest, remembering the last hash seen.
	previous := ""
	for i := len(history) - 1; i >= 0; i-- {
		hash := history[i].ContentHash
		switch {
		case hash == "":
			markers[i] = changeNoContent
			continue
		case previous == "":
			markers[i] = changeNew
		case previous == hash:
			markers[i] = changeSame
		default:
			markers[i] = changeChanged
		}
		previous = hash
	}

	return markers
}

// formatDefects formats defect counts as "T:n L:n I:n".
func formatDefects(meta database.ScrapeMetadata) string {
	if meta.Failed() {
		return "N/A"
	}
	return fmt.Sprintf("T:%d L:%d I:%d", meta.TagDefects, meta.LinkDefects, meta.ImageDefects)
}

// writeStoredReport prints a stored report with the scan writers.
func writeStoredReport(out io.Writer, stored *model.ScrapeReport, asJSON bool) error {
	var w report.Writer
	if asJSON {
		w = report.NewJSONWriter(out, report.WithPrettyPrint(), report.WithContent(true))
	} else {
		w = report.NewSimpleWriter(out, report.WithShowEmpty(true), report.WithVerbose(true))
	}
	_, err := w.Write(stored)
	return err
}
