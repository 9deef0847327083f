package model

import (
	"fmt"
	"time"

	"golang.org/x/net/html"
)

// ScrapeReport is the state carried through one scrape of a newsletter page.
// Every pipeline step reads from and writes to it.
//
// Design decision: We use a single struct holding both the serializable
// results and the in-flight parse trees rather than passing trees between
// steps as return values because:
// 1. It keeps the Step interface uniform (every step takes the same report)
// 2. The database and report writers can store it directly as JSON
// 3. The tree fields are excluded from JSON, so nothing large leaks into storage
type ScrapeReport struct {
	// URL is the page that was scraped. It is also the base for URL resolution.
	URL string `json:"url"`

	// DateScraped is when the scrape started.
	DateScraped time.Time `json:"date_scraped"`

	// State is the last pipeline state reached.
	State State `json:"state"`

	// Content is the serialized sanitized content fragment.
	// Empty until the pipeline reaches StateSerialized.
	Content string `json:"content,omitempty"`

	// ContentHash is the hex SHA3-256 of Content, used to detect changes
	// between scrapes of the same URL.
	ContentHash string `json:"content_hash,omitempty"`

	// Errors is the audit result. Nil until the pipeline reaches StateAudited.
	Errors *ErrorReport `json:"errors,omitempty"`

	// PerformedSteps lists the pipeline steps that ran, in order.
	PerformedSteps []string `json:"performed_steps,omitempty"`

	// TimedOut is true if the pipeline was cancelled before finishing.
	TimedOut bool `json:"timed_out,omitempty"`

	// Error is the error that stopped the pipeline, if any.
	Error error `json:"-"`

	// ErrorMessage is the serializable form of Error.
	ErrorMessage string `json:"error,omitempty"`

	// Document is the full parsed page. Owned by this scrape only.
	Document *html.Node `json:"-"`

	// Fragment is the content wrapper element inside Document.
	Fragment *html.Node `json:"-"`

	// Inlined is the markup produced by the style inliner, before reparsing.
	Inlined string `json:"-"`
}

// NewScrapeReport creates a pending report for the given URL.
func NewScrapeReport(url string) *ScrapeReport {
	return &ScrapeReport{
		URL:            url,
		DateScraped:    time.Now(),
		State:          StatePending,
		PerformedSteps: make([]string, 0),
	}
}

// Advance moves the report to next. The transition must be exactly one
// state forward; anything else returns ErrStateSkipped and leaves the
// report unchanged.
func (r *ScrapeReport) Advance(next State) error {
	if r.State.Terminal() || next != r.State.Next() {
		return fmt.Errorf("%w: %s -> %s", ErrStateSkipped, r.State, next)
	}
	r.State = next
	return nil
}

// Completed reports whether the scrape reached its terminal state without error.
func (r *ScrapeReport) Completed() bool {
	return r.State.Terminal() && r.Error == nil
}

// SetError records err as the reason the scrape stopped.
func (r *ScrapeReport) SetError(err error) {
	r.Error = err
	if err != nil {
		r.ErrorMessage = err.Error()
	}
}

// ReleaseTrees drops the parse trees once they are no longer needed.
func (r *ScrapeReport) ReleaseTrees() {
	r.Document = nil
	r.Fragment = nil
	r.Inlined = ""
}
