package model

import "time"

// Summary is a condensed view of a ScrapeReport.
// It is what the text and Markdown writers print and what the history
// store keeps alongside the full JSON.
type Summary struct {
	// URL is the scraped page.
	URL string `json:"url"`

	// DateScraped is when the scrape started.
	DateScraped time.Time `json:"date_scraped"`

	// TagDefects is the number of empty content tags.
	TagDefects int `json:"tag_defects"`

	// LinkDefects is the number of link defects across all link kinds.
	LinkDefects int `json:"link_defects"`

	// ImageDefects is the number of image defects across all image kinds.
	ImageDefects int `json:"image_defects"`

	// ContentLength is the length in bytes of the sanitized content.
	ContentLength int `json:"content_length"`

	// ContentHash is copied from the report.
	ContentHash string `json:"content_hash,omitempty"`

	// Audited is true when the report carries audit results.
	Audited bool `json:"audited"`

	// TimedOut indicates the scrape was cancelled.
	TimedOut bool `json:"timed_out"`

	// Error contains the error message if the scrape failed.
	Error string `json:"error,omitempty"`
}

// NewSummary builds a Summary from report.
func NewSummary(report *ScrapeReport) *Summary {
	s := &Summary{
		URL:           report.URL,
		DateScraped:   report.DateScraped,
		ContentLength: len(report.Content),
		ContentHash:   report.ContentHash,
		Audited:       report.Errors != nil,
		TimedOut:      report.TimedOut,
		Error:         report.ErrorMessage,
	}

	if report.Error != nil {
		s.Error = report.Error.Error()
	}

	for _, e := range report.Errors.Entries() {
		switch e.Category {
		case CategoryTagCheck:
			s.TagDefects = e.Result.Count()
		case CategoryLinkCheck:
			s.LinkDefects = e.Result.Count()
		case CategoryImageCheck:
			s.ImageDefects = e.Result.Count()
		}
	}

	return s
}

// TotalDefects returns the number of defects across all categories.
func (s *Summary) TotalDefects() int {
	return s.TagDefects + s.LinkDefects + s.ImageDefects
}

// HasDefects reports whether any defect was found.
func (s *Summary) HasDefects() bool {
	return s.TotalDefects() > 0
}

// Failed reports whether the scrape stopped before producing content.
func (s *Summary) Failed() bool {
	return s.Error != "" || s.TimedOut
}
