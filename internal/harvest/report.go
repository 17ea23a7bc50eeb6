package harvest

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/luckin/internal/db"
)

// PageStatus classifies how a single page went.
type PageStatus string

const (
	// PageFull yielded at least PerPage postings.
	PageFull PageStatus = "full"
	// PageShort yielded fewer than PerPage postings; it is the last page.
	PageShort PageStatus = "short"
	// PageNoResults never showed a result container within the wait timeout.
	PageNoResults PageStatus = "no_results"
	// PageFailed hit a navigation or extraction error.
	PageFailed PageStatus = "error"
	// PageCancelled was interrupted by context cancellation.
	PageCancelled PageStatus = "cancelled"
)

// StopReason records why pagination ended.
type StopReason string

const (
	StopMaxPages     StopReason = "max_pages"
	StopShortPage    StopReason = "short_page"
	StopNoResults    StopReason = "no_results"
	StopPageError    StopReason = "page_error"
	StopCancelled    StopReason = "cancelled"
	StopLaunchFailed StopReason = "launch_failed"
)

// PageReport is the outcome of one listing page.
type PageReport struct {
	Index      int        `json:"index"`
	URL        string     `json:"url"`
	Status     PageStatus `json:"status"`
	Containers int        `json:"containers"`
	Items      int        `json:"items"`
	Skipped    int        `json:"skipped"`
	// Suspect is set when the very first page shows no results, which more
	// often means a changed layout or a block page than an empty site.
	Suspect bool `json:"suspect,omitempty"`
	// Error is the text of the page failure's cause, for JSON output.
	Error string `json:"error,omitempty"`
	Err   error  `json:"-"`
}

// Report summarizes one harvest run.
type Report struct {
	RunID       uuid.UUID       `json:"run_id"`
	Source      string          `json:"source"`
	StartedAt   time.Time       `json:"started_at"`
	FinishedAt  time.Time       `json:"finished_at"`
	Pages       []PageReport    `json:"pages"`
	StopReason  StopReason      `json:"stop_reason"`
	Accumulated int             `json:"accumulated"`
	Saved       db.InsertResult `json:"saved"`
}

// Duration returns the wall time of the run.
func (r *Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Suspect reports whether any page was flagged as a likely layout change.
func (r *Report) Suspect() bool {
	for _, p := range r.Pages {
		if p.Suspect {
			return true
		}
	}
	return false
}

// PageError wraps a failure on a specific listing page.
type PageError struct {
	Source string
	Page   int
	URL    string
	Err    error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("%s page %d (%s): %v", e.Source, e.Page, e.URL, e.Err)
}

func (e *PageError) Unwrap() error {
	return e.Err
}
