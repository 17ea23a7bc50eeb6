// Package types provides type definitions for structured data used throughout the luckin system.
package types

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Posting is a single scraped job listing. URL is the natural key.
type Posting struct {
	ID          uuid.UUID `json:"id,omitempty"`
	Title       string    `json:"title" validate:"required"`
	Company     string    `json:"company,omitempty"`
	Location    string    `json:"location,omitempty"`
	Description string    `json:"description,omitempty"`
	URL         string    `json:"url" validate:"required,http_url"`
	Source      string    `json:"source,omitempty"`
	ScrapedAt   time.Time `json:"scraped_at"`
}

var postingValidator = validator.New()

// Validate checks that the posting carries the fields the store requires.
func (p *Posting) Validate() error {
	if err := postingValidator.Struct(p); err != nil {
		return fmt.Errorf("invalid posting %q: %w", p.URL, err)
	}
	return nil
}

// Relevance is an AI judgment of how well a posting fits a skill set.
type Relevance struct {
	Score       float64 `json:"score"`
	Explanation string  `json:"explanation"`
}

// Clamp forces the score into [0, 1].
func (r *Relevance) Clamp() {
	if r.Score < 0 {
		r.Score = 0
	}
	if r.Score > 1 {
		r.Score = 1
	}
}

// Candidate is a posting under relevance evaluation.
// A nil Relevance means the oracle could not produce a valid judgment.
type Candidate struct {
	Posting
	Relevance *Relevance `json:"ai_relevance"`
}

// Scored reports whether the candidate carries a relevance judgment.
func (c *Candidate) Scored() bool {
	return c.Relevance != nil
}

// Score returns the relevance score, or 0 when unscored.
func (c *Candidate) Score() float64 {
	if c.Relevance == nil {
		return 0
	}
	return c.Relevance.Score
}
