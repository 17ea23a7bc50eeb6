package db

import (
	"errors"
	"strings"
)

// DefaultFindLimit caps FindPostings when the query does not set a limit.
const DefaultFindLimit = 50

// ErrEmptyQuery is returned when a posting query carries no match terms.
var ErrEmptyQuery = errors.New("posting query has no match terms")

// InsertResult summarizes a bulk insert with continue-on-error semantics.
type InsertResult struct {
	Inserted   int `json:"inserted"`
	Duplicates int `json:"duplicates"`
	Errors     int `json:"errors"`
}

// Add accumulates another result into r.
func (r *InsertResult) Add(other InsertResult) {
	r.Inserted += other.Inserted
	r.Duplicates += other.Duplicates
	r.Errors += other.Errors
}

// PostingQuery selects postings whose title or description contains any of
// AnyTerms (case-insensitive), newest first.
type PostingQuery struct {
	AnyTerms []string
	Source   string // optional exact source filter
	Limit    int
}

// EscapeLike escapes LIKE metacharacters so a term matches literally
// under the default backslash escape character.
func EscapeLike(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(term)
}

// likePatterns builds %term% patterns for ILIKE ANY, skipping blank terms.
func likePatterns(terms []string) []string {
	patterns := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		patterns = append(patterns, "%"+EscapeLike(t)+"%")
	}
	return patterns
}
