package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jonathan/luckin/internal/types"
)

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// -----------------------------------------------------------------------------
// Job Posting Methods
// -----------------------------------------------------------------------------

// InsertPostings inserts each posting independently. A duplicate URL or a
// failing row never blocks the others; outcomes are counted in the result.
// No transaction spans the batch, so rows written before a cancellation stay.
func (db *DB) InsertPostings(ctx context.Context, postings []types.Posting) (InsertResult, error) {
	var result InsertResult
	if len(postings) == 0 {
		return result, nil
	}

	for i := range postings {
		if err := ctx.Err(); err != nil {
			result.Errors += len(postings) - i
			return result, fmt.Errorf("insert interrupted after %d of %d postings: %w", i, len(postings), err)
		}

		p := &postings[i]
		if err := p.Validate(); err != nil {
			result.Errors++
			continue
		}

		tag, err := db.pool.Exec(ctx,
			`INSERT INTO job_postings (title, company, location, description, url, source, scraped_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT (url) DO NOTHING`,
			p.Title, nullIfEmpty(p.Company), nullIfEmpty(p.Location), nullIfEmpty(p.Description),
			p.URL, nullIfEmpty(p.Source), p.ScrapedAt,
		)
		switch {
		case isUniqueViolation(err):
			result.Duplicates++
		case err != nil:
			result.Errors++
		case tag.RowsAffected() == 0:
			result.Duplicates++
		default:
			result.Inserted++
		}
	}

	return result, nil
}

// FindPostings returns postings whose title or description matches any query
// term, ordered newest first and bounded by q.Limit.
func (db *DB) FindPostings(ctx context.Context, q PostingQuery) ([]types.Posting, error) {
	patterns := likePatterns(q.AnyTerms)
	if len(patterns) == 0 {
		return nil, ErrEmptyQuery
	}

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultFindLimit
	}

	query, args := buildFindQuery(patterns, q.Source, limit)
	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find job postings: %w", err)
	}
	defer rows.Close()

	var postings []types.Posting
	for rows.Next() {
		var p types.Posting
		var company, location, description, source *string
		if err := rows.Scan(&p.ID, &p.Title, &company, &location, &description,
			&p.URL, &source, &p.ScrapedAt); err != nil {
			return nil, fmt.Errorf("failed to scan job posting: %w", err)
		}
		p.Company = deref(company)
		p.Location = deref(location)
		p.Description = deref(description)
		p.Source = deref(source)
		postings = append(postings, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read job postings: %w", err)
	}
	return postings, nil
}

// CountPostings returns the number of stored postings, optionally for one source.
func (db *DB) CountPostings(ctx context.Context, source string) (int, error) {
	query := "SELECT COUNT(*) FROM job_postings"
	var args []any
	if source != "" {
		query += " WHERE source = $1"
		args = append(args, source)
	}

	var total int
	if err := db.pool.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count job postings: %w", err)
	}
	return total, nil
}

// GetPostingByURL retrieves a posting by its URL, or nil when absent.
func (db *DB) GetPostingByURL(ctx context.Context, url string) (*types.Posting, error) {
	var p types.Posting
	var company, location, description, source *string
	err := db.pool.QueryRow(ctx,
		`SELECT id, title, company, location, description, url, source, scraped_at
		 FROM job_postings WHERE url = $1`,
		url,
	).Scan(&p.ID, &p.Title, &company, &location, &description, &p.URL, &source, &p.ScrapedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job posting: %w", err)
	}
	p.Company = deref(company)
	p.Location = deref(location)
	p.Description = deref(description)
	p.Source = deref(source)
	return &p, nil
}

// buildFindQuery assembles the candidate retrieval statement.
func buildFindQuery(patterns []string, source string, limit int) (string, []any) {
	conditions := []string{"(title ILIKE ANY($1) OR description ILIKE ANY($1))"}
	args := []any{patterns}
	argIndex := 2

	if source != "" {
		conditions = append(conditions, fmt.Sprintf("source = $%d", argIndex))
		args = append(args, source)
		argIndex++
	}

	query := fmt.Sprintf(
		`SELECT id, title, company, location, description, url, source, scraped_at
		 FROM job_postings
		 WHERE %s
		 ORDER BY scraped_at DESC, id
		 LIMIT $%d`,
		strings.Join(conditions, " AND "), argIndex)
	args = append(args, limit)
	return query, args
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
