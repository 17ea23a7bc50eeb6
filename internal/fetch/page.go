package fetch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// ErrNoMatch is returned by WaitForSelector when the selector did not
// appear before the timeout.
var ErrNoMatch = errors.New("selector not found")

// Launcher starts a browser session. The returned Browser must be closed.
type Launcher interface {
	Launch(ctx context.Context) (Browser, error)
}

// Browser is a launched session that can open pages.
type Browser interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Page is a single tab.
type Page interface {
	// Goto navigates to url, failing if it takes longer than timeout.
	Goto(ctx context.Context, url string, timeout time.Duration) error
	// WaitForSelector blocks until selector matches at least one element.
	// It returns ErrNoMatch on timeout and ctx.Err() when ctx is done.
	WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error
	// ExtractAll calls fn for every element matching containerSelector in
	// the current document and returns the number of matches.
	ExtractAll(ctx context.Context, containerSelector string, fn func(i int, s *goquery.Selection)) (int, error)
}

// extractFromHTML walks containerSelector matches in html with goquery.
func extractFromHTML(html, containerSelector string, fn func(i int, s *goquery.Selection)) (int, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return 0, fmt.Errorf("failed to parse HTML: %w", err)
	}
	containers := doc.Find(containerSelector)
	containers.Each(fn)
	return containers.Length(), nil
}

// waitErr maps a failed wait to ErrNoMatch unless the caller's ctx is done.
func waitErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrNoMatch
	}
	return err
}
