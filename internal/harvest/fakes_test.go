package harvest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonathan/luckin/internal/db"
	"github.com/jonathan/luckin/internal/fetch"
	"github.com/jonathan/luckin/internal/types"
)

// fakeStep scripts one listing page.
type fakeStep struct {
	html       string
	gotoErr    error
	waitErr    error
	extractErr error
	onGoto     func()
}

type fakeLauncher struct {
	steps     []fakeStep
	launchErr error

	mu       sync.Mutex
	browsers []*fakeBrowser
}

func (l *fakeLauncher) Launch(context.Context) (fetch.Browser, error) {
	if l.launchErr != nil {
		return nil, l.launchErr
	}
	b := &fakeBrowser{page: &fakePage{steps: l.steps}}
	l.mu.Lock()
	l.browsers = append(l.browsers, b)
	l.mu.Unlock()
	return b, nil
}

func (l *fakeLauncher) last() *fakeBrowser {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.browsers) == 0 {
		return nil
	}
	return l.browsers[len(l.browsers)-1]
}

type fakeBrowser struct {
	page   *fakePage
	closed bool
}

func (b *fakeBrowser) NewPage(context.Context) (fetch.Page, error) {
	return b.page, nil
}

func (b *fakeBrowser) Close() error {
	b.closed = true
	return nil
}

type fakePage struct {
	steps   []fakeStep
	visited []string
	current *fakeStep
}

func (p *fakePage) Goto(ctx context.Context, url string, _ time.Duration) error {
	n := len(p.visited)
	p.visited = append(p.visited, url)
	if n >= len(p.steps) {
		return fmt.Errorf("unexpected navigation to %s", url)
	}
	p.current = &p.steps[n]
	if p.current.onGoto != nil {
		p.current.onGoto()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.current.gotoErr
}

func (p *fakePage) WaitForSelector(ctx context.Context, selector string, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.current.waitErr != nil {
		return p.current.waitErr
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(p.current.html))
	if err != nil {
		return err
	}
	if doc.Find(selector).Length() == 0 {
		return fetch.ErrNoMatch
	}
	return nil
}

func (p *fakePage) ExtractAll(_ context.Context, selector string, fn func(int, *goquery.Selection)) (int, error) {
	if p.current.extractErr != nil {
		return 0, p.current.extractErr
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(p.current.html))
	if err != nil {
		return 0, err
	}
	found := doc.Find(selector)
	found.Each(fn)
	return found.Length(), nil
}

// fakeStore enforces URL uniqueness like the real table.
type fakeStore struct {
	mu      sync.Mutex
	byURL   map[string]types.Posting
	calls   [][]types.Posting
	ctxErrs []error
	err     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{byURL: make(map[string]types.Posting)}
}

func (s *fakeStore) InsertPostings(ctx context.Context, postings []types.Posting) (db.InsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, postings)
	s.ctxErrs = append(s.ctxErrs, ctx.Err())
	if s.err != nil {
		return db.InsertResult{Errors: len(postings)}, s.err
	}

	var res db.InsertResult
	for _, p := range postings {
		if err := p.Validate(); err != nil {
			res.Errors++
			continue
		}
		if _, ok := s.byURL[p.URL]; ok {
			res.Duplicates++
			continue
		}
		s.byURL[p.URL] = p
		res.Inserted++
	}
	return res, nil
}

// amazonCards renders n Amazon-style result tiles numbered from start.
func amazonCards(start, n int) string {
	var b strings.Builder
	b.WriteString("<html><body><div id=\"results\">")
	for i := start; i < start+n; i++ {
		fmt.Fprintf(&b, `<div class="job-tile">
  <h3 class="job-title">Software Engineer %d</h3>
  <div class="location-and-id">Toronto, ON, CAN | Job ID: %d</div>
  <div class="description">Build   distributed systems in Go.</div>
  <a class="job-link" href="/en/jobs/%d/software-engineer">Read more</a>
</div>`, i, 1000+i, 1000+i)
	}
	b.WriteString("</div></body></html>")
	return b.String()
}

const emptyListing = `<html><body><div id="results"><p>No jobs found</p></div></body></html>`

var errNavigation = errors.New("net::ERR_CONNECTION_RESET")
