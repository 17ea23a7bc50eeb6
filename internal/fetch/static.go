package fetch

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// HTTPLauncher is a browserless backend for listings rendered on the server.
// Pages are fetched with a plain GET and never execute scripts.
type HTTPLauncher struct {
	opts Options
}

// NewHTTPLauncher creates an HTTP backend. A nil opts uses DefaultOptions.
func NewHTTPLauncher(opts *Options) *HTTPLauncher {
	if opts == nil {
		opts = DefaultOptions()
	}
	o := *opts
	if o.Client == nil {
		o.Client = &http.Client{}
	}
	return &HTTPLauncher{opts: o}
}

// Launch never fails; there is no process to start.
func (l *HTTPLauncher) Launch(ctx context.Context) (Browser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &httpBrowser{opts: l.opts}, nil
}

type httpBrowser struct {
	opts Options
}

func (b *httpBrowser) NewPage(context.Context) (Page, error) {
	return &httpPage{opts: b.opts}, nil
}

func (b *httpBrowser) Close() error {
	b.opts.Client.CloseIdleConnections()
	return nil
}

type httpPage struct {
	opts Options
	html string
	doc  *goquery.Document
}

func (p *httpPage) Goto(ctx context.Context, url string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	p.html, p.doc = "", nil
	res, err := URL(reqCtx, url, &p.opts)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	p.html = res.HTML
	return nil
}

// WaitForSelector checks the fetched document once; static HTML will not change.
func (p *httpPage) WaitForSelector(ctx context.Context, selector string, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc, err := p.document()
	if err != nil {
		return err
	}
	if doc.Find(selector).Length() == 0 {
		return ErrNoMatch
	}
	return nil
}

func (p *httpPage) ExtractAll(ctx context.Context, containerSelector string, fn func(i int, s *goquery.Selection)) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return extractFromHTML(p.html, containerSelector, fn)
}

func (p *httpPage) document() (*goquery.Document, error) {
	if p.doc != nil {
		return p.doc, nil
	}
	if p.html == "" {
		return nil, fmt.Errorf("no document loaded")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(p.html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	p.doc = doc
	return doc, nil
}
