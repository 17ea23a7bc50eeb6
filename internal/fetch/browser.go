// Package fetch - browser.go provides the headless Chrome backend.
package fetch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
)

// ChromeOptions configures the headless browser.
type ChromeOptions struct {
	UserAgent string
	Headless  bool
	ExecPath  string // optional path to a Chrome/Chromium binary
}

// DefaultChromeOptions returns headless defaults.
func DefaultChromeOptions() ChromeOptions {
	return ChromeOptions{UserAgent: DefaultUserAgent, Headless: true}
}

// ChromeLauncher launches Chrome through chromedp.
// Requires Chrome/Chromium to be installed on the system.
type ChromeLauncher struct {
	opts ChromeOptions
}

// NewChromeLauncher creates a launcher with the given options.
func NewChromeLauncher(opts ChromeOptions) *ChromeLauncher {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	return &ChromeLauncher{opts: opts}
}

// Launch starts the browser process eagerly so a missing or broken Chrome
// is reported here rather than on first navigation.
func (l *ChromeLauncher) Launch(ctx context.Context) (Browser, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", l.opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("no-first-run", true),
		chromedp.UserAgent(l.opts.UserAgent),
	)
	if l.opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(l.opts.ExecPath))
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// The browser outlives any single navigation deadline, so it is rooted
	// in a context without the caller's cancellation; Close tears it down.
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocOpts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	teardown := func() { cancelBrowser(); cancelAlloc() }

	// Until the browser is up, cancelling ctx aborts the start.
	stop := context.AfterFunc(ctx, teardown)
	err := chromedp.Run(browserCtx)
	if !stop() {
		teardown()
		return nil, fmt.Errorf("failed to launch browser: %w", ctx.Err())
	}
	if err != nil {
		teardown()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	return &chromeBrowser{ctx: browserCtx, cancel: teardown}, nil
}

type chromeBrowser struct {
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

func (b *chromeBrowser) NewPage(ctx context.Context) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tabCtx, cancel := chromedp.NewContext(b.ctx)
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	return &chromePage{ctx: tabCtx, cancel: cancel}, nil
}

func (b *chromeBrowser) Close() error {
	b.closeOnce.Do(b.cancel)
	return nil
}

type chromePage struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// run executes actions in the tab, bounded by timeout and by the caller's ctx.
func (p *chromePage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(p.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func (p *chromePage) Goto(ctx context.Context, url string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if err := p.run(ctx, timeout, chromedp.Navigate(url)); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &Error{URL: url, Message: "navigation failed", Cause: err}
	}
	return nil
}

func (p *chromePage) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	if err := p.run(ctx, timeout, chromedp.WaitReady(selector, chromedp.ByQuery)); err != nil {
		return waitErr(ctx, err)
	}
	return nil
}

func (p *chromePage) ExtractAll(ctx context.Context, containerSelector string, fn func(i int, s *goquery.Selection)) (int, error) {
	var html string
	if err := p.run(ctx, DefaultTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		return 0, fmt.Errorf("failed to read rendered DOM: %w", err)
	}
	return extractFromHTML(html, containerSelector, fn)
}
