package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listingHTML = `<html><body>
<div class="job-tile"><h3 class="job-title">Data Engineer</h3></div>
<div class="job-tile"><h3 class="job-title">SDE II</h3></div>
</body></html>`

func openHTTPPage(t *testing.T) (Page, func()) {
	t.Helper()
	browser, err := NewHTTPLauncher(nil).Launch(context.Background())
	require.NoError(t, err)
	page, err := browser.NewPage(context.Background())
	require.NoError(t, err)
	return page, func() { _ = browser.Close() }
}

func TestHTTPPage_ExtractAll(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(listingHTML))
	}))
	defer server.Close()

	page, closeFn := openHTTPPage(t)
	defer closeFn()

	ctx := context.Background()
	require.NoError(t, page.Goto(ctx, server.URL, time.Second))
	require.NoError(t, page.WaitForSelector(ctx, "div.job-tile", time.Second))

	var titles []string
	n, err := page.ExtractAll(ctx, "div.job-tile", func(_ int, s *goquery.Selection) {
		titles = append(titles, s.Find("h3.job-title").Text())
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"Data Engineer", "SDE II"}, titles)
}

func TestHTTPPage_WaitForSelector_NoMatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html><body><p>No jobs found</p></body></html>"))
	}))
	defer server.Close()

	page, closeFn := openHTTPPage(t)
	defer closeFn()

	ctx := context.Background()
	require.NoError(t, page.Goto(ctx, server.URL, time.Second))
	err := page.WaitForSelector(ctx, "div.job-tile", time.Second)
	assert.ErrorIs(t, err, ErrNoMatch)
}

func TestHTTPPage_GotoTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	page, closeFn := openHTTPPage(t)
	defer closeFn()

	err := page.Goto(context.Background(), server.URL, 50*time.Millisecond)
	require.Error(t, err)

	var fetchErr *Error
	assert.True(t, errors.As(err, &fetchErr))
}

func TestHTTPPage_GotoCancelled(t *testing.T) {
	page, closeFn := openHTTPPage(t)
	defer closeFn()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := page.Goto(ctx, "http://127.0.0.1:1/", time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHTTPLauncher_LaunchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewHTTPLauncher(nil).Launch(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWaitErr(t *testing.T) {
	assert.ErrorIs(t, waitErr(context.Background(), context.DeadlineExceeded), ErrNoMatch)

	other := errors.New("boom")
	assert.Equal(t, other, waitErr(context.Background(), other))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, waitErr(ctx, context.DeadlineExceeded), context.Canceled)
}
