package harvest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jonathan/luckin/internal/db"
	"github.com/jonathan/luckin/internal/fetch"
	"github.com/jonathan/luckin/internal/ratelimit"
	"github.com/jonathan/luckin/internal/types"
)

// DefaultSaveTimeout bounds the final save when the run's context is
// already cancelled.
const DefaultSaveTimeout = 30 * time.Second

// PostingWriter is the subset of the posting store the harvester needs.
type PostingWriter interface {
	InsertPostings(ctx context.Context, postings []types.Posting) (db.InsertResult, error)
}

// Harvester runs one source end to end.
type Harvester struct {
	source      Source
	launcher    fetch.Launcher
	store       PostingWriter
	limiter     ratelimit.Limiter
	log         zerolog.Logger
	now         func() time.Time
	saveTimeout time.Duration
}

// Option configures a Harvester.
type Option func(*Harvester)

// WithLimiter replaces the per-run page delay gate. The limiter is waited on
// before every page, so it must let the first call through immediately to
// avoid delaying page 0.
func WithLimiter(l ratelimit.Limiter) Option {
	return func(h *Harvester) { h.limiter = l }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(h *Harvester) { h.log = l }
}

// WithClock sets the clock used for ScrapedAt and report timestamps.
func WithClock(now func() time.Time) Option {
	return func(h *Harvester) { h.now = now }
}

// WithSaveTimeout bounds the save that runs after cancellation.
func WithSaveTimeout(d time.Duration) Option {
	return func(h *Harvester) { h.saveTimeout = d }
}

// New validates src and builds a Harvester.
func New(src Source, launcher fetch.Launcher, store PostingWriter, opts ...Option) (*Harvester, error) {
	src = src.WithDefaults()
	if err := src.Validate(); err != nil {
		return nil, err
	}
	if launcher == nil {
		return nil, fmt.Errorf("launcher is required")
	}
	if store == nil {
		return nil, fmt.Errorf("posting store is required")
	}

	h := &Harvester{
		source:      src,
		launcher:    launcher,
		store:       store,
		log:         zerolog.Nop(),
		now:         time.Now,
		saveTimeout: DefaultSaveTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Source returns the defaulted source configuration.
func (h *Harvester) Source() Source {
	return h.source
}

// Run pages through the source and saves everything it collected in one
// write. Page-level failures and cancellation end pagination early but do not
// fail the run; whatever was gathered is still saved. Run returns an error
// only when the browser cannot be started or the save itself fails.
func (h *Harvester) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		RunID:     uuid.New(),
		Source:    h.source.Name,
		StartedAt: h.now(),
	}
	log := h.log.With().
		Str("run_id", report.RunID.String()).
		Str("source", h.source.Name).
		Logger()

	log.Info().Int("max_pages", h.source.MaxPages).Msg("harvest started")

	acc, err := h.collect(ctx, report, log)
	if err != nil {
		report.StopReason = StopLaunchFailed
		report.FinishedAt = h.now()
		log.Error().Err(err).Msg("harvest aborted")
		return report, err
	}
	report.Accumulated = len(acc)

	if len(acc) == 0 {
		report.FinishedAt = h.now()
		log.Info().Str("stop_reason", string(report.StopReason)).Msg("no postings harvested, nothing to save")
		return report, nil
	}

	saveCtx := ctx
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		saveCtx, cancel = context.WithTimeout(context.WithoutCancel(ctx), h.saveTimeout)
		defer cancel()
	}

	res, err := h.store.InsertPostings(saveCtx, acc)
	report.Saved = res
	report.FinishedAt = h.now()

	log.Info().
		Str("stop_reason", string(report.StopReason)).
		Int("pages", len(report.Pages)).
		Int("accumulated", report.Accumulated).
		Int("inserted", res.Inserted).
		Int("duplicates", res.Duplicates).
		Int("errors", res.Errors).
		Dur("elapsed", report.Duration()).
		Msg("harvest finished")

	if err != nil {
		return report, fmt.Errorf("failed to save harvested postings: %w", err)
	}
	return report, nil
}

// collect runs the page loop and returns the accumulated postings. The
// browser is closed before collect returns.
func (h *Harvester) collect(ctx context.Context, report *Report, log zerolog.Logger) ([]types.Posting, error) {
	browser, err := h.launcher.Launch(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	defer func() {
		if cerr := browser.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("failed to close browser")
		}
	}()

	page, err := browser.NewPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}

	limiter := h.limiter
	if limiter == nil {
		limiter = ratelimit.NewInterval(h.source.PageDelay.Std())
	}

	x := newExtractor(h.source)
	var acc []types.Posting

	for i := 0; i < h.source.MaxPages; i++ {
		if err := limiter.Wait(ctx); err != nil {
			log.Warn().Err(err).Int("page", i).Msg("harvest interrupted between pages")
			report.StopReason = StopCancelled
			return acc, nil
		}

		pr, items := h.harvestPage(ctx, page, x, i)
		report.Pages = append(report.Pages, pr)
		acc = append(acc, items...)

		ev := log.Info()
		if pr.Err != nil {
			ev = log.Error().Err(pr.Err)
		} else if pr.Suspect {
			ev = log.Warn()
		}
		ev.Int("page", i).
			Str("url", pr.URL).
			Str("status", string(pr.Status)).
			Int("items", pr.Items).
			Int("skipped", pr.Skipped).
			Bool("suspect", pr.Suspect).
			Msg("page harvested")

		switch pr.Status {
		case PageFull:
			continue
		case PageShort:
			report.StopReason = StopShortPage
		case PageNoResults:
			report.StopReason = StopNoResults
		case PageCancelled:
			report.StopReason = StopCancelled
		default:
			report.StopReason = StopPageError
		}
		return acc, nil
	}

	report.StopReason = StopMaxPages
	return acc, nil
}

// harvestPage loads one listing page. Items are returned only for pages that
// finished extraction.
func (h *Harvester) harvestPage(ctx context.Context, page fetch.Page, x *extractor, index int) (PageReport, []types.Posting) {
	pr := PageReport{Index: index}

	pageURL, err := h.source.PageURL(index)
	if err != nil {
		pr.Status = PageFailed
		pr.Err = err
		pr.Error = err.Error()
		return pr, nil
	}
	pr.URL = pageURL

	fail := func(err error) (PageReport, []types.Posting) {
		if ctx.Err() != nil {
			pr.Status = PageCancelled
			return pr, nil
		}
		pr.Status = PageFailed
		pr.Err = &PageError{Source: h.source.Name, Page: index, URL: pageURL, Err: err}
		pr.Error = err.Error()
		return pr, nil
	}

	if err := page.Goto(ctx, pageURL, h.source.NavTimeout.Std()); err != nil {
		return fail(fmt.Errorf("navigation failed: %w", err))
	}

	if err := page.WaitForSelector(ctx, h.source.Selectors.Container, h.source.WaitTimeout.Std()); err != nil {
		if errors.Is(err, fetch.ErrNoMatch) && ctx.Err() == nil {
			pr.Status = PageNoResults
			pr.Suspect = index == 0
			return pr, nil
		}
		return fail(fmt.Errorf("waiting for results failed: %w", err))
	}

	stamp := h.now()
	var items []types.Posting
	n, err := page.ExtractAll(ctx, h.source.Selectors.Container, func(_ int, s *goquery.Selection) {
		p, ok := x.extract(s)
		if !ok {
			pr.Skipped++
			return
		}
		p.Source = h.source.Label
		p.ScrapedAt = stamp
		items = append(items, p)
	})
	if err != nil {
		pr.Skipped = 0
		return fail(fmt.Errorf("extraction failed: %w", err))
	}

	pr.Containers = n
	pr.Items = len(items)
	if len(items) < h.source.PerPage {
		pr.Status = PageShort
	} else {
		pr.Status = PageFull
	}
	return pr, items
}
