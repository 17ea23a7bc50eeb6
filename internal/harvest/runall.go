package harvest

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/jonathan/luckin/internal/ratelimit"
)

// Factory builds the harvester for a source.
type Factory func(src Source) (*Harvester, error)

// RunOption configures RunAll.
type RunOption func(*runConfig)

type runConfig struct {
	between ratelimit.Limiter
}

// Between waits on l before starting each source after the first.
func Between(l ratelimit.Limiter) RunOption {
	return func(c *runConfig) { c.between = l }
}

// RunAll harvests each source, at most parallel at a time (1 when
// parallel < 1). One source failing does not stop the others; reports are
// returned in source order and errors are joined.
func RunAll(ctx context.Context, sources []Source, factory Factory, parallel int, opts ...RunOption) ([]*Report, error) {
	if parallel < 1 {
		parallel = 1
	}
	var rc runConfig
	for _, opt := range opts {
		opt(&rc)
	}

	reports := make([]*Report, len(sources))
	errs := make([]error, len(sources))

	var g errgroup.Group
	g.SetLimit(parallel)
	for i, src := range sources {
		if i > 0 && rc.between != nil {
			// A cancelled wait falls through; the source records ctx.Err.
			_ = rc.between.Wait(ctx)
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				errs[i] = fmt.Errorf("%s: %w", src.Name, ctx.Err())
				return nil
			}
			h, err := factory(src)
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", src.Name, err)
				return nil
			}
			report, err := h.Run(ctx)
			reports[i] = report
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", src.Name, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	return reports, errors.Join(errs...)
}
