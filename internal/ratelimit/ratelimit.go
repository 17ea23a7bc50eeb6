// Package ratelimit provides the pacing gates used in front of external
// calls: a fixed-interval gate and a token bucket.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter paces a sequence of calls. Wait blocks until the next call may
// proceed or ctx is done.
type Limiter interface {
	Wait(ctx context.Context) error
}

// Interval is a fixed-interval gate: the first Wait returns immediately and
// every later Wait pauses for the full interval. With a caller that waits,
// calls, then waits again, consecutive calls are separated by at least the
// interval regardless of how long each call took.
type Interval struct {
	interval time.Duration
	mu       sync.Mutex
	started  bool
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewInterval creates a fixed-interval gate.
func NewInterval(interval time.Duration) *Interval {
	return &Interval{interval: interval, sleep: Sleep}
}

// Wait implements Limiter.
func (g *Interval) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	g.mu.Lock()
	first := !g.started
	g.started = true
	g.mu.Unlock()

	if first || g.interval <= 0 {
		return nil
	}
	return g.sleep(ctx, g.interval)
}

// TokenBucket allows bursts up to burst calls and refills at perMinute.
type TokenBucket struct {
	limiter *rate.Limiter
}

// NewTokenBucket creates a token bucket for perMinute calls. A non-positive
// burst defaults to half of perMinute, with a floor of one.
func NewTokenBucket(perMinute, burst int) *TokenBucket {
	if burst <= 0 {
		burst = perMinute / 2
		if burst <= 0 {
			burst = 1
		}
	}
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Limit(float64(perMinute) / 60.0)
	}
	return &TokenBucket{limiter: rate.NewLimiter(limit, burst)}
}

// Wait implements Limiter.
func (b *TokenBucket) Wait(ctx context.Context) error {
	return b.limiter.Wait(ctx)
}

type unlimited struct{}

func (unlimited) Wait(ctx context.Context) error { return ctx.Err() }

// Unlimited returns a Limiter that never blocks.
func Unlimited() Limiter {
	return unlimited{}
}

// Sleep pauses for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
