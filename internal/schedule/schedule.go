// Package schedule runs a job on a cron spec, one run at a time.
package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is the scheduled work. It receives the scheduler's context.
type Job func(ctx context.Context)

// Scheduler wraps robfig/cron. Overlapping ticks are skipped while a run
// is still in progress.
type Scheduler struct {
	cron      *cron.Cron
	spec      string
	job       Job
	runOnce   bool
	log       zerolog.Logger
	mu        sync.Mutex
	running   bool
	active    sync.Mutex
	wg        sync.WaitGroup
	cancelRun context.CancelFunc
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithRunOnStart runs the job once immediately after Start.
func WithRunOnStart() Option {
	return func(s *Scheduler) { s.runOnce = true }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Scheduler) { s.log = l }
}

// New parses spec ("@every 6h", "0 */6 * * *", ...) and builds a Scheduler.
func New(spec string, job Job, opts ...Option) (*Scheduler, error) {
	if job == nil {
		return nil, fmt.Errorf("job is required")
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}

	s := &Scheduler{spec: spec, job: job, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	s.cron = cron.New(cron.WithChain(
		cron.Recover(cronLogger{s.log}),
		cron.SkipIfStillRunning(cronLogger{s.log}),
	))
	return s, nil
}

// Start registers the job and starts ticking. Cancelling ctx stops the
// scheduler's runs from proceeding but does not stop the ticker; call Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if _, err := s.cron.AddFunc(s.spec, func() { s.run(runCtx, "tick") }); err != nil {
		cancel()
		return fmt.Errorf("failed to register schedule: %w", err)
	}

	s.cancelRun = cancel
	s.running = true
	s.cron.Start()
	s.log.Info().Str("spec", s.spec).Msg("scheduler started")

	if s.runOnce {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.run(runCtx, "startup")
		}()
	}
	return nil
}

// Stop cancels in-flight runs and waits for them to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancelRun
	s.mu.Unlock()

	cancel()
	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.log.Info().Msg("scheduler stopped")
}

// Next returns when the next tick fires, or the zero time before Start.
func (s *Scheduler) Next() (next time.Time) {
	for _, e := range s.cron.Entries() {
		if next.IsZero() || e.Next.Before(next) {
			next = e.Next
		}
	}
	return next
}

func (s *Scheduler) run(ctx context.Context, trigger string) {
	if ctx.Err() != nil {
		return
	}
	if !s.active.TryLock() {
		s.log.Warn().Str("trigger", trigger).Msg("previous run still in progress, skipping")
		return
	}
	defer s.active.Unlock()

	s.log.Info().Str("trigger", trigger).Msg("scheduled run started")
	s.job(ctx)
	s.log.Info().Str("trigger", trigger).Msg("scheduled run finished")
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
