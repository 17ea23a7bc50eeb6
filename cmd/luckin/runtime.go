package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonathan/luckin/internal/cache"
	"github.com/jonathan/luckin/internal/config"
	"github.com/jonathan/luckin/internal/db"
	"github.com/jonathan/luckin/internal/fetch"
	"github.com/jonathan/luckin/internal/harvest"
	"github.com/jonathan/luckin/internal/llm"
	"github.com/jonathan/luckin/internal/ranking"
	"github.com/jonathan/luckin/internal/ratelimit"
)

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func openDB(ctx context.Context) (*db.DB, error) {
	if err := cfg.RequireDatabase(); err != nil {
		return nil, err
	}
	return db.Connect(ctx, cfg.DatabaseURL)
}

// newLauncher picks the browser backend for a source.
func newLauncher(backend string, src harvest.Source) (fetch.Launcher, error) {
	switch backend {
	case config.BackendChrome:
		opts := fetch.DefaultChromeOptions()
		opts.ExecPath = cfg.Harvest.ChromePath
		if src.UserAgent != "" {
			opts.UserAgent = src.UserAgent
		}
		return fetch.NewChromeLauncher(opts), nil
	case config.BackendHTTP:
		opts := fetch.DefaultOptions()
		if src.UserAgent != "" {
			opts.UserAgent = src.UserAgent
		}
		return fetch.NewHTTPLauncher(opts), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", backend)
	}
}

// harvesterFactory builds harvesters that share one store.
func harvesterFactory(store harvest.PostingWriter, backend string, maxPages int) harvest.Factory {
	return func(src harvest.Source) (*harvest.Harvester, error) {
		if maxPages > 0 {
			src.MaxPages = maxPages
		}
		launcher, err := newLauncher(backend, src)
		if err != nil {
			return nil, err
		}
		return harvest.New(src, launcher, store, harvest.WithLogger(log))
	}
}

// rankerDeps holds what a ranker needs so the caller can release it.
type rankerDeps struct {
	ranker  *ranking.Ranker
	closers []func() error
}

func (d *rankerDeps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			log.Warn().Err(err).Msg("failed to release resource")
		}
	}
}

// newRanker wires the Gemini oracle, the optional Redis cache and the store.
func newRanker(ctx context.Context, store ranking.PostingFinder, opts ranking.Options, useCache bool) (*rankerDeps, error) {
	if err := cfg.RequireGemini(); err != nil {
		return nil, err
	}

	deps := &rankerDeps{}
	client, err := llm.NewClient(ctx, llmConfig(cfg), cfg.GeminiAPIKey)
	if err != nil {
		return nil, err
	}
	deps.closers = append(deps.closers, client.Close)

	oracle, err := ranking.NewLLMOracle(client, ranking.OracleOptions{
		Tier:    llm.TierLite,
		Timeout: cfg.Rank.OracleTimeout.Std(),
	})
	if err != nil {
		deps.Close()
		return nil, err
	}

	if useCache && cfg.RedisURL != "" {
		rdb, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Warn().Err(err).Msg("score cache unavailable, continuing without it")
		} else {
			deps.closers = append(deps.closers, rdb.Close)
			opts.Cache = cache.NewRedisScores(rdb, "")
		}
	}

	opts.Limiter = oracleLimiter(cfg.Rank)
	opts.Logger = &log

	r, err := ranking.New(store, oracle, opts)
	if err != nil {
		deps.Close()
		return nil, err
	}
	deps.ranker = r
	return deps, nil
}

// llmConfig applies the model override and reply cap to the Gemini defaults.
func llmConfig(c *config.Config) *llm.Config {
	lc := llm.DefaultConfig().WithModel(llm.TierLite, c.GeminiModel)
	lc.MaxOutputTokens = int32(c.Rank.MaxOutputTokens)
	return lc
}

// oracleLimiter returns a token bucket when a per-minute rate is configured.
// Nil leaves the ranker pacing each evaluation by OracleDelay.
func oracleLimiter(rc config.RankConfig) ratelimit.Limiter {
	if rc.OraclePerMinute <= 0 {
		return nil
	}
	return ratelimit.NewTokenBucket(rc.OraclePerMinute, rc.OracleBurst)
}

// rankOptions maps configuration onto ranker options.
func rankOptions(rc config.RankConfig) ranking.Options {
	return ranking.Options{
		InitialCandidateLimit: rc.InitialCandidateLimit,
		AIProcessingLimit:     rc.AIProcessingLimit,
		Threshold:             rc.Threshold,
		OracleDelay:           rc.OracleDelay.Std(),
		CacheTTL:              rc.CacheTTL.Std(),
	}
}
