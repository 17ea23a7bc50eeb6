// Package ranking orders stored postings by how well they fit a skill set.
// Candidates come from a keyword search of the posting store; a bounded
// number of them are judged one at a time by a scoring oracle.
package ranking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jonathan/luckin/internal/db"
	"github.com/jonathan/luckin/internal/ratelimit"
	"github.com/jonathan/luckin/internal/types"
)

const (
	DefaultInitialCandidateLimit = 50
	DefaultAIProcessingLimit     = 10
	DefaultThreshold             = 0.3
	DefaultOracleDelay           = 500 * time.Millisecond
	DefaultCacheTTL              = 24 * time.Hour
)

// ErrRetrieval marks a failed candidate lookup. It is the only ranking
// failure surfaced to callers; scoring failures degrade to unscored.
var ErrRetrieval = errors.New("candidate retrieval failed")

// PostingFinder is the subset of the posting store the ranker reads from.
type PostingFinder interface {
	FindPostings(ctx context.Context, q db.PostingQuery) ([]types.Posting, error)
}

// ScoreCache remembers judgments per skill set and posting URL.
type ScoreCache interface {
	Get(ctx context.Context, skills []string, url string) (*types.Relevance, bool, error)
	Set(ctx context.Context, skills []string, url string, rel *types.Relevance, ttl time.Duration) error
}

// Options configures a Ranker. Zero limits, delay and TTL take defaults;
// the threshold is used as given.
type Options struct {
	InitialCandidateLimit int
	AIProcessingLimit     int
	Threshold             float64
	// Limiter, when set, gates oracle calls and is shared by every Evaluate
	// on the Ranker. Otherwise each Evaluate paces its own calls OracleDelay
	// apart, with the first call immediate.
	Limiter     ratelimit.Limiter
	OracleDelay time.Duration
	Cache       ScoreCache
	CacheTTL    time.Duration
	Logger      *zerolog.Logger
}

// DefaultOptions returns the stock ranking limits and threshold.
func DefaultOptions() Options {
	return Options{
		InitialCandidateLimit: DefaultInitialCandidateLimit,
		AIProcessingLimit:     DefaultAIProcessingLimit,
		Threshold:             DefaultThreshold,
		OracleDelay:           DefaultOracleDelay,
		CacheTTL:              DefaultCacheTTL,
	}
}

// Ranker produces relevance-ordered postings for a skill set.
type Ranker struct {
	store  PostingFinder
	oracle Oracle
	opts   Options
	log    zerolog.Logger
}

// Result carries the ranked output together with what happened on the way.
type Result struct {
	Retrieved   int
	Evaluated   []types.Candidate
	Ranked      []types.Candidate
	OracleCalls int
	CacheHits   int
	Failures    int
}

// New creates a Ranker.
func New(store PostingFinder, oracle Oracle, opts Options) (*Ranker, error) {
	if store == nil {
		return nil, fmt.Errorf("posting store is required")
	}
	if oracle == nil {
		return nil, fmt.Errorf("scoring oracle is required")
	}
	if opts.Threshold < 0 || opts.Threshold > 1 {
		return nil, fmt.Errorf("threshold %v out of range [0,1]", opts.Threshold)
	}

	if opts.InitialCandidateLimit <= 0 {
		opts.InitialCandidateLimit = DefaultInitialCandidateLimit
	}
	if opts.AIProcessingLimit <= 0 {
		opts.AIProcessingLimit = DefaultAIProcessingLimit
	}
	if opts.OracleDelay <= 0 {
		opts.OracleDelay = DefaultOracleDelay
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}

	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}

	return &Ranker{store: store, oracle: oracle, opts: opts, log: log}, nil
}

// Rank returns the postings whose judged score meets the threshold, best
// first. An empty skill set or no matching postings yields an empty slice.
func (r *Ranker) Rank(ctx context.Context, skills types.SkillSet) ([]types.Candidate, error) {
	res, err := r.Evaluate(ctx, skills)
	if err != nil {
		return nil, err
	}
	return res.Ranked, nil
}

// Evaluate is Rank with the unfiltered candidates and call counts attached.
func (r *Ranker) Evaluate(ctx context.Context, skills types.SkillSet) (*Result, error) {
	res := &Result{Ranked: []types.Candidate{}}
	if skills.Empty() {
		return res, nil
	}
	terms := skills.Terms()

	postings, err := r.store.FindPostings(ctx, db.PostingQuery{
		AnyTerms: terms,
		Limit:    r.opts.InitialCandidateLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRetrieval, err)
	}
	res.Retrieved = len(postings)
	if len(postings) == 0 {
		r.log.Info().Str("skills", skills.String()).Msg("no candidate postings matched")
		return res, nil
	}

	if len(postings) > r.opts.AIProcessingLimit {
		postings = postings[:r.opts.AIProcessingLimit]
	}

	limiter := r.opts.Limiter
	if limiter == nil {
		limiter = ratelimit.NewInterval(r.opts.OracleDelay)
	}

	res.Evaluated = make([]types.Candidate, 0, len(postings))
	for _, p := range postings {
		c := types.Candidate{Posting: p}

		if rel, ok := r.cached(ctx, terms, p.URL); ok {
			c.Relevance = rel
			res.CacheHits++
			res.Evaluated = append(res.Evaluated, c)
			continue
		}

		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}

		res.OracleCalls++
		rel, err := r.oracle.Score(ctx, terms, p.Title, p.Description)
		if err != nil || rel == nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			res.Failures++
			r.log.Warn().Err(err).Str("url", p.URL).Msg("relevance scoring failed")
		} else {
			rel.Clamp()
			c.Relevance = rel
			r.remember(ctx, terms, p.URL, rel)
		}
		res.Evaluated = append(res.Evaluated, c)
	}

	res.Ranked = FilterAndSort(res.Evaluated, r.opts.Threshold)

	r.log.Info().
		Str("skills", skills.String()).
		Int("retrieved", res.Retrieved).
		Int("evaluated", len(res.Evaluated)).
		Int("oracle_calls", res.OracleCalls).
		Int("cache_hits", res.CacheHits).
		Int("failures", res.Failures).
		Int("ranked", len(res.Ranked)).
		Msg("ranking finished")

	return res, nil
}

func (r *Ranker) cached(ctx context.Context, terms []string, url string) (*types.Relevance, bool) {
	if r.opts.Cache == nil {
		return nil, false
	}
	rel, ok, err := r.opts.Cache.Get(ctx, terms, url)
	if err != nil {
		r.log.Warn().Err(err).Str("url", url).Msg("score cache read failed")
		return nil, false
	}
	if !ok || rel == nil {
		return nil, false
	}
	rel.Clamp()
	return rel, true
}

func (r *Ranker) remember(ctx context.Context, terms []string, url string, rel *types.Relevance) {
	if r.opts.Cache == nil {
		return
	}
	if err := r.opts.Cache.Set(ctx, terms, url, rel, r.opts.CacheTTL); err != nil {
		r.log.Warn().Err(err).Str("url", url).Msg("score cache write failed")
	}
}
