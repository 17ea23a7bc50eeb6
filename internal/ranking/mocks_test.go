package ranking

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonathan/luckin/internal/db"
	"github.com/jonathan/luckin/internal/llm"
	"github.com/jonathan/luckin/internal/types"
)

// MockLLMClient implements llm.Client for testing
type MockLLMClient struct {
	GenerateJSONFunc func(ctx context.Context, prompt string, tier llm.ModelTier) (string, error)
	GetModelFunc     func(tier llm.ModelTier) string
	CloseFunc        func() error
}

func (m *MockLLMClient) GenerateJSON(ctx context.Context, prompt string, tier llm.ModelTier) (string, error) {
	if m.GenerateJSONFunc != nil {
		return m.GenerateJSONFunc(ctx, prompt, tier)
	}
	return `{"score": 0.75, "explanation": "Mock explanation"}`, nil
}

func (m *MockLLMClient) GetModel(tier llm.ModelTier) string {
	if m.GetModelFunc != nil {
		return m.GetModelFunc(tier)
	}
	return "mock-model"
}

func (m *MockLLMClient) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// MockOracle implements Oracle and records every call.
type MockOracle struct {
	ScoreFunc func(ctx context.Context, skills []string, title, description string) (*types.Relevance, error)

	mu     sync.Mutex
	titles []string
}

func (m *MockOracle) Score(ctx context.Context, skills []string, title, description string) (*types.Relevance, error) {
	m.mu.Lock()
	m.titles = append(m.titles, title)
	m.mu.Unlock()
	if m.ScoreFunc != nil {
		return m.ScoreFunc(ctx, skills, title, description)
	}
	return &types.Relevance{Score: 0.5, Explanation: "ok"}, nil
}

func (m *MockOracle) calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.titles...)
}

// fakeFinder returns its postings in stored order, honoring the limit.
type fakeFinder struct {
	postings []types.Posting
	err      error
	queries  []db.PostingQuery
}

func (f *fakeFinder) FindPostings(_ context.Context, q db.PostingQuery) ([]types.Posting, error) {
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	out := f.postings
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return append([]types.Posting(nil), out...), nil
}

// postingsNewestFirst builds n postings titled "Job 0".."Job n-1".
func postingsNewestFirst(n int) []types.Posting {
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	out := make([]types.Posting, n)
	for i := range out {
		out[i] = types.Posting{
			Title:       fmt.Sprintf("Job %d", i),
			Description: fmt.Sprintf("python and sql work item %d", i),
			URL:         fmt.Sprintf("https://jobs.example.test/%d", i),
			Source:      "Amazon Jobs",
			ScrapedAt:   base.Add(-time.Duration(i) * time.Minute),
		}
	}
	return out
}

// memCache is an in-memory ScoreCache.
type memCache struct {
	entries map[string]types.Relevance
	getErr  error
	setErr  error
	sets    int
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string]types.Relevance)}
}

func (c *memCache) Get(_ context.Context, _ []string, url string) (*types.Relevance, bool, error) {
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	rel, ok := c.entries[url]
	if !ok {
		return nil, false, nil
	}
	return &rel, true, nil
}

func (c *memCache) Set(_ context.Context, _ []string, url string, rel *types.Relevance, _ time.Duration) error {
	c.sets++
	if c.setErr != nil {
		return c.setErr
	}
	c.entries[url] = *rel
	return nil
}

type countingLimiter struct{ waits int }

func (l *countingLimiter) Wait(ctx context.Context) error {
	l.waits++
	return ctx.Err()
}
