// Package cache stores relevance judgments in Redis so repeated ranking
// requests for the same skills do not re-score the same postings.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jonathan/luckin/internal/types"
)

// DefaultKeyPrefix namespaces score keys.
const DefaultKeyPrefix = "luckin:score:"

// NewRedisClient parses redisURL and verifies connectivity.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// RedisScores is a score cache keyed by skill set and posting URL.
type RedisScores struct {
	client redis.Cmdable
	prefix string
}

// NewRedisScores wraps an existing client. An empty prefix uses DefaultKeyPrefix.
func NewRedisScores(client redis.Cmdable, prefix string) *RedisScores {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisScores{client: client, prefix: prefix}
}

// Get returns the cached judgment, reporting false on a miss.
func (c *RedisScores) Get(ctx context.Context, skills []string, url string) (*types.Relevance, bool, error) {
	raw, err := c.client.Get(ctx, c.Key(skills, url)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cached score: %w", err)
	}

	var rel types.Relevance
	if err := json.Unmarshal(raw, &rel); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached score: %w", err)
	}
	return &rel, true, nil
}

// Set stores rel for ttl. A non-positive ttl keeps the entry until evicted.
func (c *RedisScores) Set(ctx context.Context, skills []string, url string, rel *types.Relevance, ttl time.Duration) error {
	if rel == nil {
		return nil
	}
	raw, err := json.Marshal(rel)
	if err != nil {
		return fmt.Errorf("failed to encode score: %w", err)
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := c.client.Set(ctx, c.Key(skills, url), raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache score: %w", err)
	}
	return nil
}

// Key derives the cache key. Skills compare case-insensitively and in order.
func (c *RedisScores) Key(skills []string, url string) string {
	lowered := make([]string, len(skills))
	for i, s := range skills {
		lowered[i] = strings.ToLower(s)
	}

	h := sha256.New()
	h.Write([]byte(strings.Join(lowered, "\x1f")))
	h.Write([]byte{0})
	h.Write([]byte(url))
	return c.prefix + hex.EncodeToString(h.Sum(nil))
}
