package llm

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "codelens:llm:"

type cachedAnalyzer struct {
	base Analyzer
	rdb  *redis.Client
	ttl  time.Duration
}

// NewCachedAnalyzer decorates an analyzer with a Redis response cache keyed
// by prompt hash. Soft failures and errors are never cached; cache outages
// degrade to uncached calls.
func NewCachedAnalyzer(base Analyzer, rdb *redis.Client, ttl time.Duration) Analyzer {
	return &cachedAnalyzer{base: base, rdb: rdb, ttl: ttl}
}

func (c *cachedAnalyzer) Analyze(ctx context.Context, prompt string) (string, error) {
	key := cacheKey(prompt)

	cached, err := c.rdb.Get(ctx, key).Result()
	if err == nil {
		slog.DebugContext(ctx, "llm cache hit", "key", key)
		return cached, nil
	}
	if !errors.Is(err, redis.Nil) {
		slog.WarnContext(ctx, "llm cache read failed", "error", err)
	}

	result, err := c.base.Analyze(ctx, prompt)
	if err != nil {
		return "", err
	}

	if !IsSoftFailure(result) {
		if err := c.rdb.Set(ctx, key, result, c.ttl).Err(); err != nil {
			slog.WarnContext(ctx, "llm cache write failed", "error", err)
		}
	}

	return result, nil
}

func cacheKey(prompt string) string {
	sum := md5.Sum([]byte(prompt))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}
