package redis

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/arbiter-oj/arbiter/internal/repository"
)

var _ repository.CacheInvalidator = (*cacheInvalidator)(nil)

// aggregateKeys is the fixed list of cached aggregates dropped after a
// submission is judged. Dashboard and leaderboard readers re-fetch on
// the next read.
var aggregateKeys = []string{
	"arbiter:cache:leaderboard",
	"arbiter:cache:admin:dashboard",
	"arbiter:cache:admin:submission_stats",
}

type cacheInvalidator struct {
	client *goredis.Client
}

// NewCacheInvalidator creates a Redis-backed cache invalidator.
func NewCacheInvalidator(client *goredis.Client) repository.CacheInvalidator {
	return &cacheInvalidator{client: client}
}

func (c *cacheInvalidator) InvalidateAggregates(ctx context.Context) error {
	if err := c.client.Del(ctx, aggregateKeys...).Err(); err != nil {
		return fmt.Errorf("redis: invalidate aggregates: %w", err)
	}
	return nil
}
