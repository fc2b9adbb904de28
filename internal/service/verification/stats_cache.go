package verification

import (
	"context"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// StatsCache stores serialized stats snapshots keyed by GitHub login.
// A nil value with nil error means a miss.
type StatsCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type redisStatsCache struct {
	client *redis.Client
}

// NewRedisStatsCache wraps a redis client as a StatsCache.
func NewRedisStatsCache(client *redis.Client) StatsCache {
	return redisStatsCache{client: client}
}

func (c redisStatsCache) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return raw, err
}

func (c redisStatsCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}
