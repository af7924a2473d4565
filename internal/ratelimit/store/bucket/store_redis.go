package bucket

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore counts requests in Redis so every instance shares one budget.
// It uses a fixed window per key: INCR plus a first-write expiry. Coarser
// than the in-memory sliding window, but atomic across instances without a
// script.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, int, time.Time, error) {
	redisKey := "ratelimit:" + key

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.ExpireNX(ctx, redisKey, window)
	ttl := pipe.TTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, time.Time{}, fmt.Errorf("rate limit pipeline: %w", err)
	}

	count := incr.Val()
	resetAt := time.Now().Add(ttl.Val())
	if count > int64(limit) {
		return false, 0, resetAt, nil
	}
	return true, limit - int(count), resetAt, nil
}
