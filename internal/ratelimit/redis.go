package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisLimiter implements the sliding window on a Redis sorted set, shared
// across replicas. Each admitted request is a member scored by its unix
// nanosecond timestamp; expired members are trimmed before counting.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

func NewRedisLimiter(client *redis.Client, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, limit: limit, window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	now := time.Now()
	cutoff := now.Add(-l.window)
	redisKey := "ratelimit:" + key

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "0", strconv.FormatInt(cutoff.UnixNano(), 10))
	countCmd := pipe.ZCard(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, fmt.Errorf("rate limit count: %w", err)
	}

	count := int(countCmd.Val())
	if count >= l.limit {
		oldest, err := l.client.ZRangeWithScores(ctx, redisKey, 0, 0).Result()
		resetAt := now.Add(l.window)
		if err == nil && len(oldest) > 0 {
			resetAt = time.Unix(0, int64(oldest[0].Score)).Add(l.window)
		}
		return Result{Allowed: false, Limit: l.limit, ResetAt: resetAt}, nil
	}

	member := redis.Z{
		Score:  float64(now.UnixNano()),
		Member: uuid.NewString(),
	}
	pipe = l.client.TxPipeline()
	pipe.ZAdd(ctx, redisKey, member)
	pipe.Expire(ctx, redisKey, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, fmt.Errorf("rate limit admit: %w", err)
	}

	return Result{
		Allowed:   true,
		Limit:     l.limit,
		Remaining: l.limit - count - 1,
		ResetAt:   now.Add(l.window),
	}, nil
}
