package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"fiat/internal/mutation/models"
)

// RedisCache is a read-through cache over an idempotency store. Replay checks
// hit Redis first; misses fall through to the backing store and backfill the
// cache. Cache failures degrade to the backing store, never to an error.
type RedisCache struct {
	inner  Store
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedisCache(inner Store, client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCache{inner: inner, client: client, ttl: ttl, logger: logger}
}

func cacheKey(key Key) string {
	return fmt.Sprintf("idem:%s:%s:%s", key.OrgID.String(), key.Action, key.Key)
}

func (c *RedisCache) Get(ctx context.Context, key Key) (*models.OK, error) {
	raw, err := c.client.Get(ctx, cacheKey(key)).Bytes()
	if err == nil {
		var receipt models.OK
		if unmarshalErr := json.Unmarshal(raw, &receipt); unmarshalErr == nil {
			return &receipt, nil
		}
		c.logger.WarnContext(ctx, "idempotency cache entry corrupt, falling through",
			slog.String("key", key.Key))
	} else if !errors.Is(err, redis.Nil) {
		c.logger.WarnContext(ctx, "idempotency cache read failed",
			slog.String("error", err.Error()))
	}

	receipt, err := c.inner.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	c.backfill(ctx, key, *receipt)
	return receipt, nil
}

func (c *RedisCache) Put(ctx context.Context, key Key, receipt models.OK) error {
	if err := c.inner.Put(ctx, key, receipt); err != nil {
		return err
	}
	// Do not backfill here: Put runs inside the commit transaction and the
	// receipt is not durable until that transaction commits. The next Get
	// populates the cache.
	return nil
}

func (c *RedisCache) backfill(ctx context.Context, key Key, receipt models.OK) {
	raw, err := json.Marshal(receipt)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKey(key), raw, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "idempotency cache backfill failed",
			slog.String("error", err.Error()))
	}
}
