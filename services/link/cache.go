package link

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"naano-tracking/pkg/metrics"
	"naano-tracking/pkg/rediskey"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Cache interface {
	Get(ctx context.Context, hash string) (*Attribution, bool)
	Set(ctx context.Context, attr *Attribution)
}

type redisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) Cache {
	return &redisCache{rdb: rdb, ttl: ttl}
}

func (c *redisCache) Get(ctx context.Context, hash string) (*Attribution, bool) {
	raw, err := c.rdb.Get(ctx, rediskey.BuildLinkHashKey(hash)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			zap.L().Warn("[Redis] link cache read failed", zap.String("hash", hash), zap.Error(err))
		}
		metrics.LinkCacheTotal.WithLabelValues("miss").Inc()
		return nil, false
	}

	var attr Attribution
	if err := json.Unmarshal(raw, &attr); err != nil {
		metrics.LinkCacheTotal.WithLabelValues("miss").Inc()
		return nil, false
	}

	metrics.LinkCacheTotal.WithLabelValues("hit").Inc()
	return &attr, true
}

func (c *redisCache) Set(ctx context.Context, attr *Attribution) {
	raw, err := json.Marshal(attr)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, rediskey.BuildLinkHashKey(attr.Hash), raw, c.ttl).Err(); err != nil {
		zap.L().Warn("[Redis] link cache write failed", zap.String("hash", attr.Hash), zap.Error(err))
	}
}
