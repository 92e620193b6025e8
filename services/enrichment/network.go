package enrichment

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"naano-tracking/pkg/config"
	"naano-tracking/pkg/dns"
	"naano-tracking/pkg/rediskey"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NetworkLookup resolves the network origin of an IP address.
type NetworkLookup interface {
	LookupOrigin(ctx context.Context, ip string) (*dns.Origin, error)
}

type LookupParams struct {
	fx.In
	Config *config.Config
	Redis  *redis.Client `optional:"true"`
}

func NewNetworkLookup(p LookupParams) NetworkLookup {
	var lookup NetworkLookup = dns.NewResolver(p.Config.Enrichment.Resolvers, p.Config.Enrichment.LookupTimeout)
	if p.Redis != nil {
		ttl := p.Config.Enrichment.CacheTTL
		if ttl <= 0 {
			ttl = 24 * time.Hour
		}
		lookup = NewCachedLookup(lookup, p.Redis, ttl)
	}
	return lookup
}

type cachedLookup struct {
	next NetworkLookup
	rdb  *redis.Client
	ttl  time.Duration
}

// NewCachedLookup memoizes successful lookups in redis. Failures are not
// cached so a transient resolver outage does not stick.
func NewCachedLookup(next NetworkLookup, rdb *redis.Client, ttl time.Duration) NetworkLookup {
	return &cachedLookup{next: next, rdb: rdb, ttl: ttl}
}

func (c *cachedLookup) LookupOrigin(ctx context.Context, ip string) (*dns.Origin, error) {
	key := rediskey.BuildEnrichIPKey(ip)

	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var origin dns.Origin
		if json.Unmarshal(raw, &origin) == nil {
			return &origin, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		zap.L().Warn("[Redis] ip cache read failed", zap.String("ip", ip), zap.Error(err))
	}

	origin, err := c.next.LookupOrigin(ctx, ip)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(origin); err == nil {
		if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			zap.L().Warn("[Redis] ip cache write failed", zap.String("ip", ip), zap.Error(err))
		}
	}
	return origin, nil
}
