package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"fvg_bot/internal/models"
)

// CachingSource decorates a BarSource with Redis. A nil client passes through.
type CachingSource struct {
	inner     BarSource
	rdb       *redis.Client
	ttl       time.Duration
	namespace string
}

func NewCachingSource(rdb *redis.Client, ttl time.Duration, inner BarSource, namespace string) *CachingSource {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if namespace == "" {
		namespace = "bars"
	}
	return &CachingSource{inner: inner, rdb: rdb, ttl: ttl, namespace: namespace}
}

func (c *CachingSource) Bars(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]models.Bar, error) {
	if c.rdb == nil {
		return c.inner.Bars(ctx, symbol, timeframe, start, end)
	}

	key := c.cacheKey(symbol, timeframe, start, end)

	if b, err := c.rdb.Get(ctx, key).Bytes(); err == nil && len(b) > 0 {
		var out []models.Bar
		if err := sonic.Unmarshal(b, &out); err == nil {
			return out, nil
		}
		_ = c.rdb.Del(ctx, key).Err()
	}

	out, err := c.inner.Bars(ctx, symbol, timeframe, start, end)
	if err != nil {
		return nil, err
	}

	// open-ended ranges still grow, caching them would hide new bars
	if end.IsZero() {
		return out, nil
	}
	if b, err := sonic.Marshal(out); err == nil {
		_ = c.rdb.Set(ctx, key, b, c.ttl).Err()
	}
	return out, nil
}

// Invalidate drops every cached range for symbol+timeframe.
func (c *CachingSource) Invalidate(ctx context.Context, symbol, timeframe string) error {
	if c.rdb == nil {
		return nil
	}
	pattern := c.cacheKeyPrefix(symbol, timeframe) + "*"
	var cursor uint64
	for {
		keys, cur, err := c.rdb.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = cur
		if cursor == 0 {
			return nil
		}
	}
}

func (c *CachingSource) cacheKey(symbol, timeframe string, start, end time.Time) string {
	return fmt.Sprintf("%s%d:%d", c.cacheKeyPrefix(symbol, timeframe), start.Unix(), end.Unix())
}

func (c *CachingSource) cacheKeyPrefix(symbol, timeframe string) string {
	return fmt.Sprintf("%s:%s:%s:", c.namespace, safe(symbol), safe(timeframe))
}

func safe(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, ":", "_")
	return s
}
