package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/joeblew999/plat-mapping/internal/metrics"
)

const genKey = "mapping:popup:gen"

// Redis is a PopupCache shared between server instances. Keys embed a
// generation number; Flush bumps it so stale keys simply age out.
type Redis struct {
	rc     *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// OpenRedis connects to addr. It returns nil for an empty address.
func OpenRedis(addr, password string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
}

// NewRedis wraps a client. Redis errors degrade to cache misses.
func NewRedis(rc *redis.Client, ttl time.Duration, logger *slog.Logger) *Redis {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Redis{rc: rc, ttl: ttl, logger: logger}
}

func (c *Redis) key(ctx context.Context, id int64) (string, error) {
	gen, err := c.rc.Get(ctx, genKey).Result()
	if errors.Is(err, redis.Nil) {
		gen = "0"
	} else if err != nil {
		return "", err
	}
	return "mapping:popup:" + gen + ":" + itoa(id), nil
}

func (c *Redis) Get(ctx context.Context, id int64) (string, bool) {
	key, err := c.key(ctx, id)
	if err == nil {
		var html string
		html, err = c.rc.Get(ctx, key).Result()
		if err == nil {
			metrics.PopupCacheHitsTotal.Inc()
			return html, true
		}
	}
	if !errors.Is(err, redis.Nil) {
		c.logger.Warn("popup_cache_get_failed", "feature", id, "error", err)
	}
	metrics.PopupCacheMissesTotal.Inc()
	return "", false
}

func (c *Redis) Set(ctx context.Context, id int64, html string) {
	key, err := c.key(ctx, id)
	if err == nil {
		err = c.rc.Set(ctx, key, html, c.ttl).Err()
	}
	if err != nil {
		c.logger.Warn("popup_cache_set_failed", "feature", id, "error", err)
	}
}

func (c *Redis) Flush(ctx context.Context) {
	if err := c.rc.Incr(ctx, genKey).Err(); err != nil {
		c.logger.Warn("popup_cache_flush_failed", "error", err)
	}
}
