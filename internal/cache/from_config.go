package cache

import (
	"context"
	"strings"
	"time"

	"tmall-review-crawler/internal/config"
	"tmall-review-crawler/internal/logger"
)

// NewFromConfig returns nil when caching is disabled. An unreachable redis
// falls back to the in-process cache.
func NewFromConfig(cfg config.Config) Cache {
	backend := strings.ToLower(strings.TrimSpace(cfg.CacheBackend))
	switch backend {
	case "none", "disabled", "off":
		return nil
	case "redis":
		addr := strings.TrimSpace(cfg.RedisAddr)
		if addr == "" {
			logger.Warn("cache backend redis without REDIS_ADDR, using memory")
			return NewMemoryCache()
		}
		rc, err := NewRedisCache(RedisOptions{
			Addr:     addr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisKeyPrefix,
		})
		if err != nil {
			logger.Warn("invalid redis settings, using memory cache", "err", err)
			return NewMemoryCache()
		}
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := rc.Ping(ctx); err != nil {
			logger.Warn("redis unavailable, using memory cache", "addr", addr, "err", err)
			_ = rc.Close()
			return NewMemoryCache()
		}
		return rc
	default:
		return NewMemoryCache()
	}
}

func DefaultTTL(cfg config.Config) time.Duration {
	if cfg.CacheDefaultTTLSec <= 0 {
		return 0
	}
	return time.Duration(cfg.CacheDefaultTTLSec) * time.Second
}
