package tmall

import (
	"sync"
	"time"

	"tmall-review-crawler/internal/cache"
	"tmall-review-crawler/internal/config"
	"tmall-review-crawler/internal/logger"
	"tmall-review-crawler/internal/proxy"
)

// Resources outlive a single run: every crawler built in the process reads
// and fills the same page cache and rotates through the same proxy pool.
type Resources struct {
	Cache    cache.Cache
	CacheTTL time.Duration
	Proxy    *proxy.Pool
}

func NewResources(cfg config.Config) *Resources {
	pool, err := proxy.NewPoolFromConfig(cfg)
	if err != nil {
		logger.Warn("proxy pool disabled", "err", err)
		pool = nil
	}
	return &Resources{
		Cache:    cache.NewFromConfig(cfg),
		CacheTTL: cache.DefaultTTL(cfg),
		Proxy:    pool,
	}
}

func (r *Resources) Close() error {
	if r == nil || r.Cache == nil {
		return nil
	}
	return r.Cache.Close()
}

var (
	sharedMu sync.Mutex
	shared   *Resources
)

// Shared returns the process-wide resources, built from config.AppConfig on
// first use.
func Shared() *Resources {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if shared == nil {
		shared = NewResources(config.AppConfig)
	}
	return shared
}

// CloseShared releases the process-wide resources. A later Shared call builds
// a fresh set.
func CloseShared() error {
	sharedMu.Lock()
	r := shared
	shared = nil
	sharedMu.Unlock()
	if r == nil {
		return nil
	}
	return r.Close()
}
