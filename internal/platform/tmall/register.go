package tmall

import (
	"time"

	"tmall-review-crawler/internal/config"
	"tmall-review-crawler/internal/crawler"
	"tmall-review-crawler/internal/metrics"
	"tmall-review-crawler/internal/platform"
)

func init() {
	platform.Register(platformName, []string{"tm", "天猫"}, func() crawler.Runner { return NewCrawlerFromConfig(config.AppConfig, nil) })
}

// OptionsFromConfig turns the loaded configuration into per-run options. A nil
// res uses the process-wide Shared resources.
func OptionsFromConfig(cfg config.Config, res *Resources) Options {
	if res == nil {
		res = Shared()
	}
	return Options{
		Client: ClientOptions{
			Timeout:      time.Duration(cfg.HttpTimeoutSec) * time.Second,
			RetryCount:   cfg.HttpRetryCount,
			RetryWait:    time.Duration(cfg.HttpRetryBaseDelayMs) * time.Millisecond,
			RetryMaxWait: time.Duration(cfg.HttpRetryMaxDelayMs) * time.Millisecond,
			MaxRPS:       cfg.HttpMaxRPS,
			ProxyPool:    res.Proxy,
		},
		Fetcher: FetcherOptions{
			MinSleep:     time.Duration(cfg.CrawlerMinSleepMs) * time.Millisecond,
			MaxSleep:     time.Duration(cfg.CrawlerMaxSleepMs) * time.Millisecond,
			RequireToken: cfg.RequireToken,
			Cache:        res.Cache,
			CacheTTL:     res.CacheTTL,
			Metrics:      metrics.Default(),
		},
		Cookie:          cfg.Cookies,
		EmptyReviewText: cfg.EmptyReviewText,
	}
}

func NewCrawlerFromConfig(cfg config.Config, res *Resources) *Crawler {
	return NewCrawler(OptionsFromConfig(cfg, res))
}
