package proxy

import (
	"fmt"
	"strings"

	"tmall-review-crawler/internal/config"
)

func NewProvider(name string, cfg config.Config) (Provider, error) {
	switch ProviderName(strings.ToLower(strings.TrimSpace(name))) {
	case ProviderStatic, "":
		return NewStatic(cfg.IPProxyList, cfg.IPProxyFile), nil
	default:
		return nil, fmt.Errorf("unknown proxy provider: %s", name)
	}
}

// NewPoolFromConfig returns nil when proxying is disabled.
func NewPoolFromConfig(cfg config.Config) (*Pool, error) {
	if !cfg.EnableIPProxy {
		return nil, nil
	}
	p, err := NewProvider(cfg.IPProxyProviderName, cfg)
	if err != nil {
		return nil, err
	}
	return NewPool(p, cfg.IPProxyPoolCount), nil
}
