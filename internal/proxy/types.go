package proxy

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
)

type ProviderName string

const ProviderStatic ProviderName = "static"

// Provider supplies a batch of exit proxies for the review client.
type Provider interface {
	Name() ProviderName
	GetProxies(ctx context.Context, num int) ([]Proxy, error)
}

type Proxy struct {
	IP        string
	Port      int
	User      string
	Password  string
	Protocol  string
	ExpiredAt time.Time
}

// IsExpired reports whether p is within buffer of its expiry. A proxy
// without an expiry never expires.
func (p Proxy) IsExpired(buffer time.Duration) bool {
	return !p.ExpiredAt.IsZero() && time.Now().Add(buffer).After(p.ExpiredAt)
}

// URL renders the proxy for http.Transport.Proxy, which understands http,
// https and socks5.
func (p Proxy) URL() (string, error) {
	scheme := strings.ToLower(p.Protocol)
	switch scheme {
	case "":
		scheme = "http"
	case "http", "https", "socks5":
	default:
		return "", fmt.Errorf("unsupported proxy protocol: %s", p.Protocol)
	}
	u := url.URL{Scheme: scheme, Host: p.Addr()}
	if p.User != "" || p.Password != "" {
		u.User = url.UserPassword(p.User, p.Password)
	}
	return u.String(), nil
}

// Addr is safe to log: credentials are omitted.
func (p Proxy) Addr() string {
	return fmt.Sprintf("%s:%d", p.IP, p.Port)
}
