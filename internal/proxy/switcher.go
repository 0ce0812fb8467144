package proxy

import (
	"net/http"
	"net/url"
	"sync"
)

// Switcher is plugged into http.Transport.Proxy so the exit proxy can change
// between requests without rebuilding the client.
type Switcher struct {
	mu   sync.RWMutex
	url  *url.URL
	addr string
}

func NewSwitcher() *Switcher {
	return &Switcher{}
}

// Use routes subsequent requests through p.
func (s *Switcher) Use(p Proxy) error {
	raw, err := p.URL()
	if err != nil {
		return err
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.url, s.addr = u, p.Addr()
	s.mu.Unlock()
	return nil
}

// Clear switches back to a direct connection.
func (s *Switcher) Clear() {
	s.mu.Lock()
	s.url, s.addr = nil, ""
	s.mu.Unlock()
}

func (s *Switcher) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

func (s *Switcher) ProxyFunc(*http.Request) (*url.URL, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.url, nil
}
