package proxy

import (
	"context"
	"errors"
	"sync"
	"time"

	"tmall-review-crawler/internal/logger"
)

var ErrNoProxyAvailable = errors.New("no proxy available")

// Pool keeps one current proxy until it expires or the gateway rejects it,
// then moves to the next entry of the fetched batch. A new batch is asked
// for once the current one is used up.
type Pool struct {
	provider Provider
	count    int
	buffer   time.Duration

	mu          sync.Mutex
	queue       []Proxy
	current     *Proxy
	rotations   int
	invalidated int
}

type PoolStats struct {
	Rotations   int
	Invalidated int
	Queued      int
}

func NewPool(provider Provider, count int) *Pool {
	if count <= 0 {
		count = 2
	}
	return &Pool{provider: provider, count: count, buffer: 30 * time.Second}
}

// SetExpiryBuffer changes how long before ExpiredAt a proxy is retired.
func (p *Pool) SetExpiryBuffer(buffer time.Duration) {
	if buffer <= 0 {
		return
	}
	p.mu.Lock()
	p.buffer = buffer
	p.mu.Unlock()
}

func (p *Pool) GetOrRefresh(ctx context.Context) (Proxy, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current != nil {
		if !p.current.IsExpired(p.buffer) {
			return *p.current, nil
		}
		logger.Info("proxy expired", "proxy", p.current.Addr())
		p.current = nil
	}

	next, err := p.next(ctx)
	if err != nil {
		return Proxy{}, err
	}
	p.current = &next
	p.rotations++
	logger.Debug("proxy selected", "proxy", next.Addr(), "provider", string(p.provider.Name()))
	return next, nil
}

func (p *Pool) next(ctx context.Context) (Proxy, error) {
	for attempt := 0; attempt < 2; attempt++ {
		for len(p.queue) > 0 {
			head := p.queue[0]
			p.queue = p.queue[1:]
			if !head.IsExpired(p.buffer) {
				return head, nil
			}
		}
		if attempt > 0 {
			break
		}
		batch, err := p.provider.GetProxies(ctx, p.count)
		if err != nil {
			return Proxy{}, err
		}
		p.queue = append(p.queue[:0], batch...)
	}
	return Proxy{}, ErrNoProxyAvailable
}

func (p *Pool) Current() (Proxy, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return Proxy{}, false
	}
	return *p.current, true
}

// InvalidateCurrent drops the current proxy; the next GetOrRefresh rotates.
func (p *Pool) InvalidateCurrent() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return
	}
	p.current = nil
	p.invalidated++
}

func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PoolStats{Rotations: p.rotations, Invalidated: p.invalidated, Queued: len(p.queue)}
}
