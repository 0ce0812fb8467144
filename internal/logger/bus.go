package logger

import (
	"sync"
	"sync/atomic"
)

const subscriberBuffer = 256

// bus fans encoded events out to websocket subscribers. A subscriber that
// falls behind loses lines instead of stalling the crawler.
type bus struct {
	mu      sync.RWMutex
	nextID  int
	subs    map[int]chan []byte
	dropped atomic.Int64
}

func newBus() *bus {
	return &bus{subs: map[int]chan []byte{}}
}

func (b *bus) subscribe(buffer int) (<-chan []byte, func()) {
	ch := make(chan []byte, max(buffer, 1))
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

func (b *bus) active() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs) > 0
}

func (b *bus) publish(msg []byte) {
	if len(msg) == 0 {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- msg:
		default:
			b.dropped.Add(1)
		}
	}
}

var defaultBus = newBus()

// Subscribe streams every log event as one JSON line. Call the returned func
// to stop; it closes the channel.
func Subscribe() (<-chan []byte, func()) {
	return defaultBus.subscribe(subscriberBuffer)
}

// Dropped counts lines skipped because a subscriber was not reading.
func Dropped() int64 {
	return defaultBus.dropped.Load()
}
