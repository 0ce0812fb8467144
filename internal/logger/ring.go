package logger

import "sync"

type Event struct {
	Time  string         `json:"time"`
	Level string         `json:"level"`
	Msg   string         `json:"msg"`
	Attrs map[string]any `json:"attrs,omitempty"`
}

const defaultRingSize = 2000

type ring struct {
	mu   sync.Mutex
	max  int
	logs []Event
}

var recent = &ring{max: defaultRingSize}

func (r *ring) add(evt Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.max < 1 {
		r.max = 1
	}
	if len(r.logs) < r.max {
		r.logs = append(r.logs, evt)
		return
	}
	copy(r.logs, r.logs[1:])
	r.logs[len(r.logs)-1] = evt
}

func (r *ring) last(limit int) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if limit <= 0 || limit > len(r.logs) {
		limit = len(r.logs)
	}
	return append([]Event(nil), r.logs[len(r.logs)-limit:]...)
}

func (r *ring) reset() {
	r.mu.Lock()
	r.logs = nil
	r.mu.Unlock()
}

func addEvent(evt Event) { recent.add(evt) }

// Recent returns up to limit of the newest log events, oldest first.
func Recent(limit int) []Event {
	return recent.last(limit)
}
