package logger

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"
)

// BroadcastHandler writes through to next and mirrors every record into the
// ring buffer and the subscriber bus. Grouped attributes are flattened to
// dotted keys ("http.status").
type BroadcastHandler struct {
	next   slog.Handler
	attrs  map[string]any
	prefix string
}

func NewBroadcastHandler(next slog.Handler) slog.Handler {
	if next == nil {
		return nil
	}
	return &BroadcastHandler{next: next}
}

func (h *BroadcastHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *BroadcastHandler) Handle(ctx context.Context, r slog.Record) error {
	err := h.next.Handle(ctx, r)

	attrs := make(map[string]any, len(h.attrs)+r.NumAttrs())
	for k, v := range h.attrs {
		attrs[k] = v
	}
	r.Attrs(func(a slog.Attr) bool {
		flatten(attrs, h.prefix, a)
		return true
	})

	evt := Event{Level: r.Level.String(), Msg: r.Message}
	if !r.Time.IsZero() {
		evt.Time = r.Time.UTC().Format(time.RFC3339Nano)
	}
	if len(attrs) > 0 {
		evt.Attrs = attrs
	}
	addEvent(evt)

	if defaultBus.active() {
		if b, mErr := json.Marshal(evt); mErr == nil {
			defaultBus.publish(append(b, '\n'))
		}
	}
	return err
}

func (h *BroadcastHandler) WithAttrs(as []slog.Attr) slog.Handler {
	out := h.clone(h.next.WithAttrs(as))
	for _, a := range as {
		flatten(out.attrs, h.prefix, a)
	}
	return out
}

func (h *BroadcastHandler) WithGroup(name string) slog.Handler {
	name = strings.TrimSpace(name)
	if name == "" {
		return h
	}
	out := h.clone(h.next.WithGroup(name))
	out.prefix = h.prefix + name + "."
	return out
}

func (h *BroadcastHandler) clone(next slog.Handler) *BroadcastHandler {
	attrs := make(map[string]any, len(h.attrs))
	for k, v := range h.attrs {
		attrs[k] = v
	}
	return &BroadcastHandler{next: next, attrs: attrs, prefix: h.prefix}
}

func flatten(dst map[string]any, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p += a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			flatten(dst, p, ga)
		}
		return
	}
	dst[prefix+a.Key] = plainValue(a.Value)
}

func plainValue(v slog.Value) any {
	switch v.Kind() {
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time().UTC().Format(time.RFC3339Nano)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return v.Any()
	default:
		return v.Any()
	}
}
