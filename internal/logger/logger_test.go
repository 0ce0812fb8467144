package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestInitMirrorsIntoRingAndBus(t *testing.T) {
	recent.reset()
	var buf bytes.Buffer
	Init(&buf, "debug", "json")

	ch, cancel := Subscribe()
	defer cancel()

	Info("page fetched", "item_id", "714871191114", "page", 2)

	if !strings.Contains(buf.String(), `"msg":"page fetched"`) {
		t.Fatalf("base handler output = %q", buf.String())
	}

	evts := Recent(10)
	if len(evts) != 1 {
		t.Fatalf("Recent len = %d, want 1", len(evts))
	}
	if evts[0].Msg != "page fetched" || evts[0].Attrs["item_id"] != "714871191114" {
		t.Fatalf("event = %#v", evts[0])
	}

	select {
	case b := <-ch:
		var got Event
		if err := json.Unmarshal(b, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got.Level != "INFO" || got.Attrs["page"] != float64(2) {
			t.Fatalf("bus event = %#v", got)
		}
	case <-time.After(time.Second):
		t.Fatalf("no bus message")
	}
}

func TestInitRespectsLevel(t *testing.T) {
	recent.reset()
	var buf bytes.Buffer
	Init(&buf, "warn", "text")

	Info("dropped")
	Warn("kept", "kind", "auth")

	if strings.Contains(buf.String(), "dropped") {
		t.Fatalf("info line written at warn level: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "kind=auth") {
		t.Fatalf("text output = %q", buf.String())
	}
	if n := len(Recent(0)); n != 1 {
		t.Fatalf("Recent len = %d, want 1", n)
	}
}

func TestRingKeepsNewest(t *testing.T) {
	r := &ring{max: 3}
	for _, m := range []string{"a", "b", "c", "d"} {
		r.add(Event{Msg: m})
	}
	got := r.last(0)
	if len(got) != 3 || got[0].Msg != "b" || got[2].Msg != "d" {
		t.Fatalf("ring = %#v", got)
	}
	if got := r.last(1); got[0].Msg != "d" {
		t.Fatalf("last(1) = %#v", got)
	}
}

func TestMaskAndTruncate(t *testing.T) {
	if got := Mask("ABCDEF123"); got != "AB*****23" {
		t.Fatalf("Mask = %q", got)
	}
	if got := Mask("abc"); got != "***" {
		t.Fatalf("Mask short = %q", got)
	}
	if got := Truncate("天猫评论列表", 2); got != "天猫..." {
		t.Fatalf("Truncate = %q", got)
	}
	if got := Truncate("ok", 10); got != "ok" {
		t.Fatalf("Truncate short = %q", got)
	}
}

func TestBroadcastFlattensGroupsAndErrors(t *testing.T) {
	recent.reset()
	Init(&bytes.Buffer{}, "debug", "json")

	log := slog.Default().With("item_id", "1").WithGroup("http")
	log.Warn("request failed", "status", 403, "err", errors.New("forbidden"))

	evts := Recent(1)
	if len(evts) != 1 {
		t.Fatalf("Recent len = %d", len(evts))
	}
	a := evts[0].Attrs
	if a["item_id"] != "1" || a["http.status"] != int64(403) || a["http.err"] != "forbidden" {
		t.Fatalf("attrs = %#v", a)
	}
}

func TestSlowSubscriberDropsLines(t *testing.T) {
	b := newBus()
	ch, cancel := b.subscribe(1)
	b.publish([]byte("a"))
	b.publish([]byte("b"))
	if got := string(<-ch); got != "a" {
		t.Fatalf("first line = %q", got)
	}
	if b.dropped.Load() != 1 {
		t.Fatalf("dropped = %d", b.dropped.Load())
	}
	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatalf("channel not closed")
	}
	if b.active() {
		t.Fatalf("bus still has subscribers")
	}
}
