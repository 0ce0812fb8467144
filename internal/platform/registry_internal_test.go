package platform

import (
	"context"
	"testing"

	"tmall-review-crawler/internal/crawler"
)

type mockRunner struct{}

func (m *mockRunner) Run(ctx context.Context, req crawler.Request) (crawler.Result, error) {
	return crawler.NewResult(req), nil
}

func TestRegisterAndNew(t *testing.T) {
	mu.Lock()
	orig := entries
	entries = map[string]entry{}
	mu.Unlock()
	t.Cleanup(func() {
		mu.Lock()
		entries = orig
		mu.Unlock()
	})

	Register("foo", []string{"bar", "Baz"}, func() crawler.Runner { return &mockRunner{} })

	if !Exists("foo") || !Exists("bar") || !Exists("baz") {
		t.Fatalf("expected Exists to be true for registered names")
	}
	if Exists("unknown") {
		t.Fatalf("expected Exists to be false for unknown")
	}
	if got := Canonical(" BAR "); got != "foo" {
		t.Fatalf("Canonical(bar) = %q", got)
	}
	if names := Names(); len(names) != 1 || names[0] != "foo" {
		t.Fatalf("Names = %#v", names)
	}

	for _, n := range []string{"foo", "bar", "baz"} {
		if _, err := New(n); err != nil {
			t.Fatalf("New(%s) err: %v", n, err)
		}
	}
	if _, err := New("unknown"); err == nil {
		t.Fatalf("expected error for unknown platform")
	}
}

func TestRegisterDuplicatePanics(t *testing.T) {
	mu.Lock()
	orig := entries
	entries = map[string]entry{}
	mu.Unlock()
	t.Cleanup(func() {
		mu.Lock()
		entries = orig
		mu.Unlock()
	})

	Register("foo", nil, func() crawler.Runner { return &mockRunner{} })
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on duplicate name")
		}
	}()
	Register("bar", []string{"FOO"}, func() crawler.Runner { return &mockRunner{} })
}
