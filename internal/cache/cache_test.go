package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"tmall-review-crawler/internal/config"
)

type page struct {
	Page    int              `json:"page"`
	Records []map[string]any `json:"records"`
}

func exercise(t *testing.T, c Cache) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := c.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("Get(missing) ok=%v err=%v", ok, err)
	}
	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	b, ok, err := c.Get(ctx, "k")
	if err != nil || !ok || string(b) != "v" {
		t.Fatalf("Get(k) = %q ok=%v err=%v", b, ok, err)
	}
	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Fatalf("expected deleted key to be gone")
	}

	in := page{Page: 2, Records: []map[string]any{{"id": "1"}, {"id": "2"}}}
	if err := SetJSON(ctx, c, "tmall:page:2", in, time.Minute); err != nil {
		t.Fatalf("SetJSON: %v", err)
	}
	out, ok, err := GetJSON[page](ctx, c, "tmall:page:2")
	if err != nil || !ok || out.Page != 2 || len(out.Records) != 2 || out.Records[1]["id"] != "2" {
		t.Fatalf("GetJSON = %#v ok=%v err=%v", out, ok, err)
	}
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()
	exercise(t, c)

	ctx := context.Background()
	_ = c.Set(ctx, "short", []byte("x"), 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	if _, ok, _ := c.Get(ctx, "short"); ok {
		t.Fatalf("expected expired entry")
	}
}

func TestRedisCache(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()

	c, err := NewRedisCache(RedisOptions{Addr: mr.Addr(), Prefix: "test:"})
	if err != nil {
		t.Fatalf("NewRedisCache: %v", err)
	}
	defer c.Close()
	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	exercise(t, c)

	_ = c.Set(context.Background(), "ttl", []byte("x"), time.Minute)
	if !mr.Exists("test:ttl") {
		t.Fatalf("expected prefixed key in redis")
	}
	mr.FastForward(2 * time.Minute)
	if _, ok, _ := c.Get(context.Background(), "ttl"); ok {
		t.Fatalf("expected ttl expiry")
	}
}

func TestNewFromConfig(t *testing.T) {
	if c := NewFromConfig(config.Config{CacheBackend: "none"}); c != nil {
		t.Fatalf("expected nil cache when disabled")
	}
	if c, ok := NewFromConfig(config.Config{CacheBackend: "redis"}).(*MemoryCache); !ok {
		t.Fatalf("expected memory fallback without addr")
	} else {
		c.Close()
	}

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()
	c := NewFromConfig(config.Config{CacheBackend: "redis", RedisAddr: mr.Addr()})
	if _, ok := c.(*RedisCache); !ok {
		t.Fatalf("expected redis cache, got %T", c)
	}
	_ = c.Close()

	if got := DefaultTTL(config.Config{CacheDefaultTTLSec: 600}); got != 10*time.Minute {
		t.Fatalf("DefaultTTL = %v", got)
	}

	var nilCache Cache
	if _, ok, err := GetJSON[page](context.Background(), nilCache, "x"); ok || err != nil {
		t.Fatalf("nil cache GetJSON ok=%v err=%v", ok, err)
	}
}

func TestMemoryCacheJanitorSweeps(t *testing.T) {
	c := newMemoryCache(5 * time.Millisecond)
	defer c.Close()
	_ = c.Set(context.Background(), "a", []byte("1"), time.Millisecond)
	_ = c.Set(context.Background(), "b", []byte("2"), 0)
	deadline := time.Now().Add(time.Second)
	for c.Len() != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if c.Len() != 1 {
		t.Fatalf("Len = %d, want 1 after sweep", c.Len())
	}
}

func TestRedisCacheURL(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()

	c, err := NewRedisCache(RedisOptions{Addr: "redis://" + mr.Addr() + "/0"})
	if err != nil {
		t.Fatalf("NewRedisCache: %v", err)
	}
	defer c.Close()
	if err := c.Set(context.Background(), "page", []byte("1"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if !mr.Exists("tmall_crawler:page") {
		t.Fatalf("expected default prefix, keys=%v", mr.Keys())
	}
	if _, err := NewRedisCache(RedisOptions{}); err == nil {
		t.Fatalf("expected error for empty addr")
	}
	if _, err := NewRedisCache(RedisOptions{Addr: "redis://%zz"}); err == nil {
		t.Fatalf("expected error for bad url")
	}
}
