package tmall

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"tmall-review-crawler/internal/cache"
	"tmall-review-crawler/internal/config"
	"tmall-review-crawler/internal/crawler"
)

func TestRunsShareResources(t *testing.T) {
	tmp := useFileStore(t)
	res := &Resources{Cache: cache.NewMemoryCache(), CacheTTL: time.Minute}
	defer res.Close()

	tr := &fakeTransport{bodies: map[int]string{1: successBody(pageRecords(1, 3))}}
	newRun := func() *Crawler {
		opts := OptionsFromConfig(config.Config{Cookies: testCookie}, res)
		opts.Fetcher.sleep = func(context.Context, time.Duration) bool { return true }
		return NewCrawlerWithTransport(tr, opts)
	}
	first, second := newRun(), newRun()
	if first.fetcher.opts.Cache != second.fetcher.opts.Cache {
		t.Fatalf("crawlers built from the same resources use different caches")
	}

	req := crawler.Request{ItemIDs: []string{"714871191114"}, Pages: 1, ExportPath: filepath.Join(tmp, "a.csv")}
	if _, err := first.Run(context.Background(), req); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	var rep ItemReport
	second.Sink = func(r ItemReport) { rep = r }
	out, err := second.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if tr.callCount() != 1 {
		t.Fatalf("transport calls = %d, want 1", tr.callCount())
	}
	if out.Records != 3 || len(rep.Fetch.Pages) != 1 || !rep.Fetch.Pages[0].Cached {
		t.Fatalf("second run records=%d pages=%+v", out.Records, rep.Fetch.Pages)
	}
}

func TestSharedResourcesLifecycle(t *testing.T) {
	useFileStore(t)
	t.Cleanup(func() { _ = CloseShared() })

	a := Shared()
	if a.Cache == nil {
		t.Fatalf("shared cache not built")
	}
	if b := Shared(); b != a {
		t.Fatalf("Shared built a second set")
	}
	if err := CloseShared(); err != nil {
		t.Fatalf("CloseShared: %v", err)
	}
	if c := Shared(); c == a {
		t.Fatalf("Shared after CloseShared returned the closed set")
	}
}
