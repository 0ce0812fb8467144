package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsCounters(t *testing.T) {
	m := New()
	m.ObservePage("ok")
	m.ObservePage("ok")
	m.ObservePage("auth")
	m.ObservePage("")
	m.AddRecords(20)
	m.AddRecords(15)
	m.AddRecords(-1)
	m.ObserveRun(35, 3)
	m.ObserveRequest(120 * time.Millisecond)

	if got := testutil.ToFloat64(m.pagesTotal.WithLabelValues("ok")); got != 2 {
		t.Fatalf("pages ok = %v", got)
	}
	if got := testutil.ToFloat64(m.pagesTotal.WithLabelValues("unknown")); got != 1 {
		t.Fatalf("pages unknown = %v", got)
	}
	if got := testutil.ToFloat64(m.recordsTotal); got != 35 {
		t.Fatalf("records = %v", got)
	}
	if got := testutil.ToFloat64(m.filteredTotal); got != 3 {
		t.Fatalf("filtered = %v", got)
	}
	if n := testutil.CollectAndCount(m.requestDuration); n != 1 {
		t.Fatalf("histogram series = %d", n)
	}
}

func TestMetricsHandler(t *testing.T) {
	m := New()
	m.ObservePage("parse")

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `tmall_crawler_pages_total{outcome="parse"} 1`) {
		t.Fatalf("body missing counter:\n%s", rr.Body.String())
	}
}

func TestNoopRecorder(t *testing.T) {
	Noop.ObservePage("ok")
	Noop.AddRecords(1)
	Noop.ObserveRequest(time.Second)
	Noop.ObserveRun(1, 0)
	if Default() == nil || Default() != Default() {
		t.Fatalf("Default should be a stable singleton")
	}
}
