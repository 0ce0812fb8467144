package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tmall-review-crawler/internal/config"
	"tmall-review-crawler/internal/crawler"
	"tmall-review-crawler/internal/platform/tmall"
)

func useTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	prev := config.AppConfig
	config.AppConfig = config.Config{Platform: "tmall", StoreBackend: "file", DataDir: dir}
	t.Cleanup(func() { config.AppConfig = prev })
	return dir
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	r := httptest.NewRequest(method, path, rd)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, r)
	return w
}

func waitIdle(t *testing.T, mgr *TaskManager) Status {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if st := mgr.Status(); st.State == "idle" && st.FinishedAt > 0 {
			return st
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("task did not finish: %+v", mgr.Status())
	return Status{}
}

func TestServerRunStopStatus(t *testing.T) {
	useTestConfig(t)
	started := make(chan Job, 1)
	runFn := func(ctx context.Context, job Job) (crawler.Result, error) {
		started <- job
		<-ctx.Done()
		return crawler.Result{Canceled: true}, nil
	}
	mgr := NewTaskManagerWithRunner(runFn)
	srv := NewServer(mgr)

	if w := doJSON(t, srv, http.MethodGet, "/healthz", nil); w.Code != http.StatusOK {
		t.Fatalf("healthz code=%d body=%s", w.Code, w.Body.String())
	}

	w := doJSON(t, srv, http.MethodPost, "/run", RunRequest{ItemID: "714871191114", Pages: 2, OrderType: "newest", Cookie: "_m_h5_tk=abc_1"})
	if w.Code != http.StatusAccepted {
		t.Fatalf("run code=%d body=%s", w.Code, w.Body.String())
	}

	var job Job
	select {
	case job = <-started:
	case <-time.After(2 * time.Second):
		t.Fatalf("runner did not start")
	}
	if len(job.Request.ItemIDs) != 1 || job.Request.ItemIDs[0] != "714871191114" {
		t.Fatalf("item ids = %#v", job.Request.ItemIDs)
	}
	if job.Request.Pages != 2 || job.Request.OrderType != crawler.OrderNewest || job.Cookie != "_m_h5_tk=abc_1" {
		t.Fatalf("job = %+v", job)
	}
	if job.OnEvent == nil || job.Sink == nil {
		t.Fatalf("job hooks not set")
	}

	w = doJSON(t, srv, http.MethodGet, "/status", nil)
	var st Status
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("status body: %v", err)
	}
	if st.State != "running" || st.Pages != 2 {
		t.Fatalf("status = %+v", st)
	}

	if w := doJSON(t, srv, http.MethodPost, "/run", RunRequest{ItemID: "1"}); w.Code != http.StatusConflict {
		t.Fatalf("second run code=%d body=%s", w.Code, w.Body.String())
	}

	w = doJSON(t, srv, http.MethodPost, "/stop", nil)
	if w.Code != http.StatusAccepted || !strings.Contains(w.Body.String(), `"stopped":true`) {
		t.Fatalf("stop code=%d body=%s", w.Code, w.Body.String())
	}
	st = waitIdle(t, mgr)
	if st.Result == nil || !st.Result.Canceled {
		t.Fatalf("result = %+v", st.Result)
	}
	if mgr.Stop() {
		t.Fatalf("Stop on idle manager returned true")
	}
}

func TestServerRunValidation(t *testing.T) {
	useTestConfig(t)
	runFn := func(ctx context.Context, job Job) (crawler.Result, error) { return crawler.Result{}, nil }
	srv := NewServer(NewTaskManagerWithRunner(runFn))

	cases := []struct {
		name string
		body string
	}{
		{"no item", `{}`},
		{"negative pages", `{"item_id":"1","pages":-1}`},
		{"unknown field", `{"item_id":"1","fields":["nope"]}`},
		{"bad format", `{"item_id":"1","format":"pdf"}`},
		{"unknown key", `{"item_id":"1","platform":"xhs"}`},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(http.MethodPost, "/run", strings.NewReader(tc.body))
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, r)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: code=%d body=%s", tc.name, w.Code, w.Body.String())
		}
	}
}

func testReport() tmall.ItemReport {
	return tmall.ItemReport{
		ItemID: "714871191114",
		Fetch: tmall.FetchResult{
			ItemID: "714871191114",
			Records: []tmall.Record{
				{"id": "1", "userNick": "t***1", "feedback": "很好", "auctionNumId": "714871191114", "auctionTitle": "测试商品"},
				{"id": "2", "userNick": "a***b", "feedback": config.DefaultEmptyReviewText, "auctionNumId": "714871191114", "auctionTitle": "测试商品"},
			},
		},
	}
}

func TestServerProgressAndExport(t *testing.T) {
	dataDir := useTestConfig(t)
	runFn := func(ctx context.Context, job Job) (crawler.Result, error) {
		job.OnEvent(tmall.Event{Type: tmall.EventProgress, ItemID: "714871191114", Page: 1, Pages: 1})
		job.OnEvent(tmall.Event{Type: tmall.EventPage, ItemID: "714871191114", Page: 1, Pages: 1, Records: 2, Message: "ok"})
		job.Sink(testReport())
		return crawler.Result{Records: 2, Rows: 2}, nil
	}
	mgr := NewTaskManagerWithRunner(runFn)
	srv := NewServer(mgr)

	if w := doJSON(t, srv, http.MethodPost, "/export", ExportRequest{}); w.Code != http.StatusNotFound {
		t.Fatalf("export before run code=%d body=%s", w.Code, w.Body.String())
	}

	if w := doJSON(t, srv, http.MethodPost, "/run", RunRequest{ItemID: "714871191114", Pages: 1}); w.Code != http.StatusAccepted {
		t.Fatalf("run code=%d body=%s", w.Code, w.Body.String())
	}
	st := waitIdle(t, mgr)
	if st.Records != 2 || st.Page != 1 || st.CurrentItem != "714871191114" {
		t.Fatalf("status = %+v", st)
	}
	if st.Result == nil || st.Result.Rows != 2 || st.LastError != "" {
		t.Fatalf("result = %+v last_error=%q", st.Result, st.LastError)
	}

	filter := true
	w := doJSON(t, srv, http.MethodPost, "/export", ExportRequest{
		Fields:      []string{"userNick", "feedback"},
		FilterEmpty: &filter,
		Format:      "csv",
		Path:        "out/reviews",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("export code=%d body=%s", w.Code, w.Body.String())
	}
	var resp exportResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Rows != 1 || resp.Filtered != 1 || resp.Columns != 2 {
		t.Fatalf("export response = %+v", resp)
	}
	if filepath.Base(resp.Path) != "reviews.csv" {
		t.Fatalf("export path = %q", resp.Path)
	}
	b, err := os.ReadFile(filepath.Join(dataDir, "out", "reviews.csv"))
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if got, want := string(b), "\xEF\xBB\xBF用户昵称,评论内容\nt***1,很好\n"; got != want {
		t.Fatalf("csv = %q, want %q", got, want)
	}

	// The default name counts fetched reviews, not the rows left after filtering.
	w = doJSON(t, srv, http.MethodPost, "/export", ExportRequest{Format: "json", FilterEmpty: &filter})
	if w.Code != http.StatusOK {
		t.Fatalf("default export code=%d body=%s", w.Code, w.Body.String())
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Rows != 1 || !strings.HasPrefix(filepath.Base(resp.Path), "714871191114_测试商品_2条评论_") || filepath.Ext(resp.Path) != ".json" {
		t.Fatalf("default export path = %q", resp.Path)
	}

	if w := doJSON(t, srv, http.MethodPost, "/export", ExportRequest{Path: "../escape.csv"}); w.Code != http.StatusForbidden {
		t.Fatalf("escaping export code=%d body=%s", w.Code, w.Body.String())
	}
	if w := doJSON(t, srv, http.MethodPost, "/export", ExportRequest{Fields: []string{"bogus"}}); w.Code != http.StatusBadRequest {
		t.Fatalf("bad fields export code=%d", w.Code)
	}
}

func TestServerFieldsAndMetrics(t *testing.T) {
	useTestConfig(t)
	srv := NewServer(NewTaskManagerWithRunner(func(context.Context, Job) (crawler.Result, error) { return crawler.Result{}, nil }))

	w := doJSON(t, srv, http.MethodGet, "/fields", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("fields code=%d", w.Code)
	}
	var resp struct {
		Fields []tmall.Field `json:"fields"`
		Common []string      `json:"common"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Fields) != len(tmall.AllFields()) || len(resp.Common) == 0 {
		t.Fatalf("fields=%d common=%d", len(resp.Fields), len(resp.Common))
	}
	if resp.Fields[0].Path != "userNick" || resp.Fields[0].Label != "用户昵称" {
		t.Fatalf("first field = %+v", resp.Fields[0])
	}

	w = doJSON(t, srv, http.MethodGet, "/metrics", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "tmall_crawler_records_total") {
		t.Fatalf("metrics code=%d body=%s", w.Code, w.Body.String())
	}
}
