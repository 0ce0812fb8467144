package tmall

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"tmall-review-crawler/internal/crawler"
	"tmall-review-crawler/internal/proxy"
)

type mockProvider struct {
	proxies []proxy.Proxy
}

func (m *mockProvider) Name() proxy.ProviderName { return proxy.ProviderStatic }

func (m *mockProvider) GetProxies(ctx context.Context, num int) ([]proxy.Proxy, error) {
	return m.proxies, nil
}

func TestClientSendsHeadersAndQuery(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		_, _ = w.Write([]byte(`mtopjsonppcdetail11({"ret":["SUCCESS::ok"],"data":{"rateList":[]}})`))
	}))
	defer srv.Close()

	c := NewClient(ClientOptions{BaseURL: srv.URL + "/h5/mtop.taobao.rate.detaillist.get/6.0/"})
	params := BuildQuery(samplePayload, "sig", 42, "mtopjsonppcdetail11")
	body, err := c.FetchPage(context.Background(), params, testCookie)
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if cls, err := ClassifyResponse(body); err != nil || cls.Status != StatusEmpty {
		t.Fatalf("classify = %+v, %v", cls, err)
	}

	if got.URL.Path != "/h5/mtop.taobao.rate.detaillist.get/6.0/" {
		t.Fatalf("path = %s", got.URL.Path)
	}
	q := got.URL.Query()
	if q.Get("data") != samplePayload || q.Get("appKey") != AppKey || q.Get("sign") != "sig" || q.Get("callback") != "mtopjsonppcdetail11" {
		t.Fatalf("query = %v", q)
	}
	if got.Header.Get("Cookie") != testCookie {
		t.Fatalf("cookie = %q", got.Header.Get("Cookie"))
	}
	if got.Header.Get("Referer") != "https://detail.tmall.com/" {
		t.Fatalf("referer = %q", got.Header.Get("Referer"))
	}
	if got.Header.Get("User-Agent") != defaultUserAgent {
		t.Fatalf("user-agent = %q", got.Header.Get("User-Agent"))
	}
	if got.Header.Get("Sec-Fetch-Dest") != "script" {
		t.Fatalf("sec-fetch-dest = %q", got.Header.Get("Sec-Fetch-Dest"))
	}
}

func TestClientSendsCookieUnchanged(t *testing.T) {
	var cookie string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie = r.Header.Get("Cookie")
		_, _ = w.Write([]byte(`mtopjsonppcdetail11({"ret":["SUCCESS::ok"],"data":{}})`))
	}))
	defer srv.Close()

	raw := "_m_h5_tk=ABC_1;b=2 ;  c=%E5%A4%A9"
	c := NewClient(ClientOptions{BaseURL: srv.URL})
	if _, err := c.FetchPage(context.Background(), map[string]string{"data": "{}"}, raw); err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if cookie != raw {
		t.Fatalf("cookie = %q, want %q", cookie, raw)
	}
}

func TestClientHTTPErrorKinds(t *testing.T) {
	code := http.StatusForbidden
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
	}))
	defer srv.Close()

	c := NewClient(ClientOptions{BaseURL: srv.URL})
	_, err := c.FetchPage(context.Background(), map[string]string{}, "")
	if crawler.KindOf(err) != crawler.ErrorKindForbidden {
		t.Fatalf("403 kind = %s (%v)", crawler.KindOf(err), err)
	}
	code = http.StatusBadGateway
	_, err = c.FetchPage(context.Background(), map[string]string{}, "")
	if crawler.KindOf(err) != crawler.ErrorKindHTTP {
		t.Fatalf("502 kind = %s (%v)", crawler.KindOf(err), err)
	}
}

func TestClientRetriesServerErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := NewClient(ClientOptions{BaseURL: srv.URL, RetryCount: 2, RetryWait: 1, RetryMaxWait: 1})
	body, err := c.FetchPage(context.Background(), nil, "")
	if err != nil || body != "ok" || calls != 3 {
		t.Fatalf("body=%q err=%v calls=%d", body, err, calls)
	}
}

func TestClientEnsureProxySetsSwitcher(t *testing.T) {
	pool := proxy.NewPool(&mockProvider{proxies: []proxy.Proxy{{IP: "127.0.0.1", Port: 8080}}}, 1)
	c := NewClient(ClientOptions{ProxyPool: pool})
	if err := c.ensureProxy(context.Background()); err != nil {
		t.Fatalf("ensureProxy err: %v", err)
	}
	u, err := c.switcher.ProxyFunc(&http.Request{})
	if err != nil {
		t.Fatalf("ProxyFunc err: %v", err)
	}
	if u == nil || u.Host != "127.0.0.1:8080" {
		t.Fatalf("unexpected proxy url: %v", u)
	}
}
