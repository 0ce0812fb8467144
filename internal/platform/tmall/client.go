package tmall

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"tmall-review-crawler/internal/crawler"
	"tmall-review-crawler/internal/logger"
	"tmall-review-crawler/internal/proxy"
)

const platformName = "tmall"

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/136.0.0.0 Safari/537.36 Edg/136.0.0.0"

// Transport is the network boundary of the fetcher: one GET of the review
// list endpoint with the given query and cookie, returning the raw body.
type Transport interface {
	FetchPage(ctx context.Context, params map[string]string, cookie string) (string, error)
}

type ClientOptions struct {
	BaseURL      string
	UserAgent    string
	Timeout      time.Duration
	RetryCount   int
	RetryWait    time.Duration
	RetryMaxWait time.Duration
	MaxRPS       float64
	ProxyPool    *proxy.Pool
}

type Client struct {
	httpClient *resty.Client
	baseURL    string
	limiter    *rate.Limiter
	switcher   *proxy.Switcher
	proxyPool  *proxy.Pool
}

func defaultHeaders(userAgent string) map[string]string {
	return map[string]string{
		"Cache-Control":      "no-cache",
		"Connection":         "keep-alive",
		"Host":               "h5api.m.tmall.com",
		"accept":             "*/*",
		"accept-language":    "zh-CN,zh;q=0.9,en;q=0.8,en-GB;q=0.7,en-US;q=0.6",
		"referer":            "https://detail.tmall.com/",
		"sec-ch-ua":          `"Chromium";v="136", "Microsoft Edge";v="136", "Not.A/Brand";v="99"`,
		"sec-ch-ua-mobile":   "?0",
		"sec-ch-ua-platform": `"Windows"`,
		"sec-fetch-dest":     "script",
		"sec-fetch-mode":     "no-cors",
		"sec-fetch-site":     "same-site",
		"user-agent":         userAgent,
	}
}

func NewClient(opts ClientOptions) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = Endpoint
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.RetryWait <= 0 {
		opts.RetryWait = 500 * time.Millisecond
	}
	if opts.RetryMaxWait <= 0 {
		opts.RetryMaxWait = 4 * time.Second
	}

	switcher := proxy.NewSwitcher()
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = switcher.ProxyFunc

	rc := resty.NewWithClient(&http.Client{
		Transport: transport,
		Timeout:   opts.Timeout,
	})
	rc.SetHeaders(defaultHeaders(opts.UserAgent))
	if opts.RetryCount > 0 {
		rc.SetRetryCount(opts.RetryCount)
		rc.SetRetryWaitTime(opts.RetryWait)
		rc.SetRetryMaxWaitTime(opts.RetryMaxWait)
		rc.AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return crawler.ShouldRetryError(err)
			}
			if r == nil {
				return false
			}
			return crawler.ShouldRetryStatus(r.StatusCode())
		})
	}

	c := &Client{
		httpClient: rc,
		baseURL:    opts.BaseURL,
		switcher:   switcher,
		proxyPool:  opts.ProxyPool,
	}
	if opts.MaxRPS > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.MaxRPS), 1)
	}
	return c
}

func (c *Client) ensureProxy(ctx context.Context) error {
	if c.proxyPool == nil || c.switcher == nil {
		return nil
	}
	p, err := c.proxyPool.GetOrRefresh(ctx)
	if err != nil {
		return err
	}
	if p.Addr() == c.switcher.Addr() {
		return nil
	}
	logger.Info("using proxy", "proxy", p.Addr())
	return c.switcher.Use(p)
}

// FetchPage issues one review list request. The cookie is sent verbatim.
func (c *Client) FetchPage(ctx context.Context, params map[string]string, cookie string) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}
	if err := c.ensureProxy(ctx); err != nil {
		return "", crawler.NewError(crawler.ErrorKindNetwork, platformName, "proxy: "+err.Error(), err)
	}

	req := c.httpClient.R().SetContext(ctx).SetQueryParams(params)
	// The cookie goes out as given; only a blank one is left off.
	if strings.TrimSpace(cookie) != "" {
		req.SetHeader("Cookie", cookie)
	}
	r, err := req.Get(c.baseURL)
	if err != nil {
		return "", err
	}
	if r.IsError() {
		if c.proxyPool != nil && crawler.ShouldInvalidateProxyStatus(r.StatusCode()) {
			logger.Warn("proxy rejected, rotating", "proxy", c.switcher.Addr(), "status", r.StatusCode())
			c.proxyPool.InvalidateCurrent()
			c.switcher.Clear()
		}
		return "", crawler.NewHTTPStatusError(platformName, c.baseURL, r.StatusCode(), r.String())
	}
	return r.String(), nil
}
