package tmall

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tmall-review-crawler/internal/cache"
	"tmall-review-crawler/internal/crawler"
	"tmall-review-crawler/internal/logger"
	"tmall-review-crawler/internal/metrics"
)

// AuthHint replaces LastError when the gateway rejected the token.
const AuthHint = "鉴权失败，请更新Cookie和token"

type FetchRequest struct {
	ItemID    string
	Pages     int
	Cookie    string
	OrderType crawler.OrderType
	RateType  string
}

type EventType string

const (
	EventLog      EventType = "log"
	EventProgress EventType = "progress"
	EventPage     EventType = "page"
	EventDone     EventType = "done"
)

// Event is what a run reports to its caller while it is in progress.
type Event struct {
	Type    EventType `json:"type"`
	ItemID  string    `json:"item_id,omitempty"`
	Page    int       `json:"page,omitempty"`
	Pages   int       `json:"pages,omitempty"`
	Records int       `json:"records,omitempty"`
	Level   string    `json:"level,omitempty"`
	Message string    `json:"message,omitempty"`
	Kind    string    `json:"kind,omitempty"`
}

type PageOutcome struct {
	Page    int    `json:"page"`
	Records int    `json:"records"`
	Kind    string `json:"kind"`
	Cached  bool   `json:"cached,omitempty"`
	Err     string `json:"err,omitempty"`
}

type FetchResult struct {
	ItemID       string         `json:"item_id"`
	Records      []Record       `json:"-"`
	Pages        []PageOutcome  `json:"pages"`
	LastError    string         `json:"last_error,omitempty"`
	FailureKinds map[string]int `json:"failure_kinds,omitempty"`
	Canceled     bool           `json:"canceled,omitempty"`
	TokenFound   bool           `json:"token_found"`
}

type FetcherOptions struct {
	MinSleep     time.Duration
	MaxSleep     time.Duration
	RequireToken bool
	Cache        cache.Cache
	CacheTTL     time.Duration
	Metrics      metrics.Recorder
	Signer       *Signer

	now   func() time.Time
	sleep func(context.Context, time.Duration) bool
}

type Fetcher struct {
	transport Transport
	opts      FetcherOptions
}

func NewFetcher(t Transport, opts FetcherOptions) *Fetcher {
	if opts.Metrics == nil {
		opts.Metrics = metrics.Noop
	}
	if opts.Signer == nil {
		opts.Signer = NewSigner()
	}
	if opts.now == nil {
		opts.now = time.Now
	}
	if opts.sleep == nil {
		opts.sleep = crawler.Sleep
	}
	if opts.MaxSleep < opts.MinSleep {
		opts.MaxSleep = opts.MinSleep
	}
	return &Fetcher{transport: t, opts: opts}
}

// Fetch walks pages 1..Pages in order. A failing page is recorded and the run
// moves on; the returned error is only for a request that cannot start.
// Cancellation is honoured between pages, never during a request.
func (f *Fetcher) Fetch(ctx context.Context, req FetchRequest, events chan<- Event) (FetchResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	req.ItemID = strings.TrimSpace(req.ItemID)
	out := FetchResult{ItemID: req.ItemID}
	if req.ItemID == "" {
		return out, crawler.NewError(crawler.ErrorKindInvalidInput, platformName, "item id is empty", nil)
	}
	if req.Pages <= 0 {
		return out, crawler.NewError(crawler.ErrorKindInvalidInput, platformName, fmt.Sprintf("page count must be positive, got %d", req.Pages), nil)
	}

	token, ok := ExtractToken(req.Cookie)
	out.TokenFound = ok
	if ok {
		logger.Info("token extracted", "item_id", req.ItemID, "token", logger.Mask(token))
	} else {
		if f.opts.RequireToken {
			return out, crawler.NewError(crawler.ErrorKindMissingToken, platformName, "_m_h5_tk not found in cookie", nil)
		}
		logger.Warn("token not found in cookie, requests will fail signature checks", "item_id", req.ItemID)
		f.emit(ctx, events, Event{Type: EventLog, ItemID: req.ItemID, Level: "warn", Message: "未能从Cookie中提取token"})
	}

	for page := 1; page <= req.Pages; page++ {
		if ctx.Err() != nil {
			out.Canceled = true
			break
		}
		f.emit(ctx, events, Event{
			Type:    EventProgress,
			ItemID:  req.ItemID,
			Page:    page,
			Pages:   req.Pages,
			Message: fmt.Sprintf("正在爬取第 %d/%d 页", page, req.Pages),
		})

		records, po := f.fetchPage(ctx, req, token, page)
		out.Pages = append(out.Pages, po)
		out.Records = append(out.Records, records...)
		f.opts.Metrics.ObservePage(po.Kind)
		f.opts.Metrics.AddRecords(len(records))

		if po.Err != "" {
			logger.Warn("page failed", "item_id", req.ItemID, "page", page, "pages", req.Pages, "kind", po.Kind, "err", po.Err)
			f.emit(ctx, events, Event{Type: EventPage, ItemID: req.ItemID, Page: page, Pages: req.Pages, Level: "warn", Kind: po.Kind, Message: po.Err})
		} else {
			logger.Info("page fetched", "item_id", req.ItemID, "page", page, "pages", req.Pages, "records", po.Records, "cached", po.Cached)
			f.emit(ctx, events, Event{
				Type:    EventPage,
				ItemID:  req.ItemID,
				Page:    page,
				Pages:   req.Pages,
				Records: po.Records,
				Kind:    po.Kind,
				Message: fmt.Sprintf("成功获取第 %d 页的 %d 条评论", page, po.Records),
			})
		}

		if page == req.Pages || po.Cached {
			continue
		}
		if !f.opts.sleep(ctx, crawler.Jitter(f.opts.MinSleep, f.opts.MaxSleep)) {
			out.Canceled = true
			break
		}
	}

	for _, po := range out.Pages {
		if po.Err == "" {
			continue
		}
		out.LastError = po.Err
		if po.Kind == string(crawler.ErrorKindAuth) {
			out.LastError = AuthHint
		}
		out.FailureKinds = crawler.AddFailureKind(out.FailureKinds, crawler.Error{Kind: crawler.ErrorKind(po.Kind)})
	}

	msg := fmt.Sprintf("爬取完成，共获取 %d 条评论", len(out.Records))
	if len(out.Records) == 0 {
		msg = "爬取完成，但未获取到评论，请检查商品ID或查看日志"
	}
	if out.Canceled {
		msg = fmt.Sprintf("爬取已取消，已获取 %d 条评论", len(out.Records))
	}
	logger.Info("fetch finished", "item_id", req.ItemID, "records", len(out.Records), "pages", len(out.Pages), "canceled", out.Canceled, "last_error", out.LastError)
	f.emit(ctx, events, Event{Type: EventDone, ItemID: req.ItemID, Pages: req.Pages, Records: len(out.Records), Message: msg})
	return out, nil
}

func (f *Fetcher) fetchPage(ctx context.Context, req FetchRequest, token string, page int) ([]Record, PageOutcome) {
	po := PageOutcome{Page: page}
	key := pageCacheKey(req, page)

	if records, ok := f.cachedPage(ctx, key); ok {
		po.Records = len(records)
		po.Kind = "cached"
		po.Cached = true
		return records, po
	}

	records, err := f.requestPage(ctx, req, token, page)
	if err != nil {
		po.Kind = string(crawler.KindOf(err))
		po.Err = err.Error()
		return nil, po
	}
	po.Records = len(records)
	po.Kind = "ok"
	if len(records) == 0 {
		po.Kind = "empty"
		return nil, po
	}
	if f.opts.Cache != nil {
		if err := cache.SetJSON(ctx, f.opts.Cache, key, records, f.opts.CacheTTL); err != nil {
			logger.Debug("page cache set failed", "key", key, "err", err)
		}
	}
	return records, po
}

func (f *Fetcher) requestPage(ctx context.Context, req FetchRequest, token string, page int) ([]Record, error) {
	payload, err := NewPageRequest(req.ItemID, page, req.OrderType, req.RateType).Encode()
	if err != nil {
		return nil, crawler.NewError(crawler.ErrorKindInvalidInput, platformName, "encode payload: "+err.Error(), err)
	}
	ts := f.opts.now().UnixMilli()
	params := BuildQuery(payload, f.opts.Signer.Sign(token, ts, payload), ts, callbackName())

	start := time.Now()
	body, err := f.transport.FetchPage(context.WithoutCancel(ctx), params, req.Cookie)
	f.opts.Metrics.ObserveRequest(time.Since(start))
	if err != nil {
		if crawler.KindOf(err) == crawler.ErrorKindUnknown {
			return nil, crawler.NewError(crawler.ErrorKindNetwork, platformName, fmt.Sprintf("page %d: %v", page, err), err)
		}
		return nil, err
	}

	cls, err := ClassifyResponse(body)
	if err != nil {
		logger.Warn("unparsable response", "item_id", req.ItemID, "page", page, "body", logger.Truncate(body, 200))
		if hint := crawler.DetectRiskHint(body); hint != "" {
			return nil, crawler.NewRiskHintError(platformName, Endpoint, hint)
		}
		return nil, crawler.NewError(crawler.ErrorKindParse, platformName, fmt.Sprintf("page %d: %v", page, err), err)
	}

	switch cls.Status {
	case StatusSuccess, StatusEmpty:
		return cls.Records, nil
	case StatusAuthFailure:
		return nil, crawler.Error{Kind: crawler.ErrorKindAuth, Platform: platformName, URL: Endpoint, Msg: "token rejected: " + cls.Ret}
	default:
		logger.Warn("api returned failure", "item_id", req.ItemID, "page", page, "ret", cls.Ret, "body", logger.Truncate(body, 200))
		if hint := crawler.DetectRiskHint(body); hint != "" {
			return nil, crawler.NewRiskHintError(platformName, Endpoint, hint)
		}
		return nil, crawler.Error{Kind: crawler.ErrorKindAPI, Platform: platformName, URL: Endpoint, Msg: "api status: " + cls.Ret}
	}
}

func (f *Fetcher) cachedPage(ctx context.Context, key string) ([]Record, bool) {
	if f.opts.Cache == nil {
		return nil, false
	}
	b, ok, err := f.opts.Cache.Get(ctx, key)
	if err != nil || !ok {
		return nil, false
	}
	var records []Record
	if err := decodeJSON(b, &records); err != nil || len(records) == 0 {
		return nil, false
	}
	return records, true
}

func pageCacheKey(req FetchRequest, page int) string {
	return fmt.Sprintf("tmall:rates:%s:%d:%s:%s", req.ItemID, page, req.OrderType, req.RateType)
}

// doneEventWait bounds how long the closing event waits for a reader once
// the run has been canceled.
const doneEventWait = 2 * time.Second

func (f *Fetcher) emit(ctx context.Context, events chan<- Event, ev Event) {
	if events == nil {
		return
	}
	select {
	case events <- ev:
		return
	default:
	}
	if ev.Type == EventDone {
		t := time.NewTimer(doneEventWait)
		defer t.Stop()
		select {
		case events <- ev:
		case <-t.C:
			logger.Warn("done event not delivered", "item_id", ev.ItemID)
		}
		return
	}
	select {
	case events <- ev:
	case <-ctx.Done():
	}
}
