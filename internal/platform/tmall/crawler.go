package tmall

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"tmall-review-crawler/internal/config"
	"tmall-review-crawler/internal/crawler"
	"tmall-review-crawler/internal/logger"
	"tmall-review-crawler/internal/store"
)

type Options struct {
	Client          ClientOptions
	Fetcher         FetcherOptions
	Cookie          string
	EmptyReviewText string
}

// ItemReport is everything one item's run produced.
type ItemReport struct {
	ItemID     string
	Fetch      FetchResult
	Normalized NormalizeResult
	Table      store.Table
	ExportPath string
}

type itemSummary struct {
	ItemID     string        `json:"item_id"`
	Title      string        `json:"title,omitempty"`
	Records    int           `json:"records"`
	Rows       int           `json:"rows"`
	Filtered   int           `json:"filtered"`
	Skipped    int           `json:"skipped"`
	Pages      []PageOutcome `json:"pages"`
	LastError  string        `json:"last_error,omitempty"`
	ExportPath string        `json:"export_path,omitempty"`
	FetchedAt  int64         `json:"fetched_at"`
}

type Crawler struct {
	fetcher   *Fetcher
	cookie    string
	emptyText string
	now       func() time.Time

	// OnEvent receives fetch progress, in order, from a single goroutine per item.
	OnEvent func(Event)
	// Sink is called once per finished item.
	Sink func(ItemReport)
}

func NewCrawler(opts Options) *Crawler {
	return NewCrawlerWithTransport(NewClient(opts.Client), opts)
}

func NewCrawlerWithTransport(t Transport, opts Options) *Crawler {
	if opts.EmptyReviewText == "" {
		opts.EmptyReviewText = config.DefaultEmptyReviewText
	}
	return &Crawler{
		fetcher:   NewFetcher(t, opts.Fetcher),
		cookie:    opts.Cookie,
		emptyText: opts.EmptyReviewText,
		now:       time.Now,
	}
}

func (c *Crawler) Fetcher() *Fetcher { return c.fetcher }

func (c *Crawler) Run(ctx context.Context, req crawler.Request) (crawler.Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	req.Platform = platformName
	out := crawler.NewResult(req)

	items := trimStrings(req.ItemIDs)
	if len(items) == 0 {
		return out, crawler.NewError(crawler.ErrorKindInvalidInput, platformName, "no item ids (ITEM_IDS)", nil)
	}
	sel, err := ParseFieldSpec(strings.Join(req.Fields, ","))
	if err != nil {
		return out, crawler.NewError(crawler.ErrorKindInvalidInput, platformName, err.Error(), err)
	}
	if req.Pages <= 0 {
		req.Pages = 5
	}
	limit := req.Concurrency
	if limit <= 0 {
		limit = 1
	}
	logger.Info("tmall crawler started", "items", len(items), "pages", req.Pages, "order", string(req.OrderType), "fields", len(sel), "filter_empty", req.FilterEmpty)

	var mu sync.Mutex
	multi := len(items) > 1
	itemRes := crawler.ForEachLimit(ctx, items, limit, func(ctx context.Context, itemID string) error {
		rep, err := c.runItem(ctx, req, sel, itemID, multi)

		mu.Lock()
		defer mu.Unlock()
		out.Records += len(rep.Fetch.Records)
		out.Rows += len(rep.Table.Rows)
		out.Filtered += rep.Normalized.Filtered
		if rep.ExportPath != "" {
			out.Exported = append(out.Exported, crawler.Export{ItemID: itemID, Path: rep.ExportPath, Rows: len(rep.Table.Rows)})
		}
		if rep.Fetch.LastError != "" {
			out.LastError = rep.Fetch.LastError
		}
		if err != nil {
			out.LastError = err.Error()
		}
		out.Canceled = out.Canceled || rep.Fetch.Canceled
		out.FailureKinds = crawler.MergeFailureKinds(out.FailureKinds, rep.Fetch.FailureKinds)
		return err
	})
	out.Processed = itemRes.Processed
	out.Succeeded = itemRes.Succeeded
	out.Failed = itemRes.Failed
	out.FailureKinds = crawler.MergeFailureKinds(out.FailureKinds, itemRes.FailureKinds)
	if ctx.Err() != nil {
		out.Canceled = true
	}
	out.FinishedAt = time.Now().Unix()
	logger.Info("tmall crawler finished", "records", out.Records, "rows", out.Rows, "filtered", out.Filtered, "failed", out.Failed, "canceled", out.Canceled)
	return out, nil
}

func (c *Crawler) runItem(ctx context.Context, req crawler.Request, sel FieldSelection, itemID string, multi bool) (ItemReport, error) {
	rep := ItemReport{ItemID: itemID}

	events, done := c.startEvents()
	res, err := c.fetcher.Fetch(ctx, FetchRequest{
		ItemID:    itemID,
		Pages:     req.Pages,
		Cookie:    c.cookie,
		OrderType: req.OrderType,
		RateType:  req.RateType,
	}, events)
	done()
	rep.Fetch = res
	if err != nil {
		logger.Error("fetch not started", "item_id", itemID, "err", err)
		return rep, err
	}

	if len(res.Records) > 0 {
		n, err := store.SaveReviews(ctx, itemID, res.Records, recordID)
		if err != nil {
			logger.Error("save reviews failed", "item_id", itemID, "backend", store.Backend(), "err", err)
		} else {
			logger.Info("reviews saved", "item_id", itemID, "new", n, "backend", store.Backend())
		}
	}

	opts := NormalizeOptions{}
	if req.FilterEmpty {
		opts.Exclude = EmptyReviewFilter(c.emptyText)
	}
	rep.Normalized = Normalize(res.Records, sel, opts)
	rep.Table = BuildTable(rep.Normalized.Rows)
	c.fetcher.opts.Metrics.ObserveRun(len(res.Records), rep.Normalized.Filtered)
	if rep.Normalized.Filtered > 0 {
		logger.Info("empty reviews filtered", "item_id", itemID, "filtered", rep.Normalized.Filtered)
	}

	var exportErr error
	switch {
	case len(rep.Table.Rows) == 0 && len(res.Records) > 0:
		logger.Warn("all reviews filtered, nothing to export", "item_id", itemID, "filtered", rep.Normalized.Filtered)
	case len(rep.Table.Rows) == 0:
		logger.Warn("no reviews fetched, nothing to export", "item_id", itemID, "last_error", res.LastError)
	default:
		path := c.exportPath(req, itemID, res.Records, multi)
		if exportErr = store.ExportTable(path, rep.Table); exportErr != nil {
			logger.Error("export failed", "item_id", itemID, "path", path, "err", exportErr)
		} else {
			rep.ExportPath = path
			logger.Info("reviews exported", "item_id", itemID, "path", path, "rows", len(rep.Table.Rows))
		}
	}

	summary := itemSummary{
		ItemID:     itemID,
		Title:      textFieldFirst(res.Records, "auctionTitle"),
		Records:    len(res.Records),
		Rows:       len(rep.Table.Rows),
		Filtered:   rep.Normalized.Filtered,
		Skipped:    rep.Normalized.Skipped,
		Pages:      res.Pages,
		LastError:  res.LastError,
		ExportPath: rep.ExportPath,
		FetchedAt:  c.now().Unix(),
	}
	if err := store.SaveItemSummary(ctx, itemID, summary); err != nil {
		logger.Warn("save item summary failed", "item_id", itemID, "err", err)
	}

	if c.Sink != nil {
		c.Sink(rep)
	}
	return rep, exportErr
}

// startEvents forwards fetch events to OnEvent. The returned func closes the
// channel and waits for the forwarder to drain it.
func (c *Crawler) startEvents() (chan<- Event, func()) {
	if c.OnEvent == nil {
		return nil, func() {}
	}
	ch := make(chan Event, 16)
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		for ev := range ch {
			c.OnEvent(ev)
		}
	}()
	return ch, func() {
		close(ch)
		<-finished
	}
}

func (c *Crawler) exportPath(req crawler.Request, itemID string, records []Record, multi bool) string {
	ext := req.ExportExt
	if ext == "" {
		ext = "xlsx"
	}
	p := strings.TrimSpace(req.ExportPath)
	if p == "" {
		return filepath.Join(store.PlatformDir(), DefaultFilename(records, len(records), ext, c.now()))
	}
	cur := filepath.Ext(p)
	if cur == "" {
		cur = "." + ext
		p += cur
	}
	if multi {
		p = strings.TrimSuffix(p, cur) + "_" + itemID + cur
	}
	return p
}

func textFieldFirst(records []Record, path string) string {
	if len(records) == 0 {
		return ""
	}
	return textField(records[0], path)
}

func trimStrings(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
