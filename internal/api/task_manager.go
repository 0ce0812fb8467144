package api

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"tmall-review-crawler/internal/config"
	"tmall-review-crawler/internal/crawler"
	"tmall-review-crawler/internal/logger"
	"tmall-review-crawler/internal/platform/tmall"
)

var ErrTaskRunning = errors.New("task is running")

type ValidationError struct {
	Msg string
}

func (e ValidationError) Error() string { return e.Msg }

type Status struct {
	State       string          `json:"state"`
	Platform    string          `json:"platform,omitempty"`
	ItemIDs     []string        `json:"item_ids,omitempty"`
	CurrentItem string          `json:"current_item,omitempty"`
	Page        int             `json:"page,omitempty"`
	Pages       int             `json:"pages,omitempty"`
	Records     int             `json:"records"`
	Message     string          `json:"message,omitempty"`
	StartedAt   int64           `json:"started_at,omitempty"`
	FinishedAt  int64           `json:"finished_at,omitempty"`
	LastError   string          `json:"last_error,omitempty"`
	Result      *crawler.Result `json:"result,omitempty"`
}

type RunRequest struct {
	ItemID      string   `json:"item_id,omitempty"`
	ItemIDs     []string `json:"item_ids,omitempty"`
	Pages       int      `json:"pages,omitempty"`
	OrderType   string   `json:"order_type,omitempty"`
	RateType    string   `json:"rate_type,omitempty"`
	Fields      []string `json:"fields,omitempty"`
	FilterEmpty *bool    `json:"filter_empty,omitempty"`
	ExportPath  string   `json:"export_path,omitempty"`
	Format      string   `json:"format,omitempty"`
	Cookie      string   `json:"cookie,omitempty"`
}

// Job is one accepted run handed to the runner.
type Job struct {
	Request crawler.Request
	Cookie  string
	OnEvent func(tmall.Event)
	Sink    func(tmall.ItemReport)
}

type RunFunc func(ctx context.Context, job Job) (crawler.Result, error)

type TaskManager struct {
	mu      sync.Mutex
	cancel  context.CancelFunc
	status  Status
	runFn   RunFunc
	reports map[string]tmall.ItemReport
	order   []string
}

func NewTaskManager() *TaskManager {
	return NewTaskManagerWithRunner(TmallRunner(nil))
}

func NewTaskManagerWithRunner(runFn RunFunc) *TaskManager {
	if runFn == nil {
		runFn = TmallRunner(nil)
	}
	return &TaskManager{status: Status{State: "idle"}, runFn: runFn}
}

func (m *TaskManager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.status
	st.ItemIDs = append([]string(nil), m.status.ItemIDs...)
	return st
}

func (m *TaskManager) Run(req RunRequest) error {
	job, err := buildJob(req)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if m.cancel != nil {
		m.mu.Unlock()
		return ErrTaskRunning
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.reports = map[string]tmall.ItemReport{}
	m.order = nil
	m.status = Status{
		State:     "running",
		Platform:  job.Request.Platform,
		ItemIDs:   job.Request.ItemIDs,
		Pages:     job.Request.Pages,
		StartedAt: time.Now().Unix(),
	}
	m.mu.Unlock()

	job.OnEvent = m.onEvent
	job.Sink = m.keepReport

	go func() {
		res, err := m.runFn(ctx, job)
		m.mu.Lock()
		defer m.mu.Unlock()
		m.cancel = nil
		m.status.State = "idle"
		m.status.FinishedAt = time.Now().Unix()
		m.status.Result = &res
		m.status.LastError = res.LastError
		if err != nil {
			m.status.LastError = err.Error()
			logger.Error("task failed", "err", err)
		}
	}()
	return nil
}

func (m *TaskManager) Stop() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel == nil {
		return false
	}
	m.cancel()
	m.status.State = "stopping"
	return true
}

// Report returns the last finished run's report for itemID. An empty id picks
// the first item of the run.
func (m *TaskManager) Report(itemID string) (tmall.ItemReport, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		if len(m.order) == 0 {
			return tmall.ItemReport{}, false
		}
		itemID = m.order[0]
	}
	rep, ok := m.reports[itemID]
	return rep, ok
}

func (m *TaskManager) onEvent(ev tmall.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ev.ItemID != "" {
		m.status.CurrentItem = ev.ItemID
	}
	if ev.Pages > 0 {
		m.status.Pages = ev.Pages
	}
	switch ev.Type {
	case tmall.EventProgress:
		m.status.Page = ev.Page
	case tmall.EventPage:
		m.status.Page = ev.Page
		m.status.Records += ev.Records
		if ev.Level == "warn" {
			m.status.LastError = ev.Message
		}
	}
	if ev.Message != "" {
		m.status.Message = ev.Message
	}
}

func (m *TaskManager) keepReport(rep tmall.ItemReport) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reports == nil {
		m.reports = map[string]tmall.ItemReport{}
	}
	if _, ok := m.reports[rep.ItemID]; !ok {
		m.order = append(m.order, rep.ItemID)
	}
	m.reports[rep.ItemID] = rep
}

func buildJob(req RunRequest) (Job, error) {
	out := crawler.RequestFromConfig(config.AppConfig)
	out.Platform = "tmall"

	ids := config.SplitCSV(strings.Join(append([]string{req.ItemID}, req.ItemIDs...), ","))
	if len(ids) > 0 {
		out.ItemIDs = ids
	}
	if len(out.ItemIDs) == 0 {
		return Job{}, ValidationError{Msg: "item_id is required"}
	}
	switch {
	case req.Pages < 0:
		return Job{}, ValidationError{Msg: "pages must be positive"}
	case req.Pages > 0:
		out.Pages = req.Pages
	}
	if v := strings.TrimSpace(req.OrderType); v != "" {
		out.OrderType = crawler.NormalizeOrder(v)
	}
	if v := strings.TrimSpace(req.RateType); v != "" {
		out.RateType = v
	}
	if len(req.Fields) > 0 {
		out.Fields = req.Fields
	}
	if _, err := tmall.ParseFieldSpec(strings.Join(out.Fields, ",")); err != nil {
		return Job{}, ValidationError{Msg: err.Error()}
	}
	if req.FilterEmpty != nil {
		out.FilterEmpty = *req.FilterEmpty
	}
	if v := strings.TrimSpace(req.ExportPath); v != "" {
		out.ExportPath = v
	}
	switch f := strings.ToLower(strings.TrimSpace(req.Format)); f {
	case "":
	case "xlsx", "excel", "csv", "json":
		if f == "excel" {
			f = "xlsx"
		}
		out.ExportExt = f
	default:
		return Job{}, ValidationError{Msg: "unsupported format: " + req.Format}
	}
	return Job{Request: out, Cookie: strings.TrimSpace(req.Cookie)}, nil
}

// TmallRunner runs jobs with crawlers that share res across runs. A nil res
// uses tmall.Shared.
func TmallRunner(res *tmall.Resources) RunFunc {
	return func(ctx context.Context, job Job) (crawler.Result, error) {
		cfg := config.AppConfig
		if job.Cookie != "" {
			cfg.Cookies = job.Cookie
		}
		c := tmall.NewCrawlerFromConfig(cfg, res)
		c.OnEvent = job.OnEvent
		c.Sink = job.Sink
		return c.Run(ctx, job.Request)
	}
}
