package crawler

import (
	"context"
	"strings"
	"time"
)

// OrderType is the server-side sort of the review list.
type OrderType string

const (
	OrderDefault OrderType = ""
	OrderNewest  OrderType = "feedbackdate"
)

func NormalizeOrder(s string) OrderType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "feedbackdate", "newest", "time", "date":
		return OrderNewest
	default:
		return OrderDefault
	}
}

type Request struct {
	Platform string

	ItemIDs   []string
	Pages     int
	OrderType OrderType
	RateType  string

	Fields      []string
	FilterEmpty bool
	ExportPath  string
	ExportExt   string
	Concurrency int
}

type Result struct {
	Platform     string         `json:"platform,omitempty"`
	StartedAt    int64          `json:"started_at,omitempty"`
	FinishedAt   int64          `json:"finished_at,omitempty"`
	Processed    int            `json:"processed,omitempty"`
	Succeeded    int            `json:"succeeded,omitempty"`
	Failed       int            `json:"failed,omitempty"`
	Records      int            `json:"records"`
	Rows         int            `json:"rows"`
	Filtered     int            `json:"filtered,omitempty"`
	Exported     []Export       `json:"exported,omitempty"`
	LastError    string         `json:"last_error,omitempty"`
	Canceled     bool           `json:"canceled,omitempty"`
	FailureKinds map[string]int `json:"failure_kinds,omitempty"`
}

// Export is one file written by a run.
type Export struct {
	ItemID string `json:"item_id"`
	Path   string `json:"path"`
	Rows   int    `json:"rows"`
}

func NewResult(req Request) Result {
	return Result{
		Platform:  req.Platform,
		StartedAt: time.Now().Unix(),
	}
}

type Runner interface {
	Run(ctx context.Context, req Request) (Result, error)
}
