package crawler

import (
	"path/filepath"
	"strings"

	"tmall-review-crawler/internal/config"
)

func RequestFromConfig(cfg config.Config) Request {
	out := Request{
		Platform:    strings.TrimSpace(cfg.Platform),
		ItemIDs:     config.SplitCSV(cfg.ItemIDs),
		Pages:       cfg.PageCount,
		OrderType:   NormalizeOrder(cfg.OrderType),
		RateType:    strings.TrimSpace(cfg.RateType),
		Fields:      config.SplitCSV(cfg.ExportFields),
		FilterEmpty: cfg.FilterEmptyReviews,
		ExportPath:  strings.TrimSpace(cfg.ExportPath),
		ExportExt:   exportExt(cfg.SaveDataOption),
		Concurrency: cfg.MaxConcurrencyNum,
	}
	if out.Pages <= 0 {
		out.Pages = 5
	}
	if out.ExportPath != "" {
		if ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(out.ExportPath), ".")); ext != "" {
			out.ExportExt = exportExt(ext)
		}
	}
	return out
}

func exportExt(opt string) string {
	switch strings.ToLower(strings.TrimSpace(opt)) {
	case "csv":
		return "csv"
	case "json":
		return "json"
	default:
		return "xlsx"
	}
}
