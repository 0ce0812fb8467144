package api

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"tmall-review-crawler/internal/config"
	"tmall-review-crawler/internal/platform/tmall"
	"tmall-review-crawler/internal/store"
)

// ExportRequest re-exports the last run's records of one item with a new
// field selection. Path is relative to the data directory.
type ExportRequest struct {
	ItemID      string   `json:"item_id,omitempty"`
	Fields      []string `json:"fields,omitempty"`
	FilterEmpty *bool    `json:"filter_empty,omitempty"`
	Format      string   `json:"format,omitempty"`
	Path        string   `json:"path,omitempty"`
}

type exportResponse struct {
	ItemID   string `json:"item_id"`
	Path     string `json:"path"`
	Rows     int    `json:"rows"`
	Columns  int    `json:"columns"`
	Filtered int    `json:"filtered"`
	Skipped  int    `json:"skipped"`
}

func (s *Server) handleFields(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"fields": tmall.AllFields(),
		"common": tmall.CommonFields().Paths(),
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var req ExportRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rep, ok := s.manager.Report(req.ItemID)
	if !ok {
		writeError(w, http.StatusNotFound, "no finished run for item")
		return
	}
	sel, err := tmall.ParseFieldSpec(strings.Join(req.Fields, ","))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ext, err := exportFormat(req.Format, req.Path)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	filter := config.AppConfig.FilterEmptyReviews
	if req.FilterEmpty != nil {
		filter = *req.FilterEmpty
	}
	opts := tmall.NormalizeOptions{}
	if filter {
		emptyText := config.AppConfig.EmptyReviewText
		if emptyText == "" {
			emptyText = config.DefaultEmptyReviewText
		}
		opts.Exclude = tmall.EmptyReviewFilter(emptyText)
	}
	norm := tmall.Normalize(rep.Fetch.Records, sel, opts)
	table := tmall.BuildTable(norm.Rows)
	if table.Len() == 0 {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"error": "no rows to export", "filtered": norm.Filtered})
		return
	}

	var full string
	if p := strings.TrimSpace(req.Path); p != "" {
		if filepath.Ext(p) == "" {
			p += "." + ext
		}
		if full, err = safeDataPath(store.DataDir(), p); err != nil {
			writeError(w, http.StatusForbidden, "access denied")
			return
		}
	} else {
		full = filepath.Join(store.PlatformDir(), tmall.DefaultFilename(rep.Fetch.Records, len(rep.Fetch.Records), ext, time.Now()))
	}
	if err := store.ExportTable(full, table); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, exportResponse{
		ItemID:   rep.ItemID,
		Path:     full,
		Rows:     table.Len(),
		Columns:  len(table.Columns),
		Filtered: norm.Filtered,
		Skipped:  norm.Skipped,
	})
}

func exportFormat(format, path string) (string, error) {
	f := strings.ToLower(strings.TrimSpace(format))
	if f == "" {
		f = strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	}
	switch f {
	case "":
		return "xlsx", nil
	case "xlsx", "excel":
		return "xlsx", nil
	case "csv", "json":
		return f, nil
	default:
		return "", errors.New("unsupported format: " + f)
	}
}
