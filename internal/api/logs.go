package api

import (
	"net/http"
	"strings"

	"tmall-review-crawler/internal/logger"
)

// handleLogs returns the newest ?limit (default 100, max 2000) log events,
// optionally narrowed to one ?level.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 100, 0, 2000)
	level := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("level")))

	evts := logger.Recent(limit)
	if level != "" {
		kept := evts[:0]
		for _, e := range evts {
			if e.Level == level {
				kept = append(kept, e)
			}
		}
		evts = kept
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": evts, "dropped": logger.Dropped()})
}
