package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/websocket"

	"tmall-review-crawler/internal/logger"
)

// statusKeepAlive resends an unchanged status every this many ticks.
const statusKeepAlive = 10

// handleWSLogs streams log events as JSON lines. ?backlog=N first replays the
// newest N events from the ring buffer.
func (s *Server) handleWSLogs(w http.ResponseWriter, r *http.Request) {
	backlog := queryInt(r, "backlog", 0, 0, 500)

	websocket.Server{
		Handshake: func(*websocket.Config, *http.Request) error { return nil },
		Handler: func(conn *websocket.Conn) {
			conn.PayloadType = websocket.TextFrame
			ch, cancel := logger.Subscribe()
			defer cancel()

			if backlog > 0 {
				for _, evt := range logger.Recent(backlog) {
					b, err := json.Marshal(evt)
					if err != nil {
						continue
					}
					if websocket.Message.Send(conn, string(append(b, '\n'))) != nil {
						return
					}
				}
			}
			for msg := range ch {
				if err := websocket.Message.Send(conn, string(msg)); err != nil {
					return
				}
			}
		},
	}.ServeHTTP(w, r)
}

// handleWSStatus pushes the task status when it changes, polling every
// ?interval_ms (100..5000, default 1000).
func (s *Server) handleWSStatus(w http.ResponseWriter, r *http.Request) {
	interval := time.Duration(queryInt(r, "interval_ms", 1000, 100, 5000)) * time.Millisecond

	websocket.Server{
		Handshake: func(*websocket.Config, *http.Request) error { return nil },
		Handler: func(conn *websocket.Conn) {
			conn.PayloadType = websocket.TextFrame

			var last []byte
			idle := 0
			push := func() bool {
				b, err := json.Marshal(s.manager.Status())
				if err != nil {
					return false
				}
				if bytes.Equal(b, last) && idle < statusKeepAlive {
					idle++
					return true
				}
				last, idle = b, 0
				return websocket.Message.Send(conn, string(b)+"\n") == nil
			}

			if !push() {
				return
			}
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for range ticker.C {
				if !push() {
					return
				}
			}
		},
	}.ServeHTTP(w, r)
}

func queryInt(r *http.Request, key string, def, lo, hi int) int {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return min(max(n, lo), hi)
}
