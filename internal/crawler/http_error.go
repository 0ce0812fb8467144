package crawler

import (
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

const httpBodySnippet = 256

// NewHTTPStatusError reports a non-2xx answer from the gateway. 401/403 mean
// the cookie or the exit IP was rejected, 429 that requests come too fast.
// The "http status=N" prefix is what KindOf falls back to for wrapped errors.
func NewHTTPStatusError(platform, url string, statusCode int, body string) error {
	msg := fmt.Sprintf("http status=%d", statusCode)
	if text := http.StatusText(statusCode); text != "" {
		msg += " (" + text + ")"
	}
	if hint := DetectRiskHint(body); hint != "" {
		msg += " risk=" + hint
	}
	if s := bodySnippet(body); s != "" {
		msg += " body=" + s
	}
	return Error{
		Kind:     statusKind(statusCode),
		Platform: platform,
		URL:      url,
		Msg:      msg,
	}
}

func statusKind(code int) ErrorKind {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrorKindForbidden
	case http.StatusTooManyRequests:
		return ErrorKindRateLimited
	default:
		return ErrorKindHTTP
	}
}

func bodySnippet(body string) string {
	s := strings.TrimSpace(body)
	if len(s) <= httpBodySnippet {
		return s
	}
	s = s[:httpBodySnippet]
	for !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s + "..."
}
