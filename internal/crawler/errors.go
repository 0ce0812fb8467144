package crawler

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

type ErrorKind string

const (
	ErrorKindUnknown      ErrorKind = "unknown"
	ErrorKindMissingToken ErrorKind = "missing_token"
	ErrorKindNetwork      ErrorKind = "network"
	ErrorKindHTTP         ErrorKind = "http"
	ErrorKindForbidden    ErrorKind = "forbidden"
	ErrorKindRateLimited  ErrorKind = "rate_limited"
	ErrorKindParse        ErrorKind = "parse"
	ErrorKindAuth         ErrorKind = "auth"
	ErrorKindAPI          ErrorKind = "api"
	ErrorKindNormalize    ErrorKind = "normalize"
	ErrorKindRiskHint     ErrorKind = "risk_hint"
	ErrorKindInvalidInput ErrorKind = "invalid_input"
	ErrorKindCanceled     ErrorKind = "canceled"
	ErrorKindTimeout      ErrorKind = "timeout"
)

type Error struct {
	Kind     ErrorKind
	Platform string
	URL      string
	Msg      string
	Err      error
}

func (e Error) Error() string {
	base := e.Msg
	if base == "" && e.Err != nil {
		base = e.Err.Error()
	}
	if base == "" {
		base = string(e.Kind)
	}
	if e.Platform != "" && e.URL != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Platform, base, e.URL)
	}
	if e.Platform != "" {
		return fmt.Sprintf("%s: %s", e.Platform, base)
	}
	return base
}

func (e Error) Unwrap() error { return e.Err }

func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var ce Error
	if errors.As(err, &ce) && ce.Kind != "" {
		return ce.Kind
	}
	if errors.Is(err, context.Canceled) {
		return ErrorKindCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorKindTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) {
		if ne.Timeout() {
			return ErrorKindTimeout
		}
		return ErrorKindNetwork
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "http status=429"):
		return ErrorKindRateLimited
	case strings.Contains(msg, "http status=401"), strings.Contains(msg, "http status=403"):
		return ErrorKindForbidden
	case strings.Contains(msg, "http status="):
		return ErrorKindHTTP
	}
	return ErrorKindUnknown
}

func MergeFailureKinds(dst map[string]int, src map[string]int) map[string]int {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string]int, len(src))
	}
	for k, v := range src {
		dst[k] += v
	}
	return dst
}

// AddFailureKind counts one failure of err's kind into m.
func AddFailureKind(m map[string]int, err error) map[string]int {
	return mergeFailureKind(m, KindOf(err))
}

func NewError(kind ErrorKind, platform, msg string, err error) error {
	return Error{Kind: kind, Platform: platform, Msg: msg, Err: err}
}

func NewRiskHintError(platform, url, hint string) error {
	return Error{
		Kind:     ErrorKindRiskHint,
		Platform: platform,
		URL:      url,
		Msg:      fmt.Sprintf("risk hint detected: %s", hint),
	}
}
