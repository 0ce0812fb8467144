package tmall

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"tmall-review-crawler/internal/logger"
)

type Record map[string]any

type Status string

const (
	StatusSuccess     Status = "success"
	StatusEmpty       Status = "empty"
	StatusAuthFailure Status = "auth_failure"
	StatusAPIError    Status = "api_error"
)

// Markers the gateway puts in the body when the h5 token is missing or stale.
var authFailureMarkers = []string{"FAIL_SYS_TOKEN_EMPTY", "FAIL_SYS_ILLEGAL_ACCESS"}

var jsonpRe = regexp.MustCompile(`(?s)` + callbackPrefix + `\d+\((.*)\)`)

type Classification struct {
	Status  Status
	Ret     string
	Records []Record
}

type envelope struct {
	API  string          `json:"api"`
	Ret  []any           `json:"ret"`
	Data json.RawMessage `json:"data"`
}

type rateListData struct {
	RateList any `json:"rateList"`
}

// ParseError means the body was not a jsonp wrapped json document.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string { return "parse response: " + e.Reason }

// ClassifyResponse unwraps a jsonp body and sorts it into success, empty,
// auth failure or api error. Only a malformed body yields an error. Auth
// markers are matched against the raw text first, so an expired token is
// reported as such even when the rest of the body does not parse.
func ClassifyResponse(body string) (Classification, error) {
	for _, m := range authFailureMarkers {
		if strings.Contains(body, m) {
			return Classification{Status: StatusAuthFailure, Ret: m}, nil
		}
	}

	match := jsonpRe.FindStringSubmatch(body)
	if len(match) < 2 {
		return Classification{}, &ParseError{Reason: "jsonp wrapper not found"}
	}

	var env envelope
	if err := decodeJSON([]byte(match[1]), &env); err != nil {
		return Classification{}, &ParseError{Reason: err.Error()}
	}

	out := Classification{}
	if len(env.Ret) > 0 {
		out.Ret = scalarText(env.Ret[0])
	}
	if !strings.Contains(out.Ret, "SUCCESS") {
		out.Status = StatusAPIError
		return out, nil
	}

	data := bytes.TrimSpace(env.Data)
	if len(data) > 0 && data[0] == '{' {
		var d rateListData
		if err := decodeJSON(data, &d); err != nil {
			return Classification{}, &ParseError{Reason: fmt.Sprintf("data: %v", err)}
		}
		out.Records = rateRecords(d.RateList)
	}
	if len(out.Records) == 0 {
		out.Status = StatusEmpty
		out.Records = nil
		return out, nil
	}
	out.Status = StatusSuccess
	return out, nil
}

// rateRecords keeps the object elements of rateList. Anything else in the list
// is logged and dropped; a rateList that is not a list yields nothing.
func rateRecords(v any) []Record {
	list, ok := v.([]any)
	if !ok {
		if v != nil {
			logger.Warn("rateList is not a list", "type", fmt.Sprintf("%T", v))
		}
		return nil
	}
	out := make([]Record, 0, len(list))
	for i, el := range list {
		m, ok := el.(map[string]any)
		if !ok {
			logger.Warn("rateList element dropped", "index", i, "type", fmt.Sprintf("%T", el))
			continue
		}
		out = append(out, Record(m))
	}
	return out
}

// decodeJSON keeps numbers as json.Number so large ids survive.
func decodeJSON(b []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	return dec.Decode(v)
}
