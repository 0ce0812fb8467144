package tmall

import (
	"bytes"
	"encoding/json"
	"math/rand/v2"
	"strconv"
	"strings"

	"tmall-review-crawler/internal/crawler"
)

const (
	Endpoint = "https://h5api.m.tmall.com/h5/mtop.taobao.rate.detaillist.get/6.0/"

	apiName        = "mtop.taobao.rate.detaillist.get"
	apiVersion     = "6.0"
	jsVersion      = "2.7.4"
	jsonpPrefix    = "pcdetail"
	callbackPrefix = "mtopjsonp" + jsonpPrefix

	PageSize = 20
)

// PageRequest is the data payload of one review list call. Field order is
// part of the signature: the signed string and the sent string are the same
// bytes produced by Encode.
type PageRequest struct {
	ShowTrueCount bool   `json:"showTrueCount"`
	AuctionNumID  string `json:"auctionNumId"`
	PageNo        int    `json:"pageNo"`
	PageSize      int    `json:"pageSize"`
	RateType      string `json:"rateType"`
	SearchImpr    string `json:"searchImpr"`
	OrderType     string `json:"orderType"`
	Expression    string `json:"expression"`
	RateSrc       string `json:"rateSrc"`
}

func NewPageRequest(itemID string, page int, order crawler.OrderType, rateType string) PageRequest {
	return PageRequest{
		ShowTrueCount: false,
		AuctionNumID:  itemID,
		PageNo:        page,
		PageSize:      PageSize,
		RateType:      rateType,
		SearchImpr:    "-8",
		OrderType:     string(order),
		Expression:    "",
		RateSrc:       "pc_rate_list",
	}
}

func (p PageRequest) Encode() (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(p); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

// BuildQuery assembles the gateway query string parameters for one call.
func BuildQuery(payload, sign string, ts int64, callback string) map[string]string {
	return map[string]string{
		"jsv":            jsVersion,
		"appKey":         AppKey,
		"t":              strconv.FormatInt(ts, 10),
		"sign":           sign,
		"api":            apiName,
		"v":              apiVersion,
		"isSec":          "0",
		"ecode":          "1",
		"timeout":        "20000",
		"type":           "jsonp",
		"dataType":       "jsonp",
		"jsonpIncPrefix": jsonpPrefix,
		"callback":       callback,
		"data":           payload,
	}
}

// callbackName gets a two digit suffix so quick successive calls do not
// share a jsonp callback.
func callbackName() string {
	return callbackPrefix + strconv.Itoa(10+rand.IntN(90))
}
