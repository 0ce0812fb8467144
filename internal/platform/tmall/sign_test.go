package tmall

import (
	"regexp"
	"testing"

	"tmall-review-crawler/internal/crawler"
)

const samplePayload = `{"showTrueCount":false,"auctionNumId":"714871191114","pageNo":1,"pageSize":20,"rateType":"","searchImpr":"-8","orderType":"","expression":"","rateSrc":"pc_rate_list"}`

var hex32 = regexp.MustCompile(`^[0-9a-f]{32}$`)

func TestExtractToken(t *testing.T) {
	tok, ok := ExtractToken("cna=abc; _m_h5_tk=ABCDEF123_1746456131231; _m_h5_tk_enc=xyz")
	if !ok || tok != "ABCDEF123" {
		t.Fatalf("ExtractToken = %q, %v", tok, ok)
	}
	if tok, ok := ExtractToken("cna=abc; isg=1"); ok || tok != "" {
		t.Fatalf("ExtractToken(no token) = %q, %v", tok, ok)
	}
	if _, ok := ExtractToken(""); ok {
		t.Fatalf("ExtractToken(empty) reported a token")
	}
}

func TestPageRequestEncodeFieldOrder(t *testing.T) {
	got, err := NewPageRequest("714871191114", 1, crawler.OrderDefault, "").Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if got != samplePayload {
		t.Fatalf("Encode =\n%s\nwant\n%s", got, samplePayload)
	}
}

func TestSignDeterministic(t *testing.T) {
	s := NewSigner()
	a := s.Sign("ABCDEF123", 1746456131231, samplePayload)
	b := s.Sign("ABCDEF123", 1746456131231, samplePayload)
	if a != b {
		t.Fatalf("signature not deterministic: %s vs %s", a, b)
	}
	if a != "479870944aeb4618211a8262122a19ce" {
		t.Fatalf("Sign = %s", a)
	}
	if c := s.Sign("ABCDEF123", 1746456131232, samplePayload); c == a {
		t.Fatalf("timestamp does not affect signature")
	}
}

func TestSignWithoutTokenIsRandomHex(t *testing.T) {
	s := NewSigner()
	a := s.Sign("", 1, samplePayload)
	if !hex32.MatchString(a) {
		t.Fatalf("Sign(no token) = %q", a)
	}
	seq := []float64{0.25, 0.5}
	s.random = func() float64 {
		v := seq[0]
		seq = seq[1:]
		return v
	}
	if s.Sign("", 1, samplePayload) == s.Sign("", 1, samplePayload) {
		t.Fatalf("degraded signatures should differ per call")
	}
}

func TestBuildQuery(t *testing.T) {
	q := BuildQuery(samplePayload, "sig", 42, "mtopjsonppcdetail17")
	want := map[string]string{
		"jsv":            "2.7.4",
		"appKey":         "12574478",
		"t":              "42",
		"sign":           "sig",
		"api":            "mtop.taobao.rate.detaillist.get",
		"v":              "6.0",
		"isSec":          "0",
		"ecode":          "1",
		"timeout":        "20000",
		"type":           "jsonp",
		"dataType":       "jsonp",
		"jsonpIncPrefix": "pcdetail",
		"callback":       "mtopjsonppcdetail17",
		"data":           samplePayload,
	}
	if len(q) != len(want) {
		t.Fatalf("query has %d params, want %d", len(q), len(want))
	}
	for k, v := range want {
		if q[k] != v {
			t.Fatalf("query[%s] = %q, want %q", k, q[k], v)
		}
	}
}

func TestCallbackName(t *testing.T) {
	re := regexp.MustCompile(`^mtopjsonppcdetail[1-9][0-9]$`)
	for i := 0; i < 50; i++ {
		if cb := callbackName(); !re.MatchString(cb) {
			t.Fatalf("callbackName = %q", cb)
		}
	}
}
