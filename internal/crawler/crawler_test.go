package crawler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestJitterWithinBounds(t *testing.T) {
	min, max := 1000*time.Millisecond, 2000*time.Millisecond
	for i := 0; i < 200; i++ {
		d := Jitter(min, max)
		if d < min || d > max {
			t.Fatalf("Jitter = %v, out of [%v, %v]", d, min, max)
		}
	}
	if d := Jitter(5*time.Millisecond, time.Millisecond); d != 5*time.Millisecond {
		t.Fatalf("inverted range = %v", d)
	}
}

func TestSleepCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if Sleep(ctx, time.Hour) {
		t.Fatalf("Sleep should report cancellation")
	}
	if !Sleep(ctx, 0) {
		t.Fatalf("zero sleep should succeed")
	}
}

func TestDetectRiskHint(t *testing.T) {
	cases := []struct {
		body string
		want string
	}{
		{"", ""},
		{`{"ret":["SUCCESS::ok"]}`, ""},
		{"<html>请输入验证码</html>", "captcha"},
		{`{"ret":["RGV587_ERROR::SM"]}`, "slider"},
		{"https://h5api.m.tmall.com/punish?x5secdata=1", "slider"},
		{"403 Forbidden", "forbidden"},
		{`{"ret":["FAIL_SYS_USER_VALIDATE::哎哟喂,被挤爆啦,请稍后重试"]}`, "slider"},
		{"<a href=\"https://login.taobao.com/member/login.jhtml\">亲，请登录</a>", "login"},
	}
	for _, tc := range cases {
		if got := DetectRiskHint(tc.body); got != tc.want {
			t.Fatalf("DetectRiskHint(%q) = %q, want %q", tc.body, got, tc.want)
		}
	}
}

func TestForEachLimit(t *testing.T) {
	items := []string{"a", "b", "c", "d"}
	var calls atomic.Int32
	res := ForEachLimit(context.Background(), items, 2, func(ctx context.Context, s string) error {
		calls.Add(1)
		if s == "c" {
			return NewError(ErrorKindAuth, "tmall", "expired", nil)
		}
		return nil
	})
	if calls.Load() != 4 || res.Processed != 4 || res.Succeeded != 3 || res.Failed != 1 {
		t.Fatalf("res = %#v calls=%d", res, calls.Load())
	}
	if res.FailureKinds["auth"] != 1 {
		t.Fatalf("kinds = %#v", res.FailureKinds)
	}

	seq := ForEachLimit(context.Background(), items, 1, func(ctx context.Context, s string) error {
		return errors.New("x")
	})
	if seq.Failed != 4 || seq.FailureKinds["unknown"] != 4 {
		t.Fatalf("seq = %#v", seq)
	}
}

func TestRetryPolicy(t *testing.T) {
	if ShouldRetryError(nil) || ShouldRetryError(context.Canceled) {
		t.Fatalf("nil/canceled must not retry")
	}
	if ShouldRetryError(NewError(ErrorKindAuth, "tmall", "expired", nil)) {
		t.Fatalf("auth failures must not retry")
	}
	if !ShouldRetryError(errors.New("connection reset")) {
		t.Fatalf("plain transport error should retry")
	}
	if !ShouldRetryStatus(503) || ShouldRetryStatus(404) {
		t.Fatalf("status retry policy wrong")
	}
	if !ShouldInvalidateProxyStatus(403) || ShouldInvalidateProxyStatus(500) {
		t.Fatalf("proxy invalidation policy wrong")
	}
}
