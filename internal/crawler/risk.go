package crawler

import "strings"

// riskMarkers are checked in order; markers are matched case-insensitively.
var riskMarkers = []struct {
	hint    string
	markers []string
}{
	{"captcha", []string{"captcha", "验证码", "人机验证", "安全验证"}},
	{"slider", []string{"rgv587_error", "fail_sys_user_validate", "/punish", "x5secdata", "_____tmd_____", "哎哟喂,被挤爆啦"}},
	{"login", []string{"亲，请登录", "login.taobao.com", "login.tmall.com"}},
	{"forbidden", []string{"forbidden", "access denied"}},
}

// DetectRiskHint names the anti-bot wall a response body looks like, or ""
// when it looks like an ordinary answer.
func DetectRiskHint(body string) string {
	s := strings.ToLower(strings.TrimSpace(body))
	if s == "" {
		return ""
	}
	for _, r := range riskMarkers {
		for _, m := range r.markers {
			if strings.Contains(s, m) {
				return r.hint
			}
		}
	}
	return ""
}
