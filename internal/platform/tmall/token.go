package tmall

import "regexp"

var tokenRe = regexp.MustCompile(`_m_h5_tk=([^_]+)_`)

// ExtractToken pulls the h5 token out of a raw cookie string. The cookie
// value looks like "<token>_<expiry ms>"; only the part before the first
// underscore takes part in signing.
func ExtractToken(cookie string) (string, bool) {
	m := tokenRe.FindStringSubmatch(cookie)
	if len(m) < 2 || m[1] == "" {
		return "", false
	}
	return m[1], true
}
