package tmall

import (
	"crypto/md5"
	"encoding/hex"
	"math/rand/v2"
	"strconv"
)

// AppKey identifies the web integration the mtop gateway expects.
const AppKey = "12574478"

type Signer struct {
	appKey string
	random func() float64
}

func NewSigner() *Signer {
	return &Signer{appKey: AppKey, random: rand.Float64}
}

// Sign returns md5(token&ts&appKey&payload) as lowercase hex. Without a token
// the digest of a random number is returned instead: the request still goes
// out and the gateway rejects it.
func (s *Signer) Sign(token string, ts int64, payload string) string {
	if token == "" {
		return md5Hex(strconv.FormatFloat(s.random(), 'f', -1, 64))
	}
	return md5Hex(token + "&" + strconv.FormatInt(ts, 10) + "&" + s.appKey + "&" + payload)
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
