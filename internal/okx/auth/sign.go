package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strconv"
	"time"
)

const verifyPath = "/users/self/verify"

// Sign computes the OKX request signature: base64 of the HMAC-SHA256 of the
// prehash string under the account secret.
func Sign(secret, prehash string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(prehash))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// RestSign signs a REST request. The timestamp must be the ISO-8601
// millisecond form sent in the OK-ACCESS-TIMESTAMP header.
func RestSign(secret, timestamp, method, requestPath, body string) string {
	return Sign(secret, timestamp+method+requestPath+body)
}

// LoginSignature produces the websocket login timestamp and signature pair.
// The prehash is the Unix-seconds timestamp, the literal "GET", and the fixed
// verification path.
func LoginSignature(secret string, now time.Time) (timestamp, signature string) {
	timestamp = strconv.FormatInt(now.Unix(), 10)
	signature = Sign(secret, timestamp+"GET"+verifyPath)
	return timestamp, signature
}
