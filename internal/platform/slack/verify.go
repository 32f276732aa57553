package slack

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// ReplayWindow bounds how old a request timestamp may be before we refuse to
// verify it. Slack recommends five minutes.
const ReplayWindow = 5 * time.Minute

// VerifySignature checks the X-Slack-Signature header: HMAC-SHA256 over
// "v0:{timestamp}:{raw body}" with the deployment signing secret. Requests
// outside the replay window fail regardless of the signature.
func VerifySignature(signingSecret, timestamp string, body []byte, provided string, now time.Time) bool {
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	age := now.Sub(time.Unix(ts, 0))
	if age > ReplayWindow || age < -ReplayWindow {
		return false
	}

	mac := hmac.New(sha256.New, []byte(signingSecret))
	mac.Write([]byte("v0:" + timestamp + ":"))
	mac.Write(body)
	expected := "v0=" + hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(provided))
}
