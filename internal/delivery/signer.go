// Package delivery fans domain events out to tenant-registered HTTPS
// endpoints: signed payloads, a fixed backoff ladder, and permanent-failure
// marking with a tenant-visible attempt history.
package delivery

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Signature scheme: HMAC-SHA256 over the raw JSON body with the endpoint's
// secret, hex-encoded, versioned in the header value.
const (
	SignatureHeader = "X-Deskbridge-Signature"
	TimestampHeader = "X-Deskbridge-Timestamp"
	DeliveryHeader  = "X-Deskbridge-Delivery"
)

func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "v1=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature is the receiver-side check; tenants implement the same
// comparison.
func VerifySignature(secret string, body []byte, provided string) bool {
	return hmac.Equal([]byte(Sign(secret, body)), []byte(provided))
}
