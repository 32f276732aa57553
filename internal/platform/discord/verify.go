package discord

import (
	"crypto/ed25519"
	"encoding/hex"
)

// VerifySignature checks the X-Signature-Ed25519 header against the
// application public key. The signed message is timestamp + raw body.
func VerifySignature(publicKeyHex, timestamp string, body []byte, signatureHex string) bool {
	key, err := hex.DecodeString(publicKeyHex)
	if err != nil || len(key) != ed25519.PublicKeySize {
		return false
	}
	sig, err := hex.DecodeString(signatureHex)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false
	}

	msg := make([]byte, 0, len(timestamp)+len(body))
	msg = append(msg, timestamp...)
	msg = append(msg, body...)
	return ed25519.Verify(ed25519.PublicKey(key), msg, sig)
}
