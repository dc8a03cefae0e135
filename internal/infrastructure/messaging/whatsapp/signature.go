package whatsapp

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// VerifySignature checks the X-Hub-Signature-256 header of an inbound
// webhook: "sha256=" followed by an HMAC-SHA256 hex digest of the raw
// body keyed by the app secret. Comparison is constant time.
func VerifySignature(appSecret string, body []byte, signature string) bool {
	if appSecret == "" || signature == "" {
		return false
	}
	return hmac.Equal([]byte(Sign(appSecret, body)), []byte(signature))
}

// Sign computes the X-Hub-Signature-256 value for a body
func Sign(appSecret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifyHandshake answers the Meta webhook subscription handshake: when
// the mode is subscribe and the token matches, the challenge must be
// echoed back verbatim.
func VerifyHandshake(verifyToken, mode, token, challenge string) (string, bool) {
	if mode != "subscribe" || verifyToken == "" || token != verifyToken {
		return "", false
	}
	return challenge, true
}
