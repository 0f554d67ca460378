// Package signature provides HMAC-SHA256 signing for outgoing webhook
// requests, plus generation of the per-destination signing secrets.
package signature

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Header names carried on every signed webhook request.
const (
	HeaderSignature = "X-Langboard-Signature"
	HeaderTimestamp = "X-Langboard-Timestamp"
)

// Sign generates the HMAC-SHA256 signature for a webhook body.
// The content signed is "{timestamp}.{body}" and the result is versioned
// as "v1=<hex>" so the scheme can evolve without breaking receivers.
func Sign(body []byte, secret string, timestamp int64) string {
	content := fmt.Sprintf("%d.%s", timestamp, body)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(content))
	return "v1=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether sig matches the expected signature for the
// body, secret, and timestamp. Comparison is constant time.
func Verify(body []byte, secret string, timestamp int64, sig string) bool {
	expected := Sign(body, secret, timestamp)
	return hmac.Equal([]byte(expected), []byte(sig))
}

// GenerateSecret creates a cryptographically random signing secret.
// Format: "whsec_" + 32 bytes hex.
func GenerateSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic("langboard: failed to generate random secret: " + err.Error())
	}
	return "whsec_" + hex.EncodeToString(b)
}
