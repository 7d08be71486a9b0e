package domain

import (
	"crypto/sha256"
	"encoding/base64"
)

// FingerprintLinkToken returns the value a magic-link token is stored under.
// Plain tokens only ever travel inside the emailed URL.
func FingerprintLinkToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
