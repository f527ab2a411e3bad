package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
)

// RenewalTokenBytes is the entropy of a renewal token before encoding.
const RenewalTokenBytes = 32

// NewRenewalToken returns an opaque 256-bit renewal token, base64url encoded
// without padding (43 chars).
func NewRenewalToken() (string, error) {
	return RandomString(RenewalTokenBytes)
}

// RandomString returns size random bytes, base64url encoded without padding.
func RandomString(size int) (string, error) {
	if size <= 0 {
		return "", fmt.Errorf("cryptox: size must be positive, got %d", size)
	}

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("cryptox: read random: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// FingerprintToken is the SHA-256 of token, base64url encoded (43 chars).
// Stores and logs only ever see fingerprints.
func FingerprintToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// MatchFingerprint reports whether raw hashes to fingerprint, in constant time.
func MatchFingerprint(raw, fingerprint string) bool {
	got := FingerprintToken(raw)
	return subtle.ConstantTimeCompare([]byte(got), []byte(fingerprint)) == 1
}
