// ABOUTME: CSRF token generation and timing-safe comparison.
// ABOUTME: Tokens are opaque 32-byte CSPRNG values hex-encoded to 64 lowercase chars.
package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// TokenLength is the length in characters of an encoded CSRF token.
const TokenLength = 64

// GenerateToken returns a fresh CSRF token: 32 random bytes hex-encoded.
func GenerateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate csrf token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// VerifyToken reports whether a and b are non-empty and byte-identical,
// compared in constant time. No trimming or case-folding is performed:
// whitespace-padded or upper-cased tokens are rejected.
func VerifyToken(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// ValidTokenShape reports whether s looks like a token this package minted:
// exactly 64 lowercase hex characters. Used to decide whether an existing
// cookie can be kept or must be superseded.
func ValidTokenShape(s string) bool {
	if len(s) != TokenLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
