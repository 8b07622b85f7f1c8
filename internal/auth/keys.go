package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HashToken returns the hex SHA-256 of a bearer token, ignoring
// surrounding whitespace.
func HashToken(token string) string {
	token = strings.TrimSpace(token)

	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// Fingerprint is a short, log-safe identifier for a token.
func Fingerprint(token string) string {
	return HashToken(token)[:12]
}
