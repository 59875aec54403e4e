package session

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
)

const sessionIDLength = 40

// GenerateSessionID generates a cryptographically secure session ID
func GenerateSessionID() string {
	return randomHex(sessionIDLength / 2)
}

// GenerateToken generates a CSRF token
func GenerateToken() string {
	return randomHex(20)
}

func randomHex(n int) string {
	bytes := make([]byte, n)
	// crypto/rand.Read never returns an error on supported platforms
	_, _ = rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

// ValidateSessionID reports whether id has the shape of a generated ID
func ValidateSessionID(id string) bool {
	if len(id) != sessionIDLength {
		return false
	}
	_, err := hex.DecodeString(id)
	return err == nil
}

// SecureCompare compares two tokens in constant time
func SecureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
