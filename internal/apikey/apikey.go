// Package apikey issues and hashes API keys. Only hashes are stored.
package apikey

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Prefix marks issued keys so they are recognizable in logs and configs.
const Prefix = "bls_"

// keyBytes is the amount of randomness in a key.
const keyBytes = 24

// Generate returns a new random key.
func Generate() (string, error) {
	buf := make([]byte, keyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate api key: %w", err)
	}
	return Prefix + base64.RawURLEncoding.EncodeToString(buf), nil
}

// Hash returns the hex SHA3-256 digest under which key is stored.
func Hash(key string) string {
	sum := sha3.Sum256([]byte(strings.TrimSpace(key)))
	return hex.EncodeToString(sum[:])
}

// FromHeader extracts the key from an "Authorization: Bearer <key>" value.
// It returns "" when the header is missing or uses another scheme.
func FromHeader(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
