package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

const appTokenPrefix = "amt_"

// GenerateAppToken mints a raw SDK token plus its storable hash. The raw token
// is returned to the publisher once; only the hash hits the database.
func GenerateAppToken() (raw string, hash string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generating app token: %w", err)
	}
	raw = appTokenPrefix + hex.EncodeToString(buf)
	return raw, HashAppToken(raw), nil
}

// HashAppToken returns the hex SHA-256 digest used to look tokens up.
func HashAppToken(raw string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(raw)))
	return hex.EncodeToString(sum[:])
}
