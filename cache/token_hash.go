package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// fingerprintLength is the number of hex characters kept by Fingerprint.
const fingerprintLength = 12

// HashToken hashes a token string, this will makes the token much shorter.
// The shorter token can be found faster in the cache.
func HashToken(token string) string {
	hasher := sha256.New()
	hasher.Write([]byte(token))
	hashedBytes := hasher.Sum(nil)
	return hex.EncodeToString(hashedBytes)
}

// Fingerprint identifies a token in logs without revealing it.
func Fingerprint(token string) string {
	if token == "" {
		return ""
	}
	return HashToken(token)[:fingerprintLength]
}
