package common

import (
	"crypto/rand"
	"encoding/base64"
)

// RefreshTokenBytes is the entropy of an opaque refresh token (256 bits).
const RefreshTokenBytes = 32

// GenerateOpaqueToken returns a base64-encoded string of size random bytes
// read from crypto/rand. It is used for refresh tokens, where the encoded
// string itself is the lookup key, so collisions are ruled out by entropy
// plus a uniqueness constraint in the store.
func GenerateOpaqueToken(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}
