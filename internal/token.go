package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
)

// Refresh tokens are opaque bearer secrets with no embedded structure: 32
// random bytes, base64url without padding. Lookup happens by hash, so the
// plaintext value is never stored server-side.
const refreshSecretSize = 32

var errTokenMalformed = errors.New("malformed opaque token")

// NewOpaqueToken returns a fresh refresh-token value.
func NewOpaqueToken() (string, error) {
	var raw [refreshSecretSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// HashOpaqueToken derives the storage key for a presented token value. A
// malformed value still hashes (the lookup will simply miss); the error is
// reserved for empty input.
func HashOpaqueToken(token string) ([32]byte, error) {
	if token == "" {
		return [32]byte{}, errTokenMalformed
	}
	return sha256.Sum256([]byte(token)), nil
}

// NewStamp returns a security stamp: 32 random bytes, base64url without
// padding.
func NewStamp() (string, error) {
	var raw [32]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// StampsEqual compares two stamps in constant time. Empty stamps never
// compare equal to anything, themselves included.
func StampsEqual(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
