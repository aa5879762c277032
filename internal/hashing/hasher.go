// Package hashing provides the salted one-way digest used for request
// metadata (IP, user-agent). Digests are deterministic for a fixed salt so
// equality lookups work, while raw values are never stored.
package hashing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// ErrMissingSalt is returned when no server salt is configured. This is a
// fatal configuration error: running without a salt would silently degrade
// the hasher to an unkeyed digest.
var ErrMissingSalt = errors.New("metadata hash salt is not configured")

// Hasher computes HMAC-SHA256 digests keyed with a server-held salt.
type Hasher struct {
	salt []byte
}

// NewHasher constructs a Hasher. Fails when the salt is unset.
func NewHasher(salt string) (*Hasher, error) {
	if salt == "" {
		return nil, ErrMissingSalt
	}
	return &Hasher{salt: []byte(salt)}, nil
}

// Hash returns the hex digest of value, or "" when value is empty. Absence
// of data is never hashed into a fake zero value.
func (h *Hasher) Hash(value string) string {
	if value == "" {
		return ""
	}
	mac := hmac.New(sha256.New, h.salt)
	mac.Write([]byte(value))
	return hex.EncodeToString(mac.Sum(nil))
}
