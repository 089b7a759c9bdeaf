// Package keys generates the opaque hex keys used throughout linkmark:
// user keys, public tag share keys and the system key are all random hex
// strings whose possession is the only credential.
package keys

import (
	"crypto/rand"
	"encoding/hex"
)

const (
	// UserKeyBytes is the entropy of a user key (48 hex chars).
	UserKeyBytes = 24
	// TagKeyBytes is the entropy of a public tag share key (32 hex chars).
	TagKeyBytes = 16
)

// NewUserKey returns a fresh random user key.
func NewUserKey() string {
	return randomHex(UserKeyBytes)
}

// NewTagKey returns a fresh random share key for a public tag. Collisions
// are treated as negligible; there is no retry loop.
func NewTagKey() string {
	return randomHex(TagKeyBytes)
}

func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand never fails on supported platforms
		panic(err)
	}
	return hex.EncodeToString(b)
}
