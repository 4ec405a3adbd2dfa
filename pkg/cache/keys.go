package cache

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/platinummonkey/jsonguard/pkg/jsonvalue"
)

// Key identifies a schema document by content. Documents that differ only in
// object member order share a key.
type Key string

// KeyFor returns the SHA-256 of the canonical form of schema
func KeyFor(schema jsonvalue.Value) Key {
	sum := sha256.Sum256([]byte(schema.Canonical()))
	return Key(hex.EncodeToString(sum[:]))
}

// Short returns an abbreviated key for logs
func (k Key) Short() string {
	if len(k) > 12 {
		return string(k[:12])
	}
	return string(k)
}
