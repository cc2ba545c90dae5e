// Package sha256 fingerprints page content with SHA-256.
package sha256

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
)

// Hasher implements crawler.Hasher. Input is case-folded and whitespace is
// collapsed first, so reflowed copies of the same text share a digest.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash returns the hex digest of the normalized input.
func (h *Hasher) Hash(data []byte) (string, error) {
	normalized := bytes.Join(bytes.Fields(bytes.ToLower(data)), []byte{' '})
	sum := sha256.Sum256(normalized)
	return hex.EncodeToString(sum[:]), nil
}
