package util

import (
	"crypto/rand"
	"encoding/hex"
)

func NewID(prefix string) string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	if prefix == "" {
		return hex.EncodeToString(bytes)
	}
	return prefix + "_" + hex.EncodeToString(bytes)
}

const shareAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// NewShareID returns the short lowercase identifier embedded in public
// share links. Kept at 8 characters for compatibility with existing links.
func NewShareID() string {
	bytes := make([]byte, 8)
	_, _ = rand.Read(bytes)
	out := make([]byte, len(bytes))
	for i, b := range bytes {
		out[i] = shareAlphabet[int(b)%len(shareAlphabet)]
	}
	return string(out)
}
