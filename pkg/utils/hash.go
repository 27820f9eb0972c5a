package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HashString returns a hex sha256 digest of input.
func HashString(input string) string {
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])
}

// HashParts hashes parts joined by a NUL separator so ("ab","c") and ("a","bc") differ.
func HashParts(parts ...string) string {
	return HashString(strings.Join(parts, "\x00"))
}
