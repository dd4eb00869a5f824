package util

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
)

// Checksum returns the hex SHA-256 of the concatenated parts
func Checksum(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		io.WriteString(h, p)
	}
	return hex.EncodeToString(h.Sum(nil))
}
