package utils

import (
	"crypto/rand"
	"encoding/hex"
)

// TokenHex returns a random hex string of n bytes.
func TokenHex(n int) string {
	buf := make([]byte, n)
	rand.Read(buf)
	return hex.EncodeToString(buf)
}
