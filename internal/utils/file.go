package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// ContentHash returns the SHA-256 hex fingerprint of data. This is the one
// content-addressing function used across the client and the server catalog.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// FileHash streams a file through SHA-256 and returns the hex fingerprint.
func FileHash(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}

// WriteFileVerified writes data to path and fails if the content does not
// match the expected fingerprint. Parent directories are created as needed.
func WriteFileVerified(path string, data []byte, wantHash string) error {
	if got := ContentHash(data); got != wantHash {
		return fmt.Errorf("integrity check failed for %s: expected %s, got %s", path, wantHash, got)
	}

	if err := EnsureParent(path); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}
