package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
)

// HashFile returns the hex SHA-256 of a file's contents. Step logs are
// small, so the whole file is read at once.
func HashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return hashBytes(data), nil
}

// HashString returns the hex SHA-256 of a string.
func HashString(data string) string {
	return hashBytes([]byte(data))
}

func hashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
