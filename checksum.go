package olapbench

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"strings"
)

// FileSHA256 returns the hex-encoded SHA-256 of the file at path.
func FileSHA256(path string) (string, error) {
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

// VerifyChecksum reports whether the file at path hashes to the expected
// SHA-256. It never fails the caller: a missing or unreadable file is simply
// not a match.
func VerifyChecksum(path string, expected string) bool {
	actual, err := FileSHA256(path)
	if err != nil {
		return false
	}
	return strings.EqualFold(actual, expected)
}
