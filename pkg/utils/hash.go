package utils

import (
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
)

// URLHash returns the hex MD5 digest of a URL string. Used for stable,
// non-secret identifiers (filenames when a URL has no path segment).
func URLHash(rawURL string) string {
	sum := md5.Sum([]byte(rawURL))
	return hex.EncodeToString(sum[:])
}

// RandomHex returns n random hex characters.
func RandomHex(n int) string {
	buf := make([]byte, (n+1)/2)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand does not fail on supported platforms
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}
	return hex.EncodeToString(buf)[:n]
}

// FileSize returns the size of the file at path, or 0 if it cannot be stat'ed.
func FileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

