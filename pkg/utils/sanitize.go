package utils

import (
	"strings"
	"unicode"
)

const maxBaseNameLength = 100 // Max length for sanitized base names

// SanitizeBaseName keeps only letters, digits and the characters '_', '-' and '.'.
// Everything else (spaces, slashes, shell metacharacters) is dropped.
// The result may be empty; callers decide on a fallback.
func SanitizeBaseName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' || r == '.' {
			b.WriteRune(r)
		}
	}
	sanitized := b.String()

	if len(sanitized) > maxBaseNameLength {
		// Truncate on a rune boundary
		cut := 0
		for i := range sanitized {
			if i > maxBaseNameLength {
				break
			}
			cut = i
		}
		sanitized = sanitized[:cut]
	}
	return sanitized
}

// IsSafePathComponent reports whether name can be joined under a directory
// without escaping it.
func IsSafePathComponent(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`) && !strings.Contains(name, "\x00")
}
