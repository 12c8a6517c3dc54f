package model

import "strings"

// Normalize derives the correction key of a prompt: surrounding whitespace
// trimmed and case folded. Inner whitespace is preserved.
func Normalize(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}
