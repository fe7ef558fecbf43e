// Package util holds small helpers shared across packages.
package util

import "fmt"

// redactKeep is how many leading characters of a token survive redaction.
const redactKeep = 8

// Redact shortens a secret for log or display output. Anything past the
// first few characters is replaced; short values are fully masked so the
// length leaks nothing.
func Redact(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= redactKeep {
		return "****"
	}
	return fmt.Sprintf("%s… (%d chars)", s[:redactKeep], len(s))
}
