package domain

import "strings"

// NormalizeEmail trims and lowercases an email address. Every store key and
// every email comparison goes through it.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
