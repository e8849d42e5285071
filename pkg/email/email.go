package email

import (
	"regexp"
	"strings"
)

// shape is deliberately loose: one @, a dot in the domain, no whitespace.
var shape = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Valid reports whether addr has the shape of an email address.
func Valid(addr string) bool {
	return shape.MatchString(addr)
}

// Normalize trims and lowercases an address for comparison and storage.
func Normalize(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}
