// Package replay resolves replay codes into decoded game records.
//
// A Store sits in front of two pluggable backends: a Storage holding gzip
// compressed records keyed by code (local directory or Postgres) and a
// Fetcher that downloads the same blob from the remote flat-file store
// (plain HTTP or a Google Cloud Storage mirror). Records are decoded lazily
// and never written to the cache unless they decode cleanly.
//
// Summarize projects a decoded record into the small display summary used by
// chat notifications.
package replay

import (
	"fmt"
	"regexp"
)

// CodeLength is the length of a replay code: five characters, a hyphen, five characters.
const CodeLength = 11

var codePattern = regexp.MustCompile(`^[A-Za-z0-9@+]{5}-[A-Za-z0-9@+]{5}$`)

// suspiciousPattern matches codes whose clusters are purely alphabetic, such as
// "hello-world". Those are usually incidental text rather than shared replays.
var suspiciousPattern = regexp.MustCompile(`^[A-Za-z]{5}-[A-Za-z]{5}$`)

// Code is a validated replay code. The zero value is not a valid code; obtain
// one through ParseCode.
type Code string

// ParseCode validates s against the replay code grammar.
func ParseCode(s string) (Code, error) {
	if !IsCode(s) {
		return "", fmt.Errorf("invalid replay code %q", s)
	}
	return Code(s), nil
}

// IsCode reports whether s is exactly one replay code.
func IsCode(s string) bool {
	return len(s) == CodeLength && codePattern.MatchString(s)
}

// IsCodeChar reports whether c may appear in either cluster of a replay code.
func IsCodeChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '@' || c == '+':
		return true
	}
	return false
}

// Suspicious reports whether the code has the low-entropy shape of ordinary
// words joined by a hyphen.
func (c Code) Suspicious() bool { return suspiciousPattern.MatchString(string(c)) }

func (c Code) String() string { return string(c) }
