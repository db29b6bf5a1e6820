// Package scan extracts replay codes and unit names from chat text.
package scan

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/onnwee/replaybot/replay"
	"github.com/onnwee/replaybot/unit"
)

// ErrTooMany reports that a message carries more references than allowed.
// Callers discard the whole batch.
var ErrTooMany = errors.New("too many references")

// TooManyError carries the count that exceeded the limit. It matches ErrTooMany.
type TooManyError struct {
	Kind  string
	Found int
	Max   int
}

func (e *TooManyError) Error() string {
	return fmt.Sprintf("too many %s references: %d > %d", e.Kind, e.Found, e.Max)
}

// Is reports target == ErrTooMany.
func (e *TooManyError) Is(target error) bool { return target == ErrTooMany }

var queryPrefixes = []string{"?r=", "&r="}

// Codes finds replay codes in text. Ignored holds substrings that disqualify a
// code (compared case-insensitively). Max <= 0 disables the limit.
type Codes struct {
	Ignored []string
	Max     int
}

// Scan returns the distinct codes in first-appearance order.
func (s Codes) Scan(text string) ([]replay.Code, error) {
	var out []replay.Code
	seen := make(map[replay.Code]bool)
	for i := 0; i+replay.CodeLength <= len(text); {
		code, err := replay.ParseCode(text[i : i+replay.CodeLength])
		if err != nil || !leftDelimited(text, i) || !rightDelimited(text, i+replay.CodeLength) {
			i++
			continue
		}
		i += replay.CodeLength
		if seen[code] || s.ignored(string(code)) {
			continue
		}
		seen[code] = true
		out = append(out, code)
	}
	if s.Max > 0 && len(out) > s.Max {
		return nil, &TooManyError{Kind: "replay", Found: len(out), Max: s.Max}
	}
	return out, nil
}

func (s Codes) ignored(code string) bool {
	lc := strings.ToLower(code)
	for _, w := range s.Ignored {
		if w != "" && strings.Contains(lc, strings.ToLower(w)) {
			return true
		}
	}
	return false
}

func leftDelimited(text string, i int) bool {
	if i == 0 {
		return true
	}
	for _, p := range queryPrefixes {
		if strings.HasSuffix(text[:i], p) {
			return true
		}
	}
	r, _ := utf8.DecodeLastRuneInString(text[:i])
	return r == '(' || unicode.IsSpace(r)
}

func rightDelimited(text string, j int) bool {
	if j == len(text) {
		return true
	}
	if replay.IsCodeChar(text[j]) || text[j] == '-' {
		return false
	}
	r, _ := utf8.DecodeRuneInString(text[j:])
	return r == '&' || unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r)
}

var taggedPattern = regexp.MustCompile(`\[\[([\w ]+)\]\]`)

// maxWindow is the longest run of words tried as one loose unit name.
const maxWindow = 3

// Units resolves unit names through an alias table. Max <= 0 disables the limit.
type Units struct {
	Aliases unit.Aliases
	Max     int
}

// Tagged resolves names written as [[name]].
func (s Units) Tagged(text string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	for _, m := range taggedPattern.FindAllStringSubmatch(text, -1) {
		if name, ok := s.lookup(strings.Fields(m[1])); ok && !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return s.limit(out)
}

// Loose tries every run of up to three words, keeping the shortest run that
// resolves at each starting word.
func (s Units) Loose(text string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	words := strings.Fields(text)
	for i := range words {
		for n := 1; n <= maxWindow && i+n <= len(words); n++ {
			name, ok := s.lookup(words[i : i+n])
			if !ok {
				continue
			}
			if !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
			break
		}
	}
	return s.limit(out)
}

func (s Units) lookup(words []string) (string, bool) {
	if len(words) == 0 {
		return "", false
	}
	return s.Aliases.Lookup(strings.ToUpper(strings.Join(words, " ")))
}

func (s Units) limit(names []string) ([]string, error) {
	if s.Max > 0 && len(names) > s.Max {
		return nil, &TooManyError{Kind: "unit", Found: len(names), Max: s.Max}
	}
	return names, nil
}
