// Package charset downgrades externally sourced UTF-8 metadata strings to a
// locale-safe representation for logging and filesystem naming. Malformed
// input never panics; anything outside ASCII collapses to a substitution
// character.
package charset

import (
	"strings"
	"unicode/utf8"
)

// Substitution stands in for any code point that cannot be represented.
const Substitution = '?'

// Normalize returns s with every non-ASCII or malformed code point replaced
// by exactly one substitution character. ASCII-only input is returned
// unchanged, and empty input yields an empty string.
func Normalize(s string) string {
	ascii := true
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			ascii = false
			break
		}
	}
	if ascii {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r < 0x80 && r != utf8.RuneError {
			b.WriteByte(byte(r))
			i += size
			continue
		}
		if r == utf8.RuneError && size == 1 {
			// Malformed input: one substitution covers the whole
			// truncated sequence the lead byte announced, not one per
			// stray byte.
			i += invalidSeqLen(s[i:])
		} else {
			i += size
		}
		b.WriteByte(Substitution)
	}
	return b.String()
}

// invalidSeqLen returns how many bytes of a malformed sequence one
// substitution covers: a valid lead byte plus the continuation bytes
// that followed it, or a single stray byte.
func invalidSeqLen(s string) int {
	want := 1
	switch lead := s[0]; {
	case lead >= 0xC2 && lead <= 0xDF:
		want = 2
	case lead >= 0xE0 && lead <= 0xEF:
		want = 3
	case lead >= 0xF0 && lead <= 0xF4:
		want = 4
	}
	n := 1
	for n < want && n < len(s) && s[n] >= 0x80 && s[n] <= 0xBF {
		n++
	}
	return n
}

// filesystem-reserved on at least one supported platform
const reserved = `/\:*?"<>|`

// SanitizeFilename normalizes s and additionally replaces characters that
// are unsafe in file names, then trims leading and trailing dots and spaces.
func SanitizeFilename(s string) string {
	normalized := Normalize(s)
	var b strings.Builder
	b.Grow(len(normalized))
	for i := 0; i < len(normalized); i++ {
		c := normalized[i]
		if c < 0x20 || strings.IndexByte(reserved, c) >= 0 {
			b.WriteByte('_')
		} else {
			b.WriteByte(c)
		}
	}
	return strings.Trim(b.String(), ". ")
}
