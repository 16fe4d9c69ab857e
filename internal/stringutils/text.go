package stringutils

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Sanitize drops NUL, C0/C1 control characters and invalid UTF-8 while
// keeping tabs and line breaks.
func Sanitize(s string) string {
	if utf8.ValidString(s) && !hasControlChars(s) {
		return s
	}

	var builder strings.Builder
	builder.Grow(len(s))
	for _, r := range s {
		if r == utf8.RuneError || isControl(r) {
			continue
		}
		if unicode.IsPrint(r) || unicode.IsSpace(r) {
			builder.WriteRune(r)
		}
	}

	return builder.String()
}

// CollapseSpace trims s and folds every run of whitespace into one space.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Normalize is the canonical form used for content hashing: sanitized,
// lower-cased, whitespace-collapsed and without trailing sentence punctuation.
func Normalize(s string) string {
	s = strings.ToLower(CollapseSpace(Sanitize(s)))
	return strings.TrimRight(s, ".!?;: ")
}

// Slug turns free text into a namespace-safe segment.
func Slug(s string) string {
	var builder strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			builder.WriteRune(r)
			dash = false
		case !dash && builder.Len() > 0:
			builder.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimRight(builder.String(), "-")
}

func isControl(r rune) bool {
	if r < 32 && r != '\t' && r != '\n' && r != '\r' {
		return true
	}
	return r == 127 || (r >= 128 && r <= 159)
}

func hasControlChars(s string) bool {
	for _, r := range s {
		if isControl(r) {
			return true
		}
	}
	return false
}
