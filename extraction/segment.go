package extraction

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/habiliai/memoryd/errors"
	"github.com/habiliai/memoryd/internal/stringutils"
)

const (
	minStatementLen = 3
	maxDocumentLen  = 256 * 1024
)

var (
	bulletRegexp  = regexp.MustCompile(`^\s*(?:[-*+•]|\d+[.)])\s+`)
	headingRegexp = regexp.MustCompile(`^\s*#{1,6}\s`)
	ruleRegexp    = regexp.MustCompile(`^\s*(?:-{3,}|\*{3,}|_{3,})\s*$`)
)

// Segment splits a profile document into candidate atomic statements in
// document order. Headings and horizontal rules are dropped.
func Segment(text string) ([]string, error) {
	if !utf8.ValidString(text) {
		return nil, errors.Validationf("profile is not valid UTF-8")
	}
	if len(text) > maxDocumentLen {
		return nil, errors.Validationf("profile is %d bytes, at most %d are accepted", len(text), maxDocumentLen)
	}

	var statements []string
	var paragraph []string
	flush := func() {
		if len(paragraph) == 0 {
			return
		}
		for _, s := range splitSentences(strings.Join(paragraph, " ")) {
			s = stringutils.CollapseSpace(stringutils.Sanitize(s))
			if len([]rune(s)) >= minStatementLen {
				statements = append(statements, s)
			}
		}
		paragraph = paragraph[:0]
	}

	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		switch {
		case strings.TrimSpace(line) == "", headingRegexp.MatchString(line), ruleRegexp.MatchString(line):
			flush()
		case bulletRegexp.MatchString(line):
			flush()
			paragraph = append(paragraph, bulletRegexp.ReplaceAllString(line, ""))
		default:
			paragraph = append(paragraph, strings.TrimSpace(line))
		}
	}
	flush()

	if len(statements) == 0 {
		return nil, errors.Validationf("profile contains no statements")
	}
	return statements, nil
}

// splitSentences cuts after ., ! or ? when followed by whitespace and an
// upper-case letter, digit or quote, so "e.g. foo" stays whole.
func splitSentences(text string) []string {
	runes := []rune(text)
	var out []string
	start := 0
	for i := 0; i < len(runes); i++ {
		if !strings.ContainsRune(".!?", runes[i]) {
			continue
		}
		j := i + 1
		for j < len(runes) && strings.ContainsRune(".!?\"')", runes[j]) {
			j++
		}
		if j < len(runes) && runes[j] != ' ' {
			continue
		}
		k := j
		for k < len(runes) && runes[k] == ' ' {
			k++
		}
		if k < len(runes) && !startsSentence(runes[k]) {
			continue
		}
		out = append(out, strings.TrimSpace(string(runes[start:j])))
		start = k
		i = k - 1
	}
	if start < len(runes) {
		out = append(out, strings.TrimSpace(string(runes[start:])))
	}
	return out
}

func startsSentence(r rune) bool {
	return r == '"' || r == '\'' || unicode.IsDigit(r) || unicode.IsUpper(r)
}
