// Package textnorm normalizes free-form user text before it is validated or sent to a model.
package textnorm

import (
	"strings"
	"unicode/utf8"
)

// punctuation is the ASCII punctuation set removed by Clean.
const punctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

// Clean collapses runs of whitespace into a single space and then strips ASCII
// punctuation. Punctuation surrounded by spaces leaves both spaces behind: "a - b"
// becomes "a  b". Non-ASCII letters and marks (accents, ñ, ¿) are kept.
func Clean(s string) string {
	return strings.Map(func(r rune) rune {
		if r < utf8.RuneSelf && strings.ContainsRune(punctuation, r) {
			return -1
		}
		return r
	}, CollapseSpace(s))
}

// CollapseSpace trims s and replaces each run of Unicode whitespace with one space.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Length returns the number of characters (runes) in s.
func Length(s string) int {
	return utf8.RuneCountInString(s)
}

// Truncate returns s cut to at most maxLen runes.
func Truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen])
}
