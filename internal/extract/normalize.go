package extract

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	// Trailing attribution like "... by SomeCreator". Anchored at the end so
	// names that legitimately contain "by" mid-string survive.
	trailingByRe = regexp.MustCompile(`(?i)\s*[-—|:]?\s*\bby\s+[\w][\w\s]*$`)

	titleCaser = cases.Title(language.English)
)

// NormalizeName cleans a raw name: collapse whitespace, drop a trailing
// repeated word, strip a trailing "by <name>" clause, and title-case the
// result only when the raw string was entirely lowercase. Intentional
// mixed-case names pass through untouched.
func NormalizeName(raw string) string {
	cleaned := strings.Join(strings.Fields(raw), " ")
	cleaned = dropTrailingRepeat(cleaned)
	cleaned = strings.TrimSpace(trailingByRe.ReplaceAllString(cleaned, ""))

	if cleaned != "" && isAllLower(cleaned) {
		cleaned = titleCaser.String(cleaned)
	}
	return cleaned
}

// dropTrailingRepeat collapses a word repeated at the end of the string
// ("Cool Mod Mod Mod" → "Cool Mod"). Some landing pages double the title in
// <title> via templating.
func dropTrailingRepeat(s string) string {
	words := strings.Fields(s)
	n := len(words)
	for n >= 2 && strings.EqualFold(words[n-1], words[n-2]) {
		n--
	}
	return strings.Join(words[:n], " ")
}

func isAllLower(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsUpper(r) {
			return false
		}
		if unicode.IsLetter(r) {
			hasLetter = true
		}
	}
	return hasLetter
}
