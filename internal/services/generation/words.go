package generation

import (
	"math"
	"strings"
	"unicode"
)

// CountWords counts whitespace-separated tokens
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// ceilMul returns ceil(n * factor) guarding against float noise on exact products
func ceilMul(n int, factor float64) int {
	return int(math.Ceil(float64(n)*factor - 1e-9))
}

// normalize lowercases and collapses whitespace and punctuation for fuzzy matching
func normalize(s string) string {
	var b strings.Builder
	lastSpace := true
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastSpace = false
			continue
		}
		if !lastSpace {
			b.WriteRune(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "that": true, "this": true,
	"from": true, "into": true, "your": true, "you": true, "are": true, "how": true,
	"why": true, "what": true, "when": true, "about": true, "their": true, "they": true,
	"them": true, "than": true, "then": true, "have": true, "has": true, "its": true,
}

// significantWords returns the distinct non-stopword terms of s with at least 3 runes
func significantWords(s string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, w := range strings.Fields(normalize(s)) {
		if len([]rune(w)) < 3 || stopWords[w] || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}
