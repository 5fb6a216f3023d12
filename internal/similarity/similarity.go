// Package similarity scores how close a typed or spoken answer is to the
// expected text.
package similarity

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/agext/levenshtein"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Exact is the score of two strings that are equal after normalization.
const Exact = 100

// Normalize trims and collapses whitespace, composes to NFC and applies
// Unicode case folding. Scores compare normalized strings only.
func Normalize(s string) string {
	s = norm.NFC.String(s)
	s = strings.Join(strings.Fields(s), " ")
	// A Caser keeps internal state, so build one per call.
	return cases.Fold().String(s)
}

// Score returns a similarity percentage in [0, 100] between detected and
// expected. Both strings are normalized first; 100 means an exact match
// and is never returned for strings that differ.
func Score(detected, expected string) int {
	a, b := Normalize(detected), Normalize(expected)
	if a == b {
		return Exact
	}
	if a == "" || b == "" {
		return 0
	}

	dist := levenshtein.Distance(a, b, nil)
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))

	pct := int(math.Round((1 - float64(dist)/float64(longest)) * 100))
	switch {
	case pct < 0:
		return 0
	case pct >= Exact:
		// Very long strings that differ by one rune can round up.
		return Exact - 1
	}
	return pct
}
