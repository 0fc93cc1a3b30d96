// Package text provides transcript normalization for keyword matching.
package text

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// combiningDiacriticals is the Combining Diacritical Marks block (U+0300–U+036F).
var combiningDiacriticals = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x0300, Hi: 0x036f, Stride: 1},
	},
}

// Normalize decomposes s (NFD), strips combining diacritical marks and
// lowercases the result. "ÁÉÍÓÚ" becomes "aeiou".
func Normalize(s string) string {
	if s == "" {
		return ""
	}

	// Chained transformers keep internal state, so build one per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(combiningDiacriticals)))
	result, _, err := transform.String(t, s)
	if err != nil {
		result = s
	}
	return strings.ToLower(result)
}

// LastWord returns the final whitespace-separated word of a transcript,
// or "" if the transcript has no words.
func LastWord(transcript string) string {
	words := strings.Fields(transcript)
	if len(words) == 0 {
		return ""
	}
	return words[len(words)-1]
}
