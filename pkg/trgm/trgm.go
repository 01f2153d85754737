// Package trgm computes trigram similarity the way the PostgreSQL pg_trgm
// extension does, so in-process matching agrees with the database.
package trgm

import (
	"strings"
	"unicode"
)

// Trigrams returns the set of trigrams of s. Each alphanumeric word is
// lowercased and padded with two spaces in front and one behind.
func Trigrams(s string) map[string]struct{} {
	out := map[string]struct{}{}
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		padded := []rune("  " + w + " ")
		for i := 0; i+3 <= len(padded); i++ {
			out[string(padded[i:i+3])] = struct{}{}
		}
	}
	return out
}

// Similarity is the number of shared trigrams divided by the number of
// distinct trigrams in both strings, in [0, 1].
func Similarity(a, b string) float64 {
	ta, tb := Trigrams(a), Trigrams(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	shared := 0
	for t := range ta {
		if _, ok := tb[t]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(ta)+len(tb)-shared)
}
