package extract

import (
	"slices"
	"strings"
)

// Decomposition is a food phrase split into its canonical term and the
// category chain above it.
type Decomposition struct {
	Primary    string   `json:"primary"`
	Categories []string `json:"categories"`
}

// Decompose canonicalises phrase and derives its parent categories by
// stripping leading modifier nouns one at a time, adding standalone food
// modifiers and known culinary parents. Attribute terms are removed first
// and never appear in the result.
//
//	Decompose("nashville hot chicken sandwich", nil).Categories
//	// [nashville hot chicken sandwich, hot chicken sandwich, chicken sandwich, sandwich, chicken]
func Decompose(phrase string, attributes []string) Decomposition {
	words := stripAttributes(strings.Fields(NormalizeName(phrase)), attributes)
	if len(words) == 0 {
		return Decomposition{}
	}

	primary := singularPhrase(strings.Join(words, " "))
	words = strings.Fields(primary)

	attrWords := map[string]struct{}{}
	for _, a := range attributes {
		for _, w := range strings.Fields(NormalizeName(a)) {
			attrWords[w] = struct{}{}
		}
	}

	var cats []string
	add := func(c string) {
		if c == "" || slices.Contains(cats, c) || has(genericHeads, c) {
			return
		}
		for _, w := range strings.Fields(c) {
			if has(attrWords, w) {
				return
			}
		}
		cats = append(cats, c)
	}

	add(primary)
	if !has(foodNouns, primary) {
		for i := 1; i < len(words); i++ {
			if isNameConnector(words[i]) {
				continue
			}
			suffix := strings.Join(words[i:], " ")
			add(suffix)
			if len(words)-i > 1 && has(foodNouns, suffix) {
				break
			}
		}
		for _, w := range words[:len(words)-1] {
			if isFoodNoun(w) {
				add(singular(w))
			}
		}
	}

	for _, c := range slices.Clone(cats) {
		for _, p := range knownParents[c] {
			add(p)
		}
	}

	return Decomposition{Primary: primary, Categories: cats}
}

func stripAttributes(words []string, attributes []string) []string {
	for _, a := range attributes {
		aw := strings.Fields(NormalizeName(a))
		if len(aw) == 0 {
			continue
		}
		for i := 0; i+len(aw) <= len(words); {
			if slices.Equal(words[i:i+len(aw)], aw) {
				words = slices.Delete(slices.Clone(words), i, i+len(aw))
				continue
			}
			i++
		}
	}
	return words
}
