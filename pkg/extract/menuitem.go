package extract

import (
	"strings"
)

var (
	menuItemCues = []string{
		"try their", "try the", "get the", "get their", "order the", "ordered the", "ordered their",
		"known for", "famous for", "had the", "go for the", "signature", "must try", "must-try",
		"recommend the", "ask for the",
	}
	categoryCues = []string{
		"type of", "types of", "kind of", "kinds of", "all kinds", "specialize in", "specializes in",
		"specializing in", "specialise in", "variety of", "selection of", "lots of", "any kind of",
	}
)

// IsMenuItem reports whether term is used as a specific orderable dish in
// sentence. Heuristics run in order and the first confident one wins:
// specificity, plurality, cue phrases, co-mention with siblings, default.
func IsMenuItem(term, sentence string, siblings []string) bool {
	term = NormalizeName(term)
	sentence = normalizeSpace(sentence)
	if term == "" {
		return false
	}
	if v, ok := bySpecificity(term); ok {
		return v
	}
	words := strings.Fields(strings.Map(stripPunct, sentence))
	pos := locateTerm(term, words)
	if v, ok := byPlurality(term, words, pos); ok {
		return v
	}
	if v, ok := byCuePhrase(words, pos); ok {
		return v
	}
	if v, ok := byCoMention(term, siblings); ok {
		return v
	}
	return byDefault(words, pos)
}

func stripPunct(r rune) rune {
	switch r {
	case ',', '.', '!', '?', ';', ':', '(', ')', '"':
		return ' '
	}
	return r
}

func bySpecificity(term string) (bool, bool) {
	if isBroadCategory(term) {
		return false, true
	}
	if strings.Contains(term, " ") {
		return true, true
	}
	return false, false
}

// locateTerm returns the index of the term's head word in words, or -1.
func locateTerm(term string, words []string) int {
	tw := strings.Fields(term)
	head := tw[len(tw)-1]
	for i, w := range words {
		if w == head || singular(w) == head {
			return i
		}
	}
	return -1
}

func byPlurality(term string, words []string, pos int) (bool, bool) {
	if pos < 0 {
		return false, false
	}
	if w := words[pos]; w != singular(w) && singular(w) == strings.Fields(term)[len(strings.Fields(term))-1] {
		return false, true
	}
	start := pos - len(strings.Fields(term)) + 1
	for k := start - 1; k >= 0; k-- {
		if isAttributeWord(words[k]) {
			continue
		}
		if has(menuDeterminers, words[k]) {
			return true, true
		}
		break
	}
	return false, false
}

func byCuePhrase(words []string, pos int) (bool, bool) {
	if pos < 0 {
		return false, false
	}
	before := strings.Join(words[:pos], " ")
	for _, cue := range categoryCues {
		if containsPhrase(before, cue) {
			return false, true
		}
	}
	for _, cue := range menuItemCues {
		if containsPhrase(before, cue) {
			return true, true
		}
	}
	return false, false
}

func byCoMention(term string, siblings []string) (bool, bool) {
	for _, s := range siblings {
		s = NormalizeName(s)
		if s == "" || s == term {
			continue
		}
		if strings.HasSuffix(s, " "+term) {
			return false, true
		}
		if strings.HasSuffix(term, " "+s) {
			return true, true
		}
	}
	return false, false
}

func byDefault(words []string, pos int) bool {
	if pos < 0 {
		return false
	}
	for _, w := range words[:pos] {
		if has(orderVerbs, w) {
			return true
		}
	}
	return false
}
