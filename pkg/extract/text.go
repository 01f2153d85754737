package extract

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	sentenceSplit = regexp.MustCompile(`[.!?;]+(\s+|$)|\n+`)
	caveatSplit   = regexp.MustCompile(`(?i)(,?\s+(but|though|although|except|however|tho)\s+|\s*[—–]\s*|\s+-\s+)`)
	joinSplit     = regexp.MustCompile(`(?i)(,?\s+and\s+)(their|they|the|it|its|i|we|my|our|this|that|his|her)\b`)
	quoteReplacer = strings.NewReplacer("’", "'", "‘", "'", "“", `"`, "”", `"`)
)

type token struct {
	raw string
	low string
	// trailing punctuation ends capitalised runs
	breakAfter bool
}

func (t token) capitalized() bool {
	for _, r := range t.raw {
		return unicode.IsUpper(r) || unicode.IsDigit(r)
	}
	return false
}

func tokenize(text string) []token {
	fields := strings.Fields(quoteReplacer.Replace(text))
	out := make([]token, 0, len(fields))
	for _, f := range fields {
		trimmed := strings.TrimRightFunc(f, isTrailingPunct)
		trimmed = strings.TrimLeftFunc(trimmed, isLeadingPunct)
		if trimmed == "" {
			if len(out) > 0 {
				out[len(out)-1].breakAfter = true
			}
			continue
		}
		out = append(out, token{
			raw:        trimmed,
			low:        strings.ToLower(trimmed),
			breakAfter: len(trimmed) < len(strings.TrimLeftFunc(f, isLeadingPunct)),
		})
	}
	return out
}

func isTrailingPunct(r rune) bool {
	return r != '%' && r != '+' && r != '&' && (unicode.IsPunct(r) || unicode.IsSymbol(r))
}

func isLeadingPunct(r rune) bool {
	return r != '+' && r != '^' && r != '#' && r != '&' && (unicode.IsPunct(r) || unicode.IsSymbol(r))
}

// rawClause is a span of text that carries one sentiment.
type rawClause struct {
	text   string
	caveat bool
}

// splitClauses splits text on sentence punctuation, newlines, caveat
// markers and an "and" that starts a new subject.
func splitClauses(text string) []rawClause {
	text = quoteReplacer.Replace(text)
	var out []rawClause
	for _, sentence := range sentenceSplit.Split(text, -1) {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		parts := splitKeep(sentence, caveatSplit)
		for i, part := range parts {
			for _, sub := range splitJoins(part) {
				sub = strings.TrimSpace(sub)
				if sub == "" {
					continue
				}
				out = append(out, rawClause{text: sub, caveat: i > 0})
			}
		}
	}
	return out
}

func splitKeep(s string, re *regexp.Regexp) []string {
	var out []string
	last := 0
	for _, loc := range re.FindAllStringIndex(s, -1) {
		out = append(out, s[last:loc[0]])
		last = loc[1]
	}
	return append(out, s[last:])
}

// splitJoins cuts before the subject that follows "and", dropping the "and".
func splitJoins(s string) []string {
	var out []string
	last := 0
	for _, loc := range joinSplit.FindAllStringSubmatchIndex(s, -1) {
		out = append(out, s[last:loc[2]])
		last = loc[4]
	}
	return append(out, s[last:])
}

// normalizeSpace lowercases text and collapses whitespace.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(quoteReplacer.Replace(s))), " ")
}
