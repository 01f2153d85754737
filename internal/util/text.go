package util

import (
	"strings"
	"unicode/utf8"
)

func SanitizePostgresText(value string) string {
	if value == "" {
		return value
	}

	sanitized := strings.ToValidUTF8(value, "")
	return strings.ReplaceAll(sanitized, "\x00", "")
}

// Excerpt sanitizes value and cuts it to at most maxRunes runes, appending
// an ellipsis when something was cut.
func Excerpt(value string, maxRunes int) string {
	value = strings.TrimSpace(SanitizePostgresText(value))
	if maxRunes <= 0 || utf8.RuneCountInString(value) <= maxRunes {
		return value
	}
	runes := []rune(value)
	return strings.TrimSpace(string(runes[:maxRunes])) + "…"
}
