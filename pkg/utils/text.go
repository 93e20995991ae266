package utils

import (
	"strings"
	"unicode"
)

// TruncateRunes returns at most max runes of s. Multi-byte characters are never split.
func TruncateRunes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// SanitizeToken turns a channel name such as "#alerts" or "team ops/db" into a
// token usable as a NATS subject element ("alerts", "team-ops-db").
func SanitizeToken(name string) string {
	name = strings.TrimLeft(strings.TrimSpace(name), "#@")
	var b strings.Builder
	for _, r := range name {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '_', r == '-':
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteByte('-')
		}
	}
	token := strings.Trim(b.String(), "-")
	if token == "" {
		return "unnamed"
	}
	return token
}
