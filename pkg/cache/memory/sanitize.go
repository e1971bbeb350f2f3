package memory

import (
	"fmt"
	"strings"
)

// Sanitize makes text safe to embed in JSON and JavaScript sources. Control
// characters (C0, DEL and C1) become spaces, except tab, line feed and carriage
// return. U+2028 and U+2029 become line feeds. Invalid UTF-8 bytes become U+FFFD.
// Sanitize(Sanitize(s)) == Sanitize(s).
func Sanitize(s string) string {
	return strings.Map(sanitizeRune, s)
}

// SanitizeValue is Sanitize for values that are not strings yet.
func SanitizeValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return Sanitize(t)
	case []byte:
		return Sanitize(string(t))
	default:
		return Sanitize(fmt.Sprint(t))
	}
}

func sanitizeRune(r rune) rune {
	switch {
	case r == '\t' || r == '\n' || r == '\r':
		return r
	case r <= 0x1f, r >= 0x7f && r <= 0x9f:
		return ' '
	case r == '\u2028' || r == '\u2029':
		return '\n'
	}
	return r
}
