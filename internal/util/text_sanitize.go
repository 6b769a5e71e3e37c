package util

import (
	"strings"
	"unicode"
)

// SanitizeText removes bytes and control characters that Postgres text columns reject.
// OCR and model output occasionally carry NUL bytes.
func SanitizeText(s string) string {
	if s == "" {
		return s
	}
	s = strings.ReplaceAll(s, "\x00", "")

	r := make([]rune, 0, len(s))
	for _, ch := range s {
		if ch == '\n' || ch == '\r' || ch == '\t' {
			r = append(r, ch)
			continue
		}
		if ch < 0x20 {
			continue
		}
		r = append(r, ch)
	}
	return strings.TrimSpace(string(r))
}

// CleanField sanitizes s and collapses runs of whitespace, for values that go
// into a single spreadsheet cell.
func CleanField(s string) string {
	return strings.Join(strings.Fields(SanitizeText(s)), " ")
}

// Snippet shortens s to maxRunes printable runes for log lines.
func Snippet(s string, maxRunes int) string {
	if maxRunes <= 0 {
		maxRunes = 200
	}
	out := make([]rune, 0, len(s))
	for _, r := range CleanField(s) {
		if unicode.IsPrint(r) {
			out = append(out, r)
		}
	}
	if len(out) > maxRunes {
		return strings.TrimSpace(string(out[:maxRunes])) + "..."
	}
	return string(out)
}
