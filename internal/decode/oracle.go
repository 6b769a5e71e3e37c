package decode

import (
	"strings"

	"omrflow/internal/sheet"
)

// FromLetters builds an oracle-sourced decode from per-question strings as
// returned by a vision model: "A".."D" for a mark, "?" or empty for blank,
// several letters (e.g. "A/C", "AC") for ambiguous. The list is padded with
// blanks or truncated to the geometry length.
func FromLetters(sheetID string, g sheet.Geometry, letters []string) sheet.Decode {
	out := sheet.Decode{
		SheetID:  sheetID,
		Geometry: g,
		Source:   sheet.SourceOracle,
		Answers:  make([]sheet.Answer, g.Questions()),
	}
	for q := range out.Answers {
		if q >= len(letters) {
			out.Answers[q] = sheet.Blank()
			continue
		}
		out.Answers[q] = ParseLetter(letters[q])
	}
	if len(letters) != g.Questions() {
		out.Warnings = append(out.Warnings, "oracle answer count adjusted to geometry")
	}
	return out
}

// ParseLetter decodes one oracle cell.
func ParseLetter(s string) sheet.Answer {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" || s == "?" || s == "-" {
		return sheet.Blank()
	}
	if o, ok := sheet.ParseOption(s); ok {
		return sheet.Marked(o)
	}
	seen := map[sheet.Option]bool{}
	opts := make([]sheet.Option, 0, 2)
	for _, r := range s {
		o, ok := sheet.ParseOption(string(r))
		if !ok || seen[o] {
			continue
		}
		seen[o] = true
		opts = append(opts, o)
	}
	switch len(opts) {
	case 0:
		return sheet.Blank()
	case 1:
		return sheet.Marked(opts[0])
	default:
		return sheet.Ambiguous(opts...)
	}
}
