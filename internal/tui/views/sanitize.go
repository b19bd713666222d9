package views

import (
	"strings"
	"unicode"
)

// sanitizeForTerminal drops codepoints that tcell renders badly or that
// could drive the terminal: control characters (escape sequences
// included), zero width joiners, skin tone modifiers and variation
// selectors. Newlines and tabs become spaces.
func sanitizeForTerminal(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t' || r == '\r':
			return ' '
		case unicode.IsControl(r):
			return -1
		case r == 0x200D:
			return -1
		case r >= 0x1F3FB && r <= 0x1F3FF:
			return -1
		case r >= 0xFE00 && r <= 0xFE0F, r >= 0xE0100 && r <= 0xE01EF:
			return -1
		}
		return r
	}, s)
}

// sanitizeMultiline is sanitizeForTerminal for message bodies, keeping
// line breaks.
func sanitizeMultiline(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	for i, l := range lines {
		lines[i] = sanitizeForTerminal(l)
	}
	return strings.Join(lines, "\n")
}
