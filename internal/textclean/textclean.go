// Package textclean turns raw single-line OCR output into a plausible card-name fragment.
package textclean

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MinEdgeTokenLength is the shortest token kept at either end of a line.
// Shorter edge tokens are almost always frame ornaments read as letters.
const MinEdgeTokenLength = 3

// ornaments are glyphs Tesseract produces from card frame decoration.
const ornaments = "§)(@‘{|’:"

// isOrnament reports whether r is replaced by a space before tokenizing.
func isOrnament(r rune) bool {
	return unicode.IsDigit(r) || strings.ContainsRune(ornaments, r)
}

// Clean normalizes raw OCR output. It drops non-printable runes, blanks out
// ornament glyphs and digits, and trims short tokens from both ends of the
// line. The result may be empty. Clean(Clean(s)) == Clean(s).
func Clean(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		switch {
		case r == utf8.RuneError:
		case isOrnament(r):
			b.WriteByte(' ')
		case unicode.IsPrint(r):
			b.WriteRune(r)
		}
	}

	tokens := strings.Fields(b.String())
	for len(tokens) > 0 && short(tokens[0]) {
		tokens = tokens[1:]
	}
	for len(tokens) > 0 && short(tokens[len(tokens)-1]) {
		tokens = tokens[:len(tokens)-1]
	}
	return strings.Join(tokens, " ")
}

func short(token string) bool {
	return utf8.RuneCountInString(token) < MinEdgeTokenLength
}
