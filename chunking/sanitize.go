package chunking

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// controlChars matches the control range Postgres rejects, keeping
// tab, newline and carriage return
var controlChars = regexp.MustCompile(`[\x01-\x08\x0B\x0C\x0E-\x1F]`)

// Sanitize cleans text for storage: NUL bytes and stray control
// characters are dropped, invalid UTF-8 sequences are replaced, and the
// result is NFC-normalized so equal-looking text compares equal.
func Sanitize(text string) string {
	if text == "" {
		return ""
	}
	text = strings.ReplaceAll(text, "\x00", "")
	text = controlChars.ReplaceAllString(text, "")
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, string(utf8.RuneError))
	}
	return norm.NFC.String(text)
}
