package osa

import (
	"fmt"
	"strings"
)

// EncodeLiteral renders text as an AppleScript string expression. Printable
// ASCII stays inside double-quoted runs with backslashes and double quotes
// escaped; every other rune is spliced in as a character id term, because
// AppleScript string literals have no escape syntax for arbitrary
// characters.
func EncodeLiteral(text string) string {
	var parts []string
	var run strings.Builder
	flush := func() {
		if run.Len() > 0 {
			parts = append(parts, `"`+run.String()+`"`)
			run.Reset()
		}
	}
	for _, r := range text {
		switch {
		case r == '\\':
			run.WriteString(`\\`)
		case r == '"':
			run.WriteString(`\"`)
		case r >= 0x20 && r < 0x7f:
			run.WriteRune(r)
		default:
			flush()
			parts = append(parts, fmt.Sprintf("(character id %d)", r))
		}
	}
	flush()
	if len(parts) == 0 {
		return `""`
	}
	return strings.Join(parts, " & ")
}

// EncodeConcatenatedBlock renders multi-line text as per-line literals
// joined by the linefeed token. A raw line break would terminate the script
// argument, so the break must be reintroduced on the script side.
func EncodeConcatenatedBlock(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	encoded := make([]string, 0, len(lines))
	for _, line := range lines {
		encoded = append(encoded, EncodeLiteral(line))
	}
	return strings.Join(encoded, " & linefeed & ")
}
