// Package keys maps user-facing key tokens to the control characters a
// terminal expects on its input stream.
package keys

import (
	"fmt"
	"strings"
)

// Code resolves a token like "C", "^C", "ctrl-c", or "escape" to its control
// character. Letters map to their control codes (C becomes 0x03), the
// punctuation row [ \ ] ^ _ maps to 0x1B through 0x1F, and a few common keys
// are accepted by name.
func Code(token string) (rune, error) {
	t := strings.ToLower(strings.TrimSpace(token))
	for _, prefix := range []string{"ctrl-", "ctrl+", "control-", "control+", "^"} {
		if strings.HasPrefix(t, prefix) && len(t) > len(prefix) {
			t = t[len(prefix):]
			break
		}
	}

	switch t {
	case "esc", "escape":
		return 0x1b, nil
	case "tab":
		return '\t', nil
	case "enter", "return":
		return '\r', nil
	case "delete", "backspace", "del":
		return 0x7f, nil
	case "space":
		return ' ', nil
	}

	if len(t) != 1 {
		return 0, fmt.Errorf("unrecognized key token %q", token)
	}
	c := t[0]
	switch {
	case c >= 'a' && c <= 'z':
		return rune(c - 'a' + 1), nil
	case c >= '[' && c <= '_':
		// [ maps to escape, then \ ] ^ _ follow in order.
		return rune(c - '[' + 0x1b), nil
	}
	return 0, fmt.Errorf("unrecognized key token %q", token)
}
