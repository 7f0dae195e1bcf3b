package osa

import "strings"

// Invocation wraps an AppleScript source in the shell command used to reach
// the scripting bridge. The script rides inside shell single quotes; any
// single quote in the script breaks out of the quoting and re-enters it, so
// script text can never escape into shell syntax.
func Invocation(script string) (string, []string) {
	return "/bin/sh", []string{"-c", "osascript -e " + shellQuote(script)}
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
