package osa

import "strings"

// FieldSeparator delimits fields in records emitted by listing scripts.
// ASCII Unit Separator avoids collision with tab names and device paths.
const FieldSeparator = "\x1f"

// FieldSeparatorTerm is the script-side expression producing FieldSeparator.
const FieldSeparatorTerm = "(character id 31)"

// SplitLine splits one delimited record. Tab-joined lines are accepted as a
// fallback for scripts that emit plain tab separators.
func SplitLine(line string, maxParts int) []string {
	if maxParts <= 0 {
		return nil
	}
	if strings.Contains(line, FieldSeparator) {
		return strings.SplitN(line, FieldSeparator, maxParts)
	}
	if strings.Contains(line, "\t") {
		return strings.SplitN(line, "\t", maxParts)
	}
	return []string{line}
}
