// Package output post-processes captured terminal buffers: tail slicing for
// command results and optional filtering for read requests.
package output

import (
	"fmt"
	"regexp"
	"strings"
)

// Tail returns the last n+1 lines of text, so callers asking for n lines of
// command output also see the prompt line the command scrolled past. n must
// not be negative.
func Tail(text string, n int) (string, error) {
	if n < 0 {
		return "", fmt.Errorf("line count %d is negative", n)
	}
	lines := strings.Split(text, "\n")
	keep := n + 1
	if keep > len(lines) {
		keep = len(lines)
	}
	return strings.Join(lines[len(lines)-keep:], "\n"), nil
}

// Filter selects and decorates lines from a captured buffer.
type Filter struct {
	// Grep keeps only lines matching the pattern. Compiled per call; an
	// invalid pattern fails the whole read rather than silently matching
	// nothing.
	Grep string

	// Contains keeps only lines containing the literal substring. Applied
	// after Grep when both are set.
	Contains string

	// Numbered prefixes each surviving line with its 1-based position in
	// the original capture.
	Numbered bool

	// MaxLines truncates the surviving lines from the top, keeping the
	// most recent. Zero means no limit.
	MaxLines int
}

func (f Filter) empty() bool {
	return f.Grep == "" && f.Contains == "" && !f.Numbered && f.MaxLines <= 0
}

// Apply runs the filter over text line by line.
func (f Filter) Apply(text string) (string, error) {
	if f.empty() {
		return text, nil
	}

	var re *regexp.Regexp
	if f.Grep != "" {
		var err error
		re, err = regexp.Compile(f.Grep)
		if err != nil {
			return "", fmt.Errorf("compile grep pattern: %w", err)
		}
	}

	type numbered struct {
		pos  int
		line string
	}
	var kept []numbered
	for i, line := range strings.Split(text, "\n") {
		if re != nil && !re.MatchString(line) {
			continue
		}
		if f.Contains != "" && !strings.Contains(line, f.Contains) {
			continue
		}
		kept = append(kept, numbered{pos: i + 1, line: line})
	}
	if f.MaxLines > 0 && len(kept) > f.MaxLines {
		kept = kept[len(kept)-f.MaxLines:]
	}

	out := make([]string, len(kept))
	for i, n := range kept {
		if f.Numbered {
			out[i] = fmt.Sprintf("%d: %s", n.pos, n.line)
		} else {
			out[i] = n.line
		}
	}
	return strings.Join(out, "\n"), nil
}
