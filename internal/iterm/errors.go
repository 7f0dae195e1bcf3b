package iterm

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidWindow marks channel failures caused by the target window, tab,
// or session no longer existing. Callers use it to decide whether a retry
// with a fresh window makes sense.
var ErrInvalidWindow = errors.New("invalid window")

// The scripting bridge reports failures as prose, so message text is the
// only classification signal available.
var invalidWindowPatterns = []string{
	"can't get window",
	"can't get tab",
	"can't get session",
	"invalid index",
	"invalid window",
	"no window with id",
}

func classify(op string, out []byte, err error) error {
	msg := strings.TrimSpace(string(out))
	lower := strings.ToLower(msg)
	for _, pattern := range invalidWindowPatterns {
		if strings.Contains(lower, pattern) {
			return fmt.Errorf("%s: %s: %w", op, msg, ErrInvalidWindow)
		}
	}
	if msg == "" {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %s: %w", op, msg, err)
}
