package proc

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Runner executes a single external command and returns its combined output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// Foreground describes the foreground process controlling a terminal device.
type Foreground struct {
	PID        int
	Command    string
	State      string
	CPUPercent float64
}

// Inspector samples per-tty process activity through ps. Shells at their
// prompt do not count as activity: a nil Foreground means the device is idle.
type Inspector struct {
	runner  Runner
	timeout time.Duration
}

func NewInspector(runner Runner, timeout time.Duration) *Inspector {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Inspector{runner: runner, timeout: timeout}
}

// ActiveProcess reports the busiest non-shell foreground process on tty, or
// nil when the shell sits idle at its prompt. The device may be given with
// or without its /dev/ prefix.
func (i *Inspector) ActiveProcess(ctx context.Context, tty string) (*Foreground, error) {
	tty = strings.TrimSpace(tty)
	if tty == "" {
		return nil, fmt.Errorf("empty tty")
	}
	candidates := []string{tty}
	if strings.HasPrefix(tty, "/dev/") {
		// ps -t wants the short device name on most systems.
		candidates = []string{strings.TrimPrefix(tty, "/dev/"), tty}
	}

	var lastErr error
	for _, candidate := range candidates {
		runCtx, cancel := context.WithTimeout(ctx, i.timeout)
		out, err := i.runner.Run(runCtx, "ps", "-t", candidate, "-o", "pid=,pcpu=,state=,command=")
		cancel()
		if err != nil {
			if strings.TrimSpace(string(out)) == "" {
				// ps exits non-zero when the tty has no matching processes.
				return nil, nil
			}
			lastErr = fmt.Errorf("ps -t %s: %s: %w", candidate, strings.TrimSpace(string(out)), err)
			continue
		}
		return bestForeground(string(out)), nil
	}
	return nil, lastErr
}

// bestForeground keeps the highest-CPU foreground entry so pipelines report
// the member doing the work.
func bestForeground(output string) *Foreground {
	var best *Foreground
	for _, line := range strings.Split(output, "\n") {
		fg, ok := parsePSLine(line)
		if !ok {
			continue
		}
		if !strings.Contains(fg.State, "+") {
			continue
		}
		if isShell(fg.Command) {
			continue
		}
		if best == nil || fg.CPUPercent > best.CPUPercent {
			entry := fg
			best = &entry
		}
	}
	return best
}

func parsePSLine(line string) (Foreground, bool) {
	fields := strings.Fields(line)
	if len(fields) < 4 {
		return Foreground{}, false
	}
	pid, err := strconv.Atoi(fields[0])
	if err != nil {
		return Foreground{}, false
	}
	cpu, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return Foreground{}, false
	}
	return Foreground{
		PID:        pid,
		CPUPercent: cpu,
		State:      fields[2],
		Command:    strings.Join(fields[3:], " "),
	}, true
}

func isShell(command string) bool {
	first := command
	if idx := strings.IndexByte(first, ' '); idx >= 0 {
		first = first[:idx]
	}
	// Login shells show up with a leading dash.
	base := strings.TrimPrefix(filepath.Base(first), "-")
	switch base {
	case "bash", "zsh", "sh", "fish", "tcsh", "csh", "ksh", "dash", "login":
		return true
	default:
		return false
	}
}
