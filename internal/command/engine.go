// Package command runs shell commands in a terminal tab and decides when
// they have finished. Completion is inferred, never guaranteed: the terminal
// is polled for its own busy flag first, then the tab's foreground process
// is watched until its CPU goes quiet.
package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Nexus-Digital-Automations/iterm-mcp/internal/config"
	"github.com/Nexus-Digital-Automations/iterm-mcp/internal/logging"
	"github.com/Nexus-Digital-Automations/iterm-mcp/internal/output"
	"github.com/Nexus-Digital-Automations/iterm-mcp/internal/proc"
)

// Channel is the terminal surface the engine drives.
type Channel interface {
	WriteText(ctx context.Context, windowID string, tab *int, text string, pressEnter bool) error
	ReadBuffer(ctx context.Context, windowID string, tab *int) (string, error)
	IsProcessing(ctx context.Context, windowID string, tab *int) (bool, error)
	SessionTTY(ctx context.Context, windowID string, tab *int) (string, error)
}

// ActivityInspector reports the foreground process on a terminal device.
type ActivityInspector interface {
	ActiveProcess(ctx context.Context, tty string) (*proc.Foreground, error)
}

// Budget split across the two detection phases. Draining the terminal's own
// busy flag gets a strict quarter of the total; the slower CPU watch gets
// most of the remainder, leaving headroom for settle and the final read.
const (
	processingShare = 0.25
	cpuWatchShare   = 0.70

	minTimeout      = 1 * time.Second
	maxTimeout      = 120 * time.Second
	minCPUWatchSpan = 1 * time.Second
)

// Request describes one command submission.
type Request struct {
	// Command is submitted verbatim followed by a return. Multi-line text
	// is sent as one unit; the shell decides what to make of it.
	Command string

	// TimeoutSeconds bounds the whole wait. Zero or negative means the
	// configured default; out-of-range values are clamped.
	TimeoutSeconds int

	// CaptureLines asks for the trailing lines of the buffer after the
	// command settles. Nil skips the capture entirely.
	CaptureLines *int
}

// Result reports what a completed submission did to the terminal.
type Result struct {
	// NewLineCount is how many lines the buffer grew, never negative.
	NewLineCount int

	// Duration covers submission through the settled buffer read.
	Duration time.Duration

	// Captured holds the requested tail of the buffer. CaptureRequested
	// distinguishes "not asked for" from "asked for but unavailable":
	// a failed capture leaves Captured nil without failing the command.
	Captured         *string
	CaptureRequested bool
}

// PhaseTimeoutError reports which detection phase ran out of budget. The
// command itself may still be running; only the observation stopped.
type PhaseTimeoutError struct {
	Phase   string
	Budget  time.Duration
	Elapsed time.Duration
}

func (e *PhaseTimeoutError) Error() string {
	return fmt.Sprintf("%s did not finish within its %s budget (waited %s); the command may still be running, read the terminal output to check",
		e.Phase, e.Budget, e.Elapsed.Round(time.Millisecond))
}

// Engine coordinates one submission at a time per caller. It holds no
// per-command state, so distinct windows can run concurrently.
type Engine struct {
	ch   Channel
	insp ActivityInspector
	cfg  config.Config
	log  *logging.Logger
}

func NewEngine(ch Channel, insp ActivityInspector, cfg config.Config, log *logging.Logger) *Engine {
	if log == nil {
		log = logging.Nop()
	}
	return &Engine{ch: ch, insp: insp, cfg: cfg, log: log}
}

// Execute submits the command to the tab and waits for completion. On
// success the result carries the buffer growth and, when asked for, the
// trailing output.
func (e *Engine) Execute(ctx context.Context, windowID string, tab *int, req Request) (*Result, error) {
	timeout := clampTimeout(req.TimeoutSeconds, e.cfg.DefaultCommandTimeout)
	log := e.log.With(
		zap.String("invocation_id", uuid.NewString()),
		zap.String("window_id", windowID),
	)

	before, err := e.ch.ReadBuffer(ctx, windowID, tab)
	if err != nil {
		return nil, fmt.Errorf("read buffer before submit: %w", err)
	}

	start := time.Now()
	if err := e.ch.WriteText(ctx, windowID, tab, req.Command, true); err != nil {
		return nil, fmt.Errorf("submit command: %w", err)
	}
	log.Debug("command submitted", zap.Duration("timeout", timeout))

	if err := e.drainProcessingFlag(ctx, windowID, tab, timeout); err != nil {
		return nil, err
	}
	if err := e.watchForegroundCPU(ctx, windowID, tab, timeout, time.Since(start), log); err != nil {
		return nil, err
	}

	// Let the terminal flush trailing output before the final read.
	if err := sleepCtx(ctx, e.cfg.SettleDelay); err != nil {
		return nil, err
	}

	after, err := e.ch.ReadBuffer(ctx, windowID, tab)
	if err != nil {
		return nil, fmt.Errorf("read buffer after completion: %w", err)
	}

	result := &Result{
		NewLineCount: lineGrowth(before, after),
		Duration:     time.Since(start),
	}
	if req.CaptureLines != nil {
		result.CaptureRequested = true
		if tail, err := output.Tail(after, *req.CaptureLines); err != nil {
			log.Warn("output capture failed", zap.Error(err))
		} else {
			result.Captured = &tail
		}
	}
	log.Info("command completed",
		zap.Int("new_lines", result.NewLineCount),
		zap.Duration("duration", result.Duration))
	return result, nil
}

// drainProcessingFlag waits for the terminal to stop reporting itself busy
// parsing input. This phase is authoritative: a terminal that cannot even
// accept the command line leaves nothing downstream worth watching, so
// expiry here aborts the call.
func (e *Engine) drainProcessingFlag(ctx context.Context, windowID string, tab *int, timeout time.Duration) error {
	budget := time.Duration(float64(timeout) * processingShare)
	phaseStart := time.Now()
	for {
		busy, err := e.ch.IsProcessing(ctx, windowID, tab)
		if err != nil {
			return fmt.Errorf("poll processing state: %w", err)
		}
		if !busy {
			return nil
		}
		if elapsed := time.Since(phaseStart); elapsed >= budget {
			return &PhaseTimeoutError{Phase: "input processing", Budget: budget, Elapsed: elapsed}
		}
		if err := sleepCtx(ctx, e.cfg.ProcessingPollInterval); err != nil {
			return err
		}
	}
}

// watchForegroundCPU waits for the tab's foreground process to exit or go
// quiet. Quiet means CPU below the threshold for a full idle window in a
// row; a single busy sample starts the clock over. Inspector failures count
// as idle, since hanging every command on a broken ps is the worse trade.
func (e *Engine) watchForegroundCPU(ctx context.Context, windowID string, tab *int, timeout, spent time.Duration, log *logging.Logger) error {
	budget := timeout - spent
	if ceiling := time.Duration(float64(timeout) * cpuWatchShare); budget > ceiling {
		budget = ceiling
	}
	if budget < minCPUWatchSpan {
		budget = minCPUWatchSpan
	}

	tty, err := e.ch.SessionTTY(ctx, windowID, tab)
	if err != nil {
		return fmt.Errorf("resolve terminal device: %w", err)
	}

	phaseStart := time.Now()
	tracker := idleTracker{Threshold: e.cfg.CPUIdleThreshold, Window: e.cfg.CPUIdleWindow}
	for {
		fg, err := e.insp.ActiveProcess(ctx, tty)
		if err != nil {
			log.Debug("activity probe failed, assuming idle", zap.Error(err))
			return nil
		}
		if fg == nil {
			return nil
		}
		if tracker.Observe(time.Now(), fg.CPUPercent) {
			return nil
		}

		if elapsed := time.Since(phaseStart); elapsed >= budget {
			return &PhaseTimeoutError{Phase: "foreground activity watch", Budget: budget, Elapsed: elapsed}
		}
		if err := sleepCtx(ctx, e.cfg.ActivityPollInterval); err != nil {
			return err
		}
	}
}

func clampTimeout(seconds int, fallback time.Duration) time.Duration {
	if seconds <= 0 {
		return fallback
	}
	t := time.Duration(seconds) * time.Second
	if t < minTimeout {
		return minTimeout
	}
	if t > maxTimeout {
		return maxTimeout
	}
	return t
}

// lineGrowth counts lines added to the buffer. Terminals rewrite their
// scrollback under us, so a shrink reads as zero new lines, not a negative.
func lineGrowth(before, after string) int {
	diff := len(strings.Split(after, "\n")) - len(strings.Split(before, "\n"))
	if diff < 0 {
		return 0
	}
	return diff
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
