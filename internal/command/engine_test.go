package command

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/Nexus-Digital-Automations/iterm-mcp/internal/config"
	"github.com/Nexus-Digital-Automations/iterm-mcp/internal/logging"
	"github.com/Nexus-Digital-Automations/iterm-mcp/internal/proc"
)

type write struct {
	text       string
	pressEnter bool
}

// engineChannel plays back scripted buffer and busy-flag sequences. The last
// element of each sequence repeats.
type engineChannel struct {
	buffers    []string
	bufferIdx  int
	processing []bool
	procIdx    int
	writes     []write
	writeErr   error
	readErr    error
	ttyErr     error
}

func (c *engineChannel) WriteText(ctx context.Context, windowID string, tab *int, text string, pressEnter bool) error {
	if c.writeErr != nil {
		return c.writeErr
	}
	c.writes = append(c.writes, write{text: text, pressEnter: pressEnter})
	return nil
}

func (c *engineChannel) ReadBuffer(ctx context.Context, windowID string, tab *int) (string, error) {
	if c.readErr != nil {
		return "", c.readErr
	}
	i := c.bufferIdx
	if i >= len(c.buffers) {
		i = len(c.buffers) - 1
	}
	c.bufferIdx++
	return c.buffers[i], nil
}

func (c *engineChannel) IsProcessing(ctx context.Context, windowID string, tab *int) (bool, error) {
	if len(c.processing) == 0 {
		return false, nil
	}
	i := c.procIdx
	if i >= len(c.processing) {
		i = len(c.processing) - 1
	}
	c.procIdx++
	return c.processing[i], nil
}

func (c *engineChannel) SessionTTY(ctx context.Context, windowID string, tab *int) (string, error) {
	if c.ttyErr != nil {
		return "", c.ttyErr
	}
	return "/dev/ttys004", nil
}

type fakeInspector struct {
	samples []*proc.Foreground
	err     error
	calls   int
}

func (f *fakeInspector) ActiveProcess(ctx context.Context, tty string) (*proc.Foreground, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if len(f.samples) == 0 {
		return nil, nil
	}
	i := f.calls - 1
	if i >= len(f.samples) {
		i = len(f.samples) - 1
	}
	return f.samples[i], nil
}

func testConfig() config.Config {
	cfg := config.DefaultConfig()
	cfg.ProcessingPollInterval = time.Millisecond
	cfg.ActivityPollInterval = time.Millisecond
	cfg.CPUIdleWindow = 10 * time.Millisecond
	cfg.SettleDelay = time.Millisecond
	return cfg
}

func newTestEngine(ch *engineChannel, insp *fakeInspector) *Engine {
	return NewEngine(ch, insp, testConfig(), logging.Nop())
}

func TestExecuteCountsBufferGrowth(t *testing.T) {
	ch := &engineChannel{buffers: []string{"$ \n$", "$ ls\na.go\nb.go\nc.go\n$"}}
	eng := newTestEngine(ch, &fakeInspector{})

	res, err := eng.Execute(context.Background(), "7", nil, Request{Command: "ls"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.NewLineCount != 3 {
		t.Fatalf("NewLineCount = %d, want 3", res.NewLineCount)
	}
	if res.CaptureRequested || res.Captured != nil {
		t.Fatalf("capture happened without being asked: %+v", res)
	}
	if res.Duration <= 0 {
		t.Fatal("Duration not measured")
	}
}

func TestExecuteNeverReportsNegativeGrowth(t *testing.T) {
	ch := &engineChannel{buffers: []string{"a\nb\nc\nd", "a\nb"}}
	eng := newTestEngine(ch, &fakeInspector{})

	res, err := eng.Execute(context.Background(), "7", nil, Request{Command: "clear"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.NewLineCount != 0 {
		t.Fatalf("NewLineCount = %d, want 0 after shrink", res.NewLineCount)
	}
}

func TestExecuteSubmitsWithReturn(t *testing.T) {
	ch := &engineChannel{buffers: []string{"$"}}
	eng := newTestEngine(ch, &fakeInspector{})

	if _, err := eng.Execute(context.Background(), "7", nil, Request{Command: "make test"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(ch.writes) != 1 {
		t.Fatalf("writes = %d, want 1", len(ch.writes))
	}
	if ch.writes[0].text != "make test" || !ch.writes[0].pressEnter {
		t.Fatalf("write = %+v, want the command with a return", ch.writes[0])
	}
}

func TestExecuteCapturesTrailingLines(t *testing.T) {
	ch := &engineChannel{buffers: []string{"$", "$ go test\nok\nPASS\n$"}}
	eng := newTestEngine(ch, &fakeInspector{})
	n := 2

	res, err := eng.Execute(context.Background(), "7", nil, Request{Command: "go test", CaptureLines: &n})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !res.CaptureRequested {
		t.Fatal("CaptureRequested not set")
	}
	if res.Captured == nil || *res.Captured != "ok\nPASS\n$" {
		t.Fatalf("Captured = %v, want the last three lines", res.Captured)
	}
}

func TestExecuteCaptureFailureIsNonFatal(t *testing.T) {
	ch := &engineChannel{buffers: []string{"$", "$ pwd\n/tmp\n$"}}
	eng := newTestEngine(ch, &fakeInspector{})
	n := -4

	res, err := eng.Execute(context.Background(), "7", nil, Request{Command: "pwd", CaptureLines: &n})
	if err != nil {
		t.Fatalf("Execute failed on a capture problem: %v", err)
	}
	if !res.CaptureRequested || res.Captured != nil {
		t.Fatalf("capture state = %+v, want requested but nil", res)
	}
	if res.NewLineCount != 2 {
		t.Fatalf("NewLineCount = %d, want 2", res.NewLineCount)
	}
}

func TestExecuteProcessingPhaseTimeout(t *testing.T) {
	ch := &engineChannel{buffers: []string{"$"}, processing: []bool{true}}
	insp := &fakeInspector{}
	eng := newTestEngine(ch, insp)

	_, err := eng.Execute(context.Background(), "7", nil, Request{Command: "cat", TimeoutSeconds: 1})
	var phaseErr *PhaseTimeoutError
	if !errors.As(err, &phaseErr) {
		t.Fatalf("error = %v, want PhaseTimeoutError", err)
	}
	if phaseErr.Phase != "input processing" {
		t.Fatalf("Phase = %q", phaseErr.Phase)
	}
	if phaseErr.Budget != 250*time.Millisecond {
		t.Fatalf("Budget = %v, want a quarter of 1s", phaseErr.Budget)
	}
	if !strings.Contains(err.Error(), "250ms") || !strings.Contains(err.Error(), "may still be running") {
		t.Fatalf("message = %q", err.Error())
	}
	if ch.bufferIdx != 1 {
		t.Fatalf("buffer reads = %d, want only the pre-submit read", ch.bufferIdx)
	}
	if insp.calls != 0 {
		t.Fatalf("inspector consulted %d times during the drain phase", insp.calls)
	}
}

func TestExecuteActivityPhaseTimeout(t *testing.T) {
	busy := &proc.Foreground{PID: 42, Command: "ffmpeg", CPUPercent: 87.5}
	ch := &engineChannel{buffers: []string{"$"}}
	eng := newTestEngine(ch, &fakeInspector{samples: []*proc.Foreground{busy}})

	_, err := eng.Execute(context.Background(), "7", nil, Request{Command: "ffmpeg -i in.mov", TimeoutSeconds: 1})
	var phaseErr *PhaseTimeoutError
	if !errors.As(err, &phaseErr) {
		t.Fatalf("error = %v, want PhaseTimeoutError", err)
	}
	if phaseErr.Phase != "foreground activity watch" {
		t.Fatalf("Phase = %q", phaseErr.Phase)
	}
	if phaseErr.Elapsed < phaseErr.Budget {
		t.Fatalf("Elapsed %v below Budget %v", phaseErr.Elapsed, phaseErr.Budget)
	}
}

func TestExecuteInspectorFailureMeansIdle(t *testing.T) {
	ch := &engineChannel{buffers: []string{"$", "$\ndone\n$"}}
	insp := &fakeInspector{err: fmt.Errorf("ps: command not found")}
	eng := newTestEngine(ch, insp)

	res, err := eng.Execute(context.Background(), "7", nil, Request{Command: "true"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.NewLineCount != 2 {
		t.Fatalf("NewLineCount = %d, want 2", res.NewLineCount)
	}
	if insp.calls != 1 {
		t.Fatalf("inspector calls = %d, want 1", insp.calls)
	}
}

func TestExecuteWaitsOutBusyForeground(t *testing.T) {
	samples := []*proc.Foreground{
		{PID: 42, Command: "make", CPUPercent: 48.0},
		{PID: 42, Command: "make", CPUPercent: 12.0},
		{PID: 42, Command: "make", CPUPercent: 0.3},
	}
	ch := &engineChannel{buffers: []string{"$", "$ make\nok\n$"}}
	insp := &fakeInspector{samples: samples}
	eng := newTestEngine(ch, insp)

	if _, err := eng.Execute(context.Background(), "7", nil, Request{Command: "make"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	// Two busy samples, then quiet ones until the idle window fills.
	if insp.calls < 4 {
		t.Fatalf("inspector calls = %d, want the quiet window to span several polls", insp.calls)
	}
}

func TestExecuteSubmitFailureSurfaces(t *testing.T) {
	ch := &engineChannel{buffers: []string{"$"}, writeErr: fmt.Errorf("connection is invalid")}
	eng := newTestEngine(ch, &fakeInspector{})

	_, err := eng.Execute(context.Background(), "7", nil, Request{Command: "ls"})
	if err == nil || !strings.Contains(err.Error(), "submit command") {
		t.Fatalf("error = %v", err)
	}
}

func TestExecuteHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := &engineChannel{buffers: []string{"$"}, processing: []bool{true}}
	eng := newTestEngine(ch, &fakeInspector{})

	done := make(chan error, 1)
	go func() {
		_, err := eng.Execute(ctx, "7", nil, Request{Command: "sleep 60", TimeoutSeconds: 120})
		done <- err
	}()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Execute did not return after cancellation")
	}
}

func TestClampTimeout(t *testing.T) {
	fallback := 30 * time.Second
	cases := []struct {
		seconds int
		want    time.Duration
	}{
		{0, fallback},
		{-3, fallback},
		{1, time.Second},
		{45, 45 * time.Second},
		{120, 120 * time.Second},
		{600, 120 * time.Second},
	}
	for _, tc := range cases {
		if got := clampTimeout(tc.seconds, fallback); got != tc.want {
			t.Fatalf("clampTimeout(%d) = %v, want %v", tc.seconds, got, tc.want)
		}
	}
}
