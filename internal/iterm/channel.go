package iterm

import (
	"context"
	"strings"
	"time"

	"github.com/Nexus-Digital-Automations/iterm-mcp/internal/osa"
)

// Channel is the synchronous command/query interface to the terminal
// application. Every operation is one scripting-bridge invocation; results
// come back as the script's stdout with the trailing newline removed.
type Channel struct {
	runner  osa.Runner
	timeout time.Duration
}

func NewChannel(timeout time.Duration) *Channel {
	return NewChannelWithRunner(osa.OSRunner{}, timeout)
}

func NewChannelWithRunner(runner osa.Runner, timeout time.Duration) *Channel {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Channel{runner: runner, timeout: timeout}
}

func (c *Channel) run(ctx context.Context, op, script string) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	name, args := osa.Invocation(script)
	out, err := c.runner.Run(runCtx, name, args...)
	if err != nil {
		return "", classify(op, out, err)
	}
	return strings.TrimRight(string(out), "\n"), nil
}

// CreateWindow opens a new terminal window and returns its id.
func (c *Channel) CreateWindow(ctx context.Context, profile string) (string, error) {
	out, err := c.run(ctx, "create window", createWindowScript(profile))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (c *Channel) CloseWindow(ctx context.Context, windowID string) error {
	_, err := c.run(ctx, "close window", closeWindowScript(windowID))
	return err
}

func (c *Channel) WindowExists(ctx context.Context, windowID string) (bool, error) {
	out, err := c.run(ctx, "window exists", windowExistsScript(windowID))
	if err != nil {
		return false, err
	}
	return parseBool(out), nil
}

// ActiveWindowID reports the id of the window that currently has focus.
func (c *Channel) ActiveWindowID(ctx context.Context) (string, error) {
	out, err := c.run(ctx, "active window", activeWindowScript())
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// CreateTab opens a tab in the window and returns the raw index text the
// bridge reported. Parsing is left to the caller so a malformed reply can be
// classified there.
func (c *Channel) CreateTab(ctx context.Context, windowID, profile string) (string, error) {
	out, err := c.run(ctx, "create tab", createTabScript(windowID, profile))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// SelectTab brings the tab at index (0-based) to the front of the window.
func (c *Channel) SelectTab(ctx context.Context, windowID string, index int) error {
	_, err := c.run(ctx, "select tab", selectTabScript(windowID, index))
	return err
}

func (c *Channel) CloseTab(ctx context.Context, windowID string, index int) error {
	_, err := c.run(ctx, "close tab", closeTabScript(windowID, index))
	return err
}

func (c *Channel) SetTabName(ctx context.Context, windowID string, index int, name string) error {
	_, err := c.run(ctx, "set tab name", setTabNameScript(windowID, index, name))
	return err
}

// ListTabs returns one delimited record per tab in on-screen order:
// 1-based position, session name, session id, tty.
func (c *Channel) ListTabs(ctx context.Context, windowID string) (string, error) {
	return c.run(ctx, "list tabs", listTabsScript(windowID))
}

func (c *Channel) SessionTTY(ctx context.Context, windowID string, tab *int) (string, error) {
	out, err := c.run(ctx, "session tty", sessionTTYScript(windowID, tab))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// IsProcessing reports the terminal's own signal that the session is still
// actively running something. The signal clears as soon as the prompt
// redraws, so it is necessary but not sufficient for completion.
func (c *Channel) IsProcessing(ctx context.Context, windowID string, tab *int) (bool, error) {
	out, err := c.run(ctx, "is processing", isProcessingScript(windowID, tab))
	if err != nil {
		return false, err
	}
	return parseBool(out), nil
}

// WriteText submits text to the session. Multi-line text is rebuilt as a
// concatenation of per-line literals; single-line text is sent as one
// literal. pressEnter appends the end-of-line keystroke.
func (c *Channel) WriteText(ctx context.Context, windowID string, tab *int, text string, pressEnter bool) error {
	_, err := c.run(ctx, "write text", writeTextScript(windowID, tab, text, pressEnter))
	return err
}

// ReadBuffer returns the session's full scrollback contents.
func (c *Channel) ReadBuffer(ctx context.Context, windowID string, tab *int) (string, error) {
	return c.run(ctx, "read buffer", readBufferScript(windowID, tab))
}

func parseBool(out string) bool {
	return strings.EqualFold(strings.TrimSpace(out), "true")
}
