package iterm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type scriptRunner struct {
	output  string
	err     error
	name    string
	args    []string
	scripts []string
}

func (r *scriptRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	r.name = name
	r.args = args
	if len(args) == 2 {
		r.scripts = append(r.scripts, args[1])
	}
	return []byte(r.output), r.err
}

func (r *scriptRunner) lastScript() string {
	if len(r.scripts) == 0 {
		return ""
	}
	return r.scripts[len(r.scripts)-1]
}

func newTestChannel(r *scriptRunner) *Channel {
	return NewChannelWithRunner(r, time.Second)
}

func TestCreateWindowReturnsTrimmedID(t *testing.T) {
	runner := &scriptRunner{output: "2817\n"}
	ch := newTestChannel(runner)
	id, err := ch.CreateWindow(context.Background(), "")
	if err != nil {
		t.Fatalf("create window: %v", err)
	}
	if id != "2817" {
		t.Fatalf("window id: got %q", id)
	}
	if runner.name != "/bin/sh" {
		t.Fatalf("runner name: got %q", runner.name)
	}
	if !strings.Contains(runner.lastScript(), "create window with default profile") {
		t.Fatalf("script: got %q", runner.lastScript())
	}
}

func TestCreateWindowWithProfile(t *testing.T) {
	runner := &scriptRunner{output: "3\n"}
	ch := newTestChannel(runner)
	if _, err := ch.CreateWindow(context.Background(), "Hotkey"); err != nil {
		t.Fatalf("create window: %v", err)
	}
	if !strings.Contains(runner.lastScript(), `create window with profile "Hotkey"`) {
		t.Fatalf("script: got %q", runner.lastScript())
	}
}

func TestTabTargetingIsOneBasedOnTheWire(t *testing.T) {
	runner := &scriptRunner{output: ""}
	ch := newTestChannel(runner)
	if err := ch.SelectTab(context.Background(), "9", 0); err != nil {
		t.Fatalf("select tab: %v", err)
	}
	if !strings.Contains(runner.lastScript(), "select tab 1 of window id 9") {
		t.Fatalf("script: got %q", runner.lastScript())
	}
	if err := ch.CloseTab(context.Background(), "9", 2); err != nil {
		t.Fatalf("close tab: %v", err)
	}
	if !strings.Contains(runner.lastScript(), "close tab 3 of window id 9") {
		t.Fatalf("script: got %q", runner.lastScript())
	}
}

func TestWriteTextSingleLine(t *testing.T) {
	runner := &scriptRunner{output: ""}
	ch := newTestChannel(runner)
	if err := ch.WriteText(context.Background(), "4", nil, `echo "hi"`, true); err != nil {
		t.Fatalf("write text: %v", err)
	}
	script := runner.lastScript()
	if !strings.Contains(script, `write text "echo \"hi\""`) {
		t.Fatalf("script: got %q", script)
	}
	if strings.Contains(script, "newline NO") {
		t.Fatalf("enter suppressed unexpectedly: %q", script)
	}
	if !strings.Contains(script, "current session of current tab of window id 4") {
		t.Fatalf("untargeted write should use the current tab: %q", script)
	}
}

func TestWriteTextMultiLineConcatenates(t *testing.T) {
	runner := &scriptRunner{output: ""}
	ch := newTestChannel(runner)
	if err := ch.WriteText(context.Background(), "4", nil, "a\nb", true); err != nil {
		t.Fatalf("write text: %v", err)
	}
	if !strings.Contains(runner.lastScript(), `"a" & linefeed & "b"`) {
		t.Fatalf("script: got %q", runner.lastScript())
	}
}

func TestWriteTextWithoutEnter(t *testing.T) {
	runner := &scriptRunner{output: ""}
	tab := 1
	ch := newTestChannel(runner)
	if err := ch.WriteText(context.Background(), "4", &tab, "\x03", false); err != nil {
		t.Fatalf("write text: %v", err)
	}
	script := runner.lastScript()
	if !strings.Contains(script, "(character id 3) newline NO") {
		t.Fatalf("script: got %q", script)
	}
	if !strings.Contains(script, "current session of tab 2 of window id 4") {
		t.Fatalf("targeted write should address the tab: %q", script)
	}
}

func TestIsProcessingParsesBool(t *testing.T) {
	runner := &scriptRunner{output: "true\n"}
	ch := newTestChannel(runner)
	busy, err := ch.IsProcessing(context.Background(), "4", nil)
	if err != nil {
		t.Fatalf("is processing: %v", err)
	}
	if !busy {
		t.Fatalf("expected processing=true")
	}
	runner.output = "false\n"
	busy, err = ch.IsProcessing(context.Background(), "4", nil)
	if err != nil {
		t.Fatalf("is processing: %v", err)
	}
	if busy {
		t.Fatalf("expected processing=false")
	}
}

func TestClassifyInvalidWindow(t *testing.T) {
	runner := &scriptRunner{
		output: "execution error: iTerm got an error: Can't get window id 99. (-1728)\n",
		err:    errors.New("exit status 1"),
	}
	ch := newTestChannel(runner)
	_, err := ch.ReadBuffer(context.Background(), "99", nil)
	if !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("expected invalid window, got %v", err)
	}
	if !strings.Contains(err.Error(), "99") {
		t.Fatalf("error should carry the window id: %v", err)
	}
}

func TestClassifyGenericChannelError(t *testing.T) {
	runner := &scriptRunner{
		output: "execution error: Application isn't running. (-600)\n",
		err:    errors.New("exit status 1"),
	}
	ch := newTestChannel(runner)
	_, err := ch.ActiveWindowID(context.Background())
	if err == nil {
		t.Fatalf("expected error")
	}
	if errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("app-not-running must not classify as invalid window: %v", err)
	}
	if !strings.Contains(err.Error(), "Application isn't running") {
		t.Fatalf("error should carry bridge text: %v", err)
	}
}

func TestListTabsScriptEmitsSeparatedFields(t *testing.T) {
	runner := &scriptRunner{output: "1\x1fbuild\x1fsess-a\x1f/dev/ttys001\n"}
	ch := newTestChannel(runner)
	out, err := ch.ListTabs(context.Background(), "4")
	if err != nil {
		t.Fatalf("list tabs: %v", err)
	}
	if !strings.Contains(out, "sess-a") {
		t.Fatalf("list output: got %q", out)
	}
	if !strings.Contains(runner.lastScript(), "repeat with i from 1 to (count of tabs)") {
		t.Fatalf("script: got %q", runner.lastScript())
	}
}
