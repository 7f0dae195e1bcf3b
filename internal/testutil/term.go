package testutil

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// FakeTab is one simulated tab of a FakeTerm window.
type FakeTab struct {
	ID   string
	Name string
	TTY  string
}

// WriteCall records one WriteText invocation.
type WriteCall struct {
	WindowID   string
	Tab        *int
	Text       string
	PressEnter bool
}

// FakeTerm simulates the terminal's scripting surface for registry and
// server tests: windows hold ordered tabs, ids are handed out sequentially,
// and every mutation is observable. It satisfies the channel interfaces the
// registries and the command engine consume.
type FakeTerm struct {
	NextWindow int
	NextTab    int
	Windows    map[string][]FakeTab
	Selected   map[string]int
	Closed     []string
	Buffers    map[string]string
	Writes     []WriteCall
	Processing bool

	CreateWindowErr error
	CloseWindowErr  error
	WriteErr        error
	ReadErr         error
	ActiveWindow    string
}

func NewFakeTerm() *FakeTerm {
	return &FakeTerm{
		Windows:  map[string][]FakeTab{},
		Selected: map[string]int{},
		Buffers:  map[string]string{},
	}
}

// NewTab mints a tab with a unique session id and tty.
func (f *FakeTerm) NewTab(name string) FakeTab {
	f.NextTab++
	return FakeTab{
		ID:   fmt.Sprintf("s%d", f.NextTab),
		Name: name,
		TTY:  fmt.Sprintf("/dev/ttys%03d", f.NextTab),
	}
}

func (f *FakeTerm) CreateWindow(ctx context.Context, profile string) (string, error) {
	if f.CreateWindowErr != nil {
		return "", f.CreateWindowErr
	}
	f.NextWindow++
	id := strconv.Itoa(1000 + f.NextWindow)
	f.Windows[id] = []FakeTab{f.NewTab("")}
	return id, nil
}

func (f *FakeTerm) CloseWindow(ctx context.Context, windowID string) error {
	if f.CloseWindowErr != nil {
		return f.CloseWindowErr
	}
	if _, ok := f.Windows[windowID]; !ok {
		return fmt.Errorf("can't get window id %s", windowID)
	}
	delete(f.Windows, windowID)
	f.Closed = append(f.Closed, windowID)
	return nil
}

func (f *FakeTerm) WindowExists(ctx context.Context, windowID string) (bool, error) {
	_, ok := f.Windows[windowID]
	return ok, nil
}

func (f *FakeTerm) ActiveWindowID(ctx context.Context) (string, error) {
	if f.ActiveWindow == "" {
		return "", fmt.Errorf("no windows open")
	}
	return f.ActiveWindow, nil
}

func (f *FakeTerm) CreateTab(ctx context.Context, windowID, profile string) (string, error) {
	tabs, ok := f.Windows[windowID]
	if !ok {
		return "", fmt.Errorf("can't get window id %s", windowID)
	}
	f.Windows[windowID] = append(tabs, f.NewTab(""))
	return strconv.Itoa(len(tabs) + 1), nil
}

func (f *FakeTerm) SelectTab(ctx context.Context, windowID string, index int) error {
	if err := f.checkTab(windowID, index); err != nil {
		return err
	}
	f.Selected[windowID] = index
	return nil
}

func (f *FakeTerm) CloseTab(ctx context.Context, windowID string, index int) error {
	if err := f.checkTab(windowID, index); err != nil {
		return err
	}
	tabs := f.Windows[windowID]
	f.Windows[windowID] = append(tabs[:index], tabs[index+1:]...)
	if f.Selected[windowID] >= len(f.Windows[windowID]) {
		f.Selected[windowID] = len(f.Windows[windowID]) - 1
	}
	return nil
}

func (f *FakeTerm) SetTabName(ctx context.Context, windowID string, index int, name string) error {
	if err := f.checkTab(windowID, index); err != nil {
		return err
	}
	f.Windows[windowID][index].Name = name
	return nil
}

func (f *FakeTerm) ListTabs(ctx context.Context, windowID string) (string, error) {
	tabs, ok := f.Windows[windowID]
	if !ok {
		return "", fmt.Errorf("can't get window id %s", windowID)
	}
	var b strings.Builder
	for i, tab := range tabs {
		fmt.Fprintf(&b, "%d\x1f%s\x1f%s\x1f%s\n", i+1, tab.Name, tab.ID, tab.TTY)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (f *FakeTerm) SessionTTY(ctx context.Context, windowID string, tab *int) (string, error) {
	index := f.Selected[windowID]
	if tab != nil {
		index = *tab
	}
	if err := f.checkTab(windowID, index); err != nil {
		return "", err
	}
	return f.Windows[windowID][index].TTY, nil
}

func (f *FakeTerm) IsProcessing(ctx context.Context, windowID string, tab *int) (bool, error) {
	return f.Processing, nil
}

func (f *FakeTerm) WriteText(ctx context.Context, windowID string, tab *int, text string, pressEnter bool) error {
	if f.WriteErr != nil {
		return f.WriteErr
	}
	if _, ok := f.Windows[windowID]; !ok {
		return fmt.Errorf("can't get window id %s", windowID)
	}
	f.Writes = append(f.Writes, WriteCall{WindowID: windowID, Tab: tab, Text: text, PressEnter: pressEnter})
	return nil
}

func (f *FakeTerm) ReadBuffer(ctx context.Context, windowID string, tab *int) (string, error) {
	if f.ReadErr != nil {
		return "", f.ReadErr
	}
	if _, ok := f.Windows[windowID]; !ok {
		return "", fmt.Errorf("can't get window id %s", windowID)
	}
	return f.Buffers[windowID], nil
}

func (f *FakeTerm) checkTab(windowID string, index int) error {
	tabs, ok := f.Windows[windowID]
	if !ok {
		return fmt.Errorf("can't get window id %s", windowID)
	}
	if index < 0 || index >= len(tabs) {
		return fmt.Errorf("can't get tab %d of window id %s", index+1, windowID)
	}
	return nil
}
