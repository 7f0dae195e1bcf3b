package tabs

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/Nexus-Digital-Automations/iterm-mcp/internal/testutil"
)

type fakeChannel struct {
	createResult string
	createErr    error
	createCalls  int
	named        map[int]string
	listOutput   string
	listErr      error
	selected     []int
	closed       []int
	tty          string
	ttyErr       error
}

func (f *fakeChannel) CreateTab(_ context.Context, _ string, _ string) (string, error) {
	f.createCalls++
	return f.createResult, f.createErr
}

func (f *fakeChannel) SelectTab(_ context.Context, _ string, index int) error {
	f.selected = append(f.selected, index)
	return nil
}

func (f *fakeChannel) CloseTab(_ context.Context, _ string, index int) error {
	f.closed = append(f.closed, index)
	return nil
}

func (f *fakeChannel) SetTabName(_ context.Context, _ string, index int, name string) error {
	if f.named == nil {
		f.named = map[int]string{}
	}
	f.named[index] = name
	return nil
}

func (f *fakeChannel) ListTabs(_ context.Context, _ string) (string, error) {
	return f.listOutput, f.listErr
}

func (f *fakeChannel) SessionTTY(_ context.Context, _ string, _ *int) (string, error) {
	return f.tty, f.ttyErr
}

func tabLine(position int, name, sessionID, tty string) string {
	return fmt.Sprintf("%d\x1f%s\x1f%s\x1f%s\n", position, name, sessionID, tty)
}

func TestCreateTabParsesChannelIndex(t *testing.T) {
	store, ctx := testutil.NewStore(t)
	ch := &fakeChannel{createResult: "3"}
	reg := NewRegistry(ch, store)

	index, err := reg.CreateTab(ctx, "w1", "", "build")
	if err != nil {
		t.Fatalf("create tab: %v", err)
	}
	if index != 2 {
		t.Fatalf("index: got %d want 2", index)
	}
	if ch.named[2] != "build" {
		t.Fatalf("tab name not set: %v", ch.named)
	}
}

func TestCreateTabRejectsUnparseableIndex(t *testing.T) {
	store, ctx := testutil.NewStore(t)
	reg := NewRegistry(&fakeChannel{createResult: "window id 7"}, store)

	_, err := reg.CreateTab(ctx, "w1", "", "")
	if !errors.Is(err, ErrCreationFailed) {
		t.Fatalf("expected creation failure, got %v", err)
	}
}

func TestResolveTabIndexOrder(t *testing.T) {
	store, ctx := testutil.NewStore(t)
	ch := &fakeChannel{listOutput: tabLine(1, "x", "s1", "/dev/ttys001") + tabLine(2, "mid", "s2", "/dev/ttys002") + tabLine(3, "last", "s3", "/dev/ttys003")}
	reg := NewRegistry(ch, store)

	// Alias "x" points at index 2 while an unrelated tab is literally named
	// "x" at index 0.
	if err := reg.SetAlias(ctx, "w1", 2, "x"); err != nil {
		t.Fatalf("set alias: %v", err)
	}

	index, err := reg.ResolveTabIndex(ctx, "w1", "x")
	if err != nil {
		t.Fatalf("resolve alias: %v", err)
	}
	if index != 2 {
		t.Fatalf("alias must beat name: got %d want 2", index)
	}

	index, err = reg.ResolveTabIndex(ctx, "w1", "0")
	if err != nil {
		t.Fatalf("resolve numeric: %v", err)
	}
	if index != 0 {
		t.Fatalf("numeric must beat alias and name: got %d want 0", index)
	}

	index, err = reg.ResolveTabIndex(ctx, "w1", "mid")
	if err != nil {
		t.Fatalf("resolve name: %v", err)
	}
	if index != 1 {
		t.Fatalf("name lookup: got %d want 1", index)
	}
}

func TestResolveTabIndexNotFound(t *testing.T) {
	store, ctx := testutil.NewStore(t)
	reg := NewRegistry(&fakeChannel{listOutput: tabLine(1, "only", "s1", "/dev/ttys001")}, store)

	if _, err := reg.ResolveTabIndex(ctx, "w1", "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := reg.ResolveTabIndex(ctx, "w1", "-2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("negative index must not resolve, got %v", err)
	}
	if _, err := reg.ResolveTabIndex(ctx, "w1", "  "); !errors.Is(err, ErrNotFound) {
		t.Fatalf("blank identifier must not resolve, got %v", err)
	}
}

func TestEnsureTabIsIdempotentByName(t *testing.T) {
	store, ctx := testutil.NewStore(t)
	ch := &fakeChannel{listOutput: tabLine(1, "edit", "s1", "/dev/ttys001") + tabLine(2, "build", "s2", "/dev/ttys002")}
	reg := NewRegistry(ch, store)

	index, err := reg.EnsureTab(ctx, "w1", "build", "")
	if err != nil {
		t.Fatalf("ensure existing: %v", err)
	}
	if index != 1 || ch.createCalls != 0 {
		t.Fatalf("ensure should reuse: index=%d creates=%d", index, ch.createCalls)
	}

	ch.createResult = "3"
	index, err = reg.EnsureTab(ctx, "w1", "logs", "")
	if err != nil {
		t.Fatalf("ensure missing: %v", err)
	}
	if index != 2 || ch.createCalls != 1 {
		t.Fatalf("ensure should create: index=%d creates=%d", index, ch.createCalls)
	}
}

func TestFocusOrCreateSelectsExistingAndCreatesMissing(t *testing.T) {
	store, ctx := testutil.NewStore(t)
	ch := &fakeChannel{listOutput: tabLine(1, "edit", "s1", "/dev/ttys001")}
	reg := NewRegistry(ch, store)

	index, err := reg.FocusOrCreate(ctx, "w1", "", "edit")
	if err != nil {
		t.Fatalf("focus existing: %v", err)
	}
	if index != 0 || ch.createCalls != 0 {
		t.Fatalf("existing tab recreated: index=%d creates=%d", index, ch.createCalls)
	}

	ch.createResult = "2"
	index, err = reg.FocusOrCreate(ctx, "w1", "", "logs")
	if err != nil {
		t.Fatalf("focus missing: %v", err)
	}
	if index != 1 || ch.createCalls != 1 {
		t.Fatalf("missing tab not created: index=%d creates=%d", index, ch.createCalls)
	}
	if len(ch.selected) != 2 || ch.selected[1] != 1 {
		t.Fatalf("selection calls: %v", ch.selected)
	}

	if _, err := reg.FocusOrCreate(ctx, "w1", "", "9"); err != nil {
		t.Fatalf("numeric focus: %v", err)
	}
	if ch.createCalls != 1 {
		t.Fatalf("numeric identifier created a tab: creates=%d", ch.createCalls)
	}
}

func TestCloseTabShiftsAliases(t *testing.T) {
	store, ctx := testutil.NewStore(t)
	ch := &fakeChannel{}
	reg := NewRegistry(ch, store)

	for index, alias := range map[int]string{0: "edit", 1: "build", 2: "logs"} {
		if err := reg.SetAlias(ctx, "w1", index, alias); err != nil {
			t.Fatalf("seed alias: %v", err)
		}
	}

	if err := reg.CloseTab(ctx, "w1", 1); err != nil {
		t.Fatalf("close tab: %v", err)
	}
	if len(ch.closed) != 1 || ch.closed[0] != 1 {
		t.Fatalf("channel close calls: %v", ch.closed)
	}

	if _, err := reg.Alias(ctx, "w1", 2); !errors.Is(err, ErrNotFound) {
		t.Fatalf("old index should be vacated, got %v", err)
	}
	alias, err := reg.Alias(ctx, "w1", 1)
	if err != nil {
		t.Fatalf("alias after shift: %v", err)
	}
	if alias != "logs" {
		t.Fatalf("alias after shift: got %q want %q", alias, "logs")
	}
}

func TestListTabsJoinsAliases(t *testing.T) {
	store, ctx := testutil.NewStore(t)
	ch := &fakeChannel{listOutput: tabLine(1, "edit", "s1", "/dev/ttys001") + tabLine(2, "build", "s2", "/dev/ttys002")}
	reg := NewRegistry(ch, store)

	if err := reg.SetAlias(ctx, "w1", 1, "b"); err != nil {
		t.Fatalf("set alias: %v", err)
	}

	records, err := reg.ListTabs(ctx, "w1")
	if err != nil {
		t.Fatalf("list tabs: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("record count: %d", len(records))
	}
	if records[0].Index != 0 || records[0].Alias != "" {
		t.Fatalf("record 0: %+v", records[0])
	}
	if records[1].Alias != "b" || records[1].TTY != "/dev/ttys002" {
		t.Fatalf("record 1: %+v", records[1])
	}
}

func TestListTabsRejectsMalformedRecords(t *testing.T) {
	store, ctx := testutil.NewStore(t)
	reg := NewRegistry(&fakeChannel{listOutput: "garbage line\n"}, store)

	if _, err := reg.ListTabs(ctx, "w1"); err == nil {
		t.Fatalf("expected parse error")
	}
}
