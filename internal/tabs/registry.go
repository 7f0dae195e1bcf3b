package tabs

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Nexus-Digital-Automations/iterm-mcp/internal/model"
	"github.com/Nexus-Digital-Automations/iterm-mcp/internal/osa"
	"github.com/Nexus-Digital-Automations/iterm-mcp/internal/state"
)

var (
	ErrNotFound       = errors.New("tab not found")
	ErrCreationFailed = errors.New("tab creation failed")
)

// Channel is the subset of terminal operations the registry consumes.
type Channel interface {
	CreateTab(ctx context.Context, windowID, profile string) (string, error)
	SelectTab(ctx context.Context, windowID string, index int) error
	CloseTab(ctx context.Context, windowID string, index int) error
	SetTabName(ctx context.Context, windowID string, index int, name string) error
	ListTabs(ctx context.Context, windowID string) (string, error)
	SessionTTY(ctx context.Context, windowID string, tab *int) (string, error)
}

// Registry resolves tab identity within a window. Tab rows are re-derived
// from the channel on every call; only the alias side table is owned state.
type Registry struct {
	ch    Channel
	store *state.Store
}

func NewRegistry(ch Channel, store *state.Store) *Registry {
	return &Registry{ch: ch, store: store}
}

// CreateTab opens a tab and returns its 0-based index. A non-empty name is
// written onto the new tab's session so EnsureTab can find it again.
func (r *Registry) CreateTab(ctx context.Context, windowID, profile, name string) (int, error) {
	raw, err := r.ch.CreateTab(ctx, windowID, profile)
	if err != nil {
		return 0, err
	}
	position, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || position < 1 {
		return 0, fmt.Errorf("channel returned index %q: %w", raw, ErrCreationFailed)
	}
	index := position - 1
	if name != "" {
		if err := r.ch.SetTabName(ctx, windowID, index, name); err != nil {
			return 0, err
		}
	}
	return index, nil
}

// SelectTab brings the tab to the front. The 1-based conversion for the
// channel's indexing happens below this API; callers only see 0-based.
func (r *Registry) SelectTab(ctx context.Context, windowID string, index int) error {
	return r.ch.SelectTab(ctx, windowID, index)
}

// CloseTab closes the tab and re-keys the alias table, since the terminal
// reassigns the indices of every tab to the right of the closed one.
func (r *Registry) CloseTab(ctx context.Context, windowID string, index int) error {
	if err := r.ch.CloseTab(ctx, windowID, index); err != nil {
		return err
	}
	return r.store.ShiftAliasesAfterClose(ctx, windowID, index)
}

// ListTabs reports the window's tabs in on-screen order with aliases joined
// in from the side table.
func (r *Registry) ListTabs(ctx context.Context, windowID string) ([]model.TabRecord, error) {
	raw, err := r.ch.ListTabs(ctx, windowID)
	if err != nil {
		return nil, err
	}
	records, err := parseTabList(windowID, raw)
	if err != nil {
		return nil, err
	}
	aliases, err := r.store.WindowAliases(ctx, windowID)
	if err != nil {
		return nil, err
	}
	for i := range records {
		records[i].Alias = aliases[records[i].Index]
	}
	return records, nil
}

// ResolveTabIndex maps an identifier to a 0-based index. Numeric literals
// resolve without touching the channel; aliases beat names because names
// are mutable and may have changed out-of-band.
func (r *Registry) ResolveTabIndex(ctx context.Context, windowID, identifier string) (int, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return 0, fmt.Errorf("empty tab identifier: %w", ErrNotFound)
	}
	if index, err := strconv.Atoi(identifier); err == nil {
		if index < 0 {
			return 0, fmt.Errorf("tab index %d: %w", index, ErrNotFound)
		}
		return index, nil
	}
	index, err := r.store.AliasIndex(ctx, windowID, identifier)
	if err == nil {
		return index, nil
	}
	if !errors.Is(err, state.ErrNotFound) {
		return 0, err
	}
	records, err := r.ListTabs(ctx, windowID)
	if err != nil {
		return 0, err
	}
	for _, rec := range records {
		if rec.Name == identifier {
			return rec.Index, nil
		}
	}
	return 0, fmt.Errorf("tab %q: %w", identifier, ErrNotFound)
}

// FocusOrCreate resolves identifier to a tab, creating a tab of that name
// when nothing matches, then selects it. Numeric identifiers never create;
// a missing index is the caller's mistake, not a request for a new tab.
func (r *Registry) FocusOrCreate(ctx context.Context, windowID, profile, identifier string) (int, error) {
	index, err := r.ResolveTabIndex(ctx, windowID, identifier)
	if errors.Is(err, ErrNotFound) && !isNumeric(identifier) {
		index, err = r.CreateTab(ctx, windowID, profile, strings.TrimSpace(identifier))
	}
	if err != nil {
		return 0, err
	}
	if err := r.SelectTab(ctx, windowID, index); err != nil {
		return 0, err
	}
	return index, nil
}

// EnsureTab finds a tab by name or creates it. Calling it twice with the
// same name yields the same index.
func (r *Registry) EnsureTab(ctx context.Context, windowID, name, profile string) (int, error) {
	if strings.TrimSpace(name) == "" {
		return 0, fmt.Errorf("empty tab name: %w", ErrCreationFailed)
	}
	records, err := r.ListTabs(ctx, windowID)
	if err != nil {
		return 0, err
	}
	for _, rec := range records {
		if rec.Name == name {
			return rec.Index, nil
		}
	}
	return r.CreateTab(ctx, windowID, profile, name)
}

// TTY reports the terminal device of the targeted tab, or of the window's
// current tab when tab is nil.
func (r *Registry) TTY(ctx context.Context, windowID string, tab *int) (string, error) {
	return r.ch.SessionTTY(ctx, windowID, tab)
}

// Alias bookkeeping; none of these touch the channel.

func (r *Registry) SetAlias(ctx context.Context, windowID string, index int, alias string) error {
	alias = strings.TrimSpace(alias)
	if alias == "" {
		return fmt.Errorf("empty alias")
	}
	return r.store.SetAlias(ctx, windowID, index, alias)
}

func (r *Registry) Alias(ctx context.Context, windowID string, index int) (string, error) {
	alias, err := r.store.TabAlias(ctx, windowID, index)
	if errors.Is(err, state.ErrNotFound) {
		return "", fmt.Errorf("alias for tab %d: %w", index, ErrNotFound)
	}
	return alias, err
}

func (r *Registry) RemoveAlias(ctx context.Context, windowID string, index int) error {
	err := r.store.RemoveAlias(ctx, windowID, index)
	if errors.Is(err, state.ErrNotFound) {
		return fmt.Errorf("alias for tab %d: %w", index, ErrNotFound)
	}
	return err
}

func (r *Registry) ClearWindowAliases(ctx context.Context, windowID string) error {
	return r.store.ClearWindowAliases(ctx, windowID)
}

func isNumeric(s string) bool {
	_, err := strconv.Atoi(strings.TrimSpace(s))
	return err == nil
}

func parseTabList(windowID, raw string) ([]model.TabRecord, error) {
	records := make([]model.TabRecord, 0)
	for _, line := range strings.Split(raw, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		parts := osa.SplitLine(line, 4)
		if len(parts) != 4 {
			return nil, fmt.Errorf("invalid tab record: %q", line)
		}
		position, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil || position < 1 {
			return nil, fmt.Errorf("invalid tab record: %q", line)
		}
		records = append(records, model.TabRecord{
			WindowID:  windowID,
			Index:     position - 1,
			Name:      strings.TrimSpace(parts[1]),
			SessionID: strings.TrimSpace(parts[2]),
			TTY:       strings.TrimSpace(parts[3]),
		})
	}
	return records, nil
}
