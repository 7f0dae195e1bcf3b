// Package session owns the client to window mapping: which terminal window
// answers for which client, keyed by client id or by project path.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/Nexus-Digital-Automations/iterm-mcp/internal/logging"
	"github.com/Nexus-Digital-Automations/iterm-mcp/internal/model"
	"github.com/Nexus-Digital-Automations/iterm-mcp/internal/state"
	"github.com/Nexus-Digital-Automations/iterm-mcp/internal/tabs"
)

// ErrCreationFailed marks a session that could not be established.
var ErrCreationFailed = errors.New("session creation failed")

// Channel is the window-level surface the registry drives.
type Channel interface {
	CreateWindow(ctx context.Context, profile string) (string, error)
	CloseWindow(ctx context.Context, windowID string) error
	WindowExists(ctx context.Context, windowID string) (bool, error)
	ActiveWindowID(ctx context.Context) (string, error)
}

// Registry tracks which window belongs to which client. It is the only
// writer of session rows; callers are expected to issue one command per
// client at a time, and operations against different windows never block
// each other here.
type Registry struct {
	ch      Channel
	tabs    *tabs.Registry
	store   *state.Store
	profile string
	log     *logging.Logger
}

func NewRegistry(ch Channel, tabReg *tabs.Registry, store *state.Store, profile string, log *logging.Logger) *Registry {
	if log == nil {
		log = logging.Nop()
	}
	return &Registry{ch: ch, tabs: tabReg, store: store, profile: profile, log: log}
}

// CreateSession opens a new window and binds it to clientID. workingPath is
// recorded for later lookup only; the shell's directory is never changed.
func (r *Registry) CreateSession(ctx context.Context, clientID, workingPath string) (string, error) {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return "", fmt.Errorf("empty client id: %w", ErrCreationFailed)
	}
	normalized := ""
	if strings.TrimSpace(workingPath) != "" {
		normalized = NormalizePath(workingPath)
	}

	windowID, err := r.ch.CreateWindow(ctx, r.profile)
	if err != nil || strings.TrimSpace(windowID) == "" {
		windowID = r.fallbackWindow(ctx, clientID, normalized)
		if windowID == "" {
			if err != nil {
				return "", fmt.Errorf("create window for %s: %v: %w", clientID, err, ErrCreationFailed)
			}
			return "", fmt.Errorf("create window for %s: empty window id: %w", clientID, ErrCreationFailed)
		}
		r.log.Warn("window creation failed, adopting active window",
			zap.String("client_id", clientID), zap.String("window_id", windowID), zap.Error(err))
	}

	sess := model.ClientSession{ClientID: clientID, WindowID: windowID, WorkingPath: normalized}
	if err := r.store.UpsertSession(ctx, sess); err != nil {
		return "", fmt.Errorf("record session %s: %w", clientID, err)
	}
	r.log.Info("session created", zap.String("client_id", clientID), zap.String("window_id", windowID))
	return windowID, nil
}

// fallbackWindow adopts the frontmost window, but only for the default
// unnamed client: an anonymous caller is better served by any live window
// than by a hard failure, while redirecting a project-bound client to an
// unrelated window would cross-wire its commands.
func (r *Registry) fallbackWindow(ctx context.Context, clientID, workingPath string) string {
	if clientID != model.DefaultClientID || workingPath != "" {
		return ""
	}
	return r.ActiveWindowID(ctx)
}

// ValidateWindow reports whether windowID still exists. Every failure reads
// as gone: a window we cannot verify must not be written to.
func (r *Registry) ValidateWindow(ctx context.Context, windowID string) bool {
	if strings.TrimSpace(windowID) == "" {
		return false
	}
	exists, err := r.ch.WindowExists(ctx, windowID)
	if err != nil {
		r.log.Debug("window validation failed", zap.String("window_id", windowID), zap.Error(err))
		return false
	}
	return exists
}

// ActiveWindowID reports the frontmost window, or "" when there is none or
// the terminal cannot be reached. It never fails.
func (r *Registry) ActiveWindowID(ctx context.Context) string {
	id, err := r.ch.ActiveWindowID(ctx)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(id)
}

// RefreshSession returns a live window for the client, replacing the bound
// window when the user has closed it. The recorded working path survives the
// replacement. Callers run this before every command.
func (r *Registry) RefreshSession(ctx context.Context, clientID string) (string, error) {
	sess, err := r.store.Session(ctx, clientID)
	if err == nil && r.ValidateWindow(ctx, sess.WindowID) {
		return sess.WindowID, nil
	}
	if err != nil && !errors.Is(err, state.ErrNotFound) {
		return "", fmt.Errorf("load session %s: %w", clientID, err)
	}

	workingPath := ""
	if err == nil {
		workingPath = sess.WorkingPath
		r.log.Info("bound window is gone, replacing",
			zap.String("client_id", clientID), zap.String("window_id", sess.WindowID))
	}
	return r.CreateSession(ctx, clientID, workingPath)
}

// FindSessionByPath returns the client bound to path, or "" when none is.
func (r *Registry) FindSessionByPath(ctx context.Context, path string) string {
	if strings.TrimSpace(path) == "" {
		return ""
	}
	sess, err := r.store.SessionByPath(ctx, NormalizePath(path))
	if err != nil {
		return ""
	}
	return sess.ClientID
}

// FocusOrCreateSessionForPath is the path-addressed entry point: reuse the
// window bound to the path when it is still alive, otherwise open a fresh
// one. The client id is derived from the path, so calls agree across
// restarts.
func (r *Registry) FocusOrCreateSessionForPath(ctx context.Context, path string) (string, string, error) {
	if strings.TrimSpace(path) == "" {
		return "", "", fmt.Errorf("empty path: %w", ErrCreationFailed)
	}
	clientID := ClientIDForPath(path)

	sess, err := r.store.Session(ctx, clientID)
	if err == nil && r.ValidateWindow(ctx, sess.WindowID) {
		return clientID, sess.WindowID, nil
	}
	if err != nil && !errors.Is(err, state.ErrNotFound) {
		return "", "", fmt.Errorf("load session %s: %w", clientID, err)
	}

	windowID, err := r.CreateSession(ctx, clientID, path)
	if err != nil {
		return "", "", err
	}
	return clientID, windowID, nil
}

// Session returns the stored record for clientID.
func (r *Registry) Session(ctx context.Context, clientID string) (model.ClientSession, error) {
	return r.store.Session(ctx, clientID)
}

// ListSessions returns every tracked session in creation order.
func (r *Registry) ListSessions(ctx context.Context) ([]model.ClientSession, error) {
	return r.store.ListSessions(ctx)
}

// EndSession closes the client's window and clears its registry entries.
// Cleanup always completes; a window already closed by the user must not
// leave rows behind, so channel failures only shape the reported message.
func (r *Registry) EndSession(ctx context.Context, clientID string) model.EndResult {
	sess, err := r.store.Session(ctx, clientID)
	if errors.Is(err, state.ErrNotFound) {
		return model.EndResult{Closed: false, Message: fmt.Sprintf("no session for %s", clientID)}
	}
	if err != nil {
		return model.EndResult{Closed: false, Message: fmt.Sprintf("load session %s: %v", clientID, err)}
	}

	closed := true
	message := fmt.Sprintf("closed window %s", sess.WindowID)
	if err := r.ch.CloseWindow(ctx, sess.WindowID); err != nil {
		closed = false
		message = fmt.Sprintf("window %s was not closed: %v", sess.WindowID, err)
		r.log.Warn("close window failed",
			zap.String("client_id", clientID), zap.String("window_id", sess.WindowID), zap.Error(err))
	}
	if err := r.store.DeleteSession(ctx, clientID); err != nil && !errors.Is(err, state.ErrNotFound) {
		r.log.Warn("delete session row failed", zap.String("client_id", clientID), zap.Error(err))
	}
	if err := r.store.ClearWindowAliases(ctx, sess.WindowID); err != nil {
		r.log.Warn("clear window aliases failed", zap.String("window_id", sess.WindowID), zap.Error(err))
	}
	return model.EndResult{Closed: closed, Message: message}
}

// EndSessionByPath ends the session bound to path. Unknown paths are a
// no-op, reported in the result rather than as an error.
func (r *Registry) EndSessionByPath(ctx context.Context, path string) model.EndResult {
	clientID := r.FindSessionByPath(ctx, path)
	if clientID == "" {
		return model.EndResult{Closed: false, Message: fmt.Sprintf("no session for path %s", NormalizePath(path))}
	}
	return r.EndSession(ctx, clientID)
}

// Target resolves where a command should run: the client's live window plus
// the tab to address. An explicit identifier wins and becomes the client's
// current tab; otherwise the last-focused tab is reused, and nil means the
// window's current tab.
func (r *Registry) Target(ctx context.Context, clientID, identifier string) (string, *int, error) {
	windowID, err := r.RefreshSession(ctx, clientID)
	if err != nil {
		return "", nil, err
	}
	if strings.TrimSpace(identifier) == "" {
		return windowID, r.currentTab(ctx, clientID), nil
	}
	index, err := r.tabs.ResolveTabIndex(ctx, windowID, identifier)
	if err != nil {
		return "", nil, err
	}
	r.rememberTab(ctx, clientID, index, identifier)
	return windowID, &index, nil
}

// FocusOrCreateTab resolves identifier to a tab, creating a tab of that name
// when nothing matches, then selects it and records it as the client's
// current tab.
func (r *Registry) FocusOrCreateTab(ctx context.Context, clientID, identifier string) (int, error) {
	windowID, err := r.RefreshSession(ctx, clientID)
	if err != nil {
		return 0, err
	}
	index, err := r.tabs.FocusOrCreate(ctx, windowID, r.profile, identifier)
	if err != nil {
		return 0, err
	}
	r.rememberTab(ctx, clientID, index, identifier)
	return index, nil
}

// ListSessionTabs lists the tabs of the client's window.
func (r *Registry) ListSessionTabs(ctx context.Context, clientID string) ([]model.TabRecord, error) {
	windowID, err := r.RefreshSession(ctx, clientID)
	if err != nil {
		return nil, err
	}
	return r.tabs.ListTabs(ctx, windowID)
}

// SessionTabTTY reports the terminal device behind a tab of the client's
// window. An empty identifier targets the client's current tab.
func (r *Registry) SessionTabTTY(ctx context.Context, clientID, identifier string) (string, error) {
	windowID, tab, err := r.Target(ctx, clientID, identifier)
	if err != nil {
		return "", err
	}
	return r.tabs.TTY(ctx, windowID, tab)
}

// SetTabAlias binds alias to the identified tab. An empty alias removes the
// existing binding instead.
func (r *Registry) SetTabAlias(ctx context.Context, clientID, identifier, alias string) (int, error) {
	windowID, err := r.RefreshSession(ctx, clientID)
	if err != nil {
		return 0, err
	}
	index, err := r.tabs.ResolveTabIndex(ctx, windowID, identifier)
	if err != nil {
		return 0, err
	}
	if strings.TrimSpace(alias) == "" {
		if err := r.tabs.RemoveAlias(ctx, windowID, index); err != nil && !errors.Is(err, tabs.ErrNotFound) {
			return 0, err
		}
		return index, nil
	}
	if err := r.tabs.SetAlias(ctx, windowID, index, alias); err != nil {
		return 0, err
	}
	return index, nil
}

// CloseSessionTab closes one tab of the client's window, identified by
// index, alias, or name.
func (r *Registry) CloseSessionTab(ctx context.Context, clientID, identifier string) error {
	windowID, err := r.RefreshSession(ctx, clientID)
	if err != nil {
		return err
	}
	index, err := r.tabs.ResolveTabIndex(ctx, windowID, identifier)
	if err != nil {
		return err
	}
	if err := r.tabs.CloseTab(ctx, windowID, index); err != nil {
		return err
	}
	r.adjustCurrentTabAfterClose(ctx, clientID, index)
	return nil
}

// CloseTabs closes the identified tabs of the client's window, or the whole
// window when the single identifier "all" (any case) is given. Tabs close
// highest index first so the remaining identifiers stay valid mid-loop.
func (r *Registry) CloseTabs(ctx context.Context, clientID string, identifiers []string) model.EndResult {
	if closeAll(identifiers) {
		return r.EndSession(ctx, clientID)
	}
	if len(identifiers) == 0 {
		return model.EndResult{Closed: false, Message: "no tabs named"}
	}

	windowID, err := r.RefreshSession(ctx, clientID)
	if err != nil {
		return model.EndResult{Closed: false, Message: err.Error()}
	}

	seen := make(map[int]bool)
	indices := make([]int, 0, len(identifiers))
	for _, ident := range identifiers {
		index, err := r.tabs.ResolveTabIndex(ctx, windowID, ident)
		if err != nil {
			return model.EndResult{Closed: false, Message: fmt.Sprintf("resolve tab %q: %v", ident, err)}
		}
		if !seen[index] {
			seen[index] = true
			indices = append(indices, index)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(indices)))

	closed := 0
	for _, index := range indices {
		if err := r.tabs.CloseTab(ctx, windowID, index); err != nil {
			return model.EndResult{
				Closed:  closed > 0,
				Message: fmt.Sprintf("closed %d of %d tabs, then tab %d failed: %v", closed, len(indices), index, err),
			}
		}
		r.adjustCurrentTabAfterClose(ctx, clientID, index)
		closed++
	}
	return model.EndResult{Closed: true, Message: fmt.Sprintf("closed %d tabs", closed)}
}

func closeAll(identifiers []string) bool {
	return len(identifiers) == 1 && strings.EqualFold(strings.TrimSpace(identifiers[0]), "all")
}

func (r *Registry) currentTab(ctx context.Context, clientID string) *int {
	sess, err := r.store.Session(ctx, clientID)
	if err != nil {
		return nil
	}
	return sess.CurrentTabIndex
}

// rememberTab records the tab a client last addressed so later commands
// without a tab land in the same place. Bookkeeping only; failures are
// logged, never surfaced.
func (r *Registry) rememberTab(ctx context.Context, clientID string, index int, identifier string) {
	name := strings.TrimSpace(identifier)
	if isNumeric(name) {
		name = ""
	}
	if err := r.store.SetCurrentTab(ctx, clientID, index, name); err != nil {
		r.log.Warn("record current tab failed", zap.String("client_id", clientID), zap.Error(err))
	}
}

// adjustCurrentTabAfterClose keeps the stored current tab pointing at the
// same tab after indexes shift down past the closed one.
func (r *Registry) adjustCurrentTabAfterClose(ctx context.Context, clientID string, closed int) {
	sess, err := r.store.Session(ctx, clientID)
	if err != nil || sess.CurrentTabIndex == nil {
		return
	}
	cur := *sess.CurrentTabIndex
	switch {
	case cur == closed:
		if err := r.store.ClearCurrentTab(ctx, clientID); err != nil {
			r.log.Warn("clear current tab failed", zap.String("client_id", clientID), zap.Error(err))
		}
	case cur > closed:
		if err := r.store.SetCurrentTab(ctx, clientID, cur-1, sess.CurrentTabName); err != nil {
			r.log.Warn("shift current tab failed", zap.String("client_id", clientID), zap.Error(err))
		}
	}
}

func isNumeric(s string) bool {
	_, err := strconv.Atoi(strings.TrimSpace(s))
	return err == nil
}
