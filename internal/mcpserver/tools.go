package mcpserver

import (
	"context"
	"fmt"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/Nexus-Digital-Automations/iterm-mcp/internal/command"
	"github.com/Nexus-Digital-Automations/iterm-mcp/internal/keys"
	"github.com/Nexus-Digital-Automations/iterm-mcp/internal/model"
	"github.com/Nexus-Digital-Automations/iterm-mcp/internal/output"
)

const defaultReadLines = 25

type WriteToTerminalInput struct {
	Command        string `json:"command" jsonschema:"text to submit to the shell; a return is pressed after it"`
	Session        string `json:"session,omitempty" jsonschema:"session id to target; omitted means the default session"`
	Path           string `json:"path,omitempty" jsonschema:"project directory whose session to target, opening one when needed"`
	Tab            string `json:"tab,omitempty" jsonschema:"tab to target by index, alias, or name; omitted means the session's current tab"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty" jsonschema:"seconds to wait for completion, 1 to 120, default 30"`
	CaptureLines   *int   `json:"capture_lines,omitempty" jsonschema:"also return the last N lines of output after completion"`
}

type WriteToTerminalOutput struct {
	Session         string `json:"session"`
	NewLineCount    int    `json:"new_line_count"`
	ExecutionTimeMs int64  `json:"execution_time_ms"`

	// CapturedOutput is absent when no capture was requested.
	// CaptureFailed marks a requested capture that could not be taken;
	// a failed capture never fails the command.
	CapturedOutput *string `json:"captured_output,omitempty"`
	CaptureFailed  bool    `json:"capture_failed,omitempty"`
}

func (s *Server) handleWriteToTerminal(ctx context.Context, _ *mcpsdk.CallToolRequest, args WriteToTerminalInput) (*mcpsdk.CallToolResult, WriteToTerminalOutput, error) {
	if strings.TrimSpace(args.Command) == "" {
		return nil, WriteToTerminalOutput{}, fmt.Errorf("command is required")
	}
	clientID, err := s.resolveClient(ctx, args.Path, args.Session, true)
	if err != nil {
		return nil, WriteToTerminalOutput{}, err
	}
	windowID, tab, err := s.sessions.Target(ctx, clientID, args.Tab)
	if err != nil {
		return nil, WriteToTerminalOutput{}, err
	}

	res, err := s.exec.Execute(ctx, windowID, tab, command.Request{
		Command:        args.Command,
		TimeoutSeconds: args.TimeoutSeconds,
		CaptureLines:   args.CaptureLines,
	})
	if err != nil {
		return nil, WriteToTerminalOutput{}, err
	}
	s.log.Debug("command finished",
		zap.String("client_id", clientID),
		zap.Int("new_lines", res.NewLineCount))
	return nil, WriteToTerminalOutput{
		Session:         clientID,
		NewLineCount:    res.NewLineCount,
		ExecutionTimeMs: res.Duration.Milliseconds(),
		CapturedOutput:  res.Captured,
		CaptureFailed:   res.CaptureRequested && res.Captured == nil,
	}, nil
}

type ReadTerminalOutputInput struct {
	Session  string `json:"session,omitempty" jsonschema:"session id to read; omitted means the default session"`
	Path     string `json:"path,omitempty" jsonschema:"project directory whose session to read"`
	Tab      string `json:"tab,omitempty" jsonschema:"tab to read by index, alias, or name"`
	Lines    int    `json:"lines,omitempty" jsonschema:"how many trailing lines to return, default 25"`
	Grep     string `json:"grep,omitempty" jsonschema:"keep only lines matching this regular expression"`
	Contains string `json:"contains,omitempty" jsonschema:"keep only lines containing this substring"`
	Numbered bool   `json:"numbered,omitempty" jsonschema:"prefix lines with their original position"`
}

type ReadTerminalOutputOutput struct {
	Session string `json:"session"`
	Output  string `json:"output"`
}

func (s *Server) handleReadTerminalOutput(ctx context.Context, _ *mcpsdk.CallToolRequest, args ReadTerminalOutputInput) (*mcpsdk.CallToolResult, ReadTerminalOutputOutput, error) {
	clientID, err := s.resolveClient(ctx, args.Path, args.Session, false)
	if err != nil {
		return nil, ReadTerminalOutputOutput{}, err
	}
	windowID, tab, err := s.sessions.Target(ctx, clientID, args.Tab)
	if err != nil {
		return nil, ReadTerminalOutputOutput{}, err
	}

	buffer, err := s.term.ReadBuffer(ctx, windowID, tab)
	if err != nil {
		return nil, ReadTerminalOutputOutput{}, err
	}
	lines := args.Lines
	if lines <= 0 {
		lines = defaultReadLines
	}
	text, err := output.Tail(buffer, lines)
	if err != nil {
		return nil, ReadTerminalOutputOutput{}, err
	}
	text, err = output.Filter{Grep: args.Grep, Contains: args.Contains, Numbered: args.Numbered}.Apply(text)
	if err != nil {
		return nil, ReadTerminalOutputOutput{}, err
	}
	return nil, ReadTerminalOutputOutput{Session: clientID, Output: text}, nil
}

type SendControlCharacterInput struct {
	Letter  string `json:"letter" jsonschema:"key to send: a letter like C, a ^X form, or a name like escape, tab, delete"`
	Session string `json:"session,omitempty" jsonschema:"session id to target; omitted means the default session"`
	Path    string `json:"path,omitempty" jsonschema:"project directory whose session to target"`
	Tab     string `json:"tab,omitempty" jsonschema:"tab to target by index, alias, or name"`
}

type SendControlCharacterOutput struct {
	Session string `json:"session"`
	Sent    string `json:"sent"`
}

func (s *Server) handleSendControlCharacter(ctx context.Context, _ *mcpsdk.CallToolRequest, args SendControlCharacterInput) (*mcpsdk.CallToolResult, SendControlCharacterOutput, error) {
	code, err := keys.Code(args.Letter)
	if err != nil {
		return nil, SendControlCharacterOutput{}, err
	}
	clientID, err := s.resolveClient(ctx, args.Path, args.Session, false)
	if err != nil {
		return nil, SendControlCharacterOutput{}, err
	}
	windowID, tab, err := s.sessions.Target(ctx, clientID, args.Tab)
	if err != nil {
		return nil, SendControlCharacterOutput{}, err
	}
	if err := s.term.WriteText(ctx, windowID, tab, string(code), false); err != nil {
		return nil, SendControlCharacterOutput{}, err
	}
	return nil, SendControlCharacterOutput{Session: clientID, Sent: args.Letter}, nil
}

type OpenSessionInput struct {
	Path string `json:"path,omitempty" jsonschema:"project directory to bind the session to; omitted means the default session"`
}

type OpenSessionOutput struct {
	Session  string `json:"session"`
	WindowID string `json:"window_id"`
	Path     string `json:"path,omitempty"`
}

func (s *Server) handleOpenSession(ctx context.Context, _ *mcpsdk.CallToolRequest, args OpenSessionInput) (*mcpsdk.CallToolResult, OpenSessionOutput, error) {
	if strings.TrimSpace(args.Path) == "" {
		windowID, err := s.sessions.RefreshSession(ctx, model.DefaultClientID)
		if err != nil {
			return nil, OpenSessionOutput{}, err
		}
		return nil, OpenSessionOutput{Session: model.DefaultClientID, WindowID: windowID}, nil
	}

	if err := checkDir(args.Path); err != nil {
		return nil, OpenSessionOutput{}, err
	}
	clientID, windowID, err := s.sessions.FocusOrCreateSessionForPath(ctx, args.Path)
	if err != nil {
		return nil, OpenSessionOutput{}, err
	}
	sess, err := s.sessions.Session(ctx, clientID)
	if err != nil {
		return nil, OpenSessionOutput{}, err
	}
	return nil, OpenSessionOutput{Session: clientID, WindowID: windowID, Path: sess.WorkingPath}, nil
}

type CloseSessionInput struct {
	Session string `json:"session,omitempty" jsonschema:"session id to close; omitted means the default session"`
	Path    string `json:"path,omitempty" jsonschema:"project directory whose session to close"`
}

type CloseSessionOutput struct {
	Closed  bool   `json:"closed"`
	Message string `json:"message"`
}

func (s *Server) handleCloseSession(ctx context.Context, _ *mcpsdk.CallToolRequest, args CloseSessionInput) (*mcpsdk.CallToolResult, CloseSessionOutput, error) {
	var res model.EndResult
	if strings.TrimSpace(args.Path) != "" {
		res = s.sessions.EndSessionByPath(ctx, args.Path)
	} else {
		clientID := strings.TrimSpace(args.Session)
		if clientID == "" {
			clientID = model.DefaultClientID
		}
		res = s.sessions.EndSession(ctx, clientID)
	}
	return nil, CloseSessionOutput{Closed: res.Closed, Message: res.Message}, nil
}

type CloseTabsInput struct {
	Session string   `json:"session,omitempty" jsonschema:"session id whose tabs to close; omitted means the default session"`
	Path    string   `json:"path,omitempty" jsonschema:"project directory whose session's tabs to close"`
	Tabs    []string `json:"tabs" jsonschema:"tabs to close by index, alias, or name; the single value all closes the whole window"`
}

type CloseTabsOutput struct {
	Closed  bool   `json:"closed"`
	Message string `json:"message"`
}

func (s *Server) handleCloseTabs(ctx context.Context, _ *mcpsdk.CallToolRequest, args CloseTabsInput) (*mcpsdk.CallToolResult, CloseTabsOutput, error) {
	clientID, err := s.resolveClient(ctx, args.Path, args.Session, false)
	if err != nil {
		return nil, CloseTabsOutput{}, err
	}
	res := s.sessions.CloseTabs(ctx, clientID, args.Tabs)
	return nil, CloseTabsOutput{Closed: res.Closed, Message: res.Message}, nil
}

type ListSessionsInput struct{}

type SessionSummary struct {
	Session    string `json:"session"`
	WindowID   string `json:"window_id"`
	Path       string `json:"path,omitempty"`
	CurrentTab *int   `json:"current_tab,omitempty"`
	Live       bool   `json:"live"`
}

type ListSessionsOutput struct {
	Sessions []SessionSummary `json:"sessions"`
}

func (s *Server) handleListSessions(ctx context.Context, _ *mcpsdk.CallToolRequest, _ ListSessionsInput) (*mcpsdk.CallToolResult, ListSessionsOutput, error) {
	sessions, err := s.sessions.ListSessions(ctx)
	if err != nil {
		return nil, ListSessionsOutput{}, err
	}
	out := ListSessionsOutput{Sessions: make([]SessionSummary, 0, len(sessions))}
	for _, sess := range sessions {
		out.Sessions = append(out.Sessions, SessionSummary{
			Session:    sess.ClientID,
			WindowID:   sess.WindowID,
			Path:       sess.WorkingPath,
			CurrentTab: sess.CurrentTabIndex,
			Live:       s.sessions.ValidateWindow(ctx, sess.WindowID),
		})
	}
	return nil, out, nil
}

type ListTabsInput struct {
	Session string `json:"session,omitempty" jsonschema:"session id whose tabs to list; omitted means the default session"`
	Path    string `json:"path,omitempty" jsonschema:"project directory whose session's tabs to list"`
}

type TabSummary struct {
	Index int    `json:"index"`
	Name  string `json:"name,omitempty"`
	Alias string `json:"alias,omitempty"`
	TTY   string `json:"tty,omitempty"`
}

type ListTabsOutput struct {
	Session string       `json:"session"`
	Tabs    []TabSummary `json:"tabs"`
}

func (s *Server) handleListTabs(ctx context.Context, _ *mcpsdk.CallToolRequest, args ListTabsInput) (*mcpsdk.CallToolResult, ListTabsOutput, error) {
	clientID, err := s.resolveClient(ctx, args.Path, args.Session, false)
	if err != nil {
		return nil, ListTabsOutput{}, err
	}
	records, err := s.sessions.ListSessionTabs(ctx, clientID)
	if err != nil {
		return nil, ListTabsOutput{}, err
	}
	out := ListTabsOutput{Session: clientID, Tabs: make([]TabSummary, 0, len(records))}
	for _, rec := range records {
		out.Tabs = append(out.Tabs, TabSummary{
			Index: rec.Index,
			Name:  rec.Name,
			Alias: rec.Alias,
			TTY:   rec.TTY,
		})
	}
	return nil, out, nil
}

type FocusTabInput struct {
	Session string `json:"session,omitempty" jsonschema:"session id to target; omitted means the default session"`
	Path    string `json:"path,omitempty" jsonschema:"project directory whose session to target"`
	Tab     string `json:"tab" jsonschema:"tab to focus by index, alias, or name; an unmatched name creates a tab of that name"`
}

type FocusTabOutput struct {
	Session string `json:"session"`
	Index   int    `json:"index"`
}

func (s *Server) handleFocusTab(ctx context.Context, _ *mcpsdk.CallToolRequest, args FocusTabInput) (*mcpsdk.CallToolResult, FocusTabOutput, error) {
	if strings.TrimSpace(args.Tab) == "" {
		return nil, FocusTabOutput{}, fmt.Errorf("tab is required")
	}
	clientID, err := s.resolveClient(ctx, args.Path, args.Session, true)
	if err != nil {
		return nil, FocusTabOutput{}, err
	}
	index, err := s.sessions.FocusOrCreateTab(ctx, clientID, args.Tab)
	if err != nil {
		return nil, FocusTabOutput{}, err
	}
	return nil, FocusTabOutput{Session: clientID, Index: index}, nil
}

type SetTabAliasInput struct {
	Session string `json:"session,omitempty" jsonschema:"session id to target; omitted means the default session"`
	Path    string `json:"path,omitempty" jsonschema:"project directory whose session to target"`
	Tab     string `json:"tab" jsonschema:"tab to alias by index, alias, or name"`
	Alias   string `json:"alias" jsonschema:"alias to bind; empty removes the tab's alias"`
}

type SetTabAliasOutput struct {
	Session string `json:"session"`
	Index   int    `json:"index"`
	Alias   string `json:"alias,omitempty"`
}

func (s *Server) handleSetTabAlias(ctx context.Context, _ *mcpsdk.CallToolRequest, args SetTabAliasInput) (*mcpsdk.CallToolResult, SetTabAliasOutput, error) {
	if strings.TrimSpace(args.Tab) == "" {
		return nil, SetTabAliasOutput{}, fmt.Errorf("tab is required")
	}
	clientID, err := s.resolveClient(ctx, args.Path, args.Session, false)
	if err != nil {
		return nil, SetTabAliasOutput{}, err
	}
	index, err := s.sessions.SetTabAlias(ctx, clientID, args.Tab, args.Alias)
	if err != nil {
		return nil, SetTabAliasOutput{}, err
	}
	return nil, SetTabAliasOutput{Session: clientID, Index: index, Alias: strings.TrimSpace(args.Alias)}, nil
}

type GetTabTTYInput struct {
	Session string `json:"session,omitempty" jsonschema:"session id to target; omitted means the default session"`
	Path    string `json:"path,omitempty" jsonschema:"project directory whose session to target"`
	Tab     string `json:"tab,omitempty" jsonschema:"tab to inspect by index, alias, or name; omitted means the session's current tab"`
}

type GetTabTTYOutput struct {
	Session string `json:"session"`
	TTY     string `json:"tty"`
}

func (s *Server) handleGetTabTTY(ctx context.Context, _ *mcpsdk.CallToolRequest, args GetTabTTYInput) (*mcpsdk.CallToolResult, GetTabTTYOutput, error) {
	clientID, err := s.resolveClient(ctx, args.Path, args.Session, false)
	if err != nil {
		return nil, GetTabTTYOutput{}, err
	}
	tty, err := s.sessions.SessionTabTTY(ctx, clientID, args.Tab)
	if err != nil {
		return nil, GetTabTTYOutput{}, err
	}
	return nil, GetTabTTYOutput{Session: clientID, TTY: tty}, nil
}
