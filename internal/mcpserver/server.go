// Package mcpserver exposes the terminal automation surface over the Model
// Context Protocol on stdio.
package mcpserver

import (
	"context"
	"fmt"
	"os"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/Nexus-Digital-Automations/iterm-mcp/internal/command"
	"github.com/Nexus-Digital-Automations/iterm-mcp/internal/config"
	"github.com/Nexus-Digital-Automations/iterm-mcp/internal/logging"
	"github.com/Nexus-Digital-Automations/iterm-mcp/internal/model"
	"github.com/Nexus-Digital-Automations/iterm-mcp/internal/session"
)

const (
	ServerName    = "iterm-mcp"
	ServerVersion = "1.2.0"
)

// Terminal is the raw read/write surface tools use directly, without the
// completion protocol.
type Terminal interface {
	WriteText(ctx context.Context, windowID string, tab *int, text string, pressEnter bool) error
	ReadBuffer(ctx context.Context, windowID string, tab *int) (string, error)
}

// Executor runs one command submission through completion detection.
type Executor interface {
	Execute(ctx context.Context, windowID string, tab *int, req command.Request) (*command.Result, error)
}

// Server wires the registries and engine to MCP tools.
type Server struct {
	mcp      *mcpsdk.Server
	cfg      config.Config
	log      *logging.Logger
	sessions *session.Registry
	term     Terminal
	exec     Executor
}

func New(cfg config.Config, log *logging.Logger, sessions *session.Registry, term Terminal, exec Executor) *Server {
	if log == nil {
		log = logging.Nop()
	}
	s := &Server{cfg: cfg, log: log, sessions: sessions, term: term, exec: exec}
	s.mcp = mcpsdk.NewServer(&mcpsdk.Implementation{
		Name:    ServerName,
		Version: ServerVersion,
	}, nil)
	s.registerTools()
	return s
}

// Run serves MCP on stdio until the context ends. Stdout belongs to the
// protocol from here on.
func (s *Server) Run(ctx context.Context) error {
	s.log.Info("serving on stdio",
		zap.String("server", ServerName), zap.String("version", ServerVersion))
	return s.mcp.Run(ctx, &mcpsdk.StdioTransport{})
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcp, &mcpsdk.Tool{
		Name:        "write_to_terminal",
		Description: "Run a command in a terminal session and wait for it to finish. Returns how many lines of output appeared; pass capture_lines to also get the trailing output. Completion is inferred from terminal state and foreground CPU, so long-running commands may time out while still running.",
	}, s.handleWriteToTerminal)

	mcpsdk.AddTool(s.mcp, &mcpsdk.Tool{
		Name:        "read_terminal_output",
		Description: "Read the visible output of a terminal session. Returns the last N lines (default 25), optionally filtered by a regex or substring and optionally numbered by original line position.",
	}, s.handleReadTerminalOutput)

	mcpsdk.AddTool(s.mcp, &mcpsdk.Tool{
		Name:        "send_control_character",
		Description: "Send a control character to a terminal session, e.g. C for Ctrl-C to interrupt, or ] for telnet escape. Accepts letters, ^X forms, and names like escape or tab.",
	}, s.handleSendControlCharacter)

	mcpsdk.AddTool(s.mcp, &mcpsdk.Tool{
		Name:        "open_session",
		Description: "Open or focus a terminal session. With a path, the session is bound to that project directory and reused on later calls; without one, the shared default session is opened or revived.",
	}, s.handleOpenSession)

	mcpsdk.AddTool(s.mcp, &mcpsdk.Tool{
		Name:        "close_session",
		Description: "Close a session's terminal window and forget the session. Reports the outcome rather than failing when the window is already gone.",
	}, s.handleCloseSession)

	mcpsdk.AddTool(s.mcp, &mcpsdk.Tool{
		Name:        "close_tabs",
		Description: "Close specific tabs of a session by index, alias, or name. Passing the single value \"all\" closes the whole window.",
	}, s.handleCloseTabs)

	mcpsdk.AddTool(s.mcp, &mcpsdk.Tool{
		Name:        "list_sessions",
		Description: "List tracked sessions with their window, bound path, current tab, and whether the window is still open.",
	}, s.handleListSessions)

	mcpsdk.AddTool(s.mcp, &mcpsdk.Tool{
		Name:        "list_tabs",
		Description: "List the tabs of a session's window with their indexes, names, aliases, and terminal devices.",
	}, s.handleListTabs)

	mcpsdk.AddTool(s.mcp, &mcpsdk.Tool{
		Name:        "focus_tab",
		Description: "Select a tab by index, alias, or name, creating a named tab when nothing matches. The tab becomes the session's target for later commands that name no tab.",
	}, s.handleFocusTab)

	mcpsdk.AddTool(s.mcp, &mcpsdk.Tool{
		Name:        "set_tab_alias",
		Description: "Bind a short alias to a tab of a session's window. An empty alias removes the binding. Aliases are unique within a window and follow the tab when lower tabs close.",
	}, s.handleSetTabAlias)

	mcpsdk.AddTool(s.mcp, &mcpsdk.Tool{
		Name:        "get_tab_tty",
		Description: "Report the terminal device path (tty) behind a tab, for correlating with process tools.",
	}, s.handleGetTabTTY)
}

// resolveClient picks the client a call addresses. A path wins over a
// session name; with create set the path is bound to a fresh session when
// none exists, otherwise an unbound path is an error. No path and no session
// means the shared default client.
func (s *Server) resolveClient(ctx context.Context, path, sessionName string, create bool) (string, error) {
	if strings.TrimSpace(path) != "" {
		if create {
			if err := checkDir(path); err != nil {
				return "", err
			}
			clientID, _, err := s.sessions.FocusOrCreateSessionForPath(ctx, path)
			return clientID, err
		}
		clientID := s.sessions.FindSessionByPath(ctx, path)
		if clientID == "" {
			return "", fmt.Errorf("no session is bound to %s; open one with open_session", path)
		}
		return clientID, nil
	}
	if name := strings.TrimSpace(sessionName); name != "" {
		return name, nil
	}
	return model.DefaultClientID, nil
}

func checkDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("path %s: %w", path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path %s is not a directory", path)
	}
	return nil
}
