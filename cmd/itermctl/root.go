package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Nexus-Digital-Automations/iterm-mcp/internal/command"
	"github.com/Nexus-Digital-Automations/iterm-mcp/internal/config"
	"github.com/Nexus-Digital-Automations/iterm-mcp/internal/iterm"
	"github.com/Nexus-Digital-Automations/iterm-mcp/internal/logging"
	"github.com/Nexus-Digital-Automations/iterm-mcp/internal/osa"
	"github.com/Nexus-Digital-Automations/iterm-mcp/internal/proc"
	"github.com/Nexus-Digital-Automations/iterm-mcp/internal/session"
	"github.com/Nexus-Digital-Automations/iterm-mcp/internal/state"
	"github.com/Nexus-Digital-Automations/iterm-mcp/internal/tabs"
)

var (
	flagWindow  string
	flagPath    string
	flagTab     string
	flagProfile string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "itermctl",
	Short: "Drive iTerm2 from the command line",
	Long: `itermctl drives iTerm2 the way the iterm-mcp server does, without an MCP
client in the loop: run commands and wait for them to finish, read
scrollback, and manage windows and tabs.

Most commands target a window. Pass --window for an explicit window id,
--path to reuse or open the window bound to a project directory, or neither
to target the frontmost window.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagWindow, "window", "w", "", "window id to target")
	rootCmd.PersistentFlags().StringVarP(&flagPath, "path", "p", "", "project directory whose window to target")
	rootCmd.PersistentFlags().StringVarP(&flagTab, "tab", "t", "", "tab to target by index, alias, or name")
	rootCmd.PersistentFlags().StringVar(&flagProfile, "profile", "", "iTerm2 profile for new windows and tabs")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "debug logging to stderr")
}

// app is the per-invocation wiring: the same stack the server runs, minus
// the MCP transport. Session rows live only as long as the process.
type app struct {
	cfg      config.Config
	log      *logging.Logger
	store    *state.Store
	channel  *iterm.Channel
	tabs     *tabs.Registry
	sessions *session.Registry
	engine   *command.Engine
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if flagProfile != "" {
		cfg.Profile = flagProfile
	}

	log := logging.Nop()
	if flagVerbose {
		log, err = logging.New(logging.Config{Level: "debug", Development: true})
		if err != nil {
			return nil, err
		}
	}

	store, err := state.Open(ctx)
	if err != nil {
		return nil, err
	}
	if err := state.ApplyMigrations(ctx, store.DB()); err != nil {
		_ = store.Close()
		return nil, err
	}

	channel := iterm.NewChannel(cfg.ChannelTimeout)
	tabReg := tabs.NewRegistry(channel, store)
	return &app{
		cfg:      cfg,
		log:      log,
		store:    store,
		channel:  channel,
		tabs:     tabReg,
		sessions: session.NewRegistry(channel, tabReg, store, cfg.Profile, log),
		engine:   command.NewEngine(channel, proc.NewInspector(osa.OSRunner{}, cfg.InspectTimeout), cfg, log),
	}, nil
}

func (a *app) Close() {
	_ = a.store.Close()
	_ = a.log.Sync()
}

// targetWindow picks the window a command addresses: an explicit --window,
// the session bound to --path (opened when missing), or the frontmost
// window.
func (a *app) targetWindow(ctx context.Context) (string, error) {
	if flagWindow != "" {
		if !a.sessions.ValidateWindow(ctx, flagWindow) {
			return "", fmt.Errorf("window %s not found", flagWindow)
		}
		return flagWindow, nil
	}
	if flagPath != "" {
		_, windowID, err := a.sessions.FocusOrCreateSessionForPath(ctx, flagPath)
		return windowID, err
	}
	if id := a.sessions.ActiveWindowID(ctx); id != "" {
		return id, nil
	}
	return "", fmt.Errorf("no window to target: pass --window or --path, or open an iTerm2 window")
}

// targetTab resolves --tab within windowID; nil means the window's current
// tab.
func (a *app) targetTab(ctx context.Context, windowID string) (*int, error) {
	if flagTab == "" {
		return nil, nil
	}
	index, err := a.tabs.ResolveTabIndex(ctx, windowID, flagTab)
	if err != nil {
		return nil, err
	}
	return &index, nil
}
