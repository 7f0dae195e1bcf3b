package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/Nexus-Digital-Automations/iterm-mcp/internal/command"
	"github.com/Nexus-Digital-Automations/iterm-mcp/internal/config"
	"github.com/Nexus-Digital-Automations/iterm-mcp/internal/iterm"
	"github.com/Nexus-Digital-Automations/iterm-mcp/internal/logging"
	"github.com/Nexus-Digital-Automations/iterm-mcp/internal/mcpserver"
	"github.com/Nexus-Digital-Automations/iterm-mcp/internal/osa"
	"github.com/Nexus-Digital-Automations/iterm-mcp/internal/proc"
	"github.com/Nexus-Digital-Automations/iterm-mcp/internal/session"
	"github.com/Nexus-Digital-Automations/iterm-mcp/internal/state"
	"github.com/Nexus-Digital-Automations/iterm-mcp/internal/tabs"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fatal(err)
	}
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	flag.BoolVar(&cfg.LogDevelopment, "log-dev", cfg.LogDevelopment, "console log encoding for local runs")
	flag.StringVar(&cfg.Profile, "profile", cfg.Profile, "iTerm2 profile for new windows and tabs")
	flag.Parse()

	log, err := logging.New(logging.Config{Level: cfg.LogLevel, Development: cfg.LogDevelopment})
	if err != nil {
		fatal(err)
	}
	defer log.Sync() //nolint:errcheck

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := state.Open(ctx)
	if err != nil {
		fatal(err)
	}
	defer store.Close() //nolint:errcheck
	if err := state.ApplyMigrations(ctx, store.DB()); err != nil {
		fatal(err)
	}

	channel := iterm.NewChannel(cfg.ChannelTimeout)
	inspector := proc.NewInspector(osa.OSRunner{}, cfg.InspectTimeout)
	tabReg := tabs.NewRegistry(channel, store)
	sessions := session.NewRegistry(channel, tabReg, store, cfg.Profile, log)
	engine := command.NewEngine(channel, inspector, cfg, log)

	srv := mcpserver.New(cfg, log, sessions, channel, engine)
	log.Info("serving MCP over stdio",
		zap.String("server", mcpserver.ServerName),
		zap.String("version", mcpserver.ServerVersion))
	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fatal(err)
	}
}

func fatal(err error) {
	_, _ = fmt.Fprintf(os.Stderr, "iterm-mcp: %v\n", err)
	os.Exit(1)
}
