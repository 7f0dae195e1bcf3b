package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config carries every tunable for the server and CLI. Defaults suit an
// interactive terminal on a responsive machine; the ITERM_MCP_* environment
// overrides exist for slow hosts and for tests.
type Config struct {
	LogLevel       string `envconfig:"ITERM_MCP_LOG_LEVEL" default:"info"`
	LogDevelopment bool   `envconfig:"ITERM_MCP_LOG_DEV" default:"false"`

	// Profile names the terminal profile used for new windows and tabs.
	// Empty means the application default.
	Profile string `envconfig:"ITERM_MCP_PROFILE" default:""`

	// ChannelTimeout bounds a single scripting-bridge invocation.
	ChannelTimeout time.Duration `envconfig:"ITERM_MCP_CHANNEL_TIMEOUT" default:"10s"`

	// InspectTimeout bounds one ps probe of a terminal device.
	InspectTimeout time.Duration `envconfig:"ITERM_MCP_INSPECT_TIMEOUT" default:"5s"`

	// DefaultCommandTimeout applies when a command request carries no
	// timeout of its own.
	DefaultCommandTimeout time.Duration `envconfig:"ITERM_MCP_COMMAND_TIMEOUT" default:"30s"`

	// ProcessingPollInterval paces the terminal-busy polls right after
	// submission; ActivityPollInterval paces the foreground-process polls
	// that follow.
	ProcessingPollInterval time.Duration `envconfig:"ITERM_MCP_PROCESSING_POLL" default:"100ms"`
	ActivityPollInterval   time.Duration `envconfig:"ITERM_MCP_ACTIVITY_POLL" default:"350ms"`

	// A command counts as finished once its foreground process stays under
	// CPUIdleThreshold percent for a full CPUIdleWindow.
	CPUIdleThreshold float64       `envconfig:"ITERM_MCP_CPU_IDLE_THRESHOLD" default:"1.0"`
	CPUIdleWindow    time.Duration `envconfig:"ITERM_MCP_CPU_IDLE_WINDOW" default:"1s"`

	// SettleDelay is the pause between completion and the final buffer
	// read, giving the terminal time to flush trailing output.
	SettleDelay time.Duration `envconfig:"ITERM_MCP_SETTLE_DELAY" default:"200ms"`
}

func DefaultConfig() Config {
	return Config{
		LogLevel:               "info",
		ChannelTimeout:         10 * time.Second,
		InspectTimeout:         5 * time.Second,
		DefaultCommandTimeout:  30 * time.Second,
		ProcessingPollInterval: 100 * time.Millisecond,
		ActivityPollInterval:   350 * time.Millisecond,
		CPUIdleThreshold:       1.0,
		CPUIdleWindow:          time.Second,
		SettleDelay:            200 * time.Millisecond,
	}
}

// Load builds a Config from the defaults plus environment overrides.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
