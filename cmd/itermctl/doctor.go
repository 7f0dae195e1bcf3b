package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Nexus-Digital-Automations/iterm-mcp/internal/config"
	"github.com/Nexus-Digital-Automations/iterm-mcp/internal/integration"
	"github.com/Nexus-Digital-Automations/iterm-mcp/internal/iterm"
)

var doctorJSON bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the environment the automation depends on",
	Long: `Check that osascript and ps are on PATH, that the server is registered in
the client config, and that iTerm2 answers Apple events. Exits non-zero
when a check fails.`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorJSON, "json", false, "output JSON")
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	res, err := integration.Doctor(ctx, integration.DoctorOptions{}, iterm.NewChannel(cfg.ChannelTimeout))
	if err != nil {
		return err
	}

	if doctorJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else {
		for _, c := range res.Checks {
			line := fmt.Sprintf("%-4s %-13s %s", c.Status, c.Name, c.Message)
			if c.Path != "" {
				line += " (" + c.Path + ")"
			}
			fmt.Println(line)
		}
	}
	if !res.OK {
		return fmt.Errorf("doctor found problems")
	}
	return nil
}
