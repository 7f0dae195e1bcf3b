package main

import (
	"github.com/spf13/cobra"

	"github.com/Nexus-Digital-Automations/iterm-mcp/internal/keys"
)

var sendKeyCmd = &cobra.Command{
	Use:   "send-key <key>",
	Short: "Send a control character to the target tab",
	Long: `Send a single control character without pressing return: C or ctrl-c for
an interrupt, escape, tab, delete, or the ^[ punctuation forms.`,
	Args: cobra.ExactArgs(1),
	RunE: runSendKey,
}

func init() {
	rootCmd.AddCommand(sendKeyCmd)
}

func runSendKey(cmd *cobra.Command, args []string) error {
	code, err := keys.Code(args[0])
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	windowID, err := app.targetWindow(ctx)
	if err != nil {
		return err
	}
	tab, err := app.targetTab(ctx, windowID)
	if err != nil {
		return err
	}
	return app.channel.WriteText(ctx, windowID, tab, string(code), false)
}
