package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var ttyCmd = &cobra.Command{
	Use:   "tty",
	Short: "Print the tty device of the target tab",
	Long: `Print the terminal device behind the target tab, for tools that want to
watch or signal the foreground process directly.`,
	Args: cobra.NoArgs,
	RunE: runTTY,
}

func init() {
	rootCmd.AddCommand(ttyCmd)
}

func runTTY(cmd *cobra.Command, _ []string) error {
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
	tty, err := app.tabs.TTY(ctx, windowID, tab)
	if err != nil {
		return err
	}
	fmt.Println(tty)
	return nil
}
