package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Nexus-Digital-Automations/iterm-mcp/internal/output"
)

var (
	readLines    int
	readGrep     string
	readContains string
	readNumbered bool
)

var readCmd = &cobra.Command{
	Use:   "read",
	Short: "Print the tail of the target tab's scrollback",
	Long: `Print the most recent lines of the target tab, optionally filtered. Line
numbers refer to positions within the printed window, so a numbered read
can be followed by a grep without losing track of where matches sit.`,
	Args: cobra.NoArgs,
	RunE: runRead,
}

func init() {
	readCmd.Flags().IntVarP(&readLines, "lines", "n", 25, "how many trailing lines to print")
	readCmd.Flags().StringVar(&readGrep, "grep", "", "keep only lines matching this regular expression")
	readCmd.Flags().StringVar(&readContains, "contains", "", "keep only lines containing this substring")
	readCmd.Flags().BoolVar(&readNumbered, "numbered", false, "prefix lines with their position")
	rootCmd.AddCommand(readCmd)
}

func runRead(cmd *cobra.Command, _ []string) error {
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

	buffer, err := app.channel.ReadBuffer(ctx, windowID, tab)
	if err != nil {
		return err
	}
	text, err := output.Tail(buffer, readLines)
	if err != nil {
		return err
	}
	text, err = output.Filter{Grep: readGrep, Contains: readContains, Numbered: readNumbered}.Apply(text)
	if err != nil {
		return err
	}
	fmt.Println(text)
	return nil
}
