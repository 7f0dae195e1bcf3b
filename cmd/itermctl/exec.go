package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Nexus-Digital-Automations/iterm-mcp/internal/command"
)

var (
	execTimeoutSeconds int
	execCaptureLines   int
)

var execCmd = &cobra.Command{
	Use:   "exec [flags] -- command [args...]",
	Short: "Run a command and wait for it to finish",
	Long: `Submit a command to the target tab's shell and wait until the shell has
stopped processing input and the foreground process has gone quiet, then
report how many lines of output appeared.

The wait is bounded by --timeout; on expiry the command keeps running and
exec reports which phase ran out of time. Nothing is ever sent to interrupt
the command.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExec,
}

func init() {
	execCmd.Flags().IntVar(&execTimeoutSeconds, "timeout", 0, "seconds to wait for completion, 1 to 120 (default 30)")
	execCmd.Flags().IntVar(&execCaptureLines, "capture", 0, "print the last N lines of output after completion")
	rootCmd.AddCommand(execCmd)
}

func runExec(cmd *cobra.Command, args []string) error {
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

	req := command.Request{Command: strings.Join(args, " "), TimeoutSeconds: execTimeoutSeconds}
	if execCaptureLines > 0 {
		req.CaptureLines = &execCaptureLines
	}
	res, err := app.engine.Execute(ctx, windowID, tab, req)
	if err != nil {
		return err
	}

	fmt.Printf("%d new lines in %s\n", res.NewLineCount, res.Duration.Round(time.Millisecond))
	if res.Captured != nil {
		fmt.Println(*res.Captured)
	} else if res.CaptureRequested {
		fmt.Println("(capture failed; use itermctl read to inspect the window)")
	}
	return nil
}
