package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Nexus-Digital-Automations/iterm-mcp/internal/model"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage project-bound sessions",
	Long: `Sessions bind a client, a project path or the shared default, to a window.
The registry lives in the owning process, so bindings made here last for a
single itermctl run; long-lived bindings belong to the iterm-mcp server.`,
}

var sessionsOpenCmd = &cobra.Command{
	Use:   "open",
	Short: "Open a window for --path or the default session",
	Args:  cobra.NoArgs,
	RunE:  runSessionsOpen,
}

var sessionsCloseCmd = &cobra.Command{
	Use:   "close",
	Short: "Close the window named by --window, or the session bound to --path",
	Args:  cobra.NoArgs,
	RunE:  runSessionsClose,
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked sessions",
	Args:  cobra.NoArgs,
	RunE:  runSessionsList,
}

func init() {
	sessionsCmd.AddCommand(sessionsOpenCmd, sessionsCloseCmd, sessionsListCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func runSessionsOpen(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	clientID := model.DefaultClientID
	var windowID string
	if flagPath != "" {
		clientID, windowID, err = app.sessions.FocusOrCreateSessionForPath(ctx, flagPath)
	} else {
		windowID, err = app.sessions.RefreshSession(ctx, clientID)
	}
	if err != nil {
		return err
	}
	fmt.Printf("%s\twindow %s\n", clientID, windowID)
	return nil
}

func runSessionsClose(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	if flagWindow != "" {
		if err := app.channel.CloseWindow(ctx, flagWindow); err != nil {
			return err
		}
		fmt.Printf("closed window %s\n", flagWindow)
		return nil
	}

	var res model.EndResult
	if flagPath != "" {
		res = app.sessions.EndSessionByPath(ctx, flagPath)
	} else {
		res = app.sessions.EndSession(ctx, model.DefaultClientID)
	}
	fmt.Println(res.Message)
	if !res.Closed {
		return fmt.Errorf("nothing closed")
	}
	return nil
}

func runSessionsList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	sessions, err := app.sessions.ListSessions(ctx)
	if err != nil {
		return err
	}
	for _, sess := range sessions {
		liveness := "gone"
		if app.sessions.ValidateWindow(ctx, sess.WindowID) {
			liveness = "live"
		}
		fmt.Printf("%s\t%s\t%s\t%s\n", sess.ClientID, sess.WindowID, sess.WorkingPath, liveness)
	}
	return nil
}
