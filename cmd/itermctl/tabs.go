package main

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Nexus-Digital-Automations/iterm-mcp/internal/tabs"
)

var tabsCmd = &cobra.Command{
	Use:   "tabs",
	Short: "List and manage the target window's tabs",
}

var tabsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the window's tabs with names, aliases, and ttys",
	Args:  cobra.NoArgs,
	RunE:  runTabsList,
}

var tabsFocusCmd = &cobra.Command{
	Use:   "focus <tab>",
	Short: "Focus a tab by index, alias, or name, creating a named tab when missing",
	Args:  cobra.ExactArgs(1),
	RunE:  runTabsFocus,
}

var tabsCloseCmd = &cobra.Command{
	Use:   "close <tab>...",
	Short: "Close tabs, or the whole window with the single argument all",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTabsClose,
}

var tabsAliasCmd = &cobra.Command{
	Use:   "alias <tab> [alias]",
	Short: "Bind a short alias to a tab; omit the alias to remove it",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runTabsAlias,
}

func init() {
	tabsCmd.AddCommand(tabsListCmd, tabsFocusCmd, tabsCloseCmd, tabsAliasCmd)
	rootCmd.AddCommand(tabsCmd)
}

func runTabsList(cmd *cobra.Command, _ []string) error {
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
	records, err := app.tabs.ListTabs(ctx, windowID)
	if err != nil {
		return err
	}
	for _, rec := range records {
		fmt.Printf("%d\t%s\t%s\t%s\n", rec.Index, rec.Name, rec.Alias, rec.TTY)
	}
	return nil
}

func runTabsFocus(cmd *cobra.Command, args []string) error {
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
	index, err := app.tabs.FocusOrCreate(ctx, windowID, app.cfg.Profile, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("tab %d\n", index)
	return nil
}

func runTabsClose(cmd *cobra.Command, args []string) error {
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

	if len(args) == 1 && strings.EqualFold(strings.TrimSpace(args[0]), "all") {
		if err := app.channel.CloseWindow(ctx, windowID); err != nil {
			return err
		}
		fmt.Printf("closed window %s\n", windowID)
		return nil
	}

	// Resolve everything up front; a typo in any identifier closes nothing.
	seen := map[int]bool{}
	indices := make([]int, 0, len(args))
	for _, ident := range args {
		index, err := app.tabs.ResolveTabIndex(ctx, windowID, ident)
		if err != nil {
			return fmt.Errorf("resolve tab %q: %w", ident, err)
		}
		if !seen[index] {
			seen[index] = true
			indices = append(indices, index)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(indices)))
	for _, index := range indices {
		if err := app.tabs.CloseTab(ctx, windowID, index); err != nil {
			return fmt.Errorf("close tab %d: %w", index, err)
		}
	}
	fmt.Printf("closed %d tabs\n", len(indices))
	return nil
}

func runTabsAlias(cmd *cobra.Command, args []string) error {
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
	index, err := app.tabs.ResolveTabIndex(ctx, windowID, args[0])
	if err != nil {
		return err
	}

	if len(args) == 1 || strings.TrimSpace(args[1]) == "" {
		if err := app.tabs.RemoveAlias(ctx, windowID, index); err != nil && !errors.Is(err, tabs.ErrNotFound) {
			return err
		}
		fmt.Printf("tab %d alias removed\n", index)
		return nil
	}
	if err := app.tabs.SetAlias(ctx, windowID, index, args[1]); err != nil {
		return err
	}
	fmt.Printf("tab %d aliased %q\n", index, strings.TrimSpace(args[1]))
	return nil
}
