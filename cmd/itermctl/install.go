package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Nexus-Digital-Automations/iterm-mcp/internal/integration"
)

var (
	installDryRun bool
	installForce  bool
	installConfig string
	installBin    string
	installJSON   bool
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Register the server in the Claude Desktop config",
	Long: `Add an mcpServers entry that launches iterm-mcp over stdio to the Claude
Desktop config, backing up the previous file. The iterm-mcp binary next to
itermctl is preferred when --bin is not given.`,
	Args: cobra.NoArgs,
	RunE: runInstall,
}

func init() {
	installCmd.Flags().BoolVar(&installDryRun, "dry-run", false, "report writes without performing them")
	installCmd.Flags().BoolVar(&installForce, "force", false, "replace an existing entry that points elsewhere")
	installCmd.Flags().StringVar(&installConfig, "config", "", "client config path (default: Claude Desktop's)")
	installCmd.Flags().StringVar(&installBin, "bin", "", "server binary the client should launch")
	installCmd.Flags().BoolVar(&installJSON, "json", false, "output JSON")
	rootCmd.AddCommand(installCmd)
}

func runInstall(cmd *cobra.Command, _ []string) error {
	bin := installBin
	if bin == "" {
		bin = siblingServerBin()
	}
	res, err := integration.Install(integration.InstallOptions{
		ConfigPath: installConfig,
		ServerBin:  bin,
		DryRun:     installDryRun,
		Force:      installForce,
	})
	if err != nil {
		return err
	}

	if installJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	for _, f := range res.FilesWritten {
		fmt.Printf("wrote %s\n", f)
	}
	for _, b := range res.Backups {
		fmt.Printf("backed up %s\n", b)
	}
	for _, w := range res.Warnings {
		fmt.Printf("warning: %s\n", w)
	}
	if len(res.FilesWritten) == 0 && len(res.Warnings) == 0 {
		fmt.Println("already installed")
	}
	return nil
}

// siblingServerBin prefers the iterm-mcp binary installed next to itermctl.
func siblingServerBin() string {
	exe, err := os.Executable()
	if err != nil {
		return ""
	}
	candidate := filepath.Join(filepath.Dir(exe), "iterm-mcp")
	if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
		return candidate
	}
	return ""
}
