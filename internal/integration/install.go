// Package integration registers the server with MCP clients and checks the
// environment the automation depends on.
package integration

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
)

const serverEntryName = "iterm-mcp"

type InstallOptions struct {
	HomeDir    string
	ConfigPath string
	ServerBin  string
	DryRun     bool
	Force      bool
}

type InstallResult struct {
	DryRun       bool     `json:"dry_run"`
	FilesWritten []string `json:"files_written,omitempty"`
	Backups      []string `json:"backups,omitempty"`
	Warnings     []string `json:"warnings,omitempty"`
}

// Install adds the server to the client's mcpServers table so the client
// launches it over stdio. The rest of the config file is preserved
// byte-for-byte; only the server entry is spliced in.
func Install(opts InstallOptions) (InstallResult, error) {
	normalized, err := normalizeOptions(opts)
	if err != nil {
		return InstallResult{}, err
	}
	res := InstallResult{DryRun: normalized.DryRun}

	raw, err := readOptional(normalized.ConfigPath)
	if err != nil {
		return InstallResult{}, err
	}
	updated, changed, warning, err := applyServerEntry(raw, normalized.ServerBin, normalized.Force)
	if err != nil {
		return InstallResult{}, fmt.Errorf("merge %s: %w", normalized.ConfigPath, err)
	}
	if warning != "" {
		res.Warnings = append(res.Warnings, warning)
	}
	if !changed {
		return res, nil
	}
	if err := writeManagedFile(normalized.ConfigPath, string(updated), 0o600, normalized.DryRun, &res); err != nil {
		return InstallResult{}, err
	}
	return res, nil
}

func normalizeOptions(opts InstallOptions) (InstallOptions, error) {
	normalized := opts
	if strings.TrimSpace(normalized.HomeDir) == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return InstallOptions{}, fmt.Errorf("resolve home dir: %w", err)
		}
		normalized.HomeDir = home
	}
	if strings.TrimSpace(normalized.ConfigPath) == "" {
		normalized.ConfigPath = filepath.Join(normalized.HomeDir,
			"Library", "Application Support", "Claude", "claude_desktop_config.json")
	}
	if strings.TrimSpace(normalized.ServerBin) == "" {
		normalized.ServerBin = serverEntryName
	}
	return normalized, nil
}

// applyServerEntry splices the server entry into raw. An existing entry that
// launches a different binary is kept unless force is set; the user may have
// pinned a wrapper or an older install on purpose.
func applyServerEntry(raw []byte, serverBin string, force bool) (updated []byte, changed bool, warning string, err error) {
	if strings.TrimSpace(string(raw)) == "" {
		raw = []byte("{}")
	} else if !gjson.ValidBytes(raw) {
		return nil, false, "", fmt.Errorf("invalid JSON")
	}

	if servers := gjson.GetBytes(raw, "mcpServers"); servers.Exists() && !servers.IsObject() {
		return nil, false, "", fmt.Errorf("mcpServers must be an object")
	}

	entryPath := "mcpServers." + serverEntryName
	if existing := gjson.GetBytes(raw, entryPath); existing.Exists() {
		if existing.Get("command").String() == serverBin {
			return nil, false, "", nil
		}
		if !force {
			return nil, false, fmt.Sprintf("%s entry already points elsewhere; skipped (use --force to replace)", serverEntryName), nil
		}
	}

	updated, err = sjson.SetBytes(raw, entryPath, map[string]any{
		"command": serverBin,
		"args":    []string{},
	})
	if err != nil {
		return nil, false, "", fmt.Errorf("set server entry: %w", err)
	}
	updated = pretty.PrettyOptions(updated, &pretty.Options{Width: 80, Indent: "  "})
	return updated, true, "", nil
}

// writeManagedFile writes content atomically, backing up whatever was there.
// Identical content is left untouched; a dry run only records the intent.
func writeManagedFile(path, content string, perm os.FileMode, dryRun bool, res *InstallResult) error {
	existing, err := readOptional(path)
	if err != nil {
		return err
	}
	if bytes.Equal(existing, []byte(content)) {
		return nil
	}
	if dryRun {
		res.FilesWritten = append(res.FilesWritten, path)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}
	if len(existing) > 0 {
		backupPath := fmt.Sprintf("%s.bak.%d", path, time.Now().UTC().UnixNano())
		if err := os.WriteFile(backupPath, existing, 0o600); err != nil {
			return fmt.Errorf("write backup %s: %w", backupPath, err)
		}
		res.Backups = append(res.Backups, backupPath)
	}

	tmpPath := fmt.Sprintf("%s.tmp.%d", path, time.Now().UTC().UnixNano())
	if err := os.WriteFile(tmpPath, []byte(content), perm); err != nil {
		return fmt.Errorf("write temp file %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp file %s: %w", path, err)
	}
	res.FilesWritten = append(res.FilesWritten, path)
	return nil
}

func readOptional(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err == nil {
		return b, nil
	}
	if os.IsNotExist(err) {
		return nil, nil
	}
	return nil, fmt.Errorf("read file %s: %w", path, err)
}
