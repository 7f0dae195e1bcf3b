package integration

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/tidwall/gjson"
)

// TerminalProbe is the slice of the terminal channel the doctor exercises.
type TerminalProbe interface {
	ActiveWindowID(ctx context.Context) (string, error)
}

type DoctorOptions struct {
	HomeDir    string
	ConfigPath string
}

type DoctorCheck struct {
	Name    string `json:"name"`
	Status  string `json:"status"` // pass | warn | fail
	Message string `json:"message"`
	Path    string `json:"path,omitempty"`
}

type DoctorResult struct {
	OK       bool          `json:"ok"`
	Checks   []DoctorCheck `json:"checks"`
	Warnings []string      `json:"warnings,omitempty"`
}

// Doctor checks everything command execution leans on: the osascript and ps
// binaries, the client config entry, and the terminal itself.
func Doctor(ctx context.Context, opts DoctorOptions, probe TerminalProbe) (DoctorResult, error) {
	normalized, err := normalizeOptions(InstallOptions{HomeDir: opts.HomeDir, ConfigPath: opts.ConfigPath})
	if err != nil {
		return DoctorResult{}, err
	}

	out := DoctorResult{OK: true}
	add := func(c DoctorCheck) {
		out.Checks = append(out.Checks, c)
		if c.Status == "warn" {
			out.Warnings = append(out.Warnings, fmt.Sprintf("%s: %s", c.Name, c.Message))
		}
		if c.Status == "fail" {
			out.OK = false
		}
	}

	add(checkBinary("osascript"))
	add(checkBinary("ps"))
	add(checkServerEntry(normalized.ConfigPath))
	add(checkTerminal(ctx, probe))
	return out, nil
}

func checkBinary(name string) DoctorCheck {
	path, err := exec.LookPath(name)
	if err != nil {
		return DoctorCheck{Name: name, Status: "fail", Message: "not found on PATH"}
	}
	return DoctorCheck{Name: name, Status: "pass", Message: "found", Path: path}
}

func checkServerEntry(path string) DoctorCheck {
	raw, err := readOptional(path)
	if err != nil {
		return DoctorCheck{Name: "client_config", Status: "fail", Message: fmt.Sprintf("read error: %v", err), Path: path}
	}
	if len(raw) == 0 {
		return DoctorCheck{Name: "client_config", Status: "warn", Message: "config not found; run itermctl install", Path: path}
	}
	if !gjson.ValidBytes(raw) {
		return DoctorCheck{Name: "client_config", Status: "fail", Message: "invalid JSON", Path: path}
	}
	if !gjson.GetBytes(raw, "mcpServers."+serverEntryName).Exists() {
		return DoctorCheck{Name: "client_config", Status: "warn", Message: fmt.Sprintf("no %s entry; run itermctl install", serverEntryName), Path: path}
	}
	return DoctorCheck{Name: "client_config", Status: "pass", Message: "server registered", Path: path}
}

// checkTerminal probes the terminal with the cheapest window query. A denied
// automation permission is a hard failure; an unreachable or windowless
// terminal only warns, since window creation launches it.
func checkTerminal(ctx context.Context, probe TerminalProbe) DoctorCheck {
	if probe == nil {
		return DoctorCheck{Name: "terminal", Status: "warn", Message: "no probe configured"}
	}
	if _, err := probe.ActiveWindowID(ctx); err != nil {
		if isPermissionDenied(err) {
			return DoctorCheck{Name: "terminal", Status: "fail", Message: fmt.Sprintf("automation permission denied: %v", err)}
		}
		return DoctorCheck{Name: "terminal", Status: "warn", Message: fmt.Sprintf("not reachable: %v", err)}
	}
	return DoctorCheck{Name: "terminal", Status: "pass", Message: "responding"}
}

func isPermissionDenied(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not authorized") || strings.Contains(msg, "-1743")
}
