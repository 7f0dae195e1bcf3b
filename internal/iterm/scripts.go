package iterm

import (
	"fmt"
	"strings"

	"github.com/Nexus-Digital-Automations/iterm-mcp/internal/osa"
)

const appName = "iTerm2"

// sessionRef addresses the shell surface a call targets. tab is the public
// 0-based index; nil means whatever tab the window currently shows.
func sessionRef(windowID string, tab *int) string {
	if tab != nil {
		return fmt.Sprintf("current session of tab %d of window id %s", *tab+1, windowID)
	}
	return fmt.Sprintf("current session of current tab of window id %s", windowID)
}

func tellApp(body string) string {
	return fmt.Sprintf("tell application \"%s\" to %s", appName, body)
}

func createWindowScript(profile string) string {
	if profile == "" {
		return tellApp("return id of (create window with default profile)")
	}
	return tellApp("return id of (create window with profile " + osa.EncodeLiteral(profile) + ")")
}

func closeWindowScript(windowID string) string {
	return tellApp("close window id " + windowID)
}

func windowExistsScript(windowID string) string {
	return tellApp("return exists window id " + windowID)
}

func activeWindowScript() string {
	return tellApp("return id of current window")
}

// createTabScript returns the new tab's 1-based position. New tabs land at
// the end, so the tab count after creation is the position.
func createTabScript(windowID, profile string) string {
	create := "create tab with default profile"
	if profile != "" {
		create = "create tab with profile " + osa.EncodeLiteral(profile)
	}
	return strings.Join([]string{
		fmt.Sprintf("tell application \"%s\"", appName),
		fmt.Sprintf("\ttell window id %s", windowID),
		fmt.Sprintf("\t\tset newTab to (%s)", create),
		"\t\treturn (count of tabs)",
		"\tend tell",
		"end tell",
	}, "\n")
}

func selectTabScript(windowID string, index int) string {
	return tellApp(fmt.Sprintf("select tab %d of window id %s", index+1, windowID))
}

func closeTabScript(windowID string, index int) string {
	return tellApp(fmt.Sprintf("close tab %d of window id %s", index+1, windowID))
}

func setTabNameScript(windowID string, index int, name string) string {
	ref := fmt.Sprintf("current session of tab %d of window id %s", index+1, windowID)
	return tellApp(fmt.Sprintf("tell %s to set name to %s", ref, osa.EncodeLiteral(name)))
}

// listTabsScript emits one record per tab: position, session name, session
// id, tty, separated by the unit separator.
func listTabsScript(windowID string) string {
	return strings.Join([]string{
		fmt.Sprintf("tell application \"%s\"", appName),
		"\tset sep to " + osa.FieldSeparatorTerm,
		"\tset out to \"\"",
		fmt.Sprintf("\ttell window id %s", windowID),
		"\t\trepeat with i from 1 to (count of tabs)",
		"\t\t\tset s to current session of tab i",
		"\t\t\tset out to out & i & sep & (name of s) & sep & (id of s) & sep & (tty of s) & linefeed",
		"\t\tend repeat",
		"\tend tell",
		"\treturn out",
		"end tell",
	}, "\n")
}

func sessionTTYScript(windowID string, tab *int) string {
	return tellApp("return tty of " + sessionRef(windowID, tab))
}

func isProcessingScript(windowID string, tab *int) string {
	return tellApp("return is processing of " + sessionRef(windowID, tab))
}

func writeTextScript(windowID string, tab *int, text string, pressEnter bool) string {
	expr := osa.EncodeLiteral(text)
	if strings.Contains(text, "\n") {
		expr = osa.EncodeConcatenatedBlock(text)
	}
	body := fmt.Sprintf("tell %s to write text %s", sessionRef(windowID, tab), expr)
	if !pressEnter {
		body += " newline NO"
	}
	return tellApp(body)
}

func readBufferScript(windowID string, tab *int) string {
	return tellApp("return contents of " + sessionRef(windowID, tab))
}
