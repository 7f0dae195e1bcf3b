package model

import "time"

// DefaultClientID names the implicit session used by callers that do not
// address a project path.
const DefaultClientID = "default"

// ClientSession binds one logical client to a terminal window. At most one
// window per client id, at most one client id per normalized working path;
// the session registry is the only writer.
type ClientSession struct {
	ClientID        string
	WindowID        string
	WorkingPath     string
	CurrentTabIndex *int
	CurrentTabName  string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TabRecord describes one tab of a window as last observed. Records are
// re-derived from the terminal on every listing; only Alias survives between
// calls, in the registry's side table.
type TabRecord struct {
	WindowID  string
	Index     int
	Name      string
	SessionID string
	TTY       string
	Alias     string
}

// EndResult reports the outcome of a session teardown. Teardown always
// completes locally; Closed records whether the terminal window itself was
// closed.
type EndResult struct {
	Closed  bool
	Message string
}
