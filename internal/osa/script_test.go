package osa

import "testing"

func TestInvocationShape(t *testing.T) {
	name, args := Invocation(`tell application "iTerm2" to return id of current window`)
	if name != "/bin/sh" {
		t.Fatalf("invocation name: got %q", name)
	}
	if len(args) != 2 || args[0] != "-c" {
		t.Fatalf("invocation args: got %v", args)
	}
	want := `osascript -e 'tell application "iTerm2" to return id of current window'`
	if args[1] != want {
		t.Fatalf("invocation command: got %q want %q", args[1], want)
	}
}

func TestInvocationDefusesSingleQuotes(t *testing.T) {
	_, args := Invocation(`write text "it's"`)
	want := `osascript -e 'write text "it'\''s"'`
	if args[1] != want {
		t.Fatalf("invocation quoting: got %q want %q", args[1], want)
	}
}
