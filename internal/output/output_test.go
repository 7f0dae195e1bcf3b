package output

import "testing"

const buffer = "$ make test\nok  pkg/parser 0.3s\nFAIL pkg/engine 1.2s\nok  pkg/store 0.1s\n$"

func TestTailKeepsOneExtraLine(t *testing.T) {
	got, err := Tail("a\nb\nc\nd", 2)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if got != "b\nc\nd" {
		t.Fatalf("Tail = %q, want %q", got, "b\nc\nd")
	}
}

func TestTailClampsToBuffer(t *testing.T) {
	got, err := Tail("a\nb", 10)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if got != "a\nb" {
		t.Fatalf("Tail = %q, want whole buffer", got)
	}
}

func TestTailRejectsNegative(t *testing.T) {
	if _, err := Tail("a", -1); err == nil {
		t.Fatal("expected error for negative count")
	}
}

func TestFilterGrep(t *testing.T) {
	got, err := Filter{Grep: `^ok\b`}.Apply(buffer)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	want := "ok  pkg/parser 0.3s\nok  pkg/store 0.1s"
	if got != want {
		t.Fatalf("Apply = %q, want %q", got, want)
	}
}

func TestFilterContainsAfterGrep(t *testing.T) {
	got, err := Filter{Grep: `pkg/`, Contains: "FAIL"}.Apply(buffer)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got != "FAIL pkg/engine 1.2s" {
		t.Fatalf("Apply = %q", got)
	}
}

func TestFilterNumberedKeepsOriginalPositions(t *testing.T) {
	got, err := Filter{Contains: "ok", Numbered: true}.Apply(buffer)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	want := "2: ok  pkg/parser 0.3s\n4: ok  pkg/store 0.1s"
	if got != want {
		t.Fatalf("Apply = %q, want %q", got, want)
	}
}

func TestFilterMaxLinesKeepsMostRecent(t *testing.T) {
	got, err := Filter{MaxLines: 2}.Apply("a\nb\nc\nd")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got != "c\nd" {
		t.Fatalf("Apply = %q, want %q", got, "c\nd")
	}
}

func TestFilterRejectsBadPattern(t *testing.T) {
	if _, err := (Filter{Grep: "("}).Apply(buffer); err == nil {
		t.Fatal("expected error for unparseable pattern")
	}
}

func TestFilterEmptyPassesThrough(t *testing.T) {
	got, err := Filter{}.Apply(buffer)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got != buffer {
		t.Fatalf("Apply altered the buffer: %q", got)
	}
}
