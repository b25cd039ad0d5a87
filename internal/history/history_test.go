package history

import (
	"path/filepath"
	"testing"
)

func openTemp(t *testing.T) *History {
	t.Helper()
	h, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { h.Close() })
	return h
}

func TestRecordAndRecentOrdering(t *testing.T) {
	h := openTemp(t)

	lines := []string{"var x = 1;", "print x;", "print nope;"}
	errored := []bool{false, false, true}
	for i, line := range lines {
		if err := h.Record(line, errored[i]); err != nil {
			t.Fatalf("Record(%q): %v", line, err)
		}
	}

	got, err := h.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != len(lines) {
		t.Fatalf("got %d entries, want %d", len(got), len(lines))
	}
	for i, e := range got {
		if e.Line != lines[i] {
			t.Fatalf("entry %d: got line %q, want %q", i, e.Line, lines[i])
		}
		if e.Errored != errored[i] {
			t.Fatalf("entry %d: got errored=%v, want %v", i, e.Errored, errored[i])
		}
	}
}

func TestRecentRespectsLimit(t *testing.T) {
	h := openTemp(t)
	for i := 0; i < 5; i++ {
		if err := h.Record("print 1;", false); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	got, err := h.Recent(2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2", len(got))
	}
}

func TestRecentOnEmptyHistory(t *testing.T) {
	h := openTemp(t)
	got, err := h.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got %d entries, want 0", len(got))
	}
}
