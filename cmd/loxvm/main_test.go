package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writeScript(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "script.lox")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestRunFileSuccessExitsZero(t *testing.T) {
	path := writeScript(t, `print 1 + 2;`)
	if code := run([]string{path}); code != 0 {
		t.Fatalf("got exit code %d, want 0", code)
	}
}

func TestRunFileCompileErrorExits65(t *testing.T) {
	path := writeScript(t, `var = 1;`)
	if code := run([]string{path}); code != 65 {
		t.Fatalf("got exit code %d, want 65", code)
	}
}

func TestRunFileRuntimeErrorExits70(t *testing.T) {
	path := writeScript(t, `-"abc";`)
	if code := run([]string{path}); code != 70 {
		t.Fatalf("got exit code %d, want 70", code)
	}
}

func TestRunTooManyArgsExits64(t *testing.T) {
	if code := run([]string{"a", "b"}); code != 64 {
		t.Fatalf("got exit code %d, want 64", code)
	}
}

func TestRunMissingFileExits64(t *testing.T) {
	if code := run([]string{"/no/such/file.lox"}); code != 64 {
		t.Fatalf("got exit code %d, want 64", code)
	}
}

func TestRunVersionExits0(t *testing.T) {
	if code := run([]string{"--version"}); code != 0 {
		t.Fatalf("got exit code %d, want 0", code)
	}
}
