package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/garnet/profstore"
)

// workspace creates a directory with a garnet.toml and returns it.
func workspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfg := "[profile]\ndatabase = \"prof.db\"\n\n[log]\nverbosity = 0\n"
	if err := os.WriteFile(filepath.Join(dir, "garnet.toml"), []byte(cfg), 0644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func writeDemo(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "fib.gir")
	if code, _, stderr := runCLI(t, "-config", dir, "-demo", path, "-demo-n", "10"); code != 0 {
		t.Fatalf("-demo exited %d: %s", code, stderr)
	}
	return path
}

func TestRunDemoProgram(t *testing.T) {
	dir := workspace(t)
	path := writeDemo(t, dir)

	code, stdout, stderr := runCLI(t, "-config", dir, path)
	if code != 0 {
		t.Fatalf("exit = %d, stderr = %s", code, stderr)
	}
	want := "55\n110\n165\nZeroDivisionError\n=> 55\n"
	if stdout != want {
		t.Errorf("stdout = %q, want %q", stdout, want)
	}
}

func TestDisassemble(t *testing.T) {
	dir := workspace(t)
	path := writeDemo(t, dir)

	code, stdout, stderr := runCLI(t, "-config", dir, "-disasm", path)
	if code != 0 {
		t.Fatalf("exit = %d, stderr = %s", code, stderr)
	}
	for _, want := range []string{"# Object#fib", "# main", "rescue ["} {
		if !strings.Contains(stdout, want) {
			t.Errorf("disassembly missing %q:\n%s", want, stdout)
		}
	}
}

func TestProfileIsStored(t *testing.T) {
	dir := workspace(t)
	path := writeDemo(t, dir)

	if code, _, stderr := runCLI(t, "-config", dir, "-profile", path); code != 0 {
		t.Fatalf("exit = %d, stderr = %s", code, stderr)
	}

	store, err := profstore.Open(filepath.Join(dir, "prof.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	run, err := store.Latest()
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if run.Label != "fib.gir" {
		t.Errorf("Label = %q, want fib.gir", run.Label)
	}
	if run.Snapshot.TotalInvocations == 0 {
		t.Error("stored profile has no invocations")
	}
	// [1, 2, 3].each runs the block line three times.
	if got := run.Snapshot.Coverage["fib.rb"][3]; got != 4 {
		t.Errorf("hits of fib.rb:3 = %d, want 4 (once in main, three times in the block)", got)
	}
}

func TestUsageErrors(t *testing.T) {
	dir := workspace(t)

	if code, _, _ := runCLI(t, "-config", dir); code != 2 {
		t.Errorf("no program: exit = %d, want 2", code)
	}
	if code, _, _ := runCLI(t, "-no-such-flag"); code != 2 {
		t.Errorf("bad flag: exit = %d, want 2", code)
	}
	code, _, stderr := runCLI(t, "-config", dir, filepath.Join(dir, "missing.gir"))
	if code != 1 || !strings.Contains(stderr, "missing.gir") {
		t.Errorf("missing file: exit = %d, stderr = %q", code, stderr)
	}
}
