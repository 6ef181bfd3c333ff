package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/garnet/vm"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
[engine]
debug = true
profile = true
max-depth = 500
hot-threshold = 100

[profile]
database = "/tmp/prof.db"

[server]
addr = ":9000"
max-concurrent = 2

[log]
verbosity = 0
`)

	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if !c.Engine.Debug || !c.Engine.Profile {
		t.Errorf("engine = %+v, want debug and profile on", c.Engine)
	}
	if c.Engine.MaxDepth != 500 {
		t.Errorf("max-depth = %d, want 500", c.Engine.MaxDepth)
	}
	if c.Server.Addr != ":9000" || c.Server.MaxConcurrent != 2 {
		t.Errorf("server = %+v, want :9000 and 2", c.Server)
	}
	if c.Log.Verbosity != 0 {
		t.Errorf("verbosity = %d, want explicit 0 kept", c.Log.Verbosity)
	}
	if c.DatabasePath() != "/tmp/prof.db" {
		t.Errorf("DatabasePath = %q, want /tmp/prof.db", c.DatabasePath())
	}

	want := vm.Options{Debug: true, Profile: true, MaxDepth: 500, HotThreshold: 100}
	if got := c.EngineOptions(); got != want {
		t.Errorf("EngineOptions = %+v, want %+v", got, want)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "[engine]\nprofile = true\n")

	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.Engine.MaxDepth != vm.DefaultMaxDepth {
		t.Errorf("max-depth = %d, want %d", c.Engine.MaxDepth, vm.DefaultMaxDepth)
	}
	if c.Server.Addr != "localhost:4567" {
		t.Errorf("addr = %q, want localhost:4567", c.Server.Addr)
	}
	if c.Server.MaxConcurrent != 8 {
		t.Errorf("max-concurrent = %d, want 8", c.Server.MaxConcurrent)
	}
	if c.Log.Verbosity != 1 {
		t.Errorf("verbosity = %d, want 1", c.Log.Verbosity)
	}
	if want := filepath.Join(c.Dir, ".garnet", "profile.db"); c.DatabasePath() != want {
		t.Errorf("DatabasePath = %q, want %q", c.DatabasePath(), want)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"syntax", "[engine\n", "parse error"},
		{"unknown key", "[engine]\nturbo = true\n", "engine.turbo"},
		{"wrong type", "[engine]\nmax-depth = \"deep\"\n", "parse error"},
	}
	for _, tt := range tests {
		dir := t.TempDir()
		writeConfig(t, dir, tt.content)
		_, err := Load(dir)
		if err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Errorf("%s: err = %v, want one mentioning %q", tt.name, err, tt.want)
		}
	}

	if _, err := Load(t.TempDir()); err == nil {
		t.Error("Load of a directory without garnet.toml should fail")
	}
}

func TestFindAndLoadWalksUp(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "[server]\naddr = \":1234\"\n")
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	c, err := FindAndLoad(nested)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if c.Server.Addr != ":1234" {
		t.Errorf("addr = %q, want :1234", c.Server.Addr)
	}
	abs, _ := filepath.Abs(root)
	if c.Dir != abs {
		t.Errorf("Dir = %q, want %q", c.Dir, abs)
	}
}

func TestFindAndLoadFallsBackToDefaults(t *testing.T) {
	dir := t.TempDir()
	c, err := FindAndLoad(dir)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if c.Engine.MaxDepth != vm.DefaultMaxDepth || c.Log.Verbosity != 1 {
		t.Errorf("defaults not applied: %+v", c)
	}
}
