package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "test-app"
version = "0.1.0"
entry = "src/main.ts"

[engine]
version = ">= 0.1.0, < 1.0.0"
heap-capacity = 4096
max-call-depth = 500
typescript = true
cache = ".spacey/cache.db"

[log]
verbosity = 2
file = "spacey.log"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Project.Name != "test-app" {
		t.Errorf("project name = %q, want test-app", m.Project.Name)
	}
	if m.Project.Version != "0.1.0" {
		t.Errorf("project version = %q, want 0.1.0", m.Project.Version)
	}
	if m.Engine.HeapCapacity != 4096 {
		t.Errorf("heap capacity = %d, want 4096", m.Engine.HeapCapacity)
	}
	if m.Engine.MaxCallDepth != 500 {
		t.Errorf("max call depth = %d, want 500", m.Engine.MaxCallDepth)
	}
	if !m.Engine.TypeScript {
		t.Error("typescript = false, want true")
	}
	if m.Log.Verbosity != 2 {
		t.Errorf("verbosity = %d, want 2", m.Log.Verbosity)
	}
	if got, want := m.EntryPath(), filepath.Join(m.Dir, "src", "main.ts"); got != want {
		t.Errorf("EntryPath() = %q, want %q", got, want)
	}
	if got, want := m.CachePath(), filepath.Join(m.Dir, ".spacey", "cache.db"); got != want {
		t.Errorf("CachePath() = %q, want %q", got, want)
	}
	if got, want := m.LogFile(), filepath.Join(m.Dir, "spacey.log"); got != want {
		t.Errorf("LogFile() = %q, want %q", got, want)
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "minimal"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if m.Project.Entry != DefaultEntry {
		t.Errorf("entry = %q, want %q", m.Project.Entry, DefaultEntry)
	}
	if m.Engine.HeapCapacity != DefaultHeapCapacity || m.Engine.MaxCallDepth != DefaultMaxCallDepth {
		t.Errorf("engine defaults = %+v", m.Engine)
	}
	if m.CachePath() != "" || m.LogFile() != "" {
		t.Error("cache and log file should be off by default")
	}
	if err := m.CheckEngineVersion("9.9.9"); err != nil {
		t.Errorf("empty constraint rejected a version: %v", err)
	}
}

func TestLoadManifestErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"syntax", "[project\nname = 1", "parse error"},
		{"unknown key", "[engine]\nturbo = true", "unknown key"},
		{"bad constraint", "[engine]\nversion = \"not a constraint\"", "invalid engine version constraint"},
		{"wrong type", "[engine]\nheap-capacity = \"big\"", "parse error"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			writeManifest(t, dir, tc.content)
			_, err := Load(dir)
			if err == nil {
				t.Fatal("Load succeeded")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error = %q, want %q", err, tc.want)
			}
		})
	}

	if _, err := Load(t.TempDir()); err == nil {
		t.Error("Load without a manifest succeeded")
	}
}

func TestCheckEngineVersion(t *testing.T) {
	m := &Manifest{Project: Project{Name: "app"}, Engine: Engine{Version: "^0.2.0"}}
	tests := []struct {
		version string
		ok      bool
	}{
		{"0.2.0", true},
		{"0.2.7", true},
		{"0.1.9", false},
		{"0.3.0", false},
		{"garbage", false},
	}
	for _, tc := range tests {
		err := m.CheckEngineVersion(tc.version)
		if (err == nil) != tc.ok {
			t.Errorf("CheckEngineVersion(%q) = %v, want ok=%v", tc.version, err, tc.ok)
		}
	}
}

func TestFindAndLoad(t *testing.T) {
	dir := t.TempDir()
	subDir := filepath.Join(dir, "a", "b", "c")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatal(err)
	}
	writeManifest(t, dir, `[project]
name = "found-project"
`)

	// Should find manifest when starting from a deep subdirectory
	m, err := FindAndLoad(subDir)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil {
		t.Fatal("FindAndLoad returned nil")
	}
	if m.Project.Name != "found-project" {
		t.Errorf("project name = %q, want found-project", m.Project.Name)
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	dir := t.TempDir()
	m, err := FindAndLoad(dir)
	if err != nil {
		t.Fatalf("FindAndLoad error: %v", err)
	}
	if m != nil {
		t.Error("expected nil manifest when no spacey.toml exists")
	}
}

func TestDefault(t *testing.T) {
	m := Default("/app")
	if m.EntryPath() != filepath.Join("/app", DefaultEntry) {
		t.Errorf("EntryPath() = %q", m.EntryPath())
	}
	abs := &Manifest{Dir: "/app", Project: Project{Entry: "/abs/main.js"}}
	if abs.EntryPath() != "/abs/main.js" {
		t.Errorf("absolute entry rewritten to %q", abs.EntryPath())
	}
}
