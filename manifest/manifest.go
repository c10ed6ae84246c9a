// Package manifest handles spacey.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/Masterminds/semver/v3"
)

// FileName is the name of the project configuration file.
const FileName = "spacey.toml"

// Defaults applied to settings a manifest leaves out.
const (
	DefaultEntry        = "index.js"
	DefaultHeapCapacity = 1 << 20
	DefaultMaxCallDepth = 10000
)

// Manifest represents a spacey.toml project configuration.
type Manifest struct {
	Project Project `toml:"project"`
	Engine  Engine  `toml:"engine"`
	Log     Log     `toml:"log"`

	// Dir is the directory containing the spacey.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
	Entry   string `toml:"entry"`
}

// Engine configures the VM a project runs in.
type Engine struct {
	// Version is a semver constraint the running engine must satisfy,
	// such as ">= 0.1.0, < 1".
	Version      string `toml:"version"`
	HeapCapacity int    `toml:"heap-capacity"`
	MaxCallDepth int    `toml:"max-call-depth"`
	TypeScript   bool   `toml:"typescript"`
	Cache        string `toml:"cache"`
}

// Log configures diagnostics output.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Default returns the manifest used when no spacey.toml exists.
func Default(dir string) *Manifest {
	m := &Manifest{Dir: dir}
	m.applyDefaults()
	return m
}

func (m *Manifest) applyDefaults() {
	if m.Project.Entry == "" {
		m.Project.Entry = DefaultEntry
	}
	if m.Engine.HeapCapacity <= 0 {
		m.Engine.HeapCapacity = DefaultHeapCapacity
	}
	if m.Engine.MaxCallDepth <= 0 {
		m.Engine.MaxCallDepth = DefaultMaxCallDepth
	}
}

// Load parses a spacey.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	meta, err := toml.Decode(string(data), &m)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%s: unknown key %q", path, undecoded[0].String())
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	if m.Engine.Version != "" {
		if _, err := semver.NewConstraint(m.Engine.Version); err != nil {
			return nil, fmt.Errorf("%s: invalid engine version constraint %q: %w", path, m.Engine.Version, err)
		}
	}
	m.applyDefaults()
	return &m, nil
}

// FindAndLoad walks up from startDir to find a spacey.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// CheckEngineVersion reports an error if version does not satisfy the
// manifest's engine constraint. An empty constraint accepts any version.
func (m *Manifest) CheckEngineVersion(version string) error {
	if m.Engine.Version == "" {
		return nil
	}
	c, err := semver.NewConstraint(m.Engine.Version)
	if err != nil {
		return fmt.Errorf("invalid engine version constraint %q: %w", m.Engine.Version, err)
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return fmt.Errorf("invalid engine version %q: %w", version, err)
	}
	if ok, errs := c.Validate(v); !ok {
		if len(errs) > 0 {
			return fmt.Errorf("project %s requires engine %s: %w", m.Project.Name, m.Engine.Version, errs[0])
		}
		return fmt.Errorf("project %s requires engine %s, have %s", m.Project.Name, m.Engine.Version, version)
	}
	return nil
}

// EntryPath returns the absolute path of the entry script.
func (m *Manifest) EntryPath() string {
	return m.resolve(m.Project.Entry)
}

// CachePath returns the absolute path of the chunk cache, or "" when
// caching is off.
func (m *Manifest) CachePath() string {
	if m.Engine.Cache == "" {
		return ""
	}
	return m.resolve(m.Engine.Cache)
}

// LogFile returns the absolute path of the log file, or "" for stderr.
func (m *Manifest) LogFile() string {
	if m.Log.File == "" {
		return ""
	}
	return m.resolve(m.Log.File)
}

func (m *Manifest) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}
