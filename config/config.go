// Package config handles garnet.toml engine and service configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/chazu/garnet/vm"
)

// FileName is the configuration file looked up by Load and FindAndLoad.
const FileName = "garnet.toml"

// Config represents a garnet.toml file.
type Config struct {
	Engine  Engine  `toml:"engine"`
	Profile Profile `toml:"profile"`
	Server  Server  `toml:"server"`
	Log     Log     `toml:"log"`

	// Dir is the directory containing the garnet.toml file (set at load time).
	Dir string `toml:"-"`
}

// Engine configures the interpreter.
type Engine struct {
	Debug        bool   `toml:"debug"`
	Profile      bool   `toml:"profile"`
	MaxDepth     int    `toml:"max-depth"`
	HotThreshold uint64 `toml:"hot-threshold"`
}

// Profile configures where profiler snapshots are stored.
type Profile struct {
	Database string `toml:"database"`
}

// Server configures the evaluation service.
type Server struct {
	Addr          string `toml:"addr"`
	MaxConcurrent int64  `toml:"max-concurrent"`
}

// Log configures logging verbosity (0 quiet, higher is chattier).
type Log struct {
	Verbosity int `toml:"verbosity"`
}

// Default returns the configuration used when no garnet.toml exists.
func Default() *Config {
	c := &Config{Log: Log{Verbosity: 1}}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.Engine.MaxDepth <= 0 {
		c.Engine.MaxDepth = vm.DefaultMaxDepth
	}
	if c.Profile.Database == "" {
		c.Profile.Database = filepath.Join(".garnet", "profile.db")
	}
	if c.Server.Addr == "" {
		c.Server.Addr = "localhost:4567"
	}
	if c.Server.MaxConcurrent <= 0 {
		c.Server.MaxConcurrent = 8
	}
}

// Load parses the garnet.toml file in dir. Unknown keys are an error so
// that misspelled settings do not go unnoticed.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var c Config
	md, err := toml.Decode(string(data), &c)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}

	c.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	if !md.IsDefined("log", "verbosity") {
		c.Log.Verbosity = 1
	}
	c.applyDefaults()
	return &c, nil
}

// FindAndLoad walks up from startDir to find a garnet.toml file, then loads
// it. Returns the defaults, with Dir set to startDir, if none is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}
	start := dir

	for {
		if _, err := os.Stat(filepath.Join(dir, FileName)); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			c := Default()
			c.Dir = start
			return c, nil
		}
		dir = parent
	}
}

// EngineOptions maps the [engine] table to interpreter options.
func (c *Config) EngineOptions() vm.Options {
	return vm.Options{
		Debug:        c.Engine.Debug,
		Profile:      c.Engine.Profile,
		MaxDepth:     c.Engine.MaxDepth,
		HotThreshold: c.Engine.HotThreshold,
	}
}

// DatabasePath returns the profile database path, resolved against Dir when
// relative.
func (c *Config) DatabasePath() string {
	if filepath.IsAbs(c.Profile.Database) || c.Dir == "" {
		return c.Profile.Database
	}
	return filepath.Join(c.Dir, c.Profile.Database)
}
