// Package config handles pvm.toml runner configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents a pvm.toml runner configuration.
type Config struct {
	Run   Run   `toml:"run"`
	Trace Trace `toml:"trace"`

	// Dir is the directory containing the pvm.toml file (set at load time).
	Dir string `toml:"-"`
}

// Run configures the step loop.
type Run struct {
	Image   string `toml:"image"`   // executable image path, relative to Dir
	TickUS  int    `toml:"tick-us"` // inter-step delay, microseconds
	Binding uint8  `toml:"binding"` // persistent binding byte seeded into the VM
}

// Trace configures per-step debug output.
type Trace struct {
	Enabled bool   `toml:"enabled"`
	Output  string `toml:"output"` // "stderr" (default), "stdout", or a file path
}

// DefaultTickUS emulates MCU stepping speed when tick-us is absent.
const DefaultTickUS = 10

// Load parses a pvm.toml file from the given directory.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, "pvm.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var c Config
	if err := toml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	c.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	// Defaults
	if c.Run.TickUS == 0 {
		c.Run.TickUS = DefaultTickUS
	}
	if c.Trace.Output == "" {
		c.Trace.Output = "stderr"
	}

	return &c, nil
}

// FindAndLoad walks up from startDir to find a pvm.toml file, then loads
// and returns the configuration. Returns nil if none is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, "pvm.toml")
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// ImagePath returns the absolute path of the configured image, or "" when
// none is configured.
func (c *Config) ImagePath() string {
	if c.Run.Image == "" {
		return ""
	}
	if filepath.IsAbs(c.Run.Image) {
		return c.Run.Image
	}
	return filepath.Join(c.Dir, c.Run.Image)
}
