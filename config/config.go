// Package config loads flux2imd's persistent defaults from an optional
// ".flux2imd.toml" file, following the teacher's embedded-default-plus-
// home-directory-override pattern (sergev-fdx/config/config.go).
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

//go:embed flux2imd.toml
var defaultConfigData []byte

// Config is the top-level ".flux2imd.toml" structure: a debug mask, a
// histogram level, an output directory, and a table of per-(cylinder,
// head) format overrides for disks that need a pinned format on one side,
// grounded on SPEC_FULL.md's AMBIENT STACK configuration description.
// The decode command reads DebugMask and OutputDir; it does not consult
// Histogram or Overrides.
type Config struct {
	DebugMask uint             `toml:"debug_mask"`
	Histogram int              `toml:"histogram_levels"`
	OutputDir string           `toml:"output_dir"`
	Overrides []FormatOverride `toml:"format_override"`
}

// FormatOverride pins a format name to a specific physical (cylinder,
// head), matching formats.c's "[cyl/head]FormatName" precanned-format
// syntax (format.PrecannedFormats) but expressed as TOML table entries
// instead of a parsed bracket string.
type FormatOverride struct {
	Cylinder int    `toml:"cylinder"`
	Head     int    `toml:"head"`
	Format   string `toml:"format"`
}

// Lookup returns the format name pinned to (cylinder, head), if any.
func (c Config) Lookup(cylinder, head int) (string, bool) {
	for _, o := range c.Overrides {
		if o.Cylinder == cylinder && o.Head == head {
			return o.Format, true
		}
	}
	return "", false
}

// path returns the config file location: ".flux2imd.toml" in the current
// directory if present, otherwise "$HOME/.flux2imd.toml".
func path() (string, error) {
	if _, err := os.Stat(".flux2imd.toml"); err == nil {
		return ".flux2imd.toml", nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: cannot determine user home directory: %w", err)
	}
	return filepath.Join(home, ".flux2imd.toml"), nil
}

// Load reads the config file, creating it from the embedded default in the
// current directory if neither location exists. A missing/creatable file is never an error for
// the caller: flux2imd runs with sensible defaults even with no config at
// all, unlike the teacher's Initialize which requires a valid drive entry.
func Load() (Config, error) {
	p, err := path()
	if err != nil {
		return Config{}, err
	}

	if _, err := os.Stat(p); os.IsNotExist(err) {
		p = ".flux2imd.toml"
		if err := os.WriteFile(p, defaultConfigData, 0644); err != nil {
			return Config{}, fmt.Errorf("config: failed to create default config at %s: %w", p, err)
		}
	}

	var c Config
	if _, err := toml.DecodeFile(p, &c); err != nil {
		return Config{}, fmt.Errorf("config: failed to parse TOML config at %s: %w", p, err)
	}
	if c.Histogram <= 0 {
		c.Histogram = 8
	}
	return c, nil
}
