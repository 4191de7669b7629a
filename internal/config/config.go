// Package config loads the optional ferry configuration file. It only
// carries persistent defaults for flags; every value can be overridden on
// the command line, and a missing file is not an error.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/dustin/go-humanize"
)

// Config represents the optional ferry configuration file.
type Config struct {
	Defaults DefaultsConfig `toml:"defaults"`
	SSH      SSHConfig      `toml:"ssh"`
}

// DefaultsConfig holds persistent flag defaults. Pointer fields
// distinguish "unset" from an explicit zero.
type DefaultsConfig struct {
	Workers       *int    `toml:"workers"`
	BWLimit       *string `toml:"bwlimit"`
	NoProgress    *bool   `toml:"no_progress"`
	PreserveTimes *bool   `toml:"preserve_times"`
}

// SSHConfig holds defaults for SFTP endpoints.
type SSHConfig struct {
	Port    *int    `toml:"port"`
	KeyFile *string `toml:"key_file"`
}

// Path returns the resolved path to the config file.
func Path() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "ferry", "config.toml")
}

// Load reads the config file from the XDG path. Returns a zero Config
// (no error) if the file does not exist.
func Load() (Config, error) {
	path := Path()
	if path == "" {
		return Config{}, nil
	}

	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, err
	}
	return cfg, nil
}

// ParseBWLimit converts a human bandwidth string ("25MiB", "100MB") into
// bytes per second. Empty means unlimited.
func ParseBWLimit(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid bandwidth limit %q: %w", s, err)
	}
	return int64(n), nil
}
