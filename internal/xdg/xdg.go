// Package xdg resolves the XDG base directories slicemgr reads and writes.
package xdg

import (
	"fmt"
	"os"
	"path/filepath"
)

const app = "slicemgr"

// Dirs holds the resolved XDG-compliant directory paths for slicemgr.
type Dirs struct {
	// Config is ~/.config/slicemgr  (XDG_CONFIG_HOME)
	Config string
	// State is ~/.local/state/slicemgr  (XDG_STATE_HOME)
	State string
}

// base returns the XDG base directory, falling back to fallback under the
// home directory when the environment variable is unset or empty.
func base(envVar, fallback string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), fallback)
	}
	return filepath.Join(home, fallback)
}

// Default returns the directory set for the current environment.
func Default() Dirs {
	return Dirs{
		Config: filepath.Join(base("XDG_CONFIG_HOME", ".config"), app),
		State:  filepath.Join(base("XDG_STATE_HOME", ".local/state"), app),
	}
}

// ConfigFile returns the path to the slicemgr config file.
func (d Dirs) ConfigFile() string {
	return filepath.Join(d.Config, "config.yaml")
}

// ScratchDir returns the directory holding in-flight slice documents.
func (d Dirs) ScratchDir() string {
	return filepath.Join(d.State, "scratch")
}

// EnsureDirs creates the config and state directories with mode 0700.
func (d Dirs) EnsureDirs() error {
	for _, dir := range []string{d.Config, d.ScratchDir()} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}
