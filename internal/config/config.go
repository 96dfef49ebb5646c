// Package config loads slicemgr settings from config.yaml and the
// environment. Precedence, lowest first: defaults, file, environment, flags
// (applied by the caller).
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/h3ow3d/slicemgr/internal/backend"
	"github.com/h3ow3d/slicemgr/internal/manifest"
	"github.com/h3ow3d/slicemgr/internal/xdg"
)

// Config is the top-level structure of config.yaml.
type Config struct {
	Backend        BackendConfig `yaml:"backend"`
	ScratchDir     string        `yaml:"scratch_dir" env:"SLICEMGR_SCRATCH_DIR"`
	Format         string        `yaml:"format" env:"SLICEMGR_FORMAT"`
	Timeout        time.Duration `yaml:"timeout" env:"SLICEMGR_TIMEOUT"`
	Listen         string        `yaml:"listen" env:"SLICEMGR_LISTEN"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes" env:"SLICEMGR_MAX_UPLOAD_BYTES"`
	Verbose        bool          `yaml:"verbose" env:"SLICEMGR_VERBOSE"`
}

// BackendConfig holds the external commands, each split on whitespace.
type BackendConfig struct {
	Deploy string `yaml:"deploy" env:"SLICEMGR_DEPLOY_CMD"`
	List   string `yaml:"list" env:"SLICEMGR_LIST_CMD"`
	Show   string `yaml:"show" env:"SLICEMGR_SHOW_CMD"`
	Delete string `yaml:"delete" env:"SLICEMGR_DELETE_CMD"`
}

// Defaults returns the settings used when nothing is configured. The backend
// commands match the scripts shipped with the deployment backend.
func Defaults(dirs xdg.Dirs) Config {
	return Config{
		Backend: BackendConfig{
			Deploy: "python3 deploy_from_jsonv2.py",
			List:   "bash list_slices.sh",
			Show:   "bash show_slice_info.sh",
			Delete: "bash delete_slice.sh",
		},
		ScratchDir:     dirs.ScratchDir(),
		Format:         string(manifest.FormatJSON),
		Timeout:        10 * time.Minute,
		Listen:         ":5000",
		MaxUploadBytes: 10 << 20,
	}
}

// Load builds the effective configuration from dirs.ConfigFile() (if present)
// and the environment.
func Load(dirs xdg.Dirs) (*Config, error) {
	return LoadFile(dirs.ConfigFile(), dirs)
}

// LoadFile is Load with an explicit config file path. A missing file is not an
// error.
func LoadFile(path string, dirs xdg.Dirs) (*Config, error) {
	cfg := Defaults(dirs)

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every problem with cfg at once.
func (c *Config) Validate() error {
	var errs []string

	if strings.TrimSpace(c.Backend.Deploy) == "" {
		errs = append(errs, "backend.deploy: a deploy command is required")
	}
	if _, err := manifest.ParseFormat(c.Format); err != nil {
		errs = append(errs, "format: "+err.Error())
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Sprintf("timeout: must not be negative (got %s)", c.Timeout))
	}
	if strings.TrimSpace(c.ScratchDir) == "" {
		errs = append(errs, "scratch_dir: must not be empty")
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Sprintf("max_upload_bytes: must be positive (got %d)", c.MaxUploadBytes))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config is invalid:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// DocumentFormat returns the parsed canonical document format.
func (c *Config) DocumentFormat() manifest.Format {
	f, err := manifest.ParseFormat(c.Format)
	if err != nil {
		return manifest.FormatJSON
	}
	return f
}

// Client returns the backend commands described by c.
func (c *Config) Client() *backend.Client {
	return &backend.Client{
		Deploy: backend.ParseCommand(c.Backend.Deploy),
		List:   backend.ParseCommand(c.Backend.List),
		Show:   backend.ParseCommand(c.Backend.Show),
		Delete: backend.ParseCommand(c.Backend.Delete),
	}
}
