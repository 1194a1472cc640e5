package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/scribecli/scribe/internal/platform"
)

const fileName = "config.toml"

// Config holds the optional persistent settings. Flags always win over
// config values, which win over built-in defaults.
type Config struct {
	Model        string `toml:"model"`
	ModelDir     string `toml:"model_dir"`
	Language     string `toml:"language"`
	AutoDownload *bool  `toml:"auto_download"`
}

// DefaultPath returns the per-user config file location.
func DefaultPath() (string, error) {
	dir, err := platform.ResolveConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fileName), nil
}

// Resolve loads the config file at path. An empty path means the default
// location, where a missing file simply yields an empty config; an explicit
// path must exist.
func Resolve(path string) (Config, error) {
	explicit := strings.TrimSpace(path) != ""
	if !explicit {
		defaultPath, err := DefaultPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}

	cfg, err := load(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, err
	}

	return cfg, nil
}

func load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("config file %s: %w", path, err)
		}
		return Config{}, fmt.Errorf("read config file %s: %w", path, err)
	}

	var cfg Config
	if err := toml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
	}

	cfg.Model = strings.TrimSpace(cfg.Model)
	cfg.ModelDir = strings.TrimSpace(cfg.ModelDir)
	cfg.Language = strings.TrimSpace(strings.ToLower(cfg.Language))

	return cfg, nil
}
