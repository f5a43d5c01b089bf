package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// EnvConfig names the environment variable that points at a config file when
// --config is not given.
const EnvConfig = "BIMTILES_CONFIG"

// localNames are looked up in the working directory, in order.
var localNames = []string{"bimtiles.yaml", "bimtiles.yml"}

// Load resolves the config file and builds the config with priority
// defaults < file < flags. The result is validated after flags are applied,
// so a flag can repair a bad file value.
func Load() (*Config, error) {
	cfg := Default()

	path, err := resolveConfigPath()
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", path, err)
		}
		cfg.Source = path
	}

	applyFlags(cfg)

	if err := cfg.Validate(); err != nil {
		if path != "" {
			return nil, fmt.Errorf("invalid config %s: %w", path, err)
		}
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// resolveConfigPath returns the file Load reads, or "" to run on defaults.
// An explicit path from --config or $BIMTILES_CONFIG must exist; the implicit
// locations are optional.
func resolveConfigPath() (string, error) {
	for _, explicit := range []struct{ from, path string }{
		{"--config", ConfigPath()},
		{"$" + EnvConfig, os.Getenv(EnvConfig)},
	} {
		if explicit.path == "" {
			continue
		}
		if _, err := os.Stat(explicit.path); err != nil {
			return "", fmt.Errorf("config file from %s: %w", explicit.from, err)
		}
		return explicit.path, nil
	}
	return findConfigFile(), nil
}

// findConfigFile returns the first config file that exists in the working
// directory or in ConfigDir.
func findConfigFile() string {
	candidates := append([]string(nil), localNames...)
	if dir := ConfigDir(); dir != "" {
		candidates = append(candidates, filepath.Join(dir, "config.yaml"))
	}

	for _, path := range candidates {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// ConfigDir returns the per-user bimtiles config directory, or "" when the
// platform has none.
func ConfigDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "bimtiles")
}

// loadFromFile merges a YAML file over cfg. Keys the config does not know are
// an error, so a misspelled setting is not silently ignored. An empty file
// leaves cfg unchanged.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
