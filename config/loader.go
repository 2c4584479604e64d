package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the configuration file looked up in the working directory.
const DefaultConfigFile = ".mapscraper.yaml"

// LoadFile overlays the YAML file at path onto cfg. Keys absent from the file
// keep their current values.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrConfigNotFound
		}
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// FindConfigFile searches for the configuration file in this order:
// configPath when given, ./.mapscraper.yaml, then
// $XDG_CONFIG_HOME/mapscraper/config.yaml. It returns "" when none exists.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	if cwd, err := os.Getwd(); err == nil {
		candidate := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	candidate := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return ""
}

// Load builds the effective configuration: defaults, then the configuration
// file, then MAPSCRAPER_* environment variables. An explicit configPath that
// does not exist is an error. The path of the file used is returned.
func Load(configPath string) (*Config, string, error) {
	cfg := DefaultConfig()

	path := FindConfigFile(configPath)
	if configPath != "" && path == "" {
		return nil, "", fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
	}
	if path != "" {
		if err := LoadFile(path, cfg); err != nil && !errors.Is(err, ErrConfigNotFound) {
			return nil, "", err
		}
	}

	if err := ApplyEnv(cfg); err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}
