package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// LoadTOML loads configuration from a TOML file, grounded on the
// teacher's pkg/config/yaml.go (same read-then-unmarshal shape, swapped
// to the TOML codec attested across the retrieval pack's manifests).
func LoadTOML(path string) (Config, error) {
	// #nosec G304 -- path comes from the fixed discovery list or CLI-adjacent config, not untrusted user input.
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read TOML file %s: %w", path, err)
	}
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal TOML: %w", err)
	}
	return cfg, nil
}

// SaveTOML writes cfg to path, used by --generate-config.
func SaveTOML(path string, cfg Config) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal TOML: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write TOML file: %w", err)
	}
	return nil
}

// Discover loads the first config file found along DiscoveryPaths,
// falling back to Default() if none exist.
func Discover() (Config, string, error) {
	for _, p := range DiscoveryPaths {
		if _, err := os.Stat(p); err == nil {
			cfg, err := LoadTOML(p)
			return cfg, p, err
		}
	}
	return Default(), "", nil
}
