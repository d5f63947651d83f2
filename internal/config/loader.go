package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

// Load reads and merges configuration from global and project paths.
// Order of precedence (highest to lowest): project config, global config, defaults.
// Missing files are not errors; malformed JSON returns an error.
func Load(globalPath, projectPath string) (*OrchestratorConfig, error) {
	cfg := DefaultConfig()

	if globalPath != "" {
		if err := mergeConfigFile(cfg, globalPath); err != nil {
			return nil, fmt.Errorf("loading global config: %w", err)
		}
	}

	if projectPath != "" {
		if err := mergeConfigFile(cfg, projectPath); err != nil {
			return nil, fmt.Errorf("loading project config: %w", err)
		}
	}

	return cfg, nil
}

// LoadDefault loads configuration from conventional paths.
// Global: $XDG_CONFIG_HOME/repoforge/config.json
// Project: .repoforge/config.json (relative to cwd)
func LoadDefault() (*OrchestratorConfig, error) {
	globalPath := filepath.Join(xdg.ConfigHome, "repoforge", "config.json")
	projectPath := filepath.Join(".repoforge", "config.json")
	return Load(globalPath, projectPath)
}

// mergeConfigFile reads a JSON config file and overlays its non-zero sections
// onto the base config. Missing files are silently skipped.
func mergeConfigFile(base *OrchestratorConfig, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	// Unmarshal directly into the base config: JSON decoding only touches
	// fields present in the file, so absent sections keep their prior values.
	if err := json.Unmarshal(data, base); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	return nil
}
