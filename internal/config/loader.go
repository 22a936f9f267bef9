package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v10"
)

// EnvPrefix prefixes every environment override, e.g. COORDINATOR_LOG_LEVEL.
const EnvPrefix = "COORDINATOR_"

// Load reads and merges configuration from global and project paths, then
// applies environment overrides from the process environment.
// Order of precedence (highest to lowest): environment, project config, global config, defaults.
// Missing files are not errors; malformed JSON returns an error.
func Load(globalPath, projectPath string) (*Config, error) {
	return LoadWithEnv(globalPath, projectPath, nil)
}

// LoadWithEnv is Load with an explicit environment. A nil environ uses the
// process environment.
func LoadWithEnv(globalPath, projectPath string, environ map[string]string) (*Config, error) {
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

	opts := env.Options{Prefix: EnvPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parsing environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Paths returns the conventional config locations.
// Global: ~/.coordinator/config.json
// Project: .coordinator/config.json (relative to cwd)
func Paths() (globalPath, projectPath string, err error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(homeDir, ".coordinator", "config.json"), filepath.Join(".coordinator", "config.json"), nil
}

// LoadDefault loads configuration from the conventional paths. When no
// journal path is configured the journal lives next to the global config.
func LoadDefault() (*Config, error) {
	globalPath, projectPath, err := Paths()
	if err != nil {
		return nil, err
	}

	cfg, err := Load(globalPath, projectPath)
	if err != nil {
		return nil, err
	}

	if cfg.JournalPath == "" {
		cfg.JournalPath = filepath.Join(filepath.Dir(globalPath), "journal.db")
	}
	return cfg, nil
}

// mergeConfigFile reads a JSON config file over base. Fields absent from
// the file keep their current value; agents are merged by name.
// Missing files are silently skipped. Malformed JSON returns an error.
func mergeConfigFile(base *Config, path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	agents := base.Agents
	base.Agents = nil

	if err := json.Unmarshal(data, base); err != nil {
		base.Agents = agents
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	if agents == nil {
		agents = make(map[string]AgentConfig)
	}
	for name, agent := range base.Agents {
		agents[name] = agent
	}
	base.Agents = agents

	return nil
}
