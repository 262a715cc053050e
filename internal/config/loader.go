package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

const (
	// ConfigDir is the default config directory name.
	ConfigDir = ".minderbot"
	// ConfigFile is the default config file name.
	ConfigFile = "config.json"
	// EnvPrefix is the prefix for environment variable overrides.
	EnvPrefix = "MINDERBOT"
)

// ConfigPath returns the path to the config file. MINDERBOT_CONFIG overrides
// the default ~/.minderbot/config.json location.
func ConfigPath() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv("MINDERBOT_CONFIG")); explicit != "" {
		if strings.HasPrefix(explicit, "~") {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			return filepath.Join(home, explicit[1:]), nil
		}
		return explicit, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigDir, ConfigFile), nil
}

// Load reads the config file (if present), overlays environment variables,
// and returns the result. A missing file is not an error: defaults apply.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom loads configuration from an explicit file path.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// No file: defaults plus env.
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("process env overrides: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration as indented JSON, creating the directory if
// needed.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o600)
}
