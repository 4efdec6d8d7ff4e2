package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tailscale/hujson"
)

// Config holds brokerctl's runtime configuration.
type Config struct {
	ReclaimInterval string `json:"reclaim_interval,omitempty"` //nolint:tagliatelle // snake_case for config file
	SnapshotPath    string `json:"snapshot_path,omitempty"`    //nolint:tagliatelle // snake_case for config file
}

// ConfigFileName is the default project-local config file name.
const ConfigFileName = ".brokerctl.json"

var (
	errConfigFileNotFound = errors.New("config file not found")
	errConfigFileRead     = errors.New("reading config file")
	errConfigInvalid      = errors.New("invalid config")
	errReclaimIntervalBad = errors.New("reclaim_interval must be a positive duration")
)

// DefaultConfig returns brokerctl's built-in defaults.
func DefaultConfig() Config {
	return Config{
		ReclaimInterval: "1s",
		SnapshotPath:    ".brokerctl_snapshot.json",
	}
}

// reclaimInterval parses the configured reclaim interval.
func (c Config) reclaimInterval() (time.Duration, error) {
	d, err := time.ParseDuration(c.ReclaimInterval)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%w: %q", errReclaimIntervalBad, c.ReclaimInterval)
	}
	return d, nil
}

// getGlobalConfigPath returns ~/.config/brokerctl/config.json, honoring
// XDG_CONFIG_HOME. Returns empty string if the home directory cannot be
// determined.
func getGlobalConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "brokerctl", "config.json")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".config", "brokerctl", "config.json")
}

// LoadConfig loads configuration with the following precedence (highest
// wins):
//  1. Defaults
//  2. Global user config (~/.config/brokerctl/config.json)
//  3. Explicit config file via configPath, if non-empty (it must exist);
//     otherwise the project config file at workDir/.brokerctl.json, if
//     present. The project file is not read when configPath is given.
func LoadConfig(workDir, configPath string) (Config, error) {
	cfg := DefaultConfig()

	globalCfg, err := loadConfigFile(getGlobalConfigPath(), false)
	if err != nil {
		return Config{}, err
	}
	cfg = mergeConfig(cfg, globalCfg)

	var projectFile string
	mustExist := false

	if configPath != "" {
		projectFile = configPath
		if !filepath.IsAbs(projectFile) {
			projectFile = filepath.Join(workDir, projectFile)
		}
		mustExist = true
	} else {
		projectFile = filepath.Join(workDir, ConfigFileName)
	}

	projectCfg, err := loadConfigFile(projectFile, mustExist)
	if err != nil {
		return Config{}, err
	}
	cfg = mergeConfig(cfg, projectCfg)

	if _, err := cfg.reclaimInterval(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func loadConfigFile(path string, mustExist bool) (Config, error) {
	if path == "" {
		return Config{}, nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // path is config-controlled, not request input
	if err != nil {
		if os.IsNotExist(err) {
			if mustExist {
				return Config{}, fmt.Errorf("%w: %s", errConfigFileNotFound, path)
			}
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("%w: %s", errConfigFileRead, path)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("%w %s: invalid JSONC: %w", errConfigInvalid, path, err)
	}

	var cfg Config
	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w %s: invalid JSON: %w", errConfigInvalid, path, err)
	}

	return cfg, nil
}

func mergeConfig(base, overlay Config) Config {
	if overlay.ReclaimInterval != "" {
		base.ReclaimInterval = overlay.ReclaimInterval
	}
	if overlay.SnapshotPath != "" {
		base.SnapshotPath = overlay.SnapshotPath
	}
	return base
}

// FormatConfig renders cfg as indented JSON for the "config" command.
func FormatConfig(cfg Config) (string, error) {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", fmt.Errorf("formatting config: %w", err)
	}
	return strings.TrimSpace(string(data)) + "\n", nil
}
