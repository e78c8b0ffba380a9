// Package config loads the updater configuration. The managed-zone
// list and the force-reset file list are product configuration, not
// part of the reconciliation algorithm: they ship as defaults here and
// can be overridden per pack in the config file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"github.com/minecraftwithtwink/modpack-updater/pkg/updater/zone"
)

// appDir is the directory name used under the XDG base directories.
const appDir = "modpack-updater"

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	Path  string `mapstructure:"path"`
}

// RepoConfig configures the upstream modpack repository the snapshot
// is fetched from.
type RepoConfig struct {
	URL    string `mapstructure:"url"`
	Branch string `mapstructure:"branch"`
}

// Config represents the application configuration.
type Config struct {
	Repo    RepoConfig    `mapstructure:"repo"`
	Zones   zone.Config   `mapstructure:",squash"`
	Logging LoggingConfig `mapstructure:"logging"`
	History struct {
		MaxEntries int `mapstructure:"max_entries"`
	} `mapstructure:"history"`
}

// Defaults for the shipped modpack. The zone and reset lists mirror
// the pack's repository layout; nothing in the engine depends on them.
var (
	DefaultRepoURL = "https://github.com/minecraftwithtwink/Twinkcraft-Modpack.git"
	DefaultBranch  = "main"

	DefaultManagedZones = []string{
		"mods",
		"kubejs",
		"configureddefaults",
		"resourcepacks",
		"patchouli_books",
		"datapacks",
	}

	DefaultResetZones = []string{"config", "."}

	DefaultDefaultsDir = "configureddefaults"

	DefaultForceReset = []zone.ForceResetEntry{
		{Path: "config/customsplashscreen.json"},
		{Path: "config/fancymenu", Dir: true},
		{Path: "config/fog", Dir: true},
		{Path: "config/raised.json"},
		{Path: "customsplashscreen", Dir: true},
		{Path: "sodium-extra.properties"},
		{Path: "sodiumextrainformation.json"},
		{Path: "sodium-extra-options.json"},
		{Path: "sodium-fingerprint.json"},
		{Path: "sodium-mixins.properties"},
		{Path: "sodium-options.json"},
		{Path: "sodium-shadowy-path-blocks-options.json"},
		{Path: "tectonic.json"},
		{Path: "sparsestructures.json5"},
		{Path: "parcool-client.toml"},
	}

	DefaultHistoryMax = 10
)

// Load loads configuration from file and environment variables.
// Config file locations (in order of precedence):
//   - $XDG_CONFIG_HOME/modpack-updater/config.yaml
//   - $HOME/.config/modpack-updater/config.yaml
//
// Environment variables are prefixed with MODPACK_UPDATER_.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		v.AddConfigPath(filepath.Join(xdgConfigHome, appDir))
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user home directory: %w", err)
	}
	v.AddConfigPath(filepath.Join(homeDir, ".config", appDir))

	v.SetEnvPrefix("MODPACK_UPDATER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Missing config file is fine; defaults cover the shipped pack.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Zones.Validate(); err != nil {
		return nil, fmt.Errorf("invalid zone configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers the shipped-pack defaults on a viper instance.
func setDefaults(v *viper.Viper) {
	v.SetDefault("repo.url", DefaultRepoURL)
	v.SetDefault("repo.branch", DefaultBranch)
	v.SetDefault("managed_zones", DefaultManagedZones)
	v.SetDefault("reset_zones", DefaultResetZones)
	v.SetDefault("defaults_dir", DefaultDefaultsDir)
	v.SetDefault("history.max_entries", DefaultHistoryMax)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.path", "")

	resets := make([]map[string]any, 0, len(DefaultForceReset))
	for _, e := range DefaultForceReset {
		resets = append(resets, map[string]any{"path": e.Path, "source": e.Source, "dir": e.Dir})
	}
	v.SetDefault("force_reset", resets)
}

// ConfigDir returns the configuration directory path.
func ConfigDir() (string, error) {
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return filepath.Join(xdgConfigHome, appDir), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", appDir), nil
}

// EnsureConfigDir creates the config directory if it doesn't exist.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return nil
}

// DataDir returns $XDG_DATA_HOME/modpack-updater/ for snapshot clones
// and history records.
func DataDir() string {
	return filepath.Join(xdg.DataHome, appDir)
}

// StateDir returns $XDG_STATE_HOME/modpack-updater/ for log files.
func StateDir() string {
	return filepath.Join(xdg.StateHome, appDir)
}

// DefaultSnapshotDir returns where the upstream repository is
// materialized when the built-in git transport fetches it.
func DefaultSnapshotDir() string {
	return filepath.Join(DataDir(), "snapshot")
}

// DefaultLogPath returns the default log file path.
func DefaultLogPath() string {
	return filepath.Join(StateDir(), "updater.log")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() error {
	if err := os.MkdirAll(DataDir(), 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	return nil
}

// EnsureStateDir creates the state directory if it doesn't exist.
func EnsureStateDir() error {
	if err := os.MkdirAll(StateDir(), 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}
	return nil
}

// ExpandPath expands ~ in a path to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, path[1:]), nil
}

// WriteDefault writes a default config file if none exists.
// Returns nil if a config file already exists.
func WriteDefault() error {
	if err := EnsureConfigDir(); err != nil {
		return err
	}

	configDir, err := ConfigDir()
	if err != nil {
		return err
	}
	configPath := filepath.Join(configDir, "config.yaml")

	if _, err := os.Stat(configPath); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to check config file: %w", err)
	}

	var zones, resets strings.Builder
	for _, z := range DefaultManagedZones {
		fmt.Fprintf(&zones, "  - %s\n", z)
	}
	for _, e := range DefaultForceReset {
		fmt.Fprintf(&resets, "  - path: %s\n", e.Path)
		if e.Dir {
			fmt.Fprintf(&resets, "    dir: true\n")
		}
	}

	defaultConfig := fmt.Sprintf(`# Modpack Updater Configuration

# Upstream modpack repository
repo:
  url: %s
  branch: %s

# Instance folders fully mirrored from the snapshot. Files inside these
# folders are added, overwritten, and deleted to match upstream exactly.
# Everything else in the instance (saves, screenshots, local settings)
# is never touched.
managed_zones:
%s
# Extra folders where force-reset files may land ("." is the instance root)
reset_zones:
  - config
  - .

# Snapshot folder holding shipped default content for force resets
defaults_dir: %s

# Files restored to their shipped defaults on every update, even if
# edited locally. Entries with dir: true restore every shipped file
# under the directory.
force_reset:
%s
# History of recently used instance paths
history:
  max_entries: %d

# Logging configuration
logging:
  # Log level: debug, info, warn, error
  level: info
  # Log file path (empty means $XDG_STATE_HOME/modpack-updater/updater.log)
  path: ""
`, DefaultRepoURL, DefaultBranch, zones.String(), DefaultDefaultsDir, resets.String(), DefaultHistoryMax)

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
		return fmt.Errorf("failed to write default config: %w", err)
	}
	return nil
}
