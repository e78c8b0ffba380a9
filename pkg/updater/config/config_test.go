package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultRepoURL, cfg.Repo.URL)
	assert.Equal(t, "main", cfg.Repo.Branch)
	assert.Equal(t, DefaultManagedZones, cfg.Zones.ManagedZones)
	assert.Equal(t, DefaultResetZones, cfg.Zones.ResetZones)
	assert.Equal(t, "configureddefaults", cfg.Zones.DefaultsDir)
	assert.Len(t, cfg.Zones.ForceReset, len(DefaultForceReset))
	assert.Equal(t, DefaultHistoryMax, cfg.History.MaxEntries)
	assert.Equal(t, "info", cfg.Logging.Level)

	dirs := map[string]bool{}
	for _, e := range cfg.Zones.ForceReset {
		if e.Dir {
			dirs[e.Path] = true
		}
	}
	assert.Equal(t, map[string]bool{
		"config/fancymenu":   true,
		"config/fog":         true,
		"customsplashscreen": true,
	}, dirs, "shipped directory resets")
}

func TestLoadFromFile(t *testing.T) {
	configHome := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", configHome)

	dir := filepath.Join(configHome, appDir)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	content := `repo:
  url: https://example.com/custom-pack.git
  branch: 1.21-neoforge
managed_zones:
  - mods
  - scripts
reset_zones:
  - config
defaults_dir: defaults
force_reset:
  - path: config/settings.json
    source: defaults/config/settings.json
history:
  max_entries: 3
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/custom-pack.git", cfg.Repo.URL)
	assert.Equal(t, "1.21-neoforge", cfg.Repo.Branch)
	assert.Equal(t, []string{"mods", "scripts"}, cfg.Zones.ManagedZones)
	require.Len(t, cfg.Zones.ForceReset, 1)
	assert.Equal(t, "config/settings.json", cfg.Zones.ForceReset[0].Path)
	assert.Equal(t, "defaults/config/settings.json", cfg.Zones.ForceReset[0].Source)
	assert.Equal(t, 3, cfg.History.MaxEntries)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadRejectsInvalidZones(t *testing.T) {
	configHome := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", configHome)

	dir := filepath.Join(configHome, appDir)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	content := `managed_zones:
  - mods
  - mods
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid zone configuration")
}

func TestWriteDefaultRoundTrips(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	require.NoError(t, WriteDefault())

	dir, err := ConfigDir()
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "config.yaml"))

	// The generated file must parse back to a valid configuration.
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultManagedZones, cfg.Zones.ManagedZones)
	assert.Equal(t, DefaultForceReset, cfg.Zones.ForceReset, "dir flags survive the round trip")

	// A second call must not clobber an existing file.
	require.NoError(t, WriteDefault())
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := ExpandPath("~/minecraft/instance")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "minecraft", "instance"), got)

	got, err = ExpandPath("/absolute/path")
	require.NoError(t, err)
	assert.Equal(t, "/absolute/path", got)
}

func TestConfigDirHonorsXDG(t *testing.T) {
	configHome := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", configHome)

	dir, err := ConfigDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(configHome, appDir), dir)
}
