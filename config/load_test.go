package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/arden-health/idveil/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	config.Reset()
	t.Cleanup(config.Reset)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "id_lookup_table.csv", cfg.Lookup.Filename)
	assert.Equal(t, ".backup", cfg.Files.BackupSuffix)
	assert.Equal(t, "_training", cfg.Files.TrainingSuffix)
	assert.Equal(t, 5, cfg.Replace.MaxAttempts)
	assert.True(t, cfg.Consent.LegacyDefaultGranted)
}

func TestLoadFromFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "idveil.toml")
	content := `
[lookup]
filename = "hash_registry.csv"

[replace]
max_attempts = 9
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := config.LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "hash_registry.csv", cfg.Lookup.Filename)
	assert.Equal(t, 9, cfg.Replace.MaxAttempts)
	// Untouched keys keep their defaults
	assert.Equal(t, ".backup", cfg.Files.BackupSuffix)
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := config.LoadFromFile(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}
