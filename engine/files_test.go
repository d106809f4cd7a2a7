package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/arden-health/idveil/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindFile(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "study", "2024")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "top.csv"), []byte("a\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(nested, "deep.csv"), []byte("b\n"), 0o644))

	got, err := findFile(dir, "top.csv")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "top.csv"), got)

	got, err = findFile(dir, "deep.csv")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(nested, "deep.csv"), got)

	abs := filepath.Join(nested, "deep.csv")
	got, err = findFile(dir, abs)
	require.NoError(t, err)
	assert.Equal(t, abs, got)

	_, err = findFile(dir, "missing.csv")
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestBackupFilePreservesFirstCopy(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "visits.csv")
	require.NoError(t, os.WriteFile(src, []byte("pristine\n"), 0o644))

	backup, err := backupFile(src, ".backup")
	require.NoError(t, err)
	assert.Equal(t, src+".backup", backup)

	// A later run must not clobber the pristine backup with mutated content.
	require.NoError(t, os.WriteFile(src, []byte("annotated\n"), 0o644))
	_, err = backupFile(src, ".backup")
	require.NoError(t, err)

	content, err := os.ReadFile(backup)
	require.NoError(t, err)
	assert.Equal(t, "pristine\n", string(content))
}
