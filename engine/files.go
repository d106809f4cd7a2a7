package engine

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/arden-health/idveil/errors"
	"github.com/arden-health/idveil/logger"
)

// findFile resolves a file referenced by the mapping configuration. The name
// may be absolute, relative to the mapping file's directory, or live anywhere
// below it (mapping files routinely point into nested study folders).
func findFile(baseDir, name string) (string, error) {
	if filepath.IsAbs(name) {
		if _, err := os.Stat(name); err == nil {
			return name, nil
		}
		return "", errors.NewNotFoundError("file %s not found", name)
	}

	direct := filepath.Join(baseDir, name)
	if _, err := os.Stat(direct); err == nil {
		return direct, nil
	}

	// Search subdirectories for the same relative path.
	var found string
	walkErr := filepath.WalkDir(baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		candidate := filepath.Join(path, name)
		if _, statErr := os.Stat(candidate); statErr == nil {
			found = candidate
			return filepath.SkipAll
		}
		return nil
	})
	if walkErr == nil && found != "" {
		return found, nil
	}

	return "", errors.NewNotFoundError(
		"file %s not found in %s or its subdirectories", name, baseDir)
}

// backupFile copies src to src+suffix once. An existing backup is never
// overwritten: the first backup is the pristine pre-anonymization copy and
// later runs must not clobber it with already-annotated content.
func backupFile(src, suffix string) (string, error) {
	dst := src + suffix
	if _, err := os.Stat(dst); err == nil {
		return dst, nil
	}

	in, err := os.Open(src)
	if err != nil {
		return "", errors.Wrapf(err, "failed to open %s for backup", src)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return "", errors.Wrapf(err, "failed to create backup %s", dst)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		os.Remove(dst)
		return "", errors.Wrapf(err, "failed to copy %s to %s", src, dst)
	}
	if err := out.Sync(); err != nil {
		return "", errors.Wrapf(err, "failed to sync backup %s", dst)
	}

	logger.Infow("Backup created", "source", src, "backup", dst)
	return dst, nil
}
