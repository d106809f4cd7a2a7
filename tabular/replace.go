package tabular

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/arden-health/idveil/errors"
	"github.com/arden-health/idveil/logger"
	"github.com/google/uuid"
)

// ReplaceOptions bounds the delete-then-rename step of an atomic write.
type ReplaceOptions struct {
	MaxAttempts int           // delete+rename attempts before giving up
	Backoff     time.Duration // initial backoff, doubles each retry
	Settle      time.Duration // pause after fsync before swapping files in
}

// DefaultReplaceOptions matches the config package defaults.
func DefaultReplaceOptions() ReplaceOptions {
	return ReplaceOptions{
		MaxAttempts: 5,
		Backoff:     200 * time.Millisecond,
		Settle:      100 * time.Millisecond,
	}
}

// Overridable for crash-safety tests.
var (
	osRemove = os.Remove
	osRename = os.Rename
)

// WriteAtomic writes a table to path without ever leaving a half-written
// file behind. The table is written to a freshly named temp file in the same
// directory, synced to disk, and swapped in via delete-then-rename with
// bounded retries. On any failure the temp file is removed and the original
// is left intact.
func (s *Store) WriteAtomic(t *Table, path string, opts ReplaceOptions) (err error) {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}

	dir := filepath.Dir(path)
	tmp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%s%s",
		filepath.Base(path), uuid.NewString()[:8], filepath.Ext(path)))

	defer func() {
		if err != nil {
			if rmErr := os.Remove(tmp); rmErr != nil && !os.IsNotExist(rmErr) {
				logger.Warnw("Failed to clean up temp file", "path", tmp, "error", rmErr)
			}
		}
	}()

	if err = s.Write(t, tmp); err != nil {
		return errors.Wrapf(err, "failed to stage %s", path)
	}
	if err = syncFile(tmp); err != nil {
		return errors.Wrapf(err, "failed to sync %s", tmp)
	}

	// Let the sync settle before swapping; antivirus and indexers on shared
	// drives hold short-lived locks right after a write.
	if opts.Settle > 0 {
		time.Sleep(opts.Settle)
	}

	backoff := opts.Backoff
	for attempt := 1; ; attempt++ {
		err = swapIn(tmp, path)
		if err == nil {
			return nil
		}

		if attempt >= opts.MaxAttempts {
			return errors.Wrapf(errors.ErrReplaceExhausted,
				"giving up on %s after %d attempts: %v", path, attempt, err)
		}

		logger.Warnw("File replace failed, retrying",
			"path", path,
			"attempt", attempt,
			"backoff", backoff,
			"error", err)
		time.Sleep(backoff)
		backoff *= 2
	}
}

// swapIn deletes the destination (if present) and renames the temp file over it.
func swapIn(tmp, dst string) error {
	if err := osRemove(dst); err != nil && !os.IsNotExist(err) {
		return err
	}
	return osRename(tmp, dst)
}

func syncFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}

// CleanupTempFiles removes stray temp files from an interrupted run in the
// directory of the given path.
func CleanupTempFiles(path string) {
	dir := filepath.Dir(path)
	pattern := filepath.Join(dir, fmt.Sprintf(".%s.tmp-*", filepath.Base(path)))
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return
	}
	for _, m := range matches {
		if err := os.Remove(m); err == nil {
			logger.Infow("Removed stray temp file", "path", m)
		}
	}
}
