package engine

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/arden-health/idveil/errors"
	"github.com/arden-health/idveil/internal/util"
	"github.com/arden-health/idveil/logger"
	"github.com/arden-health/idveil/tabular"
)

// Processor rewrites one source file at a time: the primary file gets a
// consent_status column appended (identifiers stay in place), and a training
// extract with hashed identifiers is written beside it. All writes go through
// the crash-safe replace protocol.
type Processor struct {
	store          *tabular.Store
	replace        tabular.ReplaceOptions
	trainingSuffix string

	stopped func() bool

	// run-wide state, shared with the orchestrator
	processedFiles map[string]struct{}
	notHashed      map[string]ConsentStatus
}

// UpdateFileIDs annotates a source file with consent statuses and derives its
// training extract. Returns a status message for the observer; a no-op (stop
// requested, or path already processed this run) is a message, not an error.
func (p *Processor) UpdateFileIDs(path, idColumn string, m *Mappings, idType, sourceContext string) (string, error) {
	if p.stopped() {
		return "Processing stopped before " + filepath.Base(path), nil
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	if _, done := p.processedFiles[abs]; done {
		// The mapping table listed this file twice; one rewrite is enough.
		return "Skipping " + filepath.Base(path) + ": already processed in this run", nil
	}

	tabular.CleanupTempFiles(path)

	t, err := p.store.Read(path)
	if err != nil {
		return "", errors.Wrapf(err, "failed to read source file %s", path)
	}
	if !t.HasColumn(idColumn) {
		return "", errors.NewMissingColumnError("column %q not found in %s", idColumn, path)
	}

	statuses := make([]string, len(t.Rows))
	training := tabular.NewTable(t.Columns...)

	for i := range t.Rows {
		value, _ := t.Cell(i, idColumn)
		value = strings.TrimSpace(value)

		if util.Blank(value) {
			statuses[i] = string(ConsentIDNotFound)
			continue
		}

		ref := IdentifierRef{Original: value, IDType: idType, SourceContext: sourceContext}
		key := ref.Key()

		status, known := m.Consent[key]
		if !known {
			status = ConsentIDNotFound
		}
		statuses[i] = string(status)

		hash, hashed := m.IDHashes[key]
		if !hashed {
			p.notHashed[value] = status
			continue
		}

		if status == ConsentGranted {
			row := append([]string(nil), t.Rows[i]...)
			training.AppendRow(row...)
			training.SetCell(len(training.Rows)-1, idColumn, hash)
		}
	}

	// The primary file is annotated, never anonymized: identifiers stay put,
	// only the consent outcome is recorded next to them.
	if t.HasColumn(colConsentStatus) {
		for i, s := range statuses {
			t.SetCell(i, colConsentStatus, s)
		}
	} else {
		t.AppendColumn(colConsentStatus, statuses)
	}

	trainingPath := p.trainingPath(path)
	if err := p.store.WriteAtomic(training, trainingPath, p.replace); err != nil {
		return "", errors.Wrapf(err, "failed to write training extract for %s", path)
	}
	if err := p.store.WriteAtomic(t, path, p.replace); err != nil {
		return "", errors.Wrapf(err, "failed to rewrite %s", path)
	}

	p.processedFiles[abs] = struct{}{}
	logger.Infow("Source file updated",
		"path", path,
		"rows", len(t.Rows),
		"training_rows", len(training.Rows))

	return fmt.Sprintf("Updated %s (%d rows, %d in training extract)",
		filepath.Base(path), len(t.Rows), len(training.Rows)), nil
}

// trainingPath derives the sibling training-extract path: stem + suffix + ext.
func (p *Processor) trainingPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + p.trainingSuffix + ext
}
