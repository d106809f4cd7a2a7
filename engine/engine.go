// Package engine implements the consent-aware ID anonymization run: mapping
// resolution, resumable source-file rewriting, and the persistent lookup
// table that keeps hashes stable across runs.
package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arden-health/idveil/config"
	"github.com/arden-health/idveil/errors"
	"github.com/arden-health/idveil/hashid"
	"github.com/arden-health/idveil/logger"
	"github.com/arden-health/idveil/tabular"
	"github.com/google/uuid"
)

// State is the engine's run lifecycle.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateStopped   State = "stopped"
	StateError     State = "error"
)

// Engine orchestrates one anonymization run over a mapping configuration.
// It runs a single logical worker: the hash cache and the run-wide sets are
// shared mutable state, and legacy hash assignment is order-dependent
// (first occurrence wins). Never invoke two engines against the same lookup
// table concurrently.
type Engine struct {
	cfg      *config.Config
	store    *tabular.Store
	hasher   *hashid.Hasher
	lookup   *LookupStore
	observer Observer

	mappingPath string
	replaceOpts tabular.ReplaceOptions
	runID       string

	mu      sync.Mutex
	state   State
	running bool

	stopRequested atomic.Bool

	processedFiles map[string]struct{}
	notHashed      map[string]ConsentStatus
	cachedConsent  map[string]ConsentStatus
	lastProgress   int
}

// New constructs an engine for one mapping configuration. The persisted
// lookup table (next to the mapping file, unless lookupPath overrides it) is
// loaded immediately so every hash minted this run agrees with prior runs.
func New(cfg *config.Config, mappingPath, lookupPath string, observer Observer) *Engine {
	if observer == nil {
		observer = NopObserver{}
	}

	abs, err := filepath.Abs(mappingPath)
	if err != nil {
		abs = mappingPath
	}
	if lookupPath == "" {
		lookupPath = filepath.Join(filepath.Dir(abs), cfg.Lookup.Filename)
	}

	replaceOpts := tabular.ReplaceOptions{
		MaxAttempts: cfg.Replace.MaxAttempts,
		Backoff:     time.Duration(cfg.Replace.BackoffMs) * time.Millisecond,
		Settle:      time.Duration(cfg.Replace.SettleMs) * time.Millisecond,
	}

	store := tabular.NewStore()
	hasher := hashid.New()
	lookup := NewLookupStore(store, lookupPath, replaceOpts)

	return &Engine{
		cfg:           cfg,
		store:         store,
		hasher:        hasher,
		lookup:        lookup,
		observer:      observer,
		mappingPath:   abs,
		replaceOpts:   replaceOpts,
		runID:         uuid.NewString()[:8],
		state:         StateIdle,
		cachedConsent: lookup.Load(hasher),
	}
}

// Stop requests cooperative cancellation. The in-flight file is always
// finished or fully rolled back; the stop takes effect before the next
// mapping-table row.
func (e *Engine) Stop() {
	e.stopRequested.Store(true)
}

// State returns the engine's current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// LookupPath returns where the lookup table is persisted.
func (e *Engine) LookupPath() string {
	return e.lookup.Path()
}

// ProcessAllFiles runs the whole pipeline: validate the mapping
// configuration, back up source files, resolve ID relationships, rewrite
// each unprocessed file, and persist the lookup table. Already-processed
// rows are skipped, so re-running after an interruption resumes where the
// last run left off.
func (e *Engine) ProcessAllFiles() (err error) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return errors.New("engine is already running")
	}
	e.running = true
	e.state = StateRunning
	e.mu.Unlock()

	e.stopRequested.Store(false)
	e.processedFiles = make(map[string]struct{})
	e.notHashed = make(map[string]ConsentStatus)
	e.lastProgress = 0

	defer func() {
		e.mu.Lock()
		e.running = false
		switch {
		case err != nil:
			e.state = StateError
		case e.stopRequested.Load():
			e.state = StateStopped
		default:
			e.state = StateCompleted
		}
		e.mu.Unlock()
	}()

	return e.run()
}

func (e *Engine) run() error {
	log := logger.Logger.With("run_id", e.runID)
	e.status("Starting anonymization run " + e.runID)
	e.progress(0)

	if _, err := os.Stat(e.mappingPath); err != nil {
		return errors.NewNotFoundError("mapping file %s not found", e.mappingPath)
	}

	mappingTable, err := e.store.Read(e.mappingPath)
	if err != nil {
		return errors.Wrapf(err, "could not read mapping file %s", e.mappingPath)
	}
	rows, err := parseMappingTable(mappingTable)
	if err != nil {
		return errors.Wrapf(err, "invalid mapping file %s", e.mappingPath)
	}
	if len(rows) == 0 {
		e.status("Mapping file has no rows, nothing to do")
		e.progress(100)
		return nil
	}

	// Clear temp files a previously interrupted run may have left behind.
	tabular.CleanupTempFiles(e.mappingPath)
	tabular.CleanupTempFiles(e.lookup.Path())

	baseDir := filepath.Dir(e.mappingPath)

	relPath, err := findFile(baseDir, rows[0].MappingFile)
	if err != nil {
		return errors.Wrapf(err, "relationship table %s", rows[0].MappingFile)
	}

	srcPaths := make([]string, len(rows))
	for i, row := range rows {
		path, err := findFile(baseDir, row.SourceFile)
		if err != nil {
			return errors.Wrapf(err, "source file %s (mapping row %d)", row.SourceFile, i+1)
		}
		srcPaths[i] = path
	}

	// Backups are idempotent at the file level: rows about to be skipped
	// still get one if their file was never backed up.
	e.status("Backing up source files")
	backedUp := make(map[string]struct{})
	for i, path := range srcPaths {
		if path == relPath {
			continue
		}
		if _, done := backedUp[path]; done {
			continue
		}
		if _, err := backupFile(path, e.cfg.Files.BackupSuffix); err != nil {
			return err
		}
		backedUp[path] = struct{}{}
		e.progress(20 * (i + 1) / len(srcPaths))
	}
	e.progress(20)

	relTable, err := e.store.Read(relPath)
	if err != nil {
		return errors.Wrapf(err, "could not read relationship table %s", relPath)
	}
	resolver, err := NewResolver(e.hasher, relTable, mappingIDColumns(rows), e.cfg.Consent.LegacyDefaultGranted)
	if err != nil {
		return errors.Wrapf(err, "relationship table %s", relPath)
	}
	mappings := resolver.BuildMappings()
	log.Infow("ID mappings built",
		"schema", resolver.Schema().String(),
		"hashed_ids", len(mappings.IDHashes),
		"persons", len(mappings.Persons))
	e.status(fmt.Sprintf("Resolved %s relationship table: %d consented identifiers",
		resolver.Schema(), len(mappings.IDHashes)))
	e.progress(25)

	processor := &Processor{
		store:          e.store,
		replace:        e.replaceOpts,
		trainingSuffix: e.cfg.Files.TrainingSuffix,
		stopped:        e.stopRequested.Load,
		processedFiles: e.processedFiles,
		notHashed:      e.notHashed,
	}

	newlyProcessed := 0
	skipped := 0
	for i, row := range rows {
		if e.stopRequested.Load() {
			e.status("Stop requested, ending run after completed files")
			break
		}
		if row.Processed {
			skipped++
			continue
		}
		if srcPaths[i] == relPath {
			// The relationship table's own identifier columns are never mutated.
			e.status("Skipping " + row.SourceFile + ": relationship table is not rewritten")
			continue
		}

		if row.IDType != "" && resolver.Schema() == SchemaPersonCentric {
			fileMappings := resolver.MappingsForSource(row.IDType, row.SourceContext, mappings)
			mappings.MergeOverride(fileMappings)
		}

		msg, err := processor.UpdateFileIDs(srcPaths[i], row.SourceID, mappings, row.IDType, row.SourceContext)
		if err != nil {
			return errors.Wrapf(err, "mapping row %d", i+1)
		}
		e.status(msg)

		// Persist the processed flag immediately so an interruption loses at
		// most the in-flight file.
		mappingTable.SetCell(row.Index, colProcessed, "true")
		if err := e.store.WriteAtomic(mappingTable, e.mappingPath, e.replaceOpts); err != nil {
			return errors.Wrapf(err, "failed to persist processed flag for row %d", i+1)
		}
		newlyProcessed++
		e.progress(25 + 65*(i+1)/len(rows))
	}

	if err := e.lookup.Save(mappings, e.cachedConsent, e.hasher, e.notHashed); err != nil {
		return errors.Wrap(err, "failed to save lookup table")
	}
	e.status("Lookup table written to " + e.lookup.Path())

	if e.stopRequested.Load() {
		log.Infow("Run stopped", "processed", newlyProcessed, "skipped", skipped)
		e.status(fmt.Sprintf("Stopped: %d files processed, %d already done", newlyProcessed, skipped))
		return nil
	}

	e.progress(100)
	log.Infow("Run completed", "processed", newlyProcessed, "skipped", skipped)
	e.status(fmt.Sprintf("Completed: %d files processed, %d already done", newlyProcessed, skipped))
	return nil
}

// progress reports completion, clamped so observers only ever see a
// monotonically non-decreasing sequence.
func (e *Engine) progress(pct int) {
	if pct < e.lastProgress {
		return
	}
	e.lastProgress = pct
	e.observer.Progress(pct)
}

func (e *Engine) status(msg string) {
	e.observer.Status(msg)
}
