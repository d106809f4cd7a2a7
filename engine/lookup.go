package engine

import (
	"os"
	"sort"

	"github.com/arden-health/idveil/hashid"
	"github.com/arden-health/idveil/logger"
	"github.com/arden-health/idveil/tabular"
)

// lookupColumns is the persisted lookup-table header.
var lookupColumns = []string{
	"person_id", "original_id", "hashed_id",
	"consent_status", "from_mapping", "id_type", "source_context",
}

// LookupStore persists the cross-run lookup table: every identifier ever
// seen, its hash (when consented), and its consent outcome. Loading it at
// start-up is what keeps hashes stable across runs.
type LookupStore struct {
	store   *tabular.Store
	path    string
	replace tabular.ReplaceOptions
}

// NewLookupStore creates a store for the lookup table at path.
func NewLookupStore(store *tabular.Store, path string, replace tabular.ReplaceOptions) *LookupStore {
	return &LookupStore{store: store, path: path, replace: replace}
}

// Path returns the lookup table's location.
func (s *LookupStore) Path() string {
	return s.path
}

// Load seeds the hasher from the persisted table and returns each original
// identifier's recorded consent. A missing or unreadable table is a warning,
// not a failure: the run continues with an empty cache.
func (s *LookupStore) Load(hasher *hashid.Hasher) map[string]ConsentStatus {
	consent := make(map[string]ConsentStatus)

	if _, err := os.Stat(s.path); err != nil {
		return consent
	}

	t, err := s.store.Read(s.path)
	if err != nil {
		logger.Warnw("Failed to load lookup table, continuing with empty cache",
			"path", s.path, "error", err)
		return consent
	}

	loaded := 0
	for i := range t.Rows {
		original := cell(t, i, "original_id")
		hashed := cell(t, i, "hashed_id")
		if original == "" {
			continue
		}
		if hashed != "" {
			hasher.Seed(original, hashed)
			loaded++
		}
		consent[original] = NormalizeConsent(cell(t, i, "consent_status"))
	}

	logger.Infow("Lookup table loaded", "path", s.path, "hashes", loaded)
	return consent
}

// Save rebuilds the full lookup table from this run's outcome. Merge order,
// first writer per original_id wins:
//
//	(a) person-centric person hashes
//	(b) granted identifier keys, decomposed back into their parts
//	(c) previously cached hashes that are still consented
//	(d) every identifier with a non-granted status
//	(e) identifiers seen in source data with no mapping entry at all
func (s *LookupStore) Save(m *Mappings, cachedConsent map[string]ConsentStatus,
	hasher *hashid.Hasher, notHashed map[string]ConsentStatus) error {

	t := tabular.NewTable(lookupColumns...)
	seen := make(map[string]struct{})

	add := func(personID, original, hashed string, status ConsentStatus, fromMapping bool, idType, sourceContext string) {
		if original == "" {
			return
		}
		if _, dup := seen[original]; dup {
			return
		}
		seen[original] = struct{}{}
		from := "false"
		if fromMapping {
			from = "true"
		}
		t.AppendRow(personID, original, hashed, string(status), from, idType, sourceContext)
	}

	// (a) person hashes
	for _, person := range sortedKeys(m.Persons) {
		add(person, person, m.Persons[person], ConsentGranted, true, "", "")
	}

	// (b) granted identifier keys
	for _, key := range sortedKeys(m.IDHashes) {
		ref := m.Refs[key]
		add(ref.PersonID, ref.Original, m.IDHashes[key], ConsentGranted, true, ref.IDType, ref.SourceContext)
	}

	// (c) cached hashes still consented but not covered above
	snapshot := hasher.Snapshot()
	for _, original := range sortedKeys(snapshot) {
		if cachedConsent[original] == ConsentGranted {
			add("", original, snapshot[original], ConsentGranted, false, "", "")
		}
	}

	// (d) non-granted identifiers from the relationship table
	for _, key := range sortedKeysConsent(m.Consent) {
		status := m.Consent[key]
		if status == ConsentGranted {
			continue
		}
		ref := m.Refs[key]
		add(ref.PersonID, ref.Original, "", status, true, ref.IDType, ref.SourceContext)
	}

	// (e) identifiers seen in source files with no mapping entry
	for _, original := range sortedKeysConsent(notHashed) {
		add("", original, "", notHashed[original], false, "", "")
	}

	if err := s.store.WriteAtomic(t, s.path, s.replace); err != nil {
		return err
	}
	logger.Infow("Lookup table saved", "path", s.path, "rows", len(t.Rows))
	return nil
}

// Deterministic output order keeps lookup-table diffs reviewable.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedKeysConsent(m map[string]ConsentStatus) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
