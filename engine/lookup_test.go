package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/arden-health/idveil/hashid"
	"github.com/arden-health/idveil/tabular"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLookupStore(t *testing.T) *LookupStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "id_lookup_table.csv")
	return NewLookupStore(tabular.NewStore(), path, tabular.ReplaceOptions{MaxAttempts: 3})
}

func TestLookupLoadMissingFile(t *testing.T) {
	s := newTestLookupStore(t)
	hasher := hashid.New()
	consent := s.Load(hasher)
	assert.Empty(t, consent)
	assert.Empty(t, hasher.Snapshot())
}

func TestLookupSaveLoadRoundTrip(t *testing.T) {
	s := newTestLookupStore(t)
	hasher := hashid.New()

	m := NewMappings()
	m.Persons["P001"] = hasher.Hash("P001")
	m.record(IdentifierRef{
		Original: "MRN-1", IDType: "mrn", SourceContext: "hospital_a", PersonID: "P001",
	}, ConsentGranted, m.Persons["P001"])
	m.record(IdentifierRef{
		Original: "MRN-2", IDType: "mrn", PersonID: "P002",
	}, ConsentRevoked, "")

	notHashed := map[string]ConsentStatus{"MRN-9": ConsentIDNotFound}
	require.NoError(t, s.Save(m, nil, hasher, notHashed))

	fresh := hashid.New()
	consent := s.Load(fresh)

	assert.Equal(t, ConsentGranted, consent["P001"])
	assert.Equal(t, ConsentGranted, consent["MRN-1"])
	assert.Equal(t, ConsentRevoked, consent["MRN-2"])
	assert.Equal(t, ConsentIDNotFound, consent["MRN-9"])

	// Hashes survive the round trip: the next run mints nothing new.
	personHash, ok := fresh.Cached("P001")
	require.True(t, ok)
	assert.Equal(t, m.Persons["P001"], personHash)
	idHash, ok := fresh.Cached("MRN-1")
	require.True(t, ok)
	assert.Equal(t, m.Persons["P001"], idHash)
	_, ok = fresh.Cached("MRN-2")
	assert.False(t, ok)
}

func TestLookupSaveFirstWriterWins(t *testing.T) {
	s := newTestLookupStore(t)
	hasher := hashid.New()

	// P001 appears both as a person and as a plain identifier key; the
	// person entry is written first and the duplicate is dropped.
	m := NewMappings()
	m.Persons["P001"] = hasher.Hash("P001")
	m.record(IdentifierRef{Original: "P001"}, ConsentGranted, m.Persons["P001"])

	require.NoError(t, s.Save(m, nil, hasher, nil))

	tbl, err := tabular.NewStore().Read(s.Path())
	require.NoError(t, err)
	require.Len(t, tbl.Rows, 1)
	v, _ := tbl.Cell(0, "person_id")
	assert.Equal(t, "P001", v)
	from, _ := tbl.Cell(0, "from_mapping")
	assert.Equal(t, "true", from)
}

func TestLookupSaveCarriesCachedConsentedHashes(t *testing.T) {
	s := newTestLookupStore(t)
	hasher := hashid.New()

	// Identifier hashed in a previous run but absent from this run's
	// relationship table: kept as long as its recorded consent is granted.
	hasher.Seed("OLD-1", hasher.Hash("OLD-1"))
	hasher.Seed("OLD-2", hasher.Hash("OLD-2"))
	cached := map[string]ConsentStatus{
		"OLD-1": ConsentGranted,
		"OLD-2": ConsentRevoked,
	}

	require.NoError(t, s.Save(NewMappings(), cached, hasher, nil))

	fresh := hashid.New()
	consent := s.Load(fresh)
	assert.Equal(t, ConsentGranted, consent["OLD-1"])
	_, ok := fresh.Cached("OLD-1")
	assert.True(t, ok)
	assert.NotContains(t, consent, "OLD-2")
}

func TestLookupSaveDeterministicOrder(t *testing.T) {
	s := newTestLookupStore(t)
	hasher := hashid.New()

	m := NewMappings()
	for _, id := range []string{"B", "A", "C"} {
		m.record(IdentifierRef{Original: id}, ConsentRevoked, "")
	}
	require.NoError(t, s.Save(m, nil, hasher, nil))
	first, err := os.ReadFile(s.Path())
	require.NoError(t, err)

	require.NoError(t, s.Save(m, nil, hasher, nil))
	second, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
