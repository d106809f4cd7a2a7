package engine

import (
	"testing"

	"github.com/arden-health/idveil/errors"
	"github.com/arden-health/idveil/hashid"
	"github.com/arden-health/idveil/tabular"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectSchema(t *testing.T) {
	legacy := tabular.NewTable("mrn", "study_id", "consent_status")
	kind, err := DetectSchema(legacy)
	require.NoError(t, err)
	assert.Equal(t, SchemaLegacy, kind)

	person := tabular.NewTable("person_id", "id_value", "id_type",
		"source_context", "priority", "consent_status")
	kind, err = DetectSchema(person)
	require.NoError(t, err)
	assert.Equal(t, SchemaPersonCentric, kind)
}

func TestDetectSchemaListsAllMissingColumns(t *testing.T) {
	// person_id promotes the table to person-centric and makes the
	// companion columns mandatory.
	tbl := tabular.NewTable("person_id", "id_value")
	_, err := DetectSchema(tbl)
	require.Error(t, err)
	assert.True(t, errors.IsMissingColumnError(err))
	assert.Contains(t, err.Error(), "id_type")
	assert.Contains(t, err.Error(), "source_context")
	assert.Contains(t, err.Error(), "priority")
	assert.Contains(t, err.Error(), "consent_status")
}

func TestBuildMappingsLegacy(t *testing.T) {
	tbl := tabular.NewTable("mrn", "study_id", "consent_status")
	tbl.AppendRow("MRN-1", "STU-1", "granted")
	tbl.AppendRow("MRN-2", "", "revoked")
	tbl.AppendRow("", "", "")

	hasher := hashid.New()
	r, err := NewResolver(hasher, tbl, []string{"mrn", "study_id"}, true)
	require.NoError(t, err)
	assert.Equal(t, SchemaLegacy, r.Schema())

	m := r.BuildMappings()

	// Related identifiers on one row collapse to a single hash.
	require.Contains(t, m.IDHashes, "MRN-1")
	require.Contains(t, m.IDHashes, "STU-1")
	assert.Equal(t, m.IDHashes["MRN-1"], m.IDHashes["STU-1"])
	assert.True(t, hashid.IsHash(m.IDHashes["MRN-1"]))

	// Revoked rows get a status but never a hash.
	assert.Equal(t, ConsentRevoked, m.Consent["MRN-2"])
	assert.NotContains(t, m.IDHashes, "MRN-2")

	// The empty row leaves no trace.
	assert.Len(t, m.Consent, 3)
}

func TestBuildMappingsLegacyWithoutConsentColumn(t *testing.T) {
	tbl := tabular.NewTable("mrn")
	tbl.AppendRow("MRN-1")

	m := mustResolver(t, tbl, []string{"mrn"}, true).BuildMappings()
	assert.Equal(t, ConsentGranted, m.Consent["MRN-1"])
	assert.Contains(t, m.IDHashes, "MRN-1")

	m = mustResolver(t, tbl, []string{"mrn"}, false).BuildMappings()
	assert.Equal(t, ConsentNone, m.Consent["MRN-1"])
	assert.Empty(t, m.IDHashes)
}

func TestBuildMappingsPersonCentric(t *testing.T) {
	tbl := personTable()
	tbl.AppendRow("P001", "MRN-1", "mrn", "hospital_a", "1", "granted", "2024-01-01")
	tbl.AppendRow("P001", "STU-1", "study_id", "", "1", "granted", "2024-01-01")
	tbl.AppendRow("P002", "MRN-2", "mrn", "hospital_a", "1", "revoked", "2024-01-01")

	hasher := hashid.New()
	m := mustResolverWith(t, hasher, tbl, nil, true).BuildMappings()

	// Every identifier of a granted person shares the person's hash.
	personHash := m.Persons["P001"]
	require.True(t, hashid.IsHash(personHash))
	assert.Equal(t, personHash, m.IDHashes["MRN-1_mrn_hospital_a"])
	assert.Equal(t, personHash, m.IDHashes["STU-1_study_id"])
	assert.Equal(t, hasher.Hash("P001"), personHash)

	assert.Equal(t, ConsentRevoked, m.Consent["MRN-2_mrn_hospital_a"])
	assert.NotContains(t, m.Persons, "P002")
	assert.NotContains(t, m.IDHashes, "MRN-2_mrn_hospital_a")
}

func TestBuildMappingsPersonCentricFirstRowConsentWins(t *testing.T) {
	tbl := personTable()
	tbl.AppendRow("P001", "MRN-1", "mrn", "", "1", "granted", "")
	tbl.AppendRow("P001", "STU-1", "study_id", "", "1", "revoked", "")

	m := mustResolver(t, tbl, nil, true).BuildMappings()
	assert.Equal(t, ConsentGranted, m.Consent["MRN-1_mrn"])
	assert.Equal(t, ConsentGranted, m.Consent["STU-1_study_id"])
	assert.Contains(t, m.IDHashes, "STU-1_study_id")
}

func TestResolveIDConflictsPriority(t *testing.T) {
	tbl := personTable()
	tbl.AppendRow("P001", "MRN-1", "mrn", "hospital_a", "2", "granted", "2024-06-01")
	tbl.AppendRow("P002", "MRN-1", "mrn", "hospital_b", "1", "granted", "2020-01-01")

	r := mustResolver(t, tbl, nil, true)

	// Lowest priority number wins regardless of date.
	person, ok := r.ResolveIDConflicts("MRN-1", "mrn", "")
	require.True(t, ok)
	assert.Equal(t, "P002", person)

	// A source_context narrows the candidates before ranking.
	person, ok = r.ResolveIDConflicts("MRN-1", "mrn", "hospital_a")
	require.True(t, ok)
	assert.Equal(t, "P001", person)

	_, ok = r.ResolveIDConflicts("MRN-9", "mrn", "")
	assert.False(t, ok)
}

func TestResolveIDConflictsEffectiveDateTieBreak(t *testing.T) {
	tbl := personTable()
	tbl.AppendRow("P001", "MRN-1", "mrn", "", "1", "granted", "2021-03-01")
	tbl.AppendRow("P002", "MRN-1", "mrn", "", "1", "granted", "2024-03-01")
	tbl.AppendRow("P003", "MRN-1", "mrn", "", "1", "granted", "not-a-date")

	person, ok := mustResolver(t, tbl, nil, true).ResolveIDConflicts("MRN-1", "mrn", "")
	require.True(t, ok)
	assert.Equal(t, "P002", person)
}

func TestMappingsForSource(t *testing.T) {
	tbl := personTable()
	tbl.AppendRow("P001", "MRN-1", "mrn", "hospital_a", "2", "granted", "")
	tbl.AppendRow("P002", "MRN-1", "mrn", "hospital_b", "1", "revoked", "")

	r := mustResolver(t, tbl, nil, true)
	shared := r.BuildMappings()

	// Seen from hospital_a, MRN-1 belongs to P001 and keeps P001's hash.
	m := r.MappingsForSource("mrn", "hospital_a", shared)
	require.Contains(t, m.IDHashes, "MRN-1_mrn_hospital_a")
	assert.Equal(t, shared.Persons["P001"], m.IDHashes["MRN-1_mrn_hospital_a"])

	// Without a context the higher-priority revoked person wins: no hash.
	m = r.MappingsForSource("mrn", "", shared)
	assert.Equal(t, ConsentRevoked, m.Consent["MRN-1_mrn"])
	assert.NotContains(t, m.IDHashes, "MRN-1_mrn")
}

func personTable() *tabular.Table {
	return tabular.NewTable("person_id", "id_value", "id_type",
		"source_context", "priority", "consent_status", "effective_date")
}

func mustResolver(t *testing.T, tbl *tabular.Table, idColumns []string, legacyGranted bool) *Resolver {
	t.Helper()
	return mustResolverWith(t, hashid.New(), tbl, idColumns, legacyGranted)
}

func mustResolverWith(t *testing.T, hasher *hashid.Hasher, tbl *tabular.Table,
	idColumns []string, legacyGranted bool) *Resolver {
	t.Helper()
	r, err := NewResolver(hasher, tbl, idColumns, legacyGranted)
	require.NoError(t, err)
	return r
}
