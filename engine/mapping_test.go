package engine

import (
	"testing"

	"github.com/arden-health/idveil/errors"
	"github.com/arden-health/idveil/tabular"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMappingTable(t *testing.T) {
	tbl := tabular.NewTable("mapping_file", "mapping_id", "source_file", "source_id")
	tbl.AppendRow("rel.csv", "id_value", "visits.csv", "mrn")
	tbl.AppendRow("rel.csv", "id_value", "labs.csv", "patient_id")

	rows, err := parseMappingTable(tbl)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "visits.csv", rows[0].SourceFile)
	assert.Equal(t, "mrn", rows[0].SourceID)
	assert.False(t, rows[0].Processed)

	// A missing processed column is appended so progress can be persisted.
	require.True(t, tbl.HasColumn("processed"))
	v, err := tbl.Cell(0, "processed")
	require.NoError(t, err)
	assert.Equal(t, "false", v)
}

func TestParseMappingTableMissingColumns(t *testing.T) {
	tbl := tabular.NewTable("mapping_file", "source_file")
	tbl.AppendRow("rel.csv", "visits.csv")

	_, err := parseMappingTable(tbl)
	require.Error(t, err)
	assert.True(t, errors.IsMissingColumnError(err))
	assert.Contains(t, err.Error(), "mapping_id")
	assert.Contains(t, err.Error(), "source_id")
}

func TestParseMappingTableProcessedEncodings(t *testing.T) {
	tbl := tabular.NewTable("mapping_file", "mapping_id", "source_file", "source_id", "processed")
	tbl.AppendRow("rel.csv", "id_value", "a.csv", "mrn", "True")
	tbl.AppendRow("rel.csv", "id_value", "b.csv", "mrn", "1.0")
	tbl.AppendRow("rel.csv", "id_value", "c.csv", "mrn", "no")
	tbl.AppendRow("rel.csv", "id_value", "d.csv", "mrn", "")

	rows, err := parseMappingTable(tbl)
	require.NoError(t, err)
	assert.True(t, rows[0].Processed)
	assert.True(t, rows[1].Processed)
	assert.False(t, rows[2].Processed)
	assert.False(t, rows[3].Processed)
}

func TestParseMappingTableOptionalColumns(t *testing.T) {
	tbl := tabular.NewTable("mapping_file", "mapping_id", "source_file", "source_id", "id_type", "source_context")
	tbl.AppendRow("rel.csv", "id_value", "visits.csv", "mrn", "mrn", "hospital_a")
	tbl.AppendRow("rel.csv", "id_value", "labs.csv", "patient_id", " study_id ", "")

	rows, err := parseMappingTable(tbl)
	require.NoError(t, err)
	assert.Equal(t, "mrn", rows[0].IDType)
	assert.Equal(t, "hospital_a", rows[0].SourceContext)
	assert.Equal(t, "study_id", rows[1].IDType)
	assert.Empty(t, rows[1].SourceContext)
}

func TestMappingIDColumns(t *testing.T) {
	rows := []MappingRow{
		{MappingID: "mrn"},
		{MappingID: "study_id"},
		{MappingID: "mrn"},
		{MappingID: " "},
	}
	assert.Equal(t, []string{"mrn", "study_id"}, mappingIDColumns(rows))
}

func TestNormalizeConsent(t *testing.T) {
	assert.Equal(t, ConsentGranted, NormalizeConsent(" Granted "))
	assert.Equal(t, ConsentRevoked, NormalizeConsent("REVOKED"))
	assert.Equal(t, ConsentIDNotFound, NormalizeConsent("ID Not Found"))
	assert.Equal(t, ConsentNone, NormalizeConsent(""))
	assert.Equal(t, ConsentNone, NormalizeConsent("maybe"))
}
