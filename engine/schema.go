package engine

import (
	"strings"

	"github.com/arden-health/idveil/errors"
	"github.com/arden-health/idveil/tabular"
)

// Relationship-table column names.
const (
	colPersonID      = "person_id"
	colIDValue       = "id_value"
	colIDType        = "id_type"
	colSourceContext = "source_context"
	colPriority      = "priority"
	colConsentStatus = "consent_status"
	colEffectiveDate = "effective_date"
)

// SchemaKind tags the two relationship-table shapes.
type SchemaKind int

const (
	// SchemaLegacy groups related identifiers on one row, in columns named by
	// the mapping configuration's mapping_id values.
	SchemaLegacy SchemaKind = iota

	// SchemaPersonCentric groups identifiers under an explicit person_id,
	// one identifier per row.
	SchemaPersonCentric
)

func (k SchemaKind) String() string {
	if k == SchemaPersonCentric {
		return "person-centric"
	}
	return "legacy"
}

// personCentricColumns must all be present once person_id is.
var personCentricColumns = []string{
	colIDValue, colIDType, colSourceContext, colPriority, colConsentStatus,
}

// DetectSchema resolves the relationship table's shape once, up front.
// A person_id column selects the person-centric schema and makes its
// companion columns mandatory; anything else is the legacy shape.
func DetectSchema(t *tabular.Table) (SchemaKind, error) {
	if !t.HasColumn(colPersonID) {
		return SchemaLegacy, nil
	}

	var missing []string
	for _, c := range personCentricColumns {
		if !t.HasColumn(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return SchemaPersonCentric, errors.NewMissingColumnError(
			"person-centric mapping table is missing required columns: %s",
			strings.Join(missing, ", "))
	}
	return SchemaPersonCentric, nil
}
