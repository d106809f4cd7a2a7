package engine

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/arden-health/idveil/hashid"
	"github.com/arden-health/idveil/internal/util"
	"github.com/arden-health/idveil/tabular"
)

// IdentifierRef is a decomposed correlation key: the original identifier plus
// the type/context qualifiers that scope it. Keeping the parts alongside the
// composed key avoids lossy string splitting when the lookup table is rebuilt.
type IdentifierRef struct {
	Original      string
	IDType        string
	SourceContext string
	PersonID      string // set under the person-centric schema
}

// Key composes the correlation key: identifier alone (legacy), or
// identifier_type[_context] (person-centric), omitting the context segment
// when it is blank.
func (r IdentifierRef) Key() string {
	if r.IDType == "" {
		return r.Original
	}
	if r.SourceContext == "" {
		return r.Original + "_" + r.IDType
	}
	return r.Original + "_" + r.IDType + "_" + r.SourceContext
}

// Mappings is the resolver's output: which keys hash to what, what consent
// applies to every key seen, and per-person hashes under the person-centric
// schema.
type Mappings struct {
	IDHashes map[string]string        // key → hash, granted keys only
	Consent  map[string]ConsentStatus // key → status, every key seen
	Persons  map[string]string        // person_id → hash
	Refs     map[string]IdentifierRef // key → decomposed parts
}

// NewMappings creates empty mappings.
func NewMappings() *Mappings {
	return &Mappings{
		IDHashes: make(map[string]string),
		Consent:  make(map[string]ConsentStatus),
		Persons:  make(map[string]string),
		Refs:     make(map[string]IdentifierRef),
	}
}

// MergeOverride copies other's entries in, overwriting on collision. Used to
// fold file-specific re-derivations into the shared mappings; the re-derived
// entries are more specific, so they win.
func (m *Mappings) MergeOverride(other *Mappings) {
	for k, v := range other.IDHashes {
		m.IDHashes[k] = v
	}
	for k, v := range other.Consent {
		m.Consent[k] = v
	}
	for k, v := range other.Persons {
		m.Persons[k] = v
	}
	for k, v := range other.Refs {
		m.Refs[k] = v
	}
}

// record stores one resolved identifier: consent always, hash only when granted.
func (m *Mappings) record(ref IdentifierRef, status ConsentStatus, hash string) {
	key := ref.Key()
	m.Consent[key] = status
	m.Refs[key] = ref
	if status == ConsentGranted && hash != "" {
		m.IDHashes[key] = hash
	}
}

// Resolver turns a relationship table into mappings, honoring consent and
// the table's schema.
type Resolver struct {
	hasher *hashid.Hasher
	table  *tabular.Table
	schema SchemaKind

	// legacy schema: identifier columns named by the mapping configuration
	idColumns []string
	// legacy tables without a consent_status column: treat rows as granted
	legacyDefaultGranted bool
}

// NewResolver detects the relationship table's schema and prepares a resolver.
func NewResolver(hasher *hashid.Hasher, table *tabular.Table, idColumns []string, legacyDefaultGranted bool) (*Resolver, error) {
	schema, err := DetectSchema(table)
	if err != nil {
		return nil, err
	}
	return &Resolver{
		hasher:               hasher,
		table:                table,
		schema:               schema,
		idColumns:            idColumns,
		legacyDefaultGranted: legacyDefaultGranted,
	}, nil
}

// Schema returns the detected relationship-table schema.
func (r *Resolver) Schema() SchemaKind {
	return r.schema
}

// BuildMappings resolves the whole relationship table once.
func (r *Resolver) BuildMappings() *Mappings {
	if r.schema == SchemaPersonCentric {
		return r.buildPersonCentric()
	}
	return r.buildLegacy()
}

// buildPersonCentric groups rows by person_id. One consent decision covers
// the whole group (first row wins); granted groups share one hash minted
// from the person_id itself.
func (r *Resolver) buildPersonCentric() *Mappings {
	m := NewMappings()

	var order []string
	groups := make(map[string][]int)
	for i := range r.table.Rows {
		person := strings.TrimSpace(cell(r.table, i, colPersonID))
		if util.Blank(person) {
			continue
		}
		if _, ok := groups[person]; !ok {
			order = append(order, person)
		}
		groups[person] = append(groups[person], i)
	}

	for _, person := range order {
		rows := groups[person]
		status := NormalizeConsent(cell(r.table, rows[0], colConsentStatus))

		var hash string
		if status == ConsentGranted {
			hash = r.hasher.Hash(person)
			m.Persons[person] = hash
		}

		for _, i := range rows {
			value := strings.TrimSpace(cell(r.table, i, colIDValue))
			if util.Blank(value) {
				continue
			}
			ref := IdentifierRef{
				Original:      value,
				IDType:        strings.TrimSpace(cell(r.table, i, colIDType)),
				SourceContext: strings.TrimSpace(cell(r.table, i, colSourceContext)),
				PersonID:      person,
			}
			m.record(ref, status, hash)
		}
	}
	return m
}

// buildLegacy walks the relationship table row by row. All non-empty values
// across the configured identifier columns belong to one entity; the first
// value's hash is shared by the whole row. Rows with no recognizable
// identifier are skipped silently.
func (r *Resolver) buildLegacy() *Mappings {
	m := NewMappings()
	hasConsentColumn := r.table.HasColumn(colConsentStatus)

	for i := range r.table.Rows {
		var values []string
		for _, col := range r.idColumns {
			if !r.table.HasColumn(col) {
				continue
			}
			v := strings.TrimSpace(cell(r.table, i, col))
			if !util.Blank(v) {
				values = append(values, v)
			}
		}
		if len(values) == 0 {
			continue
		}

		status := ConsentNone
		if hasConsentColumn {
			status = NormalizeConsent(cell(r.table, i, colConsentStatus))
		} else if r.legacyDefaultGranted {
			// Pre-consent tables carry no status column; refusing to hash
			// them would strand every legacy deployment.
			status = ConsentGranted
		}

		var hash string
		if status == ConsentGranted {
			hash = r.hasher.Hash(values[0])
		}
		for _, v := range values {
			m.record(IdentifierRef{Original: v}, status, hash)
		}
	}
	return m
}

// conflictCandidate is one relationship row competing to own an identifier.
type conflictCandidate struct {
	personID      string
	priority      int
	effectiveDate time.Time
	rowIndex      int
}

// ResolveIDConflicts picks the person an ambiguous (id_value, id_type) pair
// belongs to. Candidates are optionally narrowed to rows whose source_context
// matches; the lowest priority number wins, ties broken by the most recent
// effective_date. Returns false when nothing matches — an expected outcome,
// not an error.
func (r *Resolver) ResolveIDConflicts(idValue, idType, sourceContext string) (string, bool) {
	if r.schema != SchemaPersonCentric {
		return "", false
	}

	var candidates []conflictCandidate
	for i := range r.table.Rows {
		if strings.TrimSpace(cell(r.table, i, colIDValue)) != idValue {
			continue
		}
		if idType != "" && strings.TrimSpace(cell(r.table, i, colIDType)) != idType {
			continue
		}
		if sourceContext != "" &&
			strings.TrimSpace(cell(r.table, i, colSourceContext)) != sourceContext {
			continue
		}
		candidates = append(candidates, conflictCandidate{
			personID:      strings.TrimSpace(cell(r.table, i, colPersonID)),
			priority:      parsePriority(cell(r.table, i, colPriority)),
			effectiveDate: parseEffectiveDate(cell(r.table, i, colEffectiveDate)),
			rowIndex:      i,
		})
	}
	if len(candidates) == 0 {
		return "", false
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		if candidates[a].priority != candidates[b].priority {
			return candidates[a].priority < candidates[b].priority
		}
		return candidates[a].effectiveDate.After(candidates[b].effectiveDate)
	})
	return candidates[0].personID, true
}

// MappingsForSource re-derives mappings for one source file's id_type and
// source_context, resolving ambiguous identifiers through ResolveIDConflicts
// so the file's keys point at the winning person's hash.
func (r *Resolver) MappingsForSource(idType, sourceContext string, shared *Mappings) *Mappings {
	m := NewMappings()
	if r.schema != SchemaPersonCentric {
		return m
	}

	seen := make(map[string]struct{})
	for i := range r.table.Rows {
		value := strings.TrimSpace(cell(r.table, i, colIDValue))
		if util.Blank(value) {
			continue
		}
		if idType != "" && strings.TrimSpace(cell(r.table, i, colIDType)) != idType {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}

		person, ok := r.ResolveIDConflicts(value, idType, sourceContext)
		if !ok {
			continue
		}

		status := r.personConsent(person)
		ref := IdentifierRef{
			Original:      value,
			IDType:        idType,
			SourceContext: sourceContext,
			PersonID:      person,
		}
		m.record(ref, status, shared.Persons[person])
	}
	return m
}

// personConsent returns the consent of a person's first relationship row.
func (r *Resolver) personConsent(personID string) ConsentStatus {
	for i := range r.table.Rows {
		if strings.TrimSpace(cell(r.table, i, colPersonID)) == personID {
			return NormalizeConsent(cell(r.table, i, colConsentStatus))
		}
	}
	return ConsentNone
}

// parsePriority reads a priority cell; unparseable values sort last.
func parsePriority(s string) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return int(^uint(0) >> 1)
	}
	return v
}

// effectiveDateLayouts are tried in order when parsing effective_date cells.
var effectiveDateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"01/02/2006",
}

// parseEffectiveDate reads an effective_date cell; unparseable values sort oldest.
func parseEffectiveDate(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range effectiveDateLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts
		}
	}
	return time.Time{}
}
