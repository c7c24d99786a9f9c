package insights

import (
	"sort"
	"strings"
	"time"

	"insights-filter/internal/models"
)

// Table holds one upload's normalized and derived rows. It is never mutated
// after NewTable returns, so Apply may run concurrently on the same table.
type Table struct {
	contentHash      string
	header           []string
	schema           models.Schema
	rows             []models.DerivedEvent
	advisories       []models.Advisory
	zoneVocabulary   []string
	monitoringValues []string
	evaluatedAt      time.Time
}

// TableSummary is the client-facing description of a loaded table.
type TableSummary struct {
	ContentHash        string            `json:"content_hash"`
	Rows               int               `json:"rows"`
	Header             []string          `json:"header"`
	Schema             models.Schema     `json:"schema"`
	Advisories         []models.Advisory `json:"advisories"`
	ZoneVocabularySize int               `json:"zone_vocabulary_size"`
	EvaluatedAt        time.Time         `json:"evaluated_at"`
}

// NewTable derives every row of nt at the instant now and builds the
// zone and monitoring vocabularies.
func NewTable(nt *models.NormalizedTable, now time.Time) *Table {
	t := &Table{
		contentHash: nt.ContentHash,
		header:      append([]string(nil), nt.Header...),
		schema:      nt.Schema,
		rows:        make([]models.DerivedEvent, 0, len(nt.Records)),
		advisories:  append([]models.Advisory(nil), nt.Advisories...),
		evaluatedAt: now,
	}

	zones := map[string]struct{}{}
	seenMonitoring := map[string]struct{}{}
	for _, rec := range nt.Records {
		d := Derive(rec, now)
		t.rows = append(t.rows, d)

		for _, z := range d.Zones {
			zones[z] = struct{}{}
		}
		if t.schema.Has(models.FieldMonitoring) {
			if _, ok := seenMonitoring[d.Monitoring]; !ok {
				seenMonitoring[d.Monitoring] = struct{}{}
				t.monitoringValues = append(t.monitoringValues, d.Monitoring)
			}
		}
	}

	t.zoneVocabulary = make([]string, 0, len(zones))
	for z := range zones {
		t.zoneVocabulary = append(t.zoneVocabulary, z)
	}
	sort.Strings(t.zoneVocabulary)
	return t
}

func (t *Table) ContentHash() string { return t.contentHash }

func (t *Table) Schema() models.Schema { return t.schema }

func (t *Table) Len() int { return len(t.rows) }

func (t *Table) EvaluatedAt() time.Time { return t.evaluatedAt }

func (t *Table) Header() []string { return append([]string(nil), t.header...) }

func (t *Table) Advisories() []models.Advisory {
	return append([]models.Advisory(nil), t.advisories...)
}

// Rows returns a copy of the derived rows in source order.
func (t *Table) Rows() []models.DerivedEvent {
	return append([]models.DerivedEvent(nil), t.rows...)
}

// ZoneVocabulary lists the distinct zone labels, sorted, narrowed to those
// containing search (case-insensitive). An empty search returns all of them.
func (t *Table) ZoneVocabulary(search string) []string {
	needle := strings.ToLower(strings.TrimSpace(search))
	out := make([]string, 0, len(t.zoneVocabulary))
	for _, z := range t.zoneVocabulary {
		if needle == "" || strings.Contains(strings.ToLower(z), needle) {
			out = append(out, z)
		}
	}
	return out
}

// MonitoringValues lists the distinct monitoring labels in first-seen order.
// It is empty when the table has no monitoring column.
func (t *Table) MonitoringValues() []string {
	return append([]string(nil), t.monitoringValues...)
}

func (t *Table) Summary() TableSummary {
	return TableSummary{
		ContentHash:        t.contentHash,
		Rows:               len(t.rows),
		Header:             t.Header(),
		Schema:             t.schema,
		Advisories:         t.Advisories(),
		ZoneVocabularySize: len(t.zoneVocabulary),
		EvaluatedAt:        t.evaluatedAt,
	}
}
