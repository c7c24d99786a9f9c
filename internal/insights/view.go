package insights

import (
	"fmt"
	"time"

	"insights-filter/internal/models"
)

// ViewRow is a row that survived the filter chain, tagged with highlight membership.
type ViewRow struct {
	models.DerivedEvent
	Highlighted bool `json:"highlighted"`
}

// View is the filtered, sorted and tagged result of applying Criteria to a Table.
type View struct {
	Header      []string          `json:"header"`
	Rows        []ViewRow         `json:"rows"`
	Count       int               `json:"count"`
	Total       int               `json:"total"`
	Advisories  []models.Advisory `json:"advisories"`
	EvaluatedAt time.Time         `json:"evaluated_at"`
}

// IDs returns the ID column of the view in view order.
func (v View) IDs() []string {
	ids := make([]string, len(v.Rows))
	for i, r := range v.Rows {
		ids[i] = r.ID
	}
	return ids
}

// Apply runs the filter chain, sort and highlight tagger over the table.
// The table is left untouched; the returned view owns its row slice.
func (t *Table) Apply(c Criteria, highlights HighlightSet) View {
	filters, advisories := buildFilters(c, t.schema)

	rows := make([]ViewRow, 0, len(t.rows))
	for i := range t.rows {
		if passes(filters, &t.rows[i]) {
			rows = append(rows, ViewRow{DerivedEvent: t.rows[i]})
		}
	}

	advisories = append(advisories, sortRows(rows, c.SortBy, c.SortDesc)...)

	rows, tagAdvisories := tagHighlights(rows, highlights, c.Highlight)
	advisories = append(advisories, tagAdvisories...)

	return View{
		Header:      t.Header(),
		Rows:        rows,
		Count:       len(rows),
		Total:       len(t.rows),
		Advisories:  advisories,
		EvaluatedAt: t.evaluatedAt,
	}
}

// tagHighlights marks members of highlights and, depending on mode, keeps only
// members or only non-members. Relative order is preserved.
func tagHighlights(rows []ViewRow, highlights HighlightSet, mode HighlightMode) ([]ViewRow, []models.Advisory) {
	var advisories []models.Advisory
	if (mode == HighlightOnly || mode == HighlightExclude) && len(highlights) == 0 {
		advisories = append(advisories, models.Advisory{
			Kind:    models.AdvisoryInvalidFilterState,
			Message: fmt.Sprintf("highlight mode %q applied with an empty highlight list", mode),
		})
	}

	kept := rows[:0]
	for _, r := range rows {
		r.Highlighted = highlights.Contains(r.ID)
		switch {
		case mode == HighlightOnly && !r.Highlighted:
			continue
		case mode == HighlightExclude && r.Highlighted:
			continue
		}
		kept = append(kept, r)
	}
	return kept, advisories
}
