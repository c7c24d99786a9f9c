package insights

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"insights-filter/internal/models"
)

// SortField names a column the view can be ordered by.
type SortField string

const (
	SortByRow                  SortField = "row"
	SortByID                   SortField = "id"
	SortByName                 SortField = "name"
	SortByDateTime             SortField = "datetime"
	SortByOnSaleDate           SortField = "on_sale_date"
	SortByLocation             SortField = "location"
	SortByPrice                SortField = "price"
	SortBySecondaryPrice       SortField = "secondary_price"
	SortByPercentageDifference SortField = "percentage_difference"
	SortByDaysUntilEvent       SortField = "days_until_event"
	SortByZoneCount            SortField = "zone_count"
	SortByMonitoring           SortField = "monitoring"
	SortByHasSecondaryMarket   SortField = "has_secondary_market"
)

type sortKey struct {
	present bool
	isNum   bool
	num     float64
	text    string
}

var sortFields = map[SortField]bool{
	SortByRow:                  true,
	SortByID:                   true,
	SortByName:                 true,
	SortByDateTime:             true,
	SortByOnSaleDate:           true,
	SortByLocation:             true,
	SortByPrice:                true,
	SortBySecondaryPrice:       true,
	SortByPercentageDifference: true,
	SortByDaysUntilEvent:       true,
	SortByZoneCount:            true,
	SortByMonitoring:           true,
	SortByHasSecondaryMarket:   true,
}

func numKey(v float64) sortKey { return sortKey{present: true, isNum: true, num: v} }

func textKey(s string) sortKey { return sortKey{present: true, text: strings.ToLower(s)} }

func optNumKey(v *float64) sortKey {
	if v == nil {
		return sortKey{}
	}
	return numKey(*v)
}

func timeKey(t *time.Time) sortKey {
	if t == nil {
		return sortKey{}
	}
	return numKey(float64(t.UnixMilli()))
}

func keyOf(f SortField, r *models.DerivedEvent) sortKey {
	switch f {
	case SortByID:
		if v, err := strconv.ParseFloat(strings.TrimSpace(r.ID), 64); err == nil {
			return numKey(v)
		}
		return textKey(r.ID)
	case SortByName:
		return textKey(r.Name)
	case SortByLocation:
		return textKey(r.Location)
	case SortByMonitoring:
		return textKey(r.Monitoring)
	case SortByDateTime:
		return timeKey(r.DateTime)
	case SortByOnSaleDate:
		return timeKey(r.OnSaleDate)
	case SortByPrice:
		return optNumKey(r.Price)
	case SortBySecondaryPrice:
		return optNumKey(r.SecondaryPrice)
	case SortByPercentageDifference:
		return optNumKey(r.PercentageDifference)
	case SortByDaysUntilEvent:
		if r.DaysUntilEvent == nil {
			return sortKey{}
		}
		return numKey(float64(*r.DaysUntilEvent))
	case SortByZoneCount:
		return numKey(float64(r.ZoneCount))
	case SortByHasSecondaryMarket:
		if r.HasSecondaryMarket {
			return numKey(1)
		}
		return numKey(0)
	}
	return numKey(float64(r.Row))
}

// compareKeys orders two present keys. Numbers sort before text when a
// column mixes the two.
func compareKeys(a, b sortKey) int {
	switch {
	case a.isNum && b.isNum:
		switch {
		case a.num < b.num:
			return -1
		case a.num > b.num:
			return 1
		}
		return 0
	case a.isNum != b.isNum:
		if a.isNum {
			return -1
		}
		return 1
	}
	return strings.Compare(a.text, b.text)
}

// sortRows orders rows in place by field. The sort is stable and rows arrive
// in source order, so equal keys keep their source order. Absent values go
// last whatever the direction.
func sortRows(rows []ViewRow, field string, desc bool) []models.Advisory {
	var advisories []models.Advisory

	f := SortField(strings.ToLower(strings.TrimSpace(field)))
	if f == "" {
		f = SortByRow
	}
	if !sortFields[f] {
		advisories = append(advisories, models.Advisory{
			Kind:    models.AdvisoryInvalidFilterState,
			Column:  field,
			Message: fmt.Sprintf("unknown sort column %q, using source order", field),
		})
		f = SortByRow
	}

	keys := make([]sortKey, len(rows))
	for i := range rows {
		keys[i] = keyOf(f, &rows[i].DerivedEvent)
	}

	sort.Stable(&rowSorter{rows: rows, keys: keys, desc: desc})
	return advisories
}

type rowSorter struct {
	rows []ViewRow
	keys []sortKey
	desc bool
}

func (s *rowSorter) Len() int { return len(s.rows) }

func (s *rowSorter) Swap(i, j int) {
	s.rows[i], s.rows[j] = s.rows[j], s.rows[i]
	s.keys[i], s.keys[j] = s.keys[j], s.keys[i]
}

func (s *rowSorter) Less(i, j int) bool {
	a, b := s.keys[i], s.keys[j]
	if a.present != b.present {
		return a.present
	}
	if !a.present {
		return false
	}
	if s.desc {
		return compareKeys(a, b) > 0
	}
	return compareKeys(a, b) < 0
}
