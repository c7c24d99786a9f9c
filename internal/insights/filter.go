package insights

import (
	"fmt"
	"strings"

	"insights-filter/internal/models"
)

type predicate func(*models.DerivedEvent) bool

// buildFilters turns c into the list of active predicates. Filters that were
// requested but cannot run (missing column, min > max) are left out and
// reported as advisories instead.
func buildFilters(c Criteria, schema models.Schema) ([]predicate, []models.Advisory) {
	var (
		filters    []predicate
		advisories []models.Advisory
	)
	unavailable := func(filter, field string) {
		advisories = append(advisories, models.Advisory{
			Kind:    models.AdvisoryMissingColumn,
			Column:  schema.Column(field),
			Message: fmt.Sprintf("%s filter ignored: column not present", filter),
		})
	}
	invalid := func(filter, msg string) {
		advisories = append(advisories, models.Advisory{
			Kind:    models.AdvisoryInvalidFilterState,
			Message: fmt.Sprintf("%s filter ignored: %s", filter, msg),
		})
	}

	if needle := strings.ToLower(strings.TrimSpace(c.NameContains)); needle != "" {
		if !schema.Has(models.FieldName) {
			unavailable("name", models.FieldName)
		} else {
			filters = append(filters, func(r *models.DerivedEvent) bool {
				return strings.Contains(strings.ToLower(r.Name), needle)
			})
		}
	}

	if p := c.Percentage; p.Enabled {
		switch {
		case !schema.HasPercentage():
			unavailable("percentage difference", models.FieldSecondaryPrice)
		case p.Min != nil && p.Max != nil && *p.Min > *p.Max:
			invalid("percentage difference", fmt.Sprintf("min %.2f is greater than max %.2f", *p.Min, *p.Max))
		case p.isDefault():
		default:
			filters = append(filters, percentageFilter(p))
		}
	}

	if m := strings.TrimSpace(c.Monitoring); m != "" && !strings.EqualFold(m, "all") {
		if !schema.Has(models.FieldMonitoring) {
			unavailable("monitoring", models.FieldMonitoring)
		} else {
			filters = append(filters, func(r *models.DerivedEvent) bool {
				return r.Monitoring == m
			})
		}
	}

	if c.Secondary == SecondaryYes || c.Secondary == SecondaryNo {
		if !schema.Has(models.FieldSecondaryPrice) {
			unavailable("secondary market", models.FieldSecondaryPrice)
		} else {
			want := c.Secondary == SecondaryYes
			filters = append(filters, func(r *models.DerivedEvent) bool {
				return r.HasSecondaryMarket == want
			})
		}
	}

	if selected := zoneSet(c.Zones); len(selected) > 0 {
		if !schema.Has(models.FieldOOSZones) {
			unavailable("zone", models.FieldOOSZones)
		} else {
			filters = append(filters, func(r *models.DerivedEvent) bool {
				for _, z := range r.Zones {
					if _, ok := selected[strings.ToLower(z)]; ok {
						return true
					}
				}
				return false
			})
		}
	}

	if zc := c.ZoneCount; zc.Enabled {
		switch {
		case !schema.Has(models.FieldOOSZones):
			unavailable("zone count", models.FieldOOSZones)
		case zc.Min > zc.Max:
			invalid("zone count", fmt.Sprintf("min %d is greater than max %d", zc.Min, zc.Max))
		default:
			filters = append(filters, func(r *models.DerivedEvent) bool {
				return r.ZoneCount >= zc.Min && r.ZoneCount <= zc.Max
			})
		}
	}

	if d := c.Days; d.Enabled {
		switch {
		case !schema.Has(models.FieldDateTime):
			unavailable("days until event", models.FieldDateTime)
		case d.Threshold < 0:
			invalid("days until event", fmt.Sprintf("negative threshold %d", d.Threshold))
		default:
			filters = append(filters, daysFilter(d))
		}
	}

	return filters, advisories
}

func percentageFilter(p PercentRange) predicate {
	return func(r *models.DerivedEvent) bool {
		if r.PercentageDifference == nil {
			return false
		}
		v := *r.PercentageDifference
		if p.Min != nil && v < *p.Min {
			return false
		}
		if p.Max != nil && v > *p.Max {
			return false
		}
		return true
	}
}

// daysFilter keeps rows with an unknown day count: an unparseable date is
// not evidence that the event is out of the window.
func daysFilter(d DaysWindow) predicate {
	return func(r *models.DerivedEvent) bool {
		if r.DaysUntilEvent == nil {
			return true
		}
		days := *r.DaysUntilEvent
		if days < 0 && !d.ShowPast {
			return false
		}
		if days < 0 {
			days = -days
		}
		return days <= d.Threshold
	}
}

func zoneSet(zones []string) map[string]struct{} {
	set := make(map[string]struct{}, len(zones))
	for _, z := range zones {
		if z = strings.TrimSpace(z); z != "" {
			set[strings.ToLower(z)] = struct{}{}
		}
	}
	return set
}

func passes(filters []predicate, r *models.DerivedEvent) bool {
	for _, f := range filters {
		if !f(r) {
			return false
		}
	}
	return true
}
