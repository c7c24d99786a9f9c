package loader

import (
	"fmt"
	"strings"

	"insights-filter/internal/models"
)

// DefaultMaxAdvisories bounds the advisories kept per load.
const DefaultMaxAdvisories = 500

// headerAliases maps a lowercased, trimmed source header onto a logical field.
var headerAliases = map[string]string{
	"id":                   models.FieldID,
	"name":                 models.FieldName,
	"event name":           models.FieldName,
	"datetime":             models.FieldDateTime,
	"date time":            models.FieldDateTime,
	"event date":           models.FieldDateTime,
	"on sale date":         models.FieldOnSaleDate,
	"onsaledate":           models.FieldOnSaleDate,
	"location":             models.FieldLocation,
	"venue":                models.FieldLocation,
	"price":                models.FieldPrice,
	"tm price":             models.FieldPrice,
	"loweststubhubprice":   models.FieldSecondaryPrice,
	"lowest stubhub price": models.FieldSecondaryPrice,
	"sh price":             models.FieldSecondaryPrice,
	"ooszones":             models.FieldOOSZones,
	"oos zones":            models.FieldOOSZones,
	"monitoring":           models.FieldMonitoring,
}

var (
	priceComparisonFields = []string{
		models.FieldName, models.FieldDateTime, models.FieldOnSaleDate,
		models.FieldPrice, models.FieldSecondaryPrice, models.FieldOOSZones, models.FieldMonitoring,
	}
	listingFields = []string{
		models.FieldID, models.FieldName, models.FieldDateTime, models.FieldLocation,
		models.FieldPrice, models.FieldSecondaryPrice, models.FieldOOSZones, models.FieldMonitoring,
	}
)

// detectSchema maps header labels to logical fields. The first header that
// claims a field wins. It returns the schema and the column index per field.
func detectSchema(header []string) (models.Schema, map[string]int) {
	schema := models.Schema{Columns: map[string]string{}}
	index := map[string]int{}

	for i, label := range header {
		key := strings.ToLower(strings.Join(strings.Fields(label), " "))
		field, ok := headerAliases[key]
		if !ok {
			continue
		}
		if _, taken := index[field]; taken {
			continue
		}
		index[field] = i
		schema.Columns[field] = label
	}

	schema.Variant = detectVariant(header)
	return schema, index
}

func detectVariant(header []string) models.SchemaVariant {
	labels := map[string]bool{}
	for _, label := range header {
		labels[strings.ToLower(strings.Join(strings.Fields(label), " "))] = true
	}
	switch {
	case labels["tm price"] || labels["sh price"] || labels["event name"]:
		return models.VariantPriceComparison
	case labels["id"] || labels["loweststubhubprice"] || labels["lowest stubhub price"]:
		return models.VariantListing
	default:
		return models.VariantUnknown
	}
}

func expectedFields(v models.SchemaVariant) []string {
	switch v {
	case models.VariantPriceComparison:
		return priceComparisonFields
	case models.VariantListing:
		return listingFields
	default:
		// Without a recognizable layout only the fields the filters hang off are reported.
		return []string{models.FieldName, models.FieldDateTime, models.FieldPrice, models.FieldSecondaryPrice, models.FieldOOSZones, models.FieldMonitoring}
	}
}

func missingColumnMessage(field string) string {
	switch field {
	case models.FieldName:
		return "no name column, name search disabled"
	case models.FieldDateTime:
		return "no event date column, days-until-event and days filter disabled"
	case models.FieldPrice, models.FieldSecondaryPrice:
		return fmt.Sprintf("no %s column, percentage difference and related filters limited", strings.ReplaceAll(field, "_", " "))
	case models.FieldOOSZones:
		return "no OOSZones column, zone filters disabled"
	case models.FieldMonitoring:
		return "no monitoring column, monitoring filter disabled"
	case models.FieldID:
		return "no ID column, row numbers used as identifiers"
	default:
		return fmt.Sprintf("no %s column", strings.ReplaceAll(field, "_", " "))
	}
}

// advisoryCollector keeps the first max advisories and summarizes the rest.
type advisoryCollector struct {
	max     int
	items   []models.Advisory
	dropped int
}

func newAdvisoryCollector(max int) *advisoryCollector {
	if max <= 0 {
		max = DefaultMaxAdvisories
	}
	return &advisoryCollector{max: max}
}

func (c *advisoryCollector) add(a models.Advisory) {
	if len(c.items) >= c.max {
		c.dropped++
		return
	}
	c.items = append(c.items, a)
}

func (c *advisoryCollector) result() []models.Advisory {
	if c.dropped == 0 {
		return c.items
	}
	return append(c.items, models.Advisory{
		Kind:    models.AdvisoryMalformedField,
		Message: fmt.Sprintf("%d further advisories suppressed", c.dropped),
	})
}
