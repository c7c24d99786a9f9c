package models

type SchemaVariant string

const (
	// VariantPriceComparison is the export keyed by Event Name with TM/SH price columns.
	VariantPriceComparison SchemaVariant = "price_comparison"
	// VariantListing is the export keyed by ID with Price/LowestStubHubPrice columns.
	VariantListing SchemaVariant = "listing"
	VariantUnknown SchemaVariant = "unknown"
)

// Logical fields a source column can map onto.
const (
	FieldID             = "id"
	FieldName           = "name"
	FieldDateTime       = "datetime"
	FieldOnSaleDate     = "on_sale_date"
	FieldLocation       = "location"
	FieldPrice          = "price"
	FieldSecondaryPrice = "secondary_price"
	FieldOOSZones       = "oos_zones"
	FieldMonitoring     = "monitoring"
)

// Schema describes which logical fields an uploaded table carries. It is
// computed once at load time and consulted by every filter and derivation.
type Schema struct {
	Variant SchemaVariant `json:"variant"`
	// Columns maps a logical field to the source header it was read from.
	Columns map[string]string `json:"columns"`
}

func (s Schema) Has(field string) bool {
	_, ok := s.Columns[field]
	return ok
}

// Column returns the source header label for field, or field itself when absent.
func (s Schema) Column(field string) string {
	if label, ok := s.Columns[field]; ok {
		return label
	}
	return field
}

func (s Schema) HasPercentage() bool {
	return s.Has(FieldPrice) && s.Has(FieldSecondaryPrice)
}

// NormalizedTable is the output of the normalize stage, before any
// instant-dependent derivation. It is what the content-hash cache stores.
type NormalizedTable struct {
	ContentHash string        `json:"content_hash"`
	Header      []string      `json:"header"`
	Schema      Schema        `json:"schema"`
	Records     []EventRecord `json:"records"`
	Advisories  []Advisory    `json:"advisories"`
}
