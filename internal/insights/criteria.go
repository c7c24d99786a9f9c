package insights

// SecondaryFilter selects rows by presence of a secondary-market price.
type SecondaryFilter string

const (
	SecondaryAll SecondaryFilter = "all"
	SecondaryYes SecondaryFilter = "yes"
	SecondaryNo  SecondaryFilter = "no"
)

// HighlightMode narrows a view by membership in the session's highlight list.
type HighlightMode string

const (
	HighlightAll     HighlightMode = "all"
	HighlightOnly    HighlightMode = "only"
	HighlightExclude HighlightMode = "exclude"
)

// PercentRange bounds the percentage difference, inclusive. A nil bound is
// open on that side. With both bounds nil the range is at its default and
// rows without a percentage are kept.
type PercentRange struct {
	Enabled bool     `json:"enabled"`
	Min     *float64 `json:"min,omitempty"`
	Max     *float64 `json:"max,omitempty"`
}

func (p PercentRange) isDefault() bool {
	return p.Min == nil && p.Max == nil
}

// ZoneCountRange bounds the number of out-of-stock zones, inclusive.
type ZoneCountRange struct {
	Enabled bool `json:"enabled"`
	Min     int  `json:"min" validate:"min=0"`
	Max     int  `json:"max" validate:"min=0"`
}

// DaysWindow keeps events within Threshold days of the evaluation instant.
type DaysWindow struct {
	Enabled   bool `json:"enabled"`
	Threshold int  `json:"threshold"`
	ShowPast  bool `json:"show_past"`
}

// Criteria is the full set of view options. The zero value passes every row
// through in source order.
type Criteria struct {
	NameContains string          `json:"name_contains"`
	Percentage   PercentRange    `json:"percentage"`
	Monitoring   string          `json:"monitoring"`
	Secondary    SecondaryFilter `json:"secondary" validate:"omitempty,oneof=all yes no"`
	Zones        []string        `json:"zones" validate:"omitempty,dive,max=256"`
	ZoneCount    ZoneCountRange  `json:"zone_count"`
	Days         DaysWindow      `json:"days"`

	SortBy   string `json:"sort_by" validate:"max=64"`
	SortDesc bool   `json:"sort_desc"`

	Highlight HighlightMode `json:"highlight" validate:"omitempty,oneof=all only exclude"`
}
