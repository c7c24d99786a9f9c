package models

import (
	"time"
)

// EventRecord is one normalized row of an uploaded event export.
// Raw* fields keep the source text so unparseable cells can still be shown.
type EventRecord struct {
	ID       string `json:"id"`
	Row      int    `json:"row"`
	Name     string `json:"name"`
	Location string `json:"location,omitempty"`

	DateTime      *time.Time `json:"datetime,omitempty"`
	RawDateTime   string     `json:"raw_datetime,omitempty"`
	OnSaleDate    *time.Time `json:"on_sale_date,omitempty"`
	RawOnSaleDate string     `json:"raw_on_sale_date,omitempty"`

	Price             *float64 `json:"price"`
	RawPrice          string   `json:"raw_price,omitempty"`
	SecondaryPrice    *float64 `json:"secondary_price"`
	RawSecondaryPrice string   `json:"raw_secondary_price,omitempty"`

	OOSZones   string `json:"oos_zones"`
	Monitoring string `json:"monitoring,omitempty"`

	// Source holds the row's cells in header order, padded to the header width.
	Source []string `json:"source,omitempty"`
}

// DerivedEvent is an EventRecord plus the columns computed at load time.
type DerivedEvent struct {
	EventRecord

	DaysUntilEvent       *int     `json:"days_until_event"`
	PercentageDifference *float64 `json:"percentage_difference"`
	HasSecondaryMarket   bool     `json:"has_secondary_market"`
	Zones                []string `json:"zones"`
	ZoneCount            int      `json:"zone_count"`
}
