package insights

import (
	"math"
	"strings"
	"time"

	"insights-filter/internal/models"
)

// Derive computes the load-time columns for rec at the instant now. It is a
// pure function: the same record and instant always give the same result.
func Derive(rec models.EventRecord, now time.Time) models.DerivedEvent {
	return models.DerivedEvent{
		EventRecord:          rec,
		DaysUntilEvent:       DaysUntil(rec.DateTime, now),
		PercentageDifference: PercentageDifference(rec.Price, rec.SecondaryPrice),
		HasSecondaryMarket:   rec.SecondaryPrice != nil,
		Zones:                SplitZones(rec.OOSZones),
		ZoneCount:            CountZones(rec.OOSZones),
	}
}

// DaysUntil returns the whole days from now to at, floored so that any past
// instant is negative. Nil when at is unknown.
func DaysUntil(at *time.Time, now time.Time) *int {
	if at == nil {
		return nil
	}
	// Unix seconds do not saturate the way time.Duration does past ~292 years.
	secs := at.Unix() - now.Unix()
	if at.Nanosecond() < now.Nanosecond() {
		secs--
	}
	days := int(floorDiv(secs, 24*60*60))
	return &days
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// PercentageDifference is (secondary - price) / price * 100, or nil when
// either side is missing or price is zero.
func PercentageDifference(price, secondary *float64) *float64 {
	if price == nil || secondary == nil || *price == 0 {
		return nil
	}
	pct := (*secondary - *price) / *price * 100
	if math.IsNaN(pct) || math.IsInf(pct, 0) {
		return nil
	}
	return &pct
}

// SplitZones returns the trimmed, non-empty zone labels of a comma-separated field.
func SplitZones(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	zones := make([]string, 0, len(parts))
	for _, p := range parts {
		if z := strings.TrimSpace(p); z != "" {
			zones = append(zones, z)
		}
	}
	return zones
}

// CountZones counts the comma-separated parts of raw, empty parts included,
// so a blank field is one empty token. Membership uses SplitZones instead.
func CountZones(raw string) int {
	return len(strings.Split(raw, ","))
}
