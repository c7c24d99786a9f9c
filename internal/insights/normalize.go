package insights

import (
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// placeholders are cell values that mean "no value" rather than a malformed one.
var placeholders = map[string]bool{
	"":     true,
	"nan":  true,
	"nat":  true,
	"n/a":  true,
	"na":   true,
	"null": true,
	"none": true,
	"-":    true,
	"--":   true,
}

// IsPlaceholder reports whether raw is blank or a conventional missing-value marker.
func IsPlaceholder(raw string) bool {
	return placeholders[strings.ToLower(strings.TrimSpace(raw))]
}

var currencyStripper = strings.NewReplacer(
	"US$", "",
	"USD", "",
	"usd", "",
	"$", "",
	"€", "",
	"£", "",
	",", "",
	" ", "",
	"\u00a0", "",
)

var dashNormalizer = strings.NewReplacer("\u2013", "-", "\u2014", "-")

// ParsePrice reads a monetary cell. Plain numbers, currency strings ("$1,200")
// and ranges ("$10-$20") are accepted; a range yields its lower bound.
// ok is false when the cell held text that is not a finite price. Blank and
// placeholder cells are absent but ok.
func ParsePrice(raw string) (price *float64, ok bool) {
	s := strings.TrimSpace(raw)
	if IsPlaceholder(s) {
		return nil, true
	}

	s = dashNormalizer.Replace(s)
	// A leading minus is a sign, not a range separator.
	if i := strings.Index(s[1:], "-"); i >= 0 {
		s = s[:i+1]
	}

	cleaned := currencyStripper.Replace(s)
	if cleaned == "" {
		return nil, false
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return nil, false
	}
	f := d.InexactFloat64()
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return nil, false
	}
	return &f, true
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006 3:04 PM",
	"1/2/2006 3:04PM",
	"1/2/2006",
	"Jan 2, 2006 3:04 PM",
	"Jan 2, 2006",
	"January 2, 2006 3:04 PM",
	"January 2, 2006",
	"Mon, Jan 2, 2006 3:04 PM",
	"Mon, Jan 2, 2006",
	"Mon Jan 2 2006 3:04 PM",
	"2 Jan 2006 15:04",
	"2 Jan 2006",
}

// ParseDateTime coerces a date cell in any of the supported layouts. Values
// without a zone are read in loc (UTC when nil). The result is in UTC.
// ok is false only for non-blank text that matched no layout.
func ParseDateTime(raw string, loc *time.Location) (t *time.Time, ok bool) {
	s := strings.TrimSpace(raw)
	if IsPlaceholder(s) {
		return nil, true
	}
	if loc == nil {
		loc = time.UTC
	}

	for _, layout := range dateLayouts {
		parsed, err := time.ParseInLocation(layout, s, loc)
		if err == nil {
			parsed = parsed.UTC()
			return &parsed, true
		}
	}
	return nil, false
}
