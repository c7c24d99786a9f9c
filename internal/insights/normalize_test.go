package insights

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		raw    string
		want   *float64
		wantOK bool
	}{
		{"10", ptr(10.0), true},
		{"$10-$20", ptr(10.0), true},
		{"$10 – $20", ptr(10.0), true},
		{"$1,200.50", ptr(1200.5), true},
		{" USD 45 ", ptr(45.0), true},
		{"-5", ptr(-5.0), true},
		{"0", ptr(0.0), true},
		{"", nil, true},
		{"NaN", nil, true},
		{"n/a", nil, true},
		{"--", nil, true},
		{"sold out", nil, false},
		{"$", nil, false},
		{"1e400", nil, false},
		{"-1e400", nil, false},
		{"1e2", ptr(100.0), true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := ParsePrice(tt.raw)
			assert.Equal(t, tt.wantOK, ok)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tt.want, *got, 1e-9)
		})
	}
}

func TestParseDateTime(t *testing.T) {
	utc := func(y int, m time.Month, d, h, min int) time.Time {
		return time.Date(y, m, d, h, min, 0, 0, time.UTC)
	}
	tests := []struct {
		raw  string
		want time.Time
	}{
		{"2026-10-25", utc(2026, 10, 25, 0, 0)},
		{"2026-10-25 19:30", utc(2026, 10, 25, 19, 30)},
		{"2026-10-25T19:30:00Z", utc(2026, 10, 25, 19, 30)},
		{"2026-10-25T19:30:00-04:00", utc(2026, 10, 25, 23, 30)},
		{"10/25/2026 7:30 PM", utc(2026, 10, 25, 19, 30)},
		{"10/25/2026", utc(2026, 10, 25, 0, 0)},
		{"Oct 25, 2026 7:30 PM", utc(2026, 10, 25, 19, 30)},
		{"Sun, Oct 25, 2026 7:30 PM", utc(2026, 10, 25, 19, 30)},
		{"25 Oct 2026", utc(2026, 10, 25, 0, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := ParseDateTime(tt.raw, nil)
			require.True(t, ok)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestParseDateTime_Absent(t *testing.T) {
	got, ok := ParseDateTime("NaT", time.UTC)
	assert.True(t, ok)
	assert.Nil(t, got)

	got, ok = ParseDateTime("next tuesday", time.UTC)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestIsPlaceholder(t *testing.T) {
	for _, s := range []string{"", "  ", "nan", "NaN", "None", "null", "N/A", "-"} {
		assert.True(t, IsPlaceholder(s), s)
	}
	for _, s := range []string{"0", "A", "none yet"} {
		assert.False(t, IsPlaceholder(s), s)
	}
}
