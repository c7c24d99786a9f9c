package insights

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"insights-filter/internal/models"
)

var evalAt = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func TestDaysUntil(t *testing.T) {
	assert.Equal(t, 10, *DaysUntil(ptr(evalAt.Add(10*24*time.Hour)), evalAt))
	assert.Equal(t, 0, *DaysUntil(ptr(evalAt.Add(23*time.Hour)), evalAt))
	assert.Equal(t, -1, *DaysUntil(ptr(evalAt.Add(-time.Hour)), evalAt), "any past instant is negative")
	assert.Equal(t, -1, *DaysUntil(ptr(evalAt.Add(-time.Nanosecond)), evalAt))
	assert.Nil(t, DaysUntil(nil, evalAt))
}

func TestDaysUntil_FarFutureIsNotClamped(t *testing.T) {
	far := time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)
	want := int((far.Unix() - evalAt.Unix()) / 86400)
	got := DaysUntil(&far, evalAt)
	require.NotNil(t, got)
	assert.Equal(t, want, *got)
	assert.Greater(t, *got, 292*366)

	past := time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Less(t, *DaysUntil(&past, evalAt), -700000)
}

func TestPercentageDifference(t *testing.T) {
	assert.InDelta(t, 50.0, *PercentageDifference(ptr(10.0), ptr(15.0)), 1e-9)
	assert.InDelta(t, -25.0, *PercentageDifference(ptr(40.0), ptr(30.0)), 1e-9)
	assert.Nil(t, PercentageDifference(nil, ptr(25.0)))
	assert.Nil(t, PercentageDifference(ptr(0.0), ptr(25.0)))
	assert.Nil(t, PercentageDifference(ptr(10.0), nil))
}

func TestPercentageAbsentIffInputsMissing(t *testing.T) {
	prices := []*float64{nil, ptr(0.0), ptr(12.5), ptr(-3.0)}
	for _, p := range prices {
		for _, s := range prices {
			d := Derive(models.EventRecord{Price: p, SecondaryPrice: s}, evalAt)
			wantAbsent := p == nil || *p == 0 || s == nil
			assert.Equal(t, wantAbsent, d.PercentageDifference == nil)
			assert.Equal(t, s != nil, d.HasSecondaryMarket)
		}
	}
}

func TestDerive_Examples(t *testing.T) {
	d := Derive(models.EventRecord{SecondaryPrice: ptr(25.0)}, evalAt)
	assert.Nil(t, d.PercentageDifference)
	assert.True(t, d.HasSecondaryMarket)

	d = Derive(models.EventRecord{OOSZones: "A, B,  C"}, evalAt)
	assert.Equal(t, []string{"A", "B", "C"}, d.Zones)
	assert.Equal(t, 3, d.ZoneCount)
}

func TestDerive_IsDeterministic(t *testing.T) {
	rec := models.EventRecord{
		DateTime:       ptr(evalAt.Add(72 * time.Hour)),
		Price:          ptr(20.0),
		SecondaryPrice: ptr(30.0),
		OOSZones:       "X,Y",
	}
	require.Equal(t, Derive(rec, evalAt), Derive(rec, evalAt))
}

func TestZones(t *testing.T) {
	assert.Nil(t, SplitZones("  "))
	assert.Equal(t, 1, CountZones(""), "a blank field is one empty token")
	assert.Equal(t, 1, CountZones("  "))
	assert.Equal(t, []string{"A", "B"}, SplitZones("A,,B"))
	assert.Equal(t, 3, CountZones("A,,B"), "empty parts are counted")
	assert.Equal(t, 1, CountZones("Floor"))
}
