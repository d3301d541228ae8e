package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartOfDay_NormalizesToUTCMidnight(t *testing.T) {
	loc := time.FixedZone("ART", -3*60*60)
	// 22:30 local on the 9th is 01:30 UTC on the 10th.
	ts := time.Date(2026, 3, 9, 22, 30, 0, 0, loc)

	got := StartOfDay(ts)

	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), got)
}

func TestDayRange_IsHalfOpen(t *testing.T) {
	start, end := DayRange(time.Date(2026, 3, 10, 23, 59, 59, 0, time.UTC))

	assert.Equal(t, Day, end.Sub(start))
	assert.True(t, SameDay(start, time.Date(2026, 3, 10, 23, 59, 59, 999, time.UTC)))
	assert.False(t, SameDay(start, end))
}

func TestParseDay(t *testing.T) {
	d, err := ParseDay("2026-03-10")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), d)

	d, err = ParseDay("2026-03-10T18:04:05-05:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), d)

	_, err = ParseDay("10/03/2026")
	assert.Error(t, err)
}

func TestFixed_Advance(t *testing.T) {
	c := NewFixed(time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC))
	before := Today(c)

	c.Advance(2 * time.Hour)

	assert.Equal(t, before.Add(Day), Today(c))
}
