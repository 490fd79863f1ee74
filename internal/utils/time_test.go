package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadLocation(t *testing.T) {
	loc, err := LoadLocation("")
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	loc, err = LoadLocation("Europe/Paris")
	require.NoError(t, err)
	assert.Equal(t, "Europe/Paris", loc.String())

	_, err = LoadLocation("Mars/Olympus")
	assert.Error(t, err)
}

func TestStartOfDay(t *testing.T) {
	paris, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)

	in := time.Date(2025, 3, 14, 17, 45, 12, 0, paris)
	got := StartOfDay(in)
	assert.Equal(t, time.Date(2025, 3, 14, 0, 0, 0, 0, paris), got)
}

func TestDayString(t *testing.T) {
	paris, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)

	// 23:30 UTC on Jan 10 is already Jan 11 in Paris.
	instant := time.Date(2025, 1, 10, 23, 30, 0, 0, time.UTC)
	assert.Equal(t, "2025-01-11", DayString(instant, paris))
	assert.Equal(t, "2025-01-10", DayString(instant, time.UTC))
}

func TestCombineDayAndTime(t *testing.T) {
	paris, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)

	day := time.Date(2025, 1, 10, 0, 0, 0, 0, paris)
	got, err := CombineDayAndTime(day, "08:00", paris)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 10, 7, 0, 0, 0, time.UTC), got.UTC())

	_, err = CombineDayAndTime(day, "25:00", paris)
	assert.Error(t, err)
}

func TestParseInstant(t *testing.T) {
	now := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)

	got, err := ParseInstant("2025-01-09T08:15:00Z", now, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 9, 8, 15, 0, 0, time.UTC), got)

	got, err = ParseInstant("2025-01-09 08:15", now, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 9, 8, 15, 0, 0, time.UTC), got)

	got, err = ParseInstant("07:30", now, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 10, 7, 30, 0, 0, time.UTC), got)

	_, err = ParseInstant("yesterday", now, time.UTC)
	assert.Error(t, err)
}

func TestParseTimeToMinutes(t *testing.T) {
	m, err := ParseTimeToMinutes("08:30")
	require.NoError(t, err)
	assert.Equal(t, 510, m)
}

func TestValidateTimezone(t *testing.T) {
	assert.True(t, ValidateTimezone("Local"))
	assert.True(t, ValidateTimezone("America/New_York"))
	assert.False(t, ValidateTimezone("Nowhere/Special"))
}
