package shared

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonthWindowLeapFebruary(t *testing.T) {
	w, err := MonthWindow("2024-02")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), w.From)
	assert.Equal(t, time.Date(2024, 2, 29, 23, 59, 59, int(999*time.Millisecond), time.UTC), w.To)
	assert.False(t, w.Contains(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
	assert.False(t, w.Contains(time.Date(2024, 1, 31, 23, 59, 59, 0, time.UTC)))
}

func TestDayWindow(t *testing.T) {
	w, err := DayWindow("2024-05-10")
	require.NoError(t, err)
	assert.True(t, w.Contains(time.Date(2024, 5, 10, 23, 59, 59, 0, time.UTC)))
	assert.False(t, w.Contains(time.Date(2024, 5, 11, 0, 0, 0, 0, time.UTC)))

	_, err = DayWindow("10-05-2024")
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = DayWindow("2024-02-30")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestRangeWindow(t *testing.T) {
	w, err := RangeWindow("2024-01-01", "2024-01-31")
	require.NoError(t, err)
	assert.True(t, w.Contains(time.Date(2024, 1, 31, 12, 0, 0, 0, time.UTC)))

	_, err = RangeWindow("2024-02-01", "2024-01-01")
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = RangeWindow("2024-02-01", "nope")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestMonthWindowRejectsGarbage(t *testing.T) {
	_, err := MonthWindow("2024-13")
	require.ErrorIs(t, err, ErrInvalidInput)
}
