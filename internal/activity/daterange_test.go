package activity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalDaysRange(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	r, err := LocalDaysRange("2024-03-05", "2024-03-07", berlin)
	require.NoError(t, err)

	assert.True(t, time.Date(2024, 3, 5, 0, 0, 0, 0, berlin).Equal(r.From))
	assert.True(t, time.Date(2024, 3, 8, 0, 0, 0, 0, berlin).Equal(r.To))
	assert.Equal(t, 3, r.Days())
	assert.True(t, r.Contains(r.From.Unix()))
	assert.False(t, r.Contains(r.To.Unix()))

	_, err = LocalDaysRange("2024-03-07", "2024-03-05", berlin)
	assert.ErrorIs(t, err, ErrEmptyRange)

	_, err = LocalDaysRange("yesterday", "2024-03-05", berlin)
	assert.Error(t, err)
}

func TestPeriodRange(t *testing.T) {
	// Wednesday
	now := time.Date(2024, 3, 6, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		period   string
		from, to time.Time
	}{
		{PeriodToday, time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC)},
		{PeriodYesterday, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC)},
		{PeriodLast7Days, time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC), now},
		{PeriodThisWeek, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)},
		{PeriodThisMonth, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.period, func(t *testing.T) {
			r, err := PeriodRange(tt.period, now, time.UTC)
			require.NoError(t, err)
			assert.True(t, tt.from.Equal(r.From), "from %s", r.From)
			assert.True(t, tt.to.Equal(r.To), "to %s", r.To)
		})
	}

	_, err := PeriodRange("fortnight", now, time.UTC)
	assert.ErrorIs(t, err, ErrUnknownPeriod)
}

func TestPeriodRange_WeekStartsMonday(t *testing.T) {
	sunday := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

	r, err := PeriodRange(PeriodThisWeek, sunday, time.UTC)
	require.NoError(t, err)

	assert.Equal(t, time.Monday, r.From.Weekday())
	assert.Equal(t, 4, r.From.Day())
}

func TestDateRange_Key(t *testing.T) {
	a := mustDays(t, "2024-03-05", "2024-03-05", time.UTC)
	b := mustDays(t, "2024-03-05", "2024-03-05", time.UTC)
	c := mustDays(t, "2024-03-05", "2024-03-06", time.UTC)

	assert.Equal(t, a.Key(), b.Key())
	assert.NotEqual(t, a.Key(), c.Key())
}
