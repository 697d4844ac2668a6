package performance

import (
	"testing"
	"time"

	"github.com/richxcame/fleet-performance/pkg/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveRange_DefaultsToToday(t *testing.T) {
	r, err := resolveRange(PerformanceQuery{}, testNow, time.UTC, 31)

	require.NoError(t, err)
	assert.True(t, dayStart.Equal(r.From))
	assert.True(t, dayStart.Add(24*time.Hour).Equal(r.To))
}

func TestResolveRange_ExplicitDaysInTimezone(t *testing.T) {
	r, err := resolveRange(PerformanceQuery{From: "2024-03-04", To: "2024-03-05", Timezone: "Europe/Tallinn"}, testNow, time.UTC, 31)

	require.NoError(t, err)
	tallinn, err := time.LoadLocation("Europe/Tallinn")
	require.NoError(t, err)
	assert.True(t, time.Date(2024, 3, 4, 0, 0, 0, 0, tallinn).Equal(r.From))
	assert.True(t, time.Date(2024, 3, 6, 0, 0, 0, 0, tallinn).Equal(r.To))
	assert.Equal(t, "Europe/Tallinn", r.Location.String())
}

func TestResolveRange_PeriodAndDatesAreExclusive(t *testing.T) {
	_, err := resolveRange(PerformanceQuery{Period: "today", From: "2024-03-04", To: "2024-03-05"}, testNow, time.UTC, 31)

	appErr, ok := common.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, common.CodeValidation, appErr.ErrorCode)
}

func TestValidateDay(t *testing.T) {
	r, err := resolveRange(PerformanceQuery{From: "2024-03-04", To: "2024-03-05"}, testNow, time.UTC, 31)
	require.NoError(t, err)

	assert.NoError(t, validateDay("2024-03-04", r))
	assert.NoError(t, validateDay("2024-03-05", r))

	for _, day := range []string{"2024-03-03", "2024-03-06"} {
		appErr, ok := common.AsAppError(validateDay(day, r))
		require.True(t, ok, day)
		assert.Equal(t, common.CodeDayOutOfRange, appErr.ErrorCode)
	}

	appErr, ok := common.AsAppError(validateDay("05/03/2024", r))
	require.True(t, ok)
	assert.Equal(t, common.CodeValidation, appErr.ErrorCode)
}

func TestValidateDay_LastSevenDaysIncludesStartDay(t *testing.T) {
	r, err := resolveRange(PerformanceQuery{Period: "last_7_days"}, testNow, time.UTC, 31)
	require.NoError(t, err)

	assert.NoError(t, validateDay("2024-02-27", r))
	assert.NoError(t, validateDay("2024-03-05", r))
	assert.Error(t, validateDay("2024-03-06", r))
}
