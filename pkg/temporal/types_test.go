package temporal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDailyAtHourSpec(t *testing.T) {
	tests := []struct {
		name string
		hour int
		want int
	}{
		{"midnight", 0, 0},
		{"morning", 6, 6},
		{"last_hour", 23, 23},
		{"wraps_past_midnight", 24, 0},
		{"wraps_negative", -1, 23},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := DailyAtHourSpec(tt.hour)
			require.Len(t, spec.Calendars, 1)
			require.Len(t, spec.Calendars[0].Hour, 1)
			assert.Equal(t, tt.want, spec.Calendars[0].Hour[0].Start)
			assert.Equal(t, "UTC", spec.TimeZoneName)
		})
	}
}

func TestGetScheduleSpec(t *testing.T) {
	spec := GetScheduleSpec(90 * time.Minute)
	require.Len(t, spec.Intervals, 1)
	assert.Equal(t, 90*time.Minute, spec.Intervals[0].Every)
}

func TestWorkflowIDs(t *testing.T) {
	c := &Client{}

	assert.Equal(t, "fetch-cycle:#ABC123", c.GetFetchCycleWorkflowID("#ABC123"))

	date := time.Date(2026, 8, 24, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, "daily-snapshot:2026-08-24", c.GetDailySnapshotWorkflowID(date))

	at := time.Unix(1756000000, 0)
	assert.Equal(t, "backfill:#ABC123:1756000000", c.GetBackfillWorkflowID("#ABC123", at))
}
