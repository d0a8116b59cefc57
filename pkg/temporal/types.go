package temporal

import (
	"time"

	"go.temporal.io/sdk/client"
)

// DefaultNamespace is the Temporal namespace used by the tracker deployment.
const DefaultNamespace = "wartracker"

// Queue names. One namespace covers the whole deployment, so queues separate
// periodic work from operator-triggered work instead of separating tenants.
const (
	QueueTracker = "tracker"
	QueueOps     = "ops"
)

// Schedule IDs
const (
	ScheduleFetchCycle    = "fetchcycle"
	ScheduleDailySnapshot = "dailysnapshot"
)

// Workflow ID patterns
const (
	WorkflowIDFetchCycle    = "fetch-cycle:%s"    // clan tag
	WorkflowIDDailySnapshot = "daily-snapshot:%s" // UTC date
	WorkflowIDBackfill      = "backfill:%s:%d"    // clan tag, request unix time
)

// Schedule spec helper functions (shared across apps)

// GetScheduleSpec returns a schedule spec for the given interval.
func GetScheduleSpec(interval time.Duration) client.ScheduleSpec {
	return client.ScheduleSpec{Intervals: []client.ScheduleIntervalSpec{{Every: interval}}}
}

// OneHourSpec returns a schedule spec for one hour, the default fetch cadence.
func OneHourSpec() client.ScheduleSpec {
	return GetScheduleSpec(time.Hour)
}

// DailyAtHourSpec returns a calendar spec firing once per day at the given
// UTC hour. Hours outside 0..23 wrap into range.
func DailyAtHourSpec(hour int) client.ScheduleSpec {
	hour = ((hour % 24) + 24) % 24
	return client.ScheduleSpec{
		Calendars: []client.ScheduleCalendarSpec{{
			Hour:   []client.ScheduleRange{{Start: hour}},
			Minute: []client.ScheduleRange{{Start: 0}},
		}},
		TimeZoneName: "UTC",
	}
}
