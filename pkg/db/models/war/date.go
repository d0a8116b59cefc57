package war

import "time"

// NormalizeDate truncates a timestamp to its UTC calendar date, matching the
// precision of the Date columns.
func NormalizeDate(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
