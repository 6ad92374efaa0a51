// Package timekit converts between local wall-clock periods and the UTC
// ranges used in WHERE clauses on UTC-stored timestamps.
package timekit

import (
	"fmt"
	"time"
)

// NowLocal returns the current wall-clock time in loc.
func NowLocal(loc *time.Location) time.Time {
	return time.Now().In(loc)
}

// TodayRangeUTC returns the [start, end) of "today" in loc, expressed in UTC.
func TodayRangeUTC(loc *time.Location) (time.Time, time.Time) {
	return DayRangeUTC(NowLocal(loc), loc)
}

// DayRangeUTC returns the [start, end) of the calendar day containing d in
// loc, expressed in UTC.
func DayRangeUTC(d time.Time, loc *time.Location) (time.Time, time.Time) {
	local := d.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start.UTC(), start.AddDate(0, 0, 1).UTC()
}

// DaysAgoUTC returns the UTC instant of local midnight n days ago.
func DaysAgoUTC(n int, loc *time.Location) time.Time {
	local := NowLocal(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start.AddDate(0, 0, -n).UTC()
}

// FormatDT renders a timestamp as "2006-01-02 15:04" in loc.
func FormatDT(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02 15:04")
}

// FormatDuration renders minutes as "Xh Ym". Negative input is clamped.
func FormatDuration(minutes float64) string {
	if minutes < 0 {
		minutes = 0
	}
	total := int(minutes)
	h, m := total/60, total%60
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
