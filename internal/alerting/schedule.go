package alerting

import (
	"time"

	"github.com/good-yellow-bee/feedwatch/internal/models"
)

// Eligible reports whether an alert's schedule permits it to fire at
// the given instant. Pure and deterministic: no I/O beyond the zone
// database lookup, no clock reads.
//
// Checks, in order: snooze, active days, active hours. A schedule with
// none of those set is always eligible. Malformed timezone names and
// HH:MM strings fail open — the alert stays eligible — since the API
// validation layer rejects such values before they are stored.
func Eligible(s models.Schedule, now time.Time) bool {
	if s.SnoozeUntil != nil && now.Before(*s.SnoozeUntil) {
		return false
	}

	local := now.In(scheduleLocation(s.Timezone))

	if len(s.ActiveDays) > 0 && !containsDay(s.ActiveDays, local.Weekday()) {
		return false
	}

	if s.ActiveHours != nil {
		start, errStart := models.ParseClock(s.ActiveHours.Start)
		end, errEnd := models.ParseClock(s.ActiveHours.End)
		if errStart == nil && errEnd == nil && !inWindow(local, start, end) {
			return false
		}
	}

	return true
}

// scheduleLocation resolves an IANA zone name, falling back to the
// local zone when the name is empty or unknown.
func scheduleLocation(name string) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.Local
	}
	return loc
}

// inWindow reports whether the time-of-day of t falls in the half-open
// window [start, end), both in minutes since midnight. When start >
// end the window wraps past midnight: 22:00-06:00 means "after 22:00
// or before 06:00". start == end is an empty window.
func inWindow(t time.Time, start, end int) bool {
	minute := t.Hour()*60 + t.Minute()
	if start <= end {
		return minute >= start && minute < end
	}
	return minute >= start || minute < end
}

func containsDay(days []time.Weekday, day time.Weekday) bool {
	for _, d := range days {
		if d == day {
			return true
		}
	}
	return false
}
