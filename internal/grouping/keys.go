package grouping

import (
	"strings"
	"time"
)

// Sentinel labels substituted for missing keys.
const (
	UnknownDate       = "Unknown Date"
	UnknownIntake     = "Unknown Intake"
	UnknownShift      = "Unknown Shift"
	UnknownCourse     = "Unknown Course"
	UnknownDepartment = "Unknown Department"
	UnknownStatus     = "Unknown Status"
)

const (
	dayLayout   = "2006-01-02"
	monthLayout = "2006-01"
)

// IsSentinel reports whether key is one of the substitution labels.
func IsSentinel(key string) bool {
	return strings.HasPrefix(key, "Unknown ")
}

// Label groups by a string field, substituting sentinel when get reports the
// value missing or it is blank.
func Label[T any](get func(T) (string, bool), sentinel string) KeyFunc[T] {
	return func(rec T) string {
		v, ok := get(rec)
		v = strings.TrimSpace(v)
		if !ok || v == "" {
			return sentinel
		}
		return v
	}
}

// CalendarDay truncates t to midnight of its calendar day in loc. A nil loc
// means time.Local.
func CalendarDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// SameDay reports whether a and b fall on the same calendar day in loc.
func SameDay(a, b time.Time, loc *time.Location) bool {
	return CalendarDay(a, loc).Equal(CalendarDay(b, loc))
}

// DayKey groups by calendar day in loc, formatted YYYY-MM-DD. Records whose
// timestamp is zero group under UnknownDate.
func DayKey[T any](loc *time.Location, at func(T) time.Time) KeyFunc[T] {
	return func(rec T) string {
		t := at(rec)
		if t.IsZero() {
			return UnknownDate
		}
		return CalendarDay(t, loc).Format(dayLayout)
	}
}

// MonthKey groups by calendar month in loc, formatted YYYY-MM.
func MonthKey[T any](loc *time.Location, at func(T) time.Time) KeyFunc[T] {
	return func(rec T) string {
		t := at(rec)
		if t.IsZero() {
			return UnknownDate
		}
		return CalendarDay(t, loc).Format(monthLayout)
	}
}

// DayBounds returns the first and last instant of t's calendar day in loc.
func DayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	start := CalendarDay(t, loc)
	return start, start.AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// MonthBounds returns the first and last instant of t's calendar month in loc.
func MonthBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	day := CalendarDay(t, loc)
	start := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, day.Location())
	return start, start.AddDate(0, 1, 0).Add(-time.Nanosecond)
}
