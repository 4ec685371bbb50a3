package models

import "time"

// DateLayout is the wire form of schedule dates.
const DateLayout = "2006-01-02"

const secondsPerDay = 24 * 60 * 60

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DayNumber returns the number of whole days between 1970-01-01 and t's calendar day.
func DayNumber(t time.Time) int {
	return int(Day(t).Unix() / secondsPerDay)
}

// FromDayNumber is the inverse of DayNumber.
func FromDayNumber(n int) time.Time {
	return time.Unix(int64(n)*secondsPerDay, 0).UTC()
}

// DurationDays returns due-start in whole days, clamped to a minimum of one.
func DurationDays(start, due time.Time) int {
	return max(DayNumber(due)-DayNumber(start), 1)
}

// ParseDate parses a YYYY-MM-DD date, also accepting RFC 3339 timestamps.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return Day(t), nil
}
