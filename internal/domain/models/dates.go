package models

import (
	"strings"
	"time"
)

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

// Day truncates t to a calendar date at UTC midnight, keeping the wall-clock date of t.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD string. Longer values (RFC3339) are cut to the date part.
func ParseDay(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, Validationf("empty date")
	}
	if len(value) > len(DateLayout) {
		value = value[:len(DateLayout)]
	}
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, Validationf("invalid date %q", value)
	}
	return t, nil
}

// ParseOptionalDay returns fallback when value is blank.
func ParseOptionalDay(value string, fallback time.Time) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return Day(fallback), nil
	}
	return ParseDay(value)
}

// ParseEventDay parses the date of something that already happened. Blank means
// today; a date after today is rejected.
func ParseEventDay(value string, today time.Time) (time.Time, error) {
	day, err := ParseOptionalDay(value, today)
	if err != nil {
		return time.Time{}, err
	}
	if day.After(Day(today)) {
		return time.Time{}, Validationf("date %s is in the future", day.Format(DateLayout))
	}
	return day, nil
}
