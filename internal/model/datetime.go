package model

import (
	"fmt"
	"time"
)

// Date and time-of-day literal layouts used on every exposed operation.
const (
	DateLayout = "02-01-2006"
	TimeLayout = "15:04"
)

// ParseDate parses a dd-MM-yyyy calendar date.
func ParseDate(s string) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected dd-MM-yyyy: %w", s, err)
	}
	return d, nil
}

// ParseClock parses an HH:mm time of day.
func ParseClock(s string) (time.Time, error) {
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q, expected HH:mm: %w", s, err)
	}
	return t, nil
}

// CombineDateClock builds the wall-clock instant for a calendar date plus
// an HH:mm literal.
func CombineDateClock(date time.Time, clock string) (time.Time, error) {
	t, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, time.Local), nil
}
