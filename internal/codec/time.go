package codec

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrEmptyDate  = errors.New("codec: empty date")
	ErrEmptyClock = errors.New("codec: empty clock")
)

// instantLayouts are tried in order. Every layout carries a zone, so a
// zoneless "YYYY-MM-DDTHH:MM" is never silently read as UTC.
var instantLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04Z07:00",
}

// ParseInstant parses an ISO-8601 instant. ok is false for empty or
// malformed input.
func ParseInstant(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range instantLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatInstant renders t as a UTC instant with millisecond precision.
func FormatInstant(t time.Time) string {
	return t.UTC().Format(InstantLayout)
}

// Day is a calendar date without a location.
type Day struct {
	Year  int
	Month time.Month
	Day   int
}

// Clock is a wall-clock time of day.
type Clock struct {
	Hour   int
	Minute int
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(s string) (Day, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Day{}, ErrEmptyDate
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Day{}, err
	}
	return Day{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

// ParseClock parses HH:MM, tolerating a trailing :SS which is dropped.
func ParseClock(s string) (Clock, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Clock{}, ErrEmptyClock
	}
	t, err := time.Parse(ClockLayout, s)
	if err != nil {
		var err2 error
		t, err2 = time.Parse("15:04:05", s)
		if err2 != nil {
			return Clock{}, err
		}
	}
	return Clock{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// Compose builds the instant for day at clock in loc.
func Compose(day Day, clock Clock, loc *time.Location) time.Time {
	return time.Date(day.Year, day.Month, day.Day, clock.Hour, clock.Minute, 0, 0, loc)
}
