package visibility

import (
	"errors"
	"fmt"
	"time"

	"apptsync/internal/codec"
)

var ErrInvalidWindow = errors.New("invalid window")

// Window is a half-open display window [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// ParseWindow parses two ISO-8601 instants. End must be after Start.
func ParseWindow(start, end string) (Window, error) {
	s, ok := codec.ParseInstant(start)
	if !ok {
		return Window{}, fmt.Errorf("%w: start %q", ErrInvalidWindow, start)
	}
	e, ok := codec.ParseInstant(end)
	if !ok {
		return Window{}, fmt.Errorf("%w: end %q", ErrInvalidWindow, end)
	}
	if !e.After(s) {
		return Window{}, fmt.Errorf("%w: end is not after start", ErrInvalidWindow)
	}
	return Window{Start: s, End: e}, nil
}

// DaysFrom returns the window from local midnight of now's day in loc
// through the given number of days later.
func DaysFrom(now time.Time, loc *time.Location, days int) Window {
	if loc == nil {
		loc = time.Local
	}
	if days <= 0 {
		days = 1
	}
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return Window{Start: start, End: start.AddDate(0, 0, days)}
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}
