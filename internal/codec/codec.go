// Package codec converts appointments between the wire shape (absolute
// instants) and the presentation shape (local date and wall-clock times).
//
// All local fields are read from the instant rendered in the codec's
// Location, never from its UTC fields, so an appointment at 00:30 local time
// stays on its local day even when that is the previous UTC day.
package codec

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"apptsync/internal/guard"
	"apptsync/internal/model"
)

const (
	DateLayout    = "2006-01-02"
	ClockLayout   = "15:04"
	InstantLayout = "2006-01-02T15:04:05.000Z07:00"

	DefaultClientLabel = "Client"

	titleSeparator = " – "
)

// Codec is bound to the viewer's timezone. The zero value decodes in time.Local.
type Codec struct {
	Location           *time.Location
	DefaultClientLabel string
}

// New returns a Codec for loc. A nil loc means time.Local.
func New(loc *time.Location, clientLabel string) Codec {
	if loc == nil {
		loc = time.Local
	}
	if strings.TrimSpace(clientLabel) == "" {
		clientLabel = DefaultClientLabel
	}
	return Codec{Location: loc, DefaultClientLabel: clientLabel}
}

func (c Codec) location() *time.Location {
	if c.Location == nil {
		return time.Local
	}
	return c.Location
}

// Decode maps a wire record to its presentation form. It never fails: an
// absent or unparsable start leaves Date/Start empty, and an absent or
// unparsable end leaves End empty.
func (c Codec) Decode(w model.WireAppointment) model.PresentationAppointment {
	loc := c.location()

	p := model.PresentationAppointment{
		ID:          string(w.ID),
		StaffName:   w.EmployeeName,
		ServiceName: w.SelectedServices,
		Duration:    durationString(w.Duration),
		Status:      w.Status.OrDefault(),
		Color:       w.Color,
	}

	if start, ok := ParseInstant(w.StartDate); ok {
		local := start.In(loc)
		p.Date = local.Format(DateLayout)
		p.Start = local.Format(ClockLayout)
	}
	if end, ok := ParseInstant(w.EndDate); ok {
		p.End = end.In(loc).Format(ClockLayout)
	}

	if ref, ok := guard.ValidateBoundedRef(w.EmployeeID); ok {
		p.Staff = ref
		p.StaffID = ref
	}

	if w.CustomerID != "" {
		p.ClientID = string(w.CustomerID)
	}
	p.Client = w.CustomerFullName
	p.ClientName = w.CustomerFullName
	p.ClientPhone = w.CustomerPhone

	if p.ServiceName != "" {
		name := strings.TrimSpace(w.CustomerFullName)
		if name == "" {
			name = c.clientLabel()
		}
		p.Title = p.ServiceName + titleSeparator + name
	}

	return p
}

// Encode maps a presentation record to the wire shape. Missing optional
// fields are omitted. Customer fields are left empty; they are set by
// identity resolution.
func (c Codec) Encode(p model.PresentationAppointment) model.WireAppointment {
	w := model.WireAppointment{
		ID:               model.OpaqueID(strings.TrimSpace(p.ID)),
		EmployeeName:     strings.TrimSpace(p.StaffName),
		SelectedServices: strings.TrimSpace(p.ServiceName),
		Status:           p.Status.OrDefault(),
		Color:            p.Color,
	}

	start, startErr := c.LocalInstant(p.Date, p.Start)
	if p.StartDate != "" {
		w.StartDate = p.StartDate
	} else if startErr == nil {
		w.StartDate = FormatInstant(start)
	}

	if p.EndDate != "" {
		w.EndDate = p.EndDate
	} else if end, err := c.LocalInstant(p.Date, p.End); err == nil {
		// An end clock at or before the start clock is on the next local day.
		if startErr == nil && !end.After(start) {
			end = end.AddDate(0, 0, 1)
		}
		w.EndDate = FormatInstant(end)
	}

	if ref, ok := guard.ValidateBoundedRef(p.StaffRef()); ok {
		w.EmployeeID = ref
	}

	if d := strings.TrimSpace(p.Duration); d != "" {
		w.Duration = d
	}

	return w
}

// LocalInstant composes a calendar date and a wall-clock time in the codec's
// location.
func (c Codec) LocalInstant(date, clock string) (time.Time, error) {
	day, err := ParseDate(date)
	if err != nil {
		return time.Time{}, err
	}
	hm, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	return Compose(day, hm, c.location()), nil
}

func (c Codec) clientLabel() string {
	if strings.TrimSpace(c.DefaultClientLabel) == "" {
		return DefaultClientLabel
	}
	return c.DefaultClientLabel
}

// durationString renders a loosely typed duration as a string.
func durationString(v any) string {
	switch d := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(d)
	case json.Number:
		return d.String()
	case float64:
		return strconv.FormatFloat(d, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(d), 'f', -1, 32)
	case int:
		return strconv.Itoa(d)
	case int32:
		return strconv.FormatInt(int64(d), 10)
	case int64:
		return strconv.FormatInt(d, 10)
	default:
		return ""
	}
}
