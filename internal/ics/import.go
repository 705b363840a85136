package ics

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"apptsync/internal/codec"
	appLog "apptsync/internal/log"
	"apptsync/internal/model"
)

// Reasons an event is not turned into a draft.
const (
	SkipRecurring = "recurring_event"
	SkipAllDay    = "all_day_event"
	SkipNoStart   = "missing_start"
	SkipBadEnd    = "invalid_end"
)

const (
	icsLayoutUTC   = "20060102T150405Z"
	icsLayoutLocal = "20060102T150405"
)

// Skipped records an event that was not imported.
type Skipped struct {
	UID    string `json:"uid,omitempty"`
	Reason string `json:"reason"`
}

// ImportResult holds the drafts produced from a calendar and the events that
// were left out.
type ImportResult struct {
	Drafts  []model.PresentationAppointment `json:"drafts"`
	Skipped []Skipped                       `json:"skipped"`
}

// Import parses an iCalendar payload into presentation drafts ready for batch
// creation. Timed events become one draft each, decoded through c so that
// local dates follow the viewer's timezone. Drafts carry no id.
//
// Recurring and all-day events are skipped; recurrence expansion is not
// supported. Floating times (no TZID, no Z) are read in c's location.
func Import(body []byte, c codec.Codec) (ImportResult, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return ImportResult{}, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err)
		return ImportResult{}, fmt.Errorf("parse calendar: %w", err)
	}

	loc := c.Location
	if loc == nil {
		loc = time.Local
	}

	res := ImportResult{
		Drafts:  make([]model.PresentationAppointment, 0),
		Skipped: make([]Skipped, 0),
	}
	for _, ve := range cal.Events() {
		uid := propValue(ve, ical.ComponentPropertyUniqueId)

		w, reason := wireFromEvent(ve, loc)
		if reason != "" {
			appLog.Debug("ics vevent skipped", "uid", uid, "reason", reason)
			res.Skipped = append(res.Skipped, Skipped{UID: uid, Reason: reason})
			continue
		}

		draft := c.Decode(w)
		draft.ID = ""
		res.Drafts = append(res.Drafts, draft)
	}

	appLog.Info("ics import completed", "event_count", len(res.Drafts), "skipped", len(res.Skipped))
	return res, nil
}

func wireFromEvent(ve *ical.VEvent, loc *time.Location) (model.WireAppointment, string) {
	if ve.GetProperty(ical.ComponentPropertyRrule) != nil {
		return model.WireAppointment{}, SkipRecurring
	}

	startProp := ve.GetProperty(ical.ComponentPropertyDtStart)
	if startProp == nil {
		return model.WireAppointment{}, SkipNoStart
	}
	if isDateOnly(startProp) {
		return model.WireAppointment{}, SkipAllDay
	}
	start, err := eventTime(startProp, loc)
	if err != nil {
		return model.WireAppointment{}, SkipNoStart
	}

	w := model.WireAppointment{
		StartDate:        codec.FormatInstant(start),
		EmployeeName:     propValue(ve, propStaffName),
		SelectedServices: propValue(ve, propService),
		CustomerFullName: propValue(ve, propClient),
		CustomerPhone:    propValue(ve, propClientPhone),
		Status:           eventStatus(ve),
		Color:            propValue(ve, ical.ComponentPropertyColor),
	}

	if endProp := ve.GetProperty(ical.ComponentPropertyDtEnd); endProp != nil {
		end, err := eventTime(endProp, loc)
		if err != nil {
			return model.WireAppointment{}, SkipBadEnd
		}
		w.EndDate = codec.FormatInstant(end)
	}

	if w.SelectedServices == "" {
		w.SelectedServices = propValue(ve, ical.ComponentPropertySummary)
	}
	if v := propValue(ve, propStaffID); v != "" {
		w.EmployeeID = json.Number(v)
	}
	if v := propValue(ve, propDuration); v != "" {
		w.Duration = v
	}
	return w, ""
}

// eventTime parses a DATE-TIME property. TZID is honored; a floating value is
// placed in loc.
func eventTime(p *ical.IANAProperty, loc *time.Location) (time.Time, error) {
	v := strings.TrimSpace(p.Value)
	if strings.HasSuffix(v, "Z") {
		return time.Parse(icsLayoutUTC, v)
	}
	if tz, ok := p.ICalParameters["TZID"]; ok && len(tz) > 0 {
		tzLoc, err := time.LoadLocation(tz[0])
		if err != nil {
			return time.Time{}, err
		}
		loc = tzLoc
	}
	return time.ParseInLocation(icsLayoutLocal, v, loc)
}

func isDateOnly(p *ical.IANAProperty) bool {
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

func eventStatus(ve *ical.VEvent) model.Status {
	if s := propValue(ve, propStatus); s != "" {
		return model.Status(strings.ToLower(s))
	}
	switch strings.ToUpper(propValue(ve, ical.ComponentPropertyStatus)) {
	case string(ical.ObjectStatusCancelled):
		return model.StatusCancelled
	case string(ical.ObjectStatusConfirmed):
		return model.StatusConfirmed
	default:
		return model.StatusScheduled
	}
}

func propValue(ve *ical.VEvent, prop ical.ComponentProperty) string {
	if p := ve.GetProperty(prop); p != nil {
		return strings.TrimSpace(p.Value)
	}
	return ""
}
