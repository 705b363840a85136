// Package ics converts appointments to and from iCalendar.
//
// Export writes one VEVENT per appointment with DTSTART/DTEND in UTC and the
// engine's own fields under X-APPTSYNC-* properties. Import reads those
// properties back, so an exported feed re-imports into equivalent drafts.
package ics

import (
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"apptsync/internal/guard"
	appLog "apptsync/internal/log"
	"apptsync/internal/model"
	"apptsync/internal/visibility"
)

const (
	productID    = "-//apptsync//Appointment Feed//EN"
	uidDomain    = "@apptsync"
	defaultTitle = "Appointment"
)

// Extension properties carried on each VEVENT.
const (
	propAppointmentID = ical.ComponentProperty("X-APPTSYNC-ID")
	propStaffID       = ical.ComponentProperty("X-APPTSYNC-STAFF-ID")
	propStaffName     = ical.ComponentProperty("X-APPTSYNC-STAFF-NAME")
	propService       = ical.ComponentProperty("X-APPTSYNC-SERVICE")
	propClient        = ical.ComponentProperty("X-APPTSYNC-CLIENT")
	propClientPhone   = ical.ComponentProperty("X-APPTSYNC-CLIENT-PHONE")
	propStatus        = ical.ComponentProperty("X-APPTSYNC-STATUS")
	propDuration      = ical.ComponentProperty("X-APPTSYNC-DURATION")
)

// Exporter renders appointments as an iCalendar feed.
type Exporter struct {
	// Evaluator resolves each appointment's local span.
	Evaluator visibility.Evaluator
	// Name is the calendar display name (X-WR-CALNAME).
	Name string
	Now  func() time.Time
}

// Export serializes apps. Appointments whose date or times do not parse are
// left out and counted in skipped; callers are expected to pass the
// renderable set produced by the visibility filter.
func (e Exporter) Export(apps []model.PresentationAppointment) (feed string, skipped int) {
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	stamp := now()

	cal := ical.NewCalendar()
	cal.SetProductId(productID)
	cal.SetMethod(ical.MethodPublish)
	if e.Name != "" {
		cal.SetName(e.Name)
		cal.SetXWRCalName(e.Name)
	}
	if loc := e.Evaluator.Location; loc != nil {
		cal.SetXWRTimezone(loc.String())
	}

	for _, app := range apps {
		start, end, ok := e.Evaluator.Span(app)
		if !ok {
			skipped++
			continue
		}

		ev := cal.AddEvent(eventUID(app.ID))
		ev.SetDtStampTime(stamp)
		ev.SetStartAt(start)
		ev.SetEndAt(end)
		ev.SetSummary(summary(app))
		ev.SetStatus(objectStatus(app.Status))
		if desc := description(app); desc != "" {
			ev.SetDescription(desc)
		}
		if app.Color != "" {
			ev.SetColor(app.Color)
		}

		if id := strings.TrimSpace(app.ID); id != "" {
			ev.SetProperty(propAppointmentID, id)
		}
		if ref, ok := guard.ValidateBoundedRef(app.StaffRef()); ok {
			ev.SetProperty(propStaffID, strconv.FormatInt(int64(ref), 10))
		}
		setIfPresent(ev, propStaffName, app.StaffName)
		setIfPresent(ev, propService, app.ServiceName)
		setIfPresent(ev, propClient, app.CustomerName())
		setIfPresent(ev, propClientPhone, app.ClientPhone)
		setIfPresent(ev, propDuration, app.Duration)
		ev.SetProperty(propStatus, string(app.Status.OrDefault()))
	}

	if skipped > 0 {
		appLog.Warn("ics export skipped unparsable appointments", "skipped", skipped)
	}
	appLog.Info("ics export completed", "event_count", len(apps)-skipped)
	return cal.Serialize(), skipped
}

// eventUID derives the UID from the appointment id. Unsaved drafts get a
// random one.
func eventUID(id string) string {
	if id = strings.TrimSpace(id); id != "" {
		return id + uidDomain
	}
	return uuid.NewString() + uidDomain
}

func summary(app model.PresentationAppointment) string {
	switch {
	case strings.TrimSpace(app.Title) != "":
		return app.Title
	case strings.TrimSpace(app.ServiceName) != "":
		return app.ServiceName
	case app.CustomerName() != "":
		return app.CustomerName()
	default:
		return defaultTitle
	}
}

func description(app model.PresentationAppointment) string {
	var lines []string
	if app.StaffName != "" {
		lines = append(lines, "Staff: "+app.StaffName)
	}
	if name := app.CustomerName(); name != "" {
		lines = append(lines, "Client: "+name)
	}
	if app.ClientPhone != "" {
		lines = append(lines, "Phone: "+app.ClientPhone)
	}
	return strings.Join(lines, "\n")
}

func objectStatus(s model.Status) ical.ObjectStatus {
	switch {
	case s.IsCancelled():
		return ical.ObjectStatusCancelled
	case s == model.StatusConfirmed, s == model.StatusCompleted:
		return ical.ObjectStatusConfirmed
	default:
		return ical.ObjectStatusTentative
	}
}

func setIfPresent(ev *ical.VEvent, prop ical.ComponentProperty, v string) {
	if v = strings.TrimSpace(v); v != "" {
		ev.SetProperty(prop, v)
	}
}
