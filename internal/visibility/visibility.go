// Package visibility decides which presentation appointments are eligible to
// be rendered for a display window and staff filter, and why the others are
// not.
package visibility

import (
	"strings"
	"time"

	"apptsync/internal/codec"
	"apptsync/internal/guard"
	"apptsync/internal/model"
)

// DefaultDuration is the slot length assumed when an appointment has no end.
const DefaultDuration = 30 * time.Minute

// Evaluator interprets local dates and times in Location.
type Evaluator struct {
	Location        *time.Location
	DefaultDuration time.Duration
}

// New returns an Evaluator for loc. A nil loc means time.Local and a
// non-positive duration means DefaultDuration.
func New(loc *time.Location, defaultDuration time.Duration) Evaluator {
	if loc == nil {
		loc = time.Local
	}
	if defaultDuration <= 0 {
		defaultDuration = DefaultDuration
	}
	return Evaluator{Location: loc, DefaultDuration: defaultDuration}
}

// Result pairs an appointment with its verdict.
type Result struct {
	Appointment model.PresentationAppointment `json:"appointment"`
	model.Verdict
}

// Evaluate checks app against the half-open window [windowStart, windowEnd)
// and cfg. Checks run in a fixed order and the first failure is reported.
func (e Evaluator) Evaluate(app model.PresentationAppointment, windowStart, windowEnd time.Time, cfg model.FilterConfig) model.Verdict {
	if strings.TrimSpace(app.ID) == "" {
		return model.Hidden(model.ReasonMissingID)
	}
	if strings.TrimSpace(app.Date) == "" {
		return model.Hidden(model.ReasonMissingDate)
	}
	if strings.TrimSpace(app.Start) == "" {
		return model.Hidden(model.ReasonMissingStart)
	}

	start, end, reason := e.span(app)
	if reason != "" {
		return model.Hidden(reason)
	}
	if !end.After(start) {
		return model.Hidden(model.ReasonEndBeforeStart)
	}
	if !Overlaps(start, end, windowStart, windowEnd) {
		return model.Hidden(model.ReasonOutsideRange)
	}
	if app.Status.IsCancelled() {
		return model.Hidden(model.ReasonStatusCancelled)
	}
	if reason := staffReason(app, cfg); reason != "" {
		return model.Hidden(reason)
	}
	return model.Visible()
}

// EvaluateAll evaluates every appointment, preserving order.
func (e Evaluator) EvaluateAll(apps []model.PresentationAppointment, windowStart, windowEnd time.Time, cfg model.FilterConfig) []Result {
	out := make([]Result, 0, len(apps))
	for _, app := range apps {
		out = append(out, Result{
			Appointment: app,
			Verdict:     e.Evaluate(app, windowStart, windowEnd, cfg),
		})
	}
	return out
}

// Renderable returns the appointments whose verdict is renderable.
func Renderable(results []Result) []model.PresentationAppointment {
	out := make([]model.PresentationAppointment, 0, len(results))
	for _, r := range results {
		if r.Renderable {
			out = append(out, r.Appointment)
		}
	}
	return out
}

// Span returns the local start and end instants of app, applying the default
// duration when End is empty. ok is false when the fields do not parse.
func (e Evaluator) Span(app model.PresentationAppointment) (start, end time.Time, ok bool) {
	start, end, reason := e.span(app)
	return start, end, reason == ""
}

func (e Evaluator) span(app model.PresentationAppointment) (time.Time, time.Time, model.Reason) {
	loc := e.Location
	if loc == nil {
		loc = time.Local
	}
	dur := e.DefaultDuration
	if dur <= 0 {
		dur = DefaultDuration
	}

	day, err := codec.ParseDate(app.Date)
	if err != nil {
		return time.Time{}, time.Time{}, model.ReasonInvalidDateParsing
	}
	startClock, err := codec.ParseClock(app.Start)
	if err != nil {
		return time.Time{}, time.Time{}, model.ReasonInvalidStartDate
	}
	start := codec.Compose(day, startClock, loc)

	if strings.TrimSpace(app.End) == "" {
		return start, start.Add(dur), ""
	}
	endClock, err := codec.ParseClock(app.End)
	if err != nil {
		return time.Time{}, time.Time{}, model.ReasonInvalidEndDate
	}
	return start, codec.Compose(day, endClock, loc), ""
}

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) intersect.
// Intervals that only touch at an endpoint do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

func staffReason(app model.PresentationAppointment, cfg model.FilterConfig) model.Reason {
	mode := strings.TrimSpace(cfg.StaffSelectionMode)

	switch strings.ToLower(mode) {
	case model.StaffModeAll:
		return ""
	case model.StaffModeCustom:
		if len(cfg.SelectedStaff) == 0 {
			return model.ReasonNoTeamSelected
		}
		staff, ok := guard.ValidateBoundedRef(app.StaffRef())
		if !ok || !cfg.HasStaff(staff) {
			return model.ReasonNotInTeam
		}
		return ""
	}

	want, ok := guard.ValidateBoundedRef(mode)
	if !ok {
		// Unrecognized mode: no staff filtering.
		return ""
	}
	staff, ok := guard.ValidateBoundedRef(app.StaffRef())
	if !ok || staff != want {
		return model.ReasonStaffMismatch
	}
	return ""
}
