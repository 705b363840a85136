package visibility

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apptsync/internal/model"
)

var (
	windowStart = time.Date(2024, 6, 1, 6, 0, 0, 0, time.UTC)
	windowEnd   = time.Date(2024, 6, 1, 18, 0, 0, 0, time.UTC)
	allStaff    = model.FilterConfig{StaffSelectionMode: model.StaffModeAll}
)

func appt() model.PresentationAppointment {
	return model.PresentationAppointment{
		ID:      "a1",
		Date:    "2024-06-01",
		Start:   "05:00",
		End:     "06:30",
		StaffID: int32(7),
		Status:  model.StatusScheduled,
	}
}

func TestEvaluate(t *testing.T) {
	e := New(time.UTC, 0)

	tests := []struct {
		name   string
		mutate func(a *model.PresentationAppointment)
		cfg    model.FilterConfig
		want   model.Verdict
	}{
		{
			name: "overlaps window start",
			cfg:  allStaff,
			want: model.Visible(),
		},
		{
			name:   "missing id",
			mutate: func(a *model.PresentationAppointment) { a.ID = " " },
			cfg:    allStaff,
			want:   model.Hidden(model.ReasonMissingID),
		},
		{
			name:   "missing date",
			mutate: func(a *model.PresentationAppointment) { a.Date = "" },
			cfg:    allStaff,
			want:   model.Hidden(model.ReasonMissingDate),
		},
		{
			name:   "missing start",
			mutate: func(a *model.PresentationAppointment) { a.Start = "" },
			cfg:    allStaff,
			want:   model.Hidden(model.ReasonMissingStart),
		},
		{
			name:   "bad date",
			mutate: func(a *model.PresentationAppointment) { a.Date = "01/06/2024" },
			cfg:    allStaff,
			want:   model.Hidden(model.ReasonInvalidDateParsing),
		},
		{
			name:   "bad start",
			mutate: func(a *model.PresentationAppointment) { a.Start = "5pm" },
			cfg:    allStaff,
			want:   model.Hidden(model.ReasonInvalidStartDate),
		},
		{
			name:   "bad end",
			mutate: func(a *model.PresentationAppointment) { a.End = "99:99" },
			cfg:    allStaff,
			want:   model.Hidden(model.ReasonInvalidEndDate),
		},
		{
			name:   "end equals start",
			mutate: func(a *model.PresentationAppointment) { a.End = "05:00" },
			cfg:    allStaff,
			want:   model.Hidden(model.ReasonEndBeforeStart),
		},
		{
			name:   "end before start",
			mutate: func(a *model.PresentationAppointment) { a.End = "04:00" },
			cfg:    allStaff,
			want:   model.Hidden(model.ReasonEndBeforeStart),
		},
		{
			name:   "end touches window start",
			mutate: func(a *model.PresentationAppointment) { a.End = "06:00" },
			cfg:    allStaff,
			want:   model.Hidden(model.ReasonOutsideRange),
		},
		{
			name:   "start touches window end",
			mutate: func(a *model.PresentationAppointment) { a.Start, a.End = "18:00", "19:00" },
			cfg:    allStaff,
			want:   model.Hidden(model.ReasonOutsideRange),
		},
		{
			name:   "other day",
			mutate: func(a *model.PresentationAppointment) { a.Date = "2024-06-02" },
			cfg:    allStaff,
			want:   model.Hidden(model.ReasonOutsideRange),
		},
		{
			name:   "default duration reaches into window",
			mutate: func(a *model.PresentationAppointment) { a.Start, a.End = "05:45", "" },
			cfg:    allStaff,
			want:   model.Visible(),
		},
		{
			name:   "default duration ends at window start",
			mutate: func(a *model.PresentationAppointment) { a.Start, a.End = "05:30", "" },
			cfg:    allStaff,
			want:   model.Hidden(model.ReasonOutsideRange),
		},
		{
			name:   "cancelled",
			mutate: func(a *model.PresentationAppointment) { a.Status = model.StatusCancelled },
			cfg:    allStaff,
			want:   model.Hidden(model.ReasonStatusCancelled),
		},
		{
			name:   "cancelled american spelling",
			mutate: func(a *model.PresentationAppointment) { a.Status = "Canceled" },
			cfg:    model.FilterConfig{StaffSelectionMode: "custom"},
			want:   model.Hidden(model.ReasonStatusCancelled),
		},
		{
			name: "custom with empty selection",
			cfg:  model.FilterConfig{StaffSelectionMode: model.StaffModeCustom},
			want: model.Hidden(model.ReasonNoTeamSelected),
		},
		{
			name: "custom not in team",
			cfg:  model.FilterConfig{StaffSelectionMode: model.StaffModeCustom, SelectedStaff: []int32{1, 2}},
			want: model.Hidden(model.ReasonNotInTeam),
		},
		{
			name:   "custom without staff",
			mutate: func(a *model.PresentationAppointment) { a.StaffID = nil },
			cfg:    model.FilterConfig{StaffSelectionMode: model.StaffModeCustom, SelectedStaff: []int32{7}},
			want:   model.Hidden(model.ReasonNotInTeam),
		},
		{
			name: "custom in team",
			cfg:  model.FilterConfig{StaffSelectionMode: model.StaffModeCustom, SelectedStaff: []int32{1, 7}},
			want: model.Visible(),
		},
		{
			name: "single staff match",
			cfg:  model.FilterConfig{StaffSelectionMode: "7"},
			want: model.Visible(),
		},
		{
			name:   "single staff match via alias",
			mutate: func(a *model.PresentationAppointment) { a.StaffID, a.Staff = nil, "7" },
			cfg:    model.FilterConfig{StaffSelectionMode: "7"},
			want:   model.Visible(),
		},
		{
			name: "single staff mismatch",
			cfg:  model.FilterConfig{StaffSelectionMode: "8"},
			want: model.Hidden(model.ReasonStaffMismatch),
		},
		{
			name: "unrecognized mode",
			cfg:  model.FilterConfig{StaffSelectionMode: "favourites"},
			want: model.Visible(),
		},
		{
			name: "empty mode",
			cfg:  model.FilterConfig{},
			want: model.Visible(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := appt()
			if tt.mutate != nil {
				tt.mutate(&a)
			}
			assert.Equal(t, tt.want, e.Evaluate(a, windowStart, windowEnd, tt.cfg))
		})
	}
}

func TestEvaluateInViewerZone(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Jerusalem")
	require.NoError(t, err)
	e := New(loc, 0)

	// 08:00-09:30 in Jerusalem (UTC+3) is 05:00-06:30Z.
	a := appt()
	a.Start, a.End = "08:00", "09:30"
	assert.Equal(t, model.Visible(), e.Evaluate(a, windowStart, windowEnd, allStaff))

	// 08:00-09:00 local ends exactly at the window start.
	a.End = "09:00"
	assert.Equal(t, model.Hidden(model.ReasonOutsideRange), e.Evaluate(a, windowStart, windowEnd, allStaff))
}

func TestConfigurableDefaultDuration(t *testing.T) {
	e := New(time.UTC, time.Hour)
	a := appt()
	a.Start, a.End = "05:30", ""

	assert.Equal(t, model.Visible(), e.Evaluate(a, windowStart, windowEnd, allStaff))

	start, end, ok := e.Span(a)
	require.True(t, ok)
	assert.Equal(t, time.Hour, end.Sub(start))
}

func TestEvaluateAll(t *testing.T) {
	e := New(time.UTC, 0)
	ok := appt()
	cancelled := appt()
	cancelled.ID = "a2"
	cancelled.Status = model.StatusCancelled

	results := e.EvaluateAll([]model.PresentationAppointment{ok, cancelled}, windowStart, windowEnd, allStaff)
	require.Len(t, results, 2)
	assert.True(t, results[0].Renderable)
	assert.Equal(t, model.ReasonStatusCancelled, results[1].Reason)

	visible := Renderable(results)
	require.Len(t, visible, 1)
	assert.Equal(t, "a1", visible[0].ID)
}

func TestOverlaps(t *testing.T) {
	at := func(h int) time.Time { return time.Date(2024, 1, 1, h, 0, 0, 0, time.UTC) }

	assert.True(t, Overlaps(at(1), at(3), at(2), at(4)))
	assert.True(t, Overlaps(at(1), at(5), at(2), at(3)))
	assert.False(t, Overlaps(at(1), at(2), at(2), at(3)))
	assert.False(t, Overlaps(at(3), at(4), at(1), at(3)))
}

func TestParseWindow(t *testing.T) {
	w, err := ParseWindow("2024-06-01T06:00:00Z", "2024-06-01T18:00:00.000Z")
	require.NoError(t, err)
	assert.True(t, w.Start.Equal(windowStart))
	assert.True(t, w.End.Equal(windowEnd))
	assert.True(t, w.Contains(windowStart))
	assert.False(t, w.Contains(windowEnd))

	_, err = ParseWindow("2024-06-01T18:00:00Z", "2024-06-01T06:00:00Z")
	assert.ErrorIs(t, err, ErrInvalidWindow)
	_, err = ParseWindow("yesterday", "2024-06-01T06:00:00Z")
	assert.ErrorIs(t, err, ErrInvalidWindow)
}

func TestDaysFrom(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	now := time.Date(2024, 6, 1, 22, 30, 0, 0, time.UTC) // 01:30 on June 2 local

	w := DaysFrom(now, loc, 7)
	assert.Equal(t, time.Date(2024, 6, 2, 0, 0, 0, 0, loc), w.Start)
	assert.Equal(t, time.Date(2024, 6, 9, 0, 0, 0, 0, loc), w.End)
}
