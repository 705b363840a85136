package codec

import (
	"encoding/json"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apptsync/internal/model"
)

func mustLoad(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	return loc
}

func TestDecode(t *testing.T) {
	c := New(mustLoad(t, "Asia/Jerusalem"), "")

	w := model.WireAppointment{
		ID:               "a1",
		StartDate:        "2024-06-01T05:00:00.000Z",
		EndDate:          "2024-06-01T05:45:00Z",
		EmployeeID:       json.Number("7"),
		EmployeeName:     "Noa",
		CustomerID:       "clx8k2m9p0000abcdefgh1234",
		CustomerFullName: "Dana Levi",
		CustomerPhone:    "+972501234567",
		SelectedServices: "Haircut",
		Duration:         json.Number("45"),
		Color:            "#ff0000",
	}

	want := model.PresentationAppointment{
		ID:          "a1",
		Date:        "2024-06-01",
		Start:       "08:00",
		End:         "08:45",
		Staff:       int32(7),
		StaffID:     int32(7),
		StaffName:   "Noa",
		ClientID:    "clx8k2m9p0000abcdefgh1234",
		Client:      "Dana Levi",
		ClientName:  "Dana Levi",
		ClientPhone: "+972501234567",
		ServiceName: "Haircut",
		Duration:    "45",
		Status:      model.StatusScheduled,
		Color:       "#ff0000",
		Title:       "Haircut – Dana Levi",
	}

	if diff := cmp.Diff(want, c.Decode(w)); diff != "" {
		t.Fatalf("Decode mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeUsesLocalDate(t *testing.T) {
	tests := []struct {
		name      string
		zone      string
		instant   string
		wantDate  string
		wantStart string
	}{
		{
			name:      "evening local is next day UTC",
			zone:      "America/New_York",
			instant:   "2024-06-02T02:30:00Z",
			wantDate:  "2024-06-01",
			wantStart: "22:30",
		},
		{
			name:      "after midnight local is previous day UTC",
			zone:      "Asia/Jerusalem",
			instant:   "2024-06-01T21:30:00Z",
			wantDate:  "2024-06-02",
			wantStart: "00:30",
		},
		{
			name:      "half hour offset",
			zone:      "Asia/Kolkata",
			instant:   "2024-01-15T18:45:00Z",
			wantDate:  "2024-01-16",
			wantStart: "00:15",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(mustLoad(t, tt.zone), "")
			p := c.Decode(model.WireAppointment{ID: "x", StartDate: tt.instant})
			assert.Equal(t, tt.wantDate, p.Date)
			assert.Equal(t, tt.wantStart, p.Start)
		})
	}
}

func TestDecodeDegrades(t *testing.T) {
	c := New(time.UTC, "")

	t.Run("malformed start", func(t *testing.T) {
		p := c.Decode(model.WireAppointment{ID: "x", StartDate: "not-a-date", EndDate: "2024-06-01T10:00:00Z"})
		assert.Empty(t, p.Date)
		assert.Empty(t, p.Start)
		assert.Equal(t, "10:00", p.End)
	})

	t.Run("zoneless start is not read as UTC", func(t *testing.T) {
		p := c.Decode(model.WireAppointment{ID: "x", StartDate: "2024-06-01T10:00"})
		assert.Empty(t, p.Date)
	})

	t.Run("missing end is not synthesized", func(t *testing.T) {
		p := c.Decode(model.WireAppointment{ID: "x", StartDate: "2024-06-01T10:00:00Z", Duration: 30})
		assert.Equal(t, "10:00", p.Start)
		assert.Empty(t, p.End)
		assert.Equal(t, "30", p.Duration)
	})

	t.Run("timestamp shaped staff is dropped", func(t *testing.T) {
		p := c.Decode(model.WireAppointment{ID: "x", EmployeeID: float64(1700000000000)})
		assert.Nil(t, p.Staff)
		assert.Nil(t, p.StaffID)
	})
}

func TestDecodeTitle(t *testing.T) {
	c := New(time.UTC, "לקוח")

	p := c.Decode(model.WireAppointment{SelectedServices: "Color"})
	assert.Equal(t, "Color – לקוח", p.Title)

	p = c.Decode(model.WireAppointment{CustomerFullName: "Dana"})
	assert.Empty(t, p.Title)
	assert.Equal(t, model.StatusScheduled, p.Status)
}

func TestEncode(t *testing.T) {
	c := New(mustLoad(t, "Asia/Jerusalem"), "")

	p := model.PresentationAppointment{
		ID:          " a1 ",
		Date:        "2024-06-01",
		Start:       "08:00",
		End:         "08:45",
		StaffID:     "7",
		StaffName:   "Noa",
		ClientID:    "clx8k2m9p0000abcdefgh1234",
		ClientName:  "Dana",
		ServiceName: "Haircut",
		Duration:    "45",
		Color:       "#ff0000",
	}

	want := model.WireAppointment{
		ID:               "a1",
		StartDate:        "2024-06-01T05:00:00.000Z",
		EndDate:          "2024-06-01T05:45:00.000Z",
		EmployeeID:       int32(7),
		EmployeeName:     "Noa",
		SelectedServices: "Haircut",
		Duration:         "45",
		Status:           model.StatusScheduled,
		Color:            "#ff0000",
	}

	if diff := cmp.Diff(want, c.Encode(p)); diff != "" {
		t.Fatalf("Encode mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeOmissions(t *testing.T) {
	c := New(time.UTC, "")

	t.Run("raw instants pass through", func(t *testing.T) {
		w := c.Encode(model.PresentationAppointment{
			Date:      "2024-06-01",
			Start:     "08:00",
			StartDate: "2024-07-01T09:00:00+02:00",
			EndDate:   "2024-07-01T10:00:00+02:00",
		})
		assert.Equal(t, "2024-07-01T09:00:00+02:00", w.StartDate)
		assert.Equal(t, "2024-07-01T10:00:00+02:00", w.EndDate)
	})

	t.Run("missing fields are omitted", func(t *testing.T) {
		w := c.Encode(model.PresentationAppointment{Date: "2024-06-01"})
		assert.Empty(t, w.StartDate)
		assert.Empty(t, w.EndDate)
		assert.Nil(t, w.EmployeeID)
		assert.Nil(t, w.Duration)
	})

	t.Run("bad staff is dropped not truncated", func(t *testing.T) {
		w := c.Encode(model.PresentationAppointment{Staff: int64(2147483648)})
		assert.Nil(t, w.EmployeeID)
		w = c.Encode(model.PresentationAppointment{StaffID: float64(1700000000000)})
		assert.Nil(t, w.EmployeeID)
	})

	t.Run("customer fields are left to identity resolution", func(t *testing.T) {
		w := c.Encode(model.PresentationAppointment{ClientID: "abc", ClientName: "Dana", ClientPhone: "050"})
		assert.Empty(t, w.CustomerID)
		assert.Empty(t, w.CustomerFullName)
		assert.Empty(t, w.CustomerPhone)
	})

	t.Run("encoded payload has no server owned keys", func(t *testing.T) {
		raw, err := json.Marshal(c.Encode(model.PresentationAppointment{Date: "2024-06-01", Start: "08:00"}))
		require.NoError(t, err)
		var m map[string]any
		require.NoError(t, json.Unmarshal(raw, &m))
		assert.NotContains(t, m, "businessId")
		assert.NotContains(t, m, "tenantId")
		assert.Equal(t, "2024-06-01T08:00:00.000Z", m["startDate"])
	})
}

func TestRoundTrip(t *testing.T) {
	zones := []*time.Location{
		mustLoad(t, "Asia/Jerusalem"),
		mustLoad(t, "Asia/Kolkata"),
		mustLoad(t, "America/St_Johns"),
		time.FixedZone("UTC-9:30", -(9*3600 + 1800)),
	}
	instants := [][2]string{
		{"2024-06-01T05:00:00Z", "2024-06-01T06:30:00Z"},
		{"2024-03-31T23:15:00Z", "2024-04-01T00:05:00Z"},
		{"2024-12-31T22:45:00.000Z", "2024-12-31T23:59:00.000Z"},
		{"2024-06-01T12:00:00+03:00", "2024-06-01T13:00:00+03:00"},
	}

	for _, loc := range zones {
		c := New(loc, "")
		for _, pair := range instants {
			w := model.WireAppointment{ID: "rt", StartDate: pair[0], EndDate: pair[1]}
			got := c.Encode(c.Decode(w))

			wantStart, _ := ParseInstant(pair[0])
			wantEnd, _ := ParseInstant(pair[1])
			gotStart, ok := ParseInstant(got.StartDate)
			require.True(t, ok, "start for %s in %s", pair[0], loc)
			gotEnd, ok := ParseInstant(got.EndDate)
			require.True(t, ok, "end for %s in %s", pair[1], loc)

			assert.True(t, wantStart.Equal(gotStart), "start %s in %s: got %s", pair[0], loc, got.StartDate)
			assert.True(t, wantEnd.Equal(gotEnd), "end %s in %s: got %s", pair[1], loc, got.EndDate)
			assert.True(t, gotEnd.After(gotStart), "end after start for %s in %s", pair[0], loc)
		}
	}
}

func TestEncodeEndPastMidnight(t *testing.T) {
	c := New(mustLoad(t, "Asia/Jerusalem"), "")

	p := c.Decode(model.WireAppointment{
		ID:        "late",
		StartDate: "2024-06-01T20:30:00.000Z",
		EndDate:   "2024-06-01T21:30:00.000Z",
	})
	assert.Equal(t, "2024-06-01", p.Date)
	assert.Equal(t, "23:30", p.Start)
	assert.Equal(t, "00:30", p.End)

	w := c.Encode(p)
	assert.Equal(t, "2024-06-01T20:30:00.000Z", w.StartDate)
	assert.Equal(t, "2024-06-01T21:30:00.000Z", w.EndDate)

	w = c.Encode(model.PresentationAppointment{Date: "2024-06-01", Start: "23:00", End: "01:00"})
	assert.Equal(t, "2024-06-01T20:00:00.000Z", w.StartDate)
	assert.Equal(t, "2024-06-01T22:00:00.000Z", w.EndDate)
}

func TestParseClock(t *testing.T) {
	hm, err := ParseClock("9:05")
	require.NoError(t, err)
	assert.Equal(t, Clock{Hour: 9, Minute: 5}, hm)

	hm, err = ParseClock("23:59:30")
	require.NoError(t, err)
	assert.Equal(t, Clock{Hour: 23, Minute: 59}, hm)

	_, err = ParseClock("25:00")
	assert.Error(t, err)
	_, err = ParseClock("")
	assert.ErrorIs(t, err, ErrEmptyClock)
}

func TestParseDate(t *testing.T) {
	_, err := ParseDate("2024-02-30")
	assert.Error(t, err)
	_, err = ParseDate(" ")
	assert.ErrorIs(t, err, ErrEmptyDate)

	d, err := ParseDate("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, Day{Year: 2024, Month: time.February, Day: 29}, d)
}
