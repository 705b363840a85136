package batch

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apptsync/internal/codec"
	"apptsync/internal/identity"
	"apptsync/internal/model"
	"apptsync/internal/visibility"
)

const knownCustomer = "clx8k2m9p0000abcdefgh1234"

func newMapper() Mapper {
	return New(codec.New(time.UTC, ""), identity.NewResolver(nil, "972"))
}

func TestEncodeOneIdentityPaths(t *testing.T) {
	m := newMapper()
	base := model.PresentationAppointment{
		Date:        "2024-06-01",
		Start:       "09:00",
		End:         "09:30",
		ClientName:  "Dana Levi",
		ClientPhone: "050-123-4567",
	}

	t.Run("content identifier", func(t *testing.T) {
		p := base
		p.ClientID = knownCustomer
		w := m.EncodeOne(p)
		assert.Equal(t, model.OpaqueID(knownCustomer), w.CustomerID)
		assert.Empty(t, w.CustomerFullName)
		assert.Empty(t, w.CustomerPhone)
	})

	t.Run("draft identifier", func(t *testing.T) {
		p := base
		p.ClientID = "tmp-3"
		w := m.EncodeOne(p)
		assert.Empty(t, w.CustomerID)
		assert.Equal(t, "Dana Levi", w.CustomerFullName)
		assert.Equal(t, "+972501234567", w.CustomerPhone)
	})

	t.Run("client alias", func(t *testing.T) {
		p := base
		p.ClientName = ""
		p.Client = "Dana"
		assert.Equal(t, "Dana", m.EncodeOne(p).CustomerFullName)
	})
}

func TestEncodeAllPayload(t *testing.T) {
	m := newMapper()
	ps := []model.PresentationAppointment{
		{Date: "2024-06-01", Start: "09:00", StaffID: 3},
		{Date: "2024-06-01", Start: "10:00", StaffID: int64(1700000000000)},
	}

	raw, err := json.Marshal(m.EncodeAll(ps))
	require.NoError(t, err)

	var got struct {
		Appointments []map[string]any `json:"appointments"`
	}
	require.NoError(t, json.Unmarshal(raw, &got))
	require.Len(t, got.Appointments, 2)
	assert.Equal(t, float64(3), got.Appointments[0]["employeeId"])
	assert.NotContains(t, got.Appointments[1], "employeeId")
	assert.Equal(t, "2024-06-01T10:00:00.000Z", got.Appointments[1]["startDate"])
}

func TestDecodeAllResilience(t *testing.T) {
	m := newMapper()
	e := visibility.New(time.UTC, 0)

	ws := make([]model.WireAppointment, 0, 10)
	for i := 0; i < 10; i++ {
		ws = append(ws, model.WireAppointment{
			ID:        model.OpaqueID(fmt.Sprintf("a%d", i)),
			StartDate: fmt.Sprintf("2024-06-01T%02d:00:00Z", 8+i),
			EndDate:   fmt.Sprintf("2024-06-01T%02d:30:00Z", 8+i),
		})
	}
	ws[4].StartDate = "2024-13-45T99:00:00Z"

	ps := m.DecodeAll(ws)
	require.Len(t, ps, 10)

	results := e.EvaluateAll(ps,
		time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC),
		model.FilterConfig{StaffSelectionMode: model.StaffModeAll},
	)

	var visible, hidden int
	for _, r := range results {
		if r.Renderable {
			visible++
			continue
		}
		hidden++
		assert.Equal(t, "a4", r.Appointment.ID)
		assert.Equal(t, model.ReasonMissingDate, r.Reason)
	}
	assert.Equal(t, 9, visible)
	assert.Equal(t, 1, hidden)
}

func TestDecodeRaw(t *testing.T) {
	m := newMapper()

	var raws []json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(`[
		{"id": 17, "startDate": "2024-06-01T09:00:00Z", "employeeId": "4", "duration": 30},
		"not an object",
		{"id": "b", "startDate": 12},
		{"id": "c", "startDate": "garbage"},
		{"id": "d", "startDate": "2024-06-01T10:00:00Z", "employeeName": 5, "employeeId": 3},
		[1, 2]
	]`), &raws))

	res := m.DecodeRaw(raws)

	want := []Rejection{
		{Index: 1, Reason: ReasonMalformedRecord},
		{Index: 5, Reason: ReasonMalformedRecord},
	}
	if diff := cmp.Diff(want, res.Rejected, cmp.FilterPath(func(p cmp.Path) bool {
		return p.Last().String() == ".Detail"
	}, cmp.Ignore())); diff != "" {
		t.Fatalf("rejections mismatch (-want +got):\n%s", diff)
	}

	require.Len(t, res.Appointments, 4)
	first := res.Appointments[0]
	assert.Equal(t, "17", first.ID)
	assert.Equal(t, "09:00", first.Start)
	assert.Equal(t, int32(4), first.StaffID)
	assert.Equal(t, "30", first.Duration)

	assert.Equal(t, "b", res.Appointments[1].ID)
	assert.Empty(t, res.Appointments[1].Date)

	assert.Equal(t, "c", res.Appointments[2].ID)
	assert.Empty(t, res.Appointments[2].Date)

	mistyped := res.Appointments[3]
	assert.Equal(t, "d", mistyped.ID)
	assert.Equal(t, "10:00", mistyped.Start)
	assert.Equal(t, int32(3), mistyped.StaffID)
	assert.Empty(t, mistyped.StaffName)
}

func TestDecodeRawMistypedStartReportsMissingDate(t *testing.T) {
	m := newMapper()
	res := m.DecodeRaw([]json.RawMessage{json.RawMessage(`{"id": "x", "startDate": 12}`)})
	require.Empty(t, res.Rejected)
	require.Len(t, res.Appointments, 1)

	from := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	results := visibility.New(time.UTC, 0).EvaluateAll(res.Appointments, from, from.AddDate(0, 0, 1),
		model.FilterConfig{StaffSelectionMode: model.StaffModeAll})
	require.Len(t, results, 1)
	assert.Equal(t, "x", results[0].Appointment.ID)
	assert.False(t, results[0].Renderable)
	assert.Equal(t, model.ReasonMissingDate, results[0].Reason)
}
