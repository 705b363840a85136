package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"apptsync/internal/batch"
	"apptsync/internal/guard"
	appLog "apptsync/internal/log"
	"apptsync/internal/model"
	"apptsync/internal/upstream"
	"apptsync/internal/visibility"
)

const (
	defaultDays = 7
	maxDays     = 366

	maxJSONBody = 1 << 20
)

// appointmentsResponse is the JSON response shape for GET /api/appointments.
type appointmentsResponse struct {
	Appointments []visibility.Result `json:"appointments"`
	Rejected     []batch.Rejection   `json:"rejected"`
	RangeStart   time.Time           `json:"range_start"`
	RangeEnd     time.Time           `json:"range_end"`
	Timezone     string              `json:"timezone"`
	FromCache    bool                `json:"from_cache"`
}

type batchRequest struct {
	Appointments []model.PresentationAppointment `json:"appointments"`
}

// handleListAppointments returns every appointment overlapping the window
// with its visibility verdict.
//
// GET /api/appointments?start=&end=&days=7&staffMode=all&staff=1,2&visible=1
//   - start/end: ISO-8601 instants; when absent the window is today 00:00
//     local through days later
//   - staffMode: "all", "custom", or a single staff id
//   - staff:     selected staff ids for "custom" (repeatable or comma separated)
//   - visible:   when truthy only renderable appointments are returned
func (s *Server) handleListAppointments(w http.ResponseWriter, r *http.Request) {
	win, filter, err := s.parseQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	results, rejected, fromCache, err := s.evaluateWindow(r, win, filter)
	if err != nil {
		writeUpstreamError(w, r, err)
		return
	}

	if truthy(r.URL.Query().Get("visible")) {
		kept := results[:0]
		for _, res := range results {
			if res.Renderable {
				kept = append(kept, res)
			}
		}
		results = kept
	}
	if rejected == nil {
		rejected = []batch.Rejection{}
	}

	writeJSON(w, http.StatusOK, appointmentsResponse{
		Appointments: results,
		Rejected:     rejected,
		RangeStart:   win.Start,
		RangeEnd:     win.End,
		Timezone:     s.loc.String(),
		FromCache:    fromCache,
	})
}

// evaluateWindow fetches, decodes, enriches and evaluates the appointments
// for win.
func (s *Server) evaluateWindow(r *http.Request, win visibility.Window, filter model.FilterConfig) ([]visibility.Result, []batch.Rejection, bool, error) {
	list, err := s.store.ListAppointments(r.Context(), win.Start, win.End)
	if err != nil {
		return nil, nil, false, err
	}

	decoded := s.mapper.DecodeRaw(list.Records)
	apps := decoded.Appointments
	if s.dir != nil {
		apps = s.dir.Snapshot().Enrich(apps)
	}
	results := s.evaluator.EvaluateAll(apps, win.Start, win.End, filter)

	appLog.FromContext(r.Context()).Info("appointments evaluated",
		"range_start", win.Start.Format(time.RFC3339),
		"range_end", win.End.Format(time.RFC3339),
		"count", len(results),
		"rejected", len(decoded.Rejected),
		"from_cache", list.FromCache,
	)
	return results, decoded.Rejected, list.FromCache, nil
}

func (s *Server) handleCreateAppointment(w http.ResponseWriter, r *http.Request) {
	var p model.PresentationAppointment
	if err := decodeBody(w, r, &p); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := s.store.CreateAppointment(r.Context(), s.mapper.EncodeOne(p), r.Header.Get(upstream.IdempotencyHeader))
	if err != nil {
		writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.present(created))
}

func (s *Server) handleCreateBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Appointments) == 0 {
		writeError(w, http.StatusBadRequest, "appointments is empty")
		return
	}

	res, err := s.createBatch(r, req.Appointments)
	if err != nil {
		writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// createBatch encodes drafts, sends them as one batch and decodes whatever
// the service returns.
func (s *Server) createBatch(r *http.Request, drafts []model.PresentationAppointment) (batch.DecodeResult, error) {
	records, err := s.store.CreateAppointments(r.Context(), s.mapper.EncodeAll(drafts), r.Header.Get(upstream.IdempotencyHeader))
	if err != nil {
		return batch.DecodeResult{}, err
	}
	res := s.mapper.DecodeRaw(records)
	if s.dir != nil {
		res.Appointments = s.dir.Snapshot().Enrich(res.Appointments)
	}
	return res, nil
}

func (s *Server) handleUpdateAppointment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var p model.PresentationAppointment
	if err := decodeBody(w, r, &p); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p.ID = id

	updated, err := s.store.UpdateAppointment(r.Context(), id, s.mapper.EncodeOne(p))
	if err != nil {
		writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.present(updated))
}

func (s *Server) handleDeleteAppointment(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteAppointment(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeUpstreamError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) present(wire model.WireAppointment) model.PresentationAppointment {
	p := s.mapper.Codec.Decode(wire)
	if s.dir != nil {
		p = s.dir.Snapshot().Enrich([]model.PresentationAppointment{p})[0]
	}
	return p
}

// parseQuery reads the window and staff filter shared by the list and
// calendar endpoints.
func (s *Server) parseQuery(r *http.Request) (visibility.Window, model.FilterConfig, error) {
	q := r.URL.Query()

	var win visibility.Window
	if q.Get("start") != "" || q.Get("end") != "" {
		var err error
		win, err = visibility.ParseWindow(q.Get("start"), q.Get("end"))
		if err != nil {
			return visibility.Window{}, model.FilterConfig{}, err
		}
	} else {
		days := parseIntDefault(q.Get("days"), defaultDays)
		if days <= 0 || days > maxDays {
			return visibility.Window{}, model.FilterConfig{}, fmt.Errorf("days must be between 1 and %d", maxDays)
		}
		win = visibility.DaysFrom(s.now(), s.loc, days)
	}

	filter := model.FilterConfig{StaffSelectionMode: strings.TrimSpace(q.Get("staffMode"))}
	if filter.StaffSelectionMode == "" {
		filter.StaffSelectionMode = model.StaffModeAll
	}
	for _, raw := range q["staff"] {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, ok := guard.ValidateBoundedRef(part)
			if !ok {
				return visibility.Window{}, model.FilterConfig{}, fmt.Errorf("invalid staff id %q", part)
			}
			filter.SelectedStaff = append(filter.SelectedStaff, id)
		}
	}
	return win, filter, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return errors.New("request body too large")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
