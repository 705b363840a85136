package web

import (
	"errors"
	"io"
	"net/http"

	"apptsync/internal/batch"
	"apptsync/internal/ics"
	appLog "apptsync/internal/log"
	"apptsync/internal/model"
	"apptsync/internal/visibility"
)

const maxICSBody = 5 << 20

type importResponse struct {
	Created  []model.PresentationAppointment `json:"created"`
	Drafts   []model.PresentationAppointment `json:"drafts,omitempty"`
	Rejected []batch.Rejection               `json:"rejected"`
	Skipped  []ics.Skipped                   `json:"skipped"`
	DryRun   bool                            `json:"dry_run"`
}

// handleExport serves the renderable appointments of the window as an
// iCalendar feed. It accepts the same query parameters as the list endpoint.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	win, filter, err := s.parseQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	results, _, _, err := s.evaluateWindow(r, win, filter)
	if err != nil {
		writeUpstreamError(w, r, err)
		return
	}

	exp := ics.Exporter{Evaluator: s.evaluator, Name: "Appointments", Now: s.now}
	feed, _ := exp.Export(visibility.Renderable(results))

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="appointments.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, feed)
}

// handleImport reads an iCalendar body and batch-creates one appointment per
// timed, non-recurring event. With dryRun=1 the drafts are returned and
// nothing is written.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxICSBody))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "calendar too large")
			return
		}
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	parsed, err := ics.Import(body, s.mapper.Codec)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := importResponse{
		Created:  []model.PresentationAppointment{},
		Rejected: []batch.Rejection{},
		Skipped:  parsed.Skipped,
		DryRun:   truthy(r.URL.Query().Get("dryRun")),
	}
	if resp.DryRun || len(parsed.Drafts) == 0 {
		resp.Drafts = parsed.Drafts
		writeJSON(w, http.StatusOK, resp)
		return
	}

	res, err := s.createBatch(r, parsed.Drafts)
	if err != nil {
		writeUpstreamError(w, r, err)
		return
	}
	resp.Created = res.Appointments
	if res.Rejected != nil {
		resp.Rejected = res.Rejected
	}

	appLog.FromContext(r.Context()).Info("calendar imported",
		"created", len(resp.Created),
		"skipped", len(resp.Skipped),
		"rejected", len(resp.Rejected),
	)
	writeJSON(w, http.StatusCreated, resp)
}
