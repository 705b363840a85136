package web

import (
	"net/http"
	"time"

	"apptsync/internal/model"
)

type staffResponse struct {
	Staff     []model.StaffMember `json:"staff"`
	UpdatedAt *time.Time          `json:"updated_at,omitempty"`
}

// handleStaff returns the current directory snapshot. refresh=1 refreshes
// it from the persistence service first.
func (s *Server) handleStaff(w http.ResponseWriter, r *http.Request) {
	if s.dir == nil {
		writeJSON(w, http.StatusOK, staffResponse{Staff: []model.StaffMember{}})
		return
	}

	if truthy(r.URL.Query().Get("refresh")) {
		if err := s.dir.Refresh(r.Context()); err != nil {
			writeUpstreamError(w, r, err)
			return
		}
	}

	snap := s.dir.Snapshot()
	resp := staffResponse{Staff: snap.Staff}
	if resp.Staff == nil {
		resp.Staff = []model.StaffMember{}
	}
	if !snap.UpdatedAt.IsZero() {
		at := snap.UpdatedAt
		resp.UpdatedAt = &at
	}
	writeJSON(w, http.StatusOK, resp)
}
