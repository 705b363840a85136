package model

// Reason explains why an appointment is not renderable.
type Reason string

const (
	ReasonMissingID          Reason = "missing_id"
	ReasonMissingDate        Reason = "missing_date"
	ReasonMissingStart       Reason = "missing_start"
	ReasonInvalidDateParsing Reason = "invalid_date_parsing"
	ReasonInvalidStartDate   Reason = "invalid_start_date"
	ReasonInvalidEndDate     Reason = "invalid_end_date"
	ReasonEndBeforeStart     Reason = "end_before_or_equal_start"
	ReasonOutsideRange       Reason = "outside_range"
	ReasonStatusCancelled    Reason = "status_cancelled"
	ReasonNoTeamSelected     Reason = "staff_filter_no_team_selected"
	ReasonNotInTeam          Reason = "staff_filter_not_in_team"
	ReasonStaffMismatch      Reason = "staff_filter_mismatch"
)

// Staff selection modes. Any other mode value is either a single staff id
// or, when it is not a usable id, means no staff filtering.
const (
	StaffModeAll    = "all"
	StaffModeCustom = "custom"
)

// FilterConfig is the active display filter configuration.
type FilterConfig struct {
	StaffSelectionMode string  `json:"staffSelectionMode"`
	SelectedStaff      []int32 `json:"selectedStaffSet"`
}

// HasStaff reports whether id is part of the selected staff set.
func (f FilterConfig) HasStaff(id int32) bool {
	for _, s := range f.SelectedStaff {
		if s == id {
			return true
		}
	}
	return false
}

// Verdict is the eligibility outcome for one appointment.
type Verdict struct {
	Renderable bool   `json:"renderable"`
	Reason     Reason `json:"reason,omitempty"`
}

// Visible is the renderable verdict.
func Visible() Verdict { return Verdict{Renderable: true} }

// Hidden returns a non-renderable verdict with the given reason.
func Hidden(r Reason) Verdict { return Verdict{Reason: r} }
