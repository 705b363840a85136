package model

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Status is the lifecycle tag of an appointment.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusNoShow    Status = "no_show"
	StatusCancelled Status = "cancelled"
)

// IsCancelled reports whether s is the terminal cancelled tag, in either
// spelling.
func (s Status) IsCancelled() bool {
	switch strings.ToLower(strings.TrimSpace(string(s))) {
	case "cancelled", "canceled":
		return true
	default:
		return false
	}
}

// OrDefault returns s, or StatusScheduled when s is empty.
func (s Status) OrDefault() Status {
	if strings.TrimSpace(string(s)) == "" {
		return StatusScheduled
	}
	return s
}

// OpaqueID is an identifier that may be serialized as a JSON string or number.
// It always marshals back as a string.
type OpaqueID string

func (id *OpaqueID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = OpaqueID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = OpaqueID(n.String())
	return nil
}

// WireAppointment is the transport/persistence shape of an appointment.
// Instants are ISO-8601 strings; loosely typed fields stay untyped until
// they pass through the guards.
type WireAppointment struct {
	ID               OpaqueID `json:"id,omitempty"`
	StartDate        string   `json:"startDate,omitempty"`
	EndDate          string   `json:"endDate,omitempty"`
	EmployeeID       any      `json:"employeeId,omitempty"`
	EmployeeName     string   `json:"employeeName,omitempty"`
	CustomerID       OpaqueID `json:"customerId,omitempty"`
	CustomerFullName string   `json:"customerFullName,omitempty"`
	CustomerPhone    string   `json:"customerPhone,omitempty"`
	SelectedServices string   `json:"selectedServices,omitempty"`
	Duration         any      `json:"duration,omitempty"`
	Status           Status   `json:"status,omitempty"`
	Color            string   `json:"color,omitempty"`
}

// PresentationAppointment is the local, editable shape consumed by the UI.
//
// Date is YYYY-MM-DD and Start/End are HH:MM, all in the viewer's timezone.
// Staff/StaffID and Client/ClientName are aliases of each other; decode fills
// both and encode prefers StaffID and ClientName.
type PresentationAppointment struct {
	ID    string `json:"id,omitempty"`
	Date  string `json:"date,omitempty"`
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`

	// StartDate/EndDate carry raw instants for programmatic creation.
	// When set they are sent as-is instead of Date+Start/End.
	StartDate string `json:"startDate,omitempty"`
	EndDate   string `json:"endDate,omitempty"`

	Staff     any    `json:"staff,omitempty"`
	StaffID   any    `json:"staffId,omitempty"`
	StaffName string `json:"staffName,omitempty"`

	ClientID    any    `json:"clientId,omitempty"`
	Client      string `json:"client,omitempty"`
	ClientName  string `json:"clientName,omitempty"`
	ClientPhone string `json:"clientPhone,omitempty"`

	ServiceName string `json:"serviceName,omitempty"`
	Duration    string `json:"duration,omitempty"`
	Status      Status `json:"status,omitempty"`
	Color       string `json:"color,omitempty"`
	Title       string `json:"title,omitempty"`
}

// StaffRef returns the raw staff reference, preferring StaffID over Staff.
func (p PresentationAppointment) StaffRef() any {
	if p.StaffID != nil {
		return p.StaffID
	}
	return p.Staff
}

// CustomerName returns the customer display name, preferring ClientName.
func (p PresentationAppointment) CustomerName() string {
	if name := strings.TrimSpace(p.ClientName); name != "" {
		return name
	}
	return strings.TrimSpace(p.Client)
}

// StaffMember is a directory snapshot entry.
type StaffMember struct {
	ID    int32  `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}
