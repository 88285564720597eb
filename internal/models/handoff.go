// internal/models/handoff.go
package models

import "time"

// HandoffStatus enumerates the lead handoff state machine.
type HandoffStatus string

const (
	StatusCreated   HandoffStatus = "created"
	StatusAssigned  HandoffStatus = "assigned"
	StatusAccepted  HandoffStatus = "accepted"
	StatusRejected  HandoffStatus = "rejected"
	StatusConverted HandoffStatus = "converted"
	StatusLost      HandoffStatus = "lost"
	StatusCompleted HandoffStatus = "completed"
)

// IsTerminal reports whether the status ends the handoff lifecycle.
func (s HandoffStatus) IsTerminal() bool {
	switch s {
	case StatusConverted, StatusLost, StatusCompleted, StatusRejected:
		return true
	}
	return false
}

// CountsTowardLoad reports whether a handoff in this status occupies a slot
// of its vendor's concurrent-lead capacity.
func (s HandoffStatus) CountsTowardLoad() bool {
	return s == StatusAssigned || s == StatusAccepted
}

// LeadHandoff tracks a single lead-to-vendor transfer from creation through
// a terminal outcome. SLADeadline is computed once at assignment and is
// immutable afterwards; only FirstContactAt can neutralize an SLA breach.
type LeadHandoff struct {
	ID             string        `json:"id"`
	ProspectID     string        `json:"prospectId"`
	VendorID       string        `json:"vendorId,omitempty"`
	SDRID          string        `json:"sdrId"`
	ServiceType    string        `json:"serviceType"`
	Urgency        Urgency       `json:"urgency"`
	Status         HandoffStatus `json:"status"`
	CreatedAt      time.Time     `json:"createdAt"`
	AssignedAt     *time.Time    `json:"assignedAt,omitempty"`
	AcceptedAt     *time.Time    `json:"acceptedAt,omitempty"`
	FirstContactAt *time.Time    `json:"firstContactAt,omitempty"`
	SLADeadline    *time.Time    `json:"slaDeadline,omitempty"`
	QualityScore   *int          `json:"qualityScore,omitempty"`
	ClosedAt       *time.Time    `json:"closedAt,omitempty"`
}

// SLAAtRisk reports whether the handoff is still exposed to its SLA, i.e.
// accepted with no first contact logged yet.
func (h *LeadHandoff) SLAAtRisk() bool {
	return h.Status == StatusAccepted && h.FirstContactAt == nil && h.SLADeadline != nil
}
