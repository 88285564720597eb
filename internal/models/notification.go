// internal/models/notification.go
package models

import "time"

// NotificationKind enumerates the conditions the sweeps and the ledger can
// notify about.
type NotificationKind string

const (
	KindWarning   NotificationKind = "warning"
	KindOverdue   NotificationKind = "overdue"
	KindFeedback  NotificationKind = "feedback_request"
	KindUrgent    NotificationKind = "urgent"
	KindConverted NotificationKind = "converted"
)

// SendOnce reports whether at most one delivered event may exist per
// (handoff, kind). Overdue is the deliberate exception: severity persists,
// so overdue alerts escalate on a throttled cadence until first contact.
func (k NotificationKind) SendOnce() bool {
	return k != KindOverdue
}

// Recipient types for notification delivery.
const (
	RecipientVendor = "vendor"
	RecipientSDR    = "sdr"
)

// Notice is the delivery context handed to the notification gateway.
type Notice struct {
	HandoffID      string           `json:"handoffId"`
	Kind           NotificationKind `json:"kind"`
	RecipientType  string           `json:"recipientType"`
	RecipientID    string           `json:"recipientId"`
	ProspectID     string           `json:"prospectId,omitempty"`
	ServiceType    string           `json:"serviceType,omitempty"`
	Urgency        Urgency          `json:"urgency,omitempty"`
	HoursRemaining float64          `json:"hoursRemaining,omitempty"`
	HoursOverdue   float64          `json:"hoursOverdue,omitempty"`
}

// NotificationEvent records a single notification attempt for a handoff.
// A partial uniqueness constraint at the data layer guarantees at most one
// delivered event per (handoff, kind) for the send-once kinds.
type NotificationEvent struct {
	ID         string           `json:"id"`
	HandoffID  string           `json:"handoffId"`
	Kind       NotificationKind `json:"kind"`
	Delivered  bool             `json:"delivered"`
	ExternalID string           `json:"externalId,omitempty"`
	CreatedAt  time.Time        `json:"createdAt"`
}
