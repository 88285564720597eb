// internal/models/request.go
package models

import "strings"

// Urgency classifies a request's time-sensitivity. It drives both the SLA
// duration and the scoring weight table.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// ParseUrgency normalizes an urgency string. The upstream CRM speaks
// Portuguese tiers, so both alias sets are accepted. Anything unrecognized
// falls back to medium rather than failing.
func ParseUrgency(s string) Urgency {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low", "baixa":
		return UrgencyLow
	case "high", "alta":
		return UrgencyHigh
	case "medium", "media", "média", "":
		return UrgencyMedium
	default:
		return UrgencyMedium
	}
}

// RequestContext is the transient value object supplied per scoring call.
// It is not persisted by the routing core.
type RequestContext struct {
	ServiceType string  `json:"serviceType"`
	Urgency     Urgency `json:"urgency"`
}
