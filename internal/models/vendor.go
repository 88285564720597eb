// internal/models/vendor.go
package models

// Vendor is a sales partner that can receive handed-off leads. Vendors are
// never deleted, only deactivated; current_load is derived from the set of
// handoffs in load-bearing states and is advisory input for ranking.
type Vendor struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	Email              string   `json:"email,omitempty"`
	Phone              string   `json:"phone,omitempty"`
	Specialties        []string `json:"specialties"`
	MaxConcurrentLeads int      `json:"maxConcurrentLeads"`
	CurrentLoad        int      `json:"currentLoad"`
	ConversionRate     float64  `json:"conversionRate"`     // 0..1
	AvgResponseMinutes float64  `json:"avgResponseMinutes"` // rolling average
	AvgRating          float64  `json:"avgRating"`          // 0..5
	Active             bool     `json:"active"`
}

// AtCapacity reports whether the vendor has no headroom for another lead.
func (v Vendor) AtCapacity() bool {
	return v.MaxConcurrentLeads > 0 && v.CurrentLoad >= v.MaxConcurrentLeads
}

// LoadRatio returns current load over capacity, clamped to [0, 1].
func (v Vendor) LoadRatio() float64 {
	if v.MaxConcurrentLeads <= 0 {
		return 1
	}
	ratio := float64(v.CurrentLoad) / float64(v.MaxConcurrentLeads)
	if ratio > 1 {
		return 1
	}
	return ratio
}
