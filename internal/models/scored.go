// internal/models/scored.go
package models

// BadgeTopPick marks the first-ranked recommendation.
const BadgeTopPick = "top pick"

// SubScores are the normalized (0..1) components behind a composite score.
type SubScores struct {
	Specialty       float64 `json:"specialtyScore"`
	Workload        float64 `json:"workloadScore"`
	ConversionRate  float64 `json:"conversionRate"`
	ResponseMinutes float64 `json:"responseScore"`
	AverageRating   float64 `json:"averageRating"`
}

// ScoredVendor is the output-only projection returned by the recommendation
// path. Ordering is composite score descending, ties broken by lower current
// load, then by higher conversion rate.
type ScoredVendor struct {
	VendorID       string    `json:"vendorId"`
	VendorName     string    `json:"vendorName"`
	Score          float64   `json:"score"`
	SubScores      SubScores `json:"subScores"`
	Reason         string    `json:"reason"`
	Badge          string    `json:"badge,omitempty"`
	CurrentLoad    int       `json:"currentLoad"`
	ConversionRate float64   `json:"rawConversionRate"`
	AtCapacity     bool      `json:"atCapacity"`
}

// Less implements the ranking order between two scored vendors.
func (s ScoredVendor) Less(other ScoredVendor) bool {
	const eps = 1e-9
	if diff := s.Score - other.Score; diff > eps || diff < -eps {
		return s.Score > other.Score
	}
	if s.CurrentLoad != other.CurrentLoad {
		return s.CurrentLoad < other.CurrentLoad
	}
	return s.ConversionRate > other.ConversionRate
}
