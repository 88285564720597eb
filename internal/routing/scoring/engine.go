// internal/routing/scoring/engine.go
package scoring

import (
	"sort"
	"strings"

	"leadrouter/internal/common/config"
	"leadrouter/internal/models"
)

// Specialty match grades. No-match keeps a non-zero floor so vendors are
// never fully excluded when no specialist exists.
const (
	specialtyExact   = 1.0
	specialtyPartial = 0.6
	specialtyFloor   = 0.2
)

// Engine ranks vendors for a request context. It is a pure function of its
// inputs and the weight tables it was built with: no I/O, no clock, no
// randomness.
type Engine struct {
	weights map[string]config.WeightSet
}

func NewEngine(weights map[string]config.WeightSet) *Engine {
	return &Engine{weights: weights}
}

// Score computes the weighted composite score of a single vendor for the
// given request context.
func (e *Engine) Score(v models.Vendor, req models.RequestContext) models.ScoredVendor {
	w := e.weightsFor(req.Urgency)

	sub := models.SubScores{
		Specialty:       specialtyScore(req.ServiceType, v.Specialties),
		Workload:        workloadScore(v),
		ConversionRate:  clamp01(v.ConversionRate),
		ResponseMinutes: responseScore(v.AvgResponseMinutes),
		AverageRating:   clamp01(v.AvgRating / 5.0),
	}

	composite := w.Specialty*sub.Specialty +
		w.Workload*sub.Workload +
		w.Conversion*sub.ConversionRate +
		w.Rating*sub.AverageRating +
		w.ResponseTime*sub.ResponseMinutes

	return models.ScoredVendor{
		VendorID:       v.ID,
		VendorName:     v.Name,
		Score:          composite,
		SubScores:      sub,
		Reason:         buildReason(sub, v.AtCapacity()),
		CurrentLoad:    v.CurrentLoad,
		ConversionRate: v.ConversionRate,
		AtCapacity:     v.AtCapacity(),
	}
}

// Rank scores every vendor and returns them in recommendation order:
// composite score descending, ties broken by lower current load, then by
// higher conversion rate. An empty input yields an empty result, not an
// error.
func (e *Engine) Rank(vendors []models.Vendor, req models.RequestContext) []models.ScoredVendor {
	if len(vendors) == 0 {
		return []models.ScoredVendor{}
	}

	scored := make([]models.ScoredVendor, 0, len(vendors))
	for _, v := range vendors {
		scored = append(scored, e.Score(v, req))
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Less(scored[j])
	})

	return scored
}

func (e *Engine) weightsFor(urgency models.Urgency) config.WeightSet {
	if w, ok := e.weights[string(urgency)]; ok {
		return w
	}
	return e.weights[string(models.UrgencyMedium)]
}

// specialtyScore grades the match between the requested service type and the
// vendor's specialty set: exact match, then partial/category match, then the
// non-zero floor.
func specialtyScore(serviceType string, specialties []string) float64 {
	requested := strings.ToLower(strings.TrimSpace(serviceType))
	if requested == "" {
		return specialtyFloor
	}

	best := specialtyFloor
	for _, s := range specialties {
		specialty := strings.ToLower(strings.TrimSpace(s))
		if specialty == "" {
			continue
		}
		if specialty == requested {
			return specialtyExact
		}
		if strings.Contains(specialty, requested) || strings.Contains(requested, specialty) {
			best = specialtyPartial
		}
	}
	return best
}

// workloadScore is the inverse of the load ratio. A vendor at or above
// capacity scores zero but stays in the result set, flagged via AtCapacity.
func workloadScore(v models.Vendor) float64 {
	if v.MaxConcurrentLeads <= 0 {
		return 0
	}
	return clamp01(1.0 - v.LoadRatio())
}

// responseScore grades the rolling average first-response time. Lower is
// better; the grades are deterministic thresholds, not a continuous curve,
// so small noise in the rolling average does not reshuffle rankings.
func responseScore(minutes float64) float64 {
	switch {
	case minutes <= 0:
		return 0.5 // no history yet, neutral
	case minutes <= 15:
		return 1.0
	case minutes <= 30:
		return 0.85
	case minutes <= 60:
		return 0.7
	case minutes <= 120:
		return 0.5
	case minutes <= 240:
		return 0.3
	default:
		return 0.1
	}
}

// buildReason names the sub-scores that dominate the composite.
func buildReason(sub models.SubScores, atCapacity bool) string {
	var parts []string

	switch sub.Specialty {
	case specialtyExact:
		parts = append(parts, "exact specialty match")
	case specialtyPartial:
		parts = append(parts, "related specialty")
	}

	if atCapacity {
		parts = append(parts, "currently at capacity")
	} else if sub.Workload >= 0.7 {
		parts = append(parts, "low current workload")
	}

	if sub.ConversionRate >= 0.6 {
		parts = append(parts, "strong conversion history")
	}
	if sub.ResponseMinutes >= 0.85 {
		parts = append(parts, "fast first response")
	}
	if sub.AverageRating >= 0.9 {
		parts = append(parts, "top rated")
	}

	if len(parts) == 0 {
		return "balanced profile"
	}
	return strings.Join(parts, ", ")
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
