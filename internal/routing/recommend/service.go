// internal/routing/recommend/service.go
package recommend

import (
	"context"
	"strings"

	"leadrouter/internal/common/errors"
	"leadrouter/internal/common/logger"
	"leadrouter/internal/common/metrics"
	"leadrouter/internal/models"
	"leadrouter/internal/routing/scoring"
)

// Directory is the vendor data source consumed by the service. Current load
// and capacity must be as of read time; staleness is acceptable because the
// ranking is advisory.
type Directory interface {
	ListActiveVendors(ctx context.Context) ([]models.Vendor, error)
}

// Service orchestrates the scoring engine against live vendor state and
// returns the full ranked sequence. Truncation to top-N is a presentation
// concern left to the caller.
type Service struct {
	directory Directory
	engine    *scoring.Engine
	logger    logger.Logger
}

func NewService(directory Directory, engine *scoring.Engine, log logger.Logger) *Service {
	return &Service{
		directory: directory,
		engine:    engine,
		logger:    log.WithFields(map[string]interface{}{"component": "recommendation-service"}),
	}
}

// Recommend ranks all active vendors for the request, excluding inactive
// vendors and, when given, the vendor that just rejected the lead. An empty
// filtered set yields a NO_VENDORS_AVAILABLE error: reportable, not fatal.
func (s *Service) Recommend(ctx context.Context, req models.RequestContext, excludeVendorID string) ([]models.ScoredVendor, error) {
	if strings.TrimSpace(req.ServiceType) == "" {
		return nil, errors.NewInvalidRequestContextError("service_type must not be empty")
	}
	if req.Urgency == "" {
		req.Urgency = models.UrgencyMedium
	}

	vendors, err := s.directory.ListActiveVendors(ctx)
	if err != nil {
		return nil, errors.NewPersistenceFailureError("list active vendors", err)
	}

	candidates := vendors[:0]
	for _, v := range vendors {
		if !v.Active || v.ID == excludeVendorID {
			continue
		}
		candidates = append(candidates, v)
	}

	if len(candidates) == 0 {
		metrics.RecommendationsEmpty.Inc()
		s.logger.Warn("no vendors available", map[string]interface{}{
			"serviceType":     req.ServiceType,
			"urgency":         req.Urgency,
			"excludeVendorId": excludeVendorID,
		})
		return nil, errors.NewNoVendorsAvailableError(req.ServiceType)
	}

	ranked := s.engine.Rank(candidates, req)
	if len(ranked) > 0 {
		ranked[0].Badge = models.BadgeTopPick
	}

	metrics.RecommendationsTotal.WithLabelValues(string(req.Urgency)).Inc()
	s.logger.Info("recommendations computed", map[string]interface{}{
		"serviceType": req.ServiceType,
		"urgency":     req.Urgency,
		"candidates":  len(candidates),
		"topVendor":   ranked[0].VendorID,
		"topScore":    ranked[0].Score,
	})

	return ranked, nil
}
