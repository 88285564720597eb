// internal/sweep/feedback.go
package sweep

import (
	"context"
	"time"

	"leadrouter/internal/audit"
	"leadrouter/internal/common/config"
	"leadrouter/internal/common/logger"
	"leadrouter/internal/common/metrics"
	"leadrouter/internal/ledger"
	"leadrouter/internal/models"
	"leadrouter/internal/notify"
)

// FeedbackResult summarizes one feedback sweep run.
type FeedbackResult struct {
	Requested int `json:"requested"`
}

// FeedbackScheduler sweeps for handoffs old enough for a post-hoc quality
// feedback request. Eligibility is a fixed window after creation, not "N
// days or older": a handoff whose window passes without a sweep running is
// never revisited by this sweep alone, so the sweep cadence must be at
// least daily. That operational constraint is deliberate and kept from the
// source system; the window bounds are configurable.
type FeedbackScheduler struct {
	ledger  *ledger.Ledger
	events  *ledger.EventStore
	gateway notify.Gateway
	audit   audit.Recorder
	cfg     config.RoutingConfig
	logger  logger.Logger
}

func NewFeedbackScheduler(ldg *ledger.Ledger, events *ledger.EventStore, gateway notify.Gateway, auditRec audit.Recorder, cfg config.RoutingConfig, log logger.Logger) *FeedbackScheduler {
	return &FeedbackScheduler{
		ledger:  ldg,
		events:  events,
		gateway: gateway,
		audit:   auditRec,
		cfg:     cfg,
		logger:  log.WithFields(map[string]interface{}{"sweep": "feedback-scheduler"}),
	}
}

// Sweep requests feedback from the originating SDR for every eligible
// handoff, send-once per handoff.
func (f *FeedbackScheduler) Sweep(ctx context.Context, now time.Time) (FeedbackResult, error) {
	start := time.Now()
	var result FeedbackResult
	now = now.UTC()

	windowStart := now.Add(-time.Duration(f.cfg.FeedbackWindowDaysMax) * 24 * time.Hour)
	windowEnd := now.Add(-time.Duration(f.cfg.FeedbackWindowDaysMin) * 24 * time.Hour)

	candidates, err := f.ledger.FeedbackCandidates(ctx, windowStart, windowEnd)
	if err != nil {
		metrics.SweepRunsTotal.WithLabelValues("feedback", "failed").Inc()
		return result, err
	}

	for _, h := range candidates {
		if f.request(ctx, h, now) {
			result.Requested++
		}
	}

	metrics.SweepRunsTotal.WithLabelValues("feedback", "completed").Inc()
	metrics.SweepDuration.WithLabelValues("feedback").Observe(time.Since(start).Seconds())
	f.audit.Record(ctx, "feedback_sweep_completed", map[string]interface{}{
		"at":         now,
		"requested":  result.Requested,
		"candidates": len(candidates),
	})
	f.logger.Info("feedback sweep completed", map[string]interface{}{
		"requested":  result.Requested,
		"candidates": len(candidates),
	})

	return result, nil
}

func (f *FeedbackScheduler) request(ctx context.Context, h *models.LeadHandoff, now time.Time) bool {
	sent, err := f.events.AlreadyDelivered(ctx, h.ID, models.KindFeedback)
	if err != nil {
		f.logger.Warn("feedback dedup check failed", map[string]interface{}{
			"handoffId": h.ID,
			"error":     err,
		})
		return false
	}
	if sent {
		return false
	}

	attempts, err := f.events.AttemptsSince(ctx, h.ID, models.KindFeedback, now.Add(-24*time.Hour))
	if err == nil && attempts >= f.cfg.MaxSendAttemptsPerDay {
		return false
	}

	delivery, err := f.gateway.Send(ctx, models.Notice{
		HandoffID:     h.ID,
		Kind:          models.KindFeedback,
		RecipientType: models.RecipientSDR,
		RecipientID:   h.SDRID,
		ProspectID:    h.ProspectID,
		ServiceType:   h.ServiceType,
		Urgency:       h.Urgency,
	})
	if err != nil {
		metrics.NotificationsTotal.WithLabelValues(string(models.KindFeedback), "failed").Inc()
		f.logger.Error("feedback request delivery failed", map[string]interface{}{
			"handoffId": h.ID,
			"error":     err,
		})
		_ = f.events.Record(ctx, models.NotificationEvent{
			HandoffID: h.ID,
			Kind:      models.KindFeedback,
			Delivered: false,
		})
		return false
	}

	metrics.NotificationsTotal.WithLabelValues(string(models.KindFeedback), "sent").Inc()
	if err := f.events.Record(ctx, models.NotificationEvent{
		HandoffID:  h.ID,
		Kind:       models.KindFeedback,
		Delivered:  delivery.Delivered,
		ExternalID: delivery.ExternalID,
	}); err != nil {
		f.logger.Warn("feedback event record failed, next sweep may resend", map[string]interface{}{
			"handoffId": h.ID,
			"error":     err,
		})
	}
	return true
}
