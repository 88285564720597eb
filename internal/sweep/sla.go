// internal/sweep/sla.go
package sweep

import (
	"context"
	"math"
	"time"

	"leadrouter/internal/audit"
	"leadrouter/internal/common/config"
	"leadrouter/internal/common/logger"
	"leadrouter/internal/common/metrics"
	"leadrouter/internal/ledger"
	"leadrouter/internal/models"
	"leadrouter/internal/notify"
)

// SLAResult summarizes one SLA sweep run.
type SLAResult struct {
	WarningsSent int `json:"warningsSent"`
	OverdueSent  int `json:"overdueSent"`
}

// SLAMonitor sweeps the ledger for handoffs approaching or past their SLA
// deadline. Warnings are send-once per handoff; overdue alerts escalate
// until first contact, throttled to once per configured resend interval.
// Each notification follows the attempt-then-record discipline: the send is
// attempted first and the event recorded after, so a crash between the two
// leaves the condition looking unnotified and the next sweep re-attempts.
// The delivery channel is expected to tolerate the resulting duplicate
// better than a silent loss.
type SLAMonitor struct {
	ledger  *ledger.Ledger
	events  *ledger.EventStore
	gateway notify.Gateway
	audit   audit.Recorder
	cfg     config.RoutingConfig
	logger  logger.Logger
}

func NewSLAMonitor(ldg *ledger.Ledger, events *ledger.EventStore, gateway notify.Gateway, auditRec audit.Recorder, cfg config.RoutingConfig, log logger.Logger) *SLAMonitor {
	return &SLAMonitor{
		ledger:  ldg,
		events:  events,
		gateway: gateway,
		audit:   auditRec,
		cfg:     cfg,
		logger:  log.WithFields(map[string]interface{}{"sweep": "sla-monitor"}),
	}
}

// Sweep runs both SLA queries against the ledger. A persistence failure
// aborts the run cleanly; individual delivery failures are logged, counted,
// and do not stop the batch.
func (m *SLAMonitor) Sweep(ctx context.Context, now time.Time) (SLAResult, error) {
	start := time.Now()
	var result SLAResult
	now = now.UTC()

	warnings, err := m.ledger.WarningCandidates(ctx, now, m.cfg.WarningWindow())
	if err != nil {
		metrics.SweepRunsTotal.WithLabelValues("sla", "failed").Inc()
		return result, err
	}

	for _, h := range warnings {
		if m.warn(ctx, h, now) {
			result.WarningsSent++
		}
	}

	overdue, err := m.ledger.OverdueCandidates(ctx, now)
	if err != nil {
		metrics.SweepRunsTotal.WithLabelValues("sla", "failed").Inc()
		return result, err
	}

	for _, h := range overdue {
		if m.escalate(ctx, h, now) {
			result.OverdueSent++
		}
	}

	metrics.SweepRunsTotal.WithLabelValues("sla", "completed").Inc()
	metrics.SweepDuration.WithLabelValues("sla").Observe(time.Since(start).Seconds())
	m.audit.Record(ctx, "sla_sweep_completed", map[string]interface{}{
		"at":           now,
		"warningsSent": result.WarningsSent,
		"overdueSent":  result.OverdueSent,
		"candidates":   len(warnings) + len(overdue),
	})
	m.logger.Info("SLA sweep completed", map[string]interface{}{
		"warningsSent": result.WarningsSent,
		"overdueSent":  result.OverdueSent,
	})

	return result, nil
}

// warn sends the single deadline-approaching warning for a handoff.
func (m *SLAMonitor) warn(ctx context.Context, h *models.LeadHandoff, now time.Time) bool {
	sent, err := m.events.AlreadyDelivered(ctx, h.ID, models.KindWarning)
	if err != nil {
		m.logger.Warn("warning dedup check failed", map[string]interface{}{
			"handoffId": h.ID,
			"error":     err,
		})
		return false
	}
	if sent {
		return false
	}
	if m.attemptsExhausted(ctx, h.ID, models.KindWarning, now) {
		return false
	}

	hoursRemaining := 0.0
	if h.SLADeadline != nil {
		minutes := h.SLADeadline.Sub(now).Minutes()
		hoursRemaining = math.Max(0, math.Round(minutes/60*10)/10)
	}

	return m.deliver(ctx, h, models.Notice{
		HandoffID:      h.ID,
		Kind:           models.KindWarning,
		RecipientType:  models.RecipientVendor,
		RecipientID:    h.VendorID,
		ProspectID:     h.ProspectID,
		ServiceType:    h.ServiceType,
		Urgency:        h.Urgency,
		HoursRemaining: hoursRemaining,
	})
}

// escalate re-sends the overdue alert when the throttle interval has
// elapsed since the last delivered one.
func (m *SLAMonitor) escalate(ctx context.Context, h *models.LeadHandoff, now time.Time) bool {
	last, err := m.events.LastDeliveredAt(ctx, h.ID, models.KindOverdue)
	if err != nil {
		m.logger.Warn("overdue throttle check failed", map[string]interface{}{
			"handoffId": h.ID,
			"error":     err,
		})
		return false
	}
	if last != nil && now.Sub(*last) < time.Duration(m.cfg.OverdueResendHours)*time.Hour {
		return false
	}

	hoursOverdue := 0.0
	if h.SLADeadline != nil {
		minutes := now.Sub(*h.SLADeadline).Minutes()
		hoursOverdue = math.Max(0, math.Round(minutes/60*10)/10)
	}

	return m.deliver(ctx, h, models.Notice{
		HandoffID:     h.ID,
		Kind:          models.KindOverdue,
		RecipientType: models.RecipientVendor,
		RecipientID:   h.VendorID,
		ProspectID:    h.ProspectID,
		ServiceType:   h.ServiceType,
		Urgency:       h.Urgency,
		HoursOverdue:  hoursOverdue,
	})
}

// attemptsExhausted enforces the daily retry cap for send-once kinds whose
// deliveries keep failing.
func (m *SLAMonitor) attemptsExhausted(ctx context.Context, handoffID string, kind models.NotificationKind, now time.Time) bool {
	attempts, err := m.events.AttemptsSince(ctx, handoffID, kind, now.Add(-24*time.Hour))
	if err != nil {
		m.logger.Warn("attempt count check failed", map[string]interface{}{
			"handoffId": handoffID,
			"kind":      kind,
			"error":     err,
		})
		return false
	}
	if attempts >= m.cfg.MaxSendAttemptsPerDay {
		m.logger.Warn("daily send attempts exhausted", map[string]interface{}{
			"handoffId": handoffID,
			"kind":      kind,
			"attempts":  attempts,
		})
		return true
	}
	return false
}

// deliver attempts the send and records the outcome. A failed send records
// a non-delivered attempt so the dedup query keeps treating the condition
// as open while the retry cap still advances.
func (m *SLAMonitor) deliver(ctx context.Context, h *models.LeadHandoff, notice models.Notice) bool {
	delivery, err := m.gateway.Send(ctx, notice)
	if err != nil {
		metrics.NotificationsTotal.WithLabelValues(string(notice.Kind), "failed").Inc()
		m.logger.Error("notification delivery failed", map[string]interface{}{
			"handoffId": h.ID,
			"kind":      notice.Kind,
			"error":     err,
		})
		if recErr := m.events.Record(ctx, models.NotificationEvent{
			HandoffID: h.ID,
			Kind:      notice.Kind,
			Delivered: false,
		}); recErr != nil {
			m.logger.Warn("failed-attempt record failed", map[string]interface{}{
				"handoffId": h.ID,
				"error":     recErr,
			})
		}
		return false
	}

	metrics.NotificationsTotal.WithLabelValues(string(notice.Kind), "sent").Inc()
	if err := m.events.Record(ctx, models.NotificationEvent{
		HandoffID:  h.ID,
		Kind:       notice.Kind,
		Delivered:  delivery.Delivered,
		ExternalID: delivery.ExternalID,
	}); err != nil {
		// Recording failed after a successful send: the condition still
		// looks unnotified to the next sweep, which will re-attempt.
		m.logger.Warn("notification event record failed, next sweep may resend", map[string]interface{}{
			"handoffId": h.ID,
			"kind":      notice.Kind,
			"error":     err,
		})
	}
	return true
}
