// internal/ledger/ledger.go
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"leadrouter/internal/audit"
	"leadrouter/internal/common/config"
	"leadrouter/internal/common/errors"
	"leadrouter/internal/common/logger"
	"leadrouter/internal/common/metrics"
	"leadrouter/internal/models"
	"leadrouter/internal/notify"

	"github.com/google/uuid"
)

// Ledger owns the lead handoff lifecycle. Every transition is a guarded
// conditional UPDATE: the WHERE clause carries the expected current status,
// and zero affected rows means another actor won the race, surfaced as a
// LEDGER_TRANSITION_CONFLICT. Transitions that change a vendor's load run
// the handoff update and the counter update in one transaction, so the
// invariant "current_load equals the count of handoffs in assigned or
// accepted" holds at every commit point.
type Ledger struct {
	db      *sql.DB
	events  *EventStore
	gateway notify.Gateway
	audit   audit.Recorder
	cfg     config.RoutingConfig
	logger  logger.Logger
}

func New(db *sql.DB, events *EventStore, gateway notify.Gateway, auditRec audit.Recorder, cfg config.RoutingConfig, log logger.Logger) *Ledger {
	return &Ledger{
		db:      db,
		events:  events,
		gateway: gateway,
		audit:   auditRec,
		cfg:     cfg,
		logger:  log.WithFields(map[string]interface{}{"component": "handoff-ledger"}),
	}
}

const handoffColumns = `id, prospect_id, COALESCE(vendor_id::text, ''), sdr_id, service_type, urgency,
	status, created_at, assigned_at, accepted_at, first_contact_at, sla_deadline, quality_score, closed_at`

func scanHandoff(row interface {
	Scan(dest ...interface{}) error
}) (*models.LeadHandoff, error) {
	var h models.LeadHandoff
	var urgency, status string
	var assignedAt, acceptedAt, firstContactAt, slaDeadline, closedAt sql.NullTime
	var qualityScore sql.NullInt64

	err := row.Scan(
		&h.ID, &h.ProspectID, &h.VendorID, &h.SDRID, &h.ServiceType, &urgency,
		&status, &h.CreatedAt, &assignedAt, &acceptedAt, &firstContactAt,
		&slaDeadline, &qualityScore, &closedAt,
	)
	if err != nil {
		return nil, err
	}

	h.Urgency = models.Urgency(urgency)
	h.Status = models.HandoffStatus(status)
	if assignedAt.Valid {
		h.AssignedAt = &assignedAt.Time
	}
	if acceptedAt.Valid {
		h.AcceptedAt = &acceptedAt.Time
	}
	if firstContactAt.Valid {
		h.FirstContactAt = &firstContactAt.Time
	}
	if slaDeadline.Valid {
		h.SLADeadline = &slaDeadline.Time
	}
	if qualityScore.Valid {
		score := int(qualityScore.Int64)
		h.QualityScore = &score
	}
	if closedAt.Valid {
		h.ClosedAt = &closedAt.Time
	}
	return &h, nil
}

// Get loads a handoff by id.
func (l *Ledger) Get(ctx context.Context, handoffID string) (*models.LeadHandoff, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT `+handoffColumns+` FROM lead_handoffs WHERE id = $1`, handoffID)
	h, err := scanHandoff(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewHandoffNotFoundError(handoffID)
	}
	if err != nil {
		return nil, errors.NewPersistenceFailureError("load handoff", err)
	}
	return h, nil
}

// Create registers a new handoff in the created state.
func (l *Ledger) Create(ctx context.Context, prospectID, sdrID, serviceType string, urgency models.Urgency, now time.Time) (*models.LeadHandoff, error) {
	h := &models.LeadHandoff{
		ID:          uuid.New().String(),
		ProspectID:  prospectID,
		SDRID:       sdrID,
		ServiceType: serviceType,
		Urgency:     urgency,
		Status:      models.StatusCreated,
		CreatedAt:   now.UTC(),
	}

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO lead_handoffs (id, prospect_id, sdr_id, service_type, urgency, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		h.ID, h.ProspectID, h.SDRID, h.ServiceType, string(h.Urgency), string(h.Status), h.CreatedAt,
	)
	if err != nil {
		return nil, errors.NewPersistenceFailureError("create handoff", err)
	}

	metrics.LedgerTransitionsTotal.WithLabelValues("", string(models.StatusCreated)).Inc()
	l.audit.Record(ctx, "handoff_created", map[string]interface{}{
		"handoffId":  h.ID,
		"prospectId": prospectID,
		"urgency":    string(urgency),
	})
	return h, nil
}

// Assign hands the lead to a vendor: created → assigned. It sets the
// vendor, increments the vendor's load, and computes the SLA deadline from
// the handoff's urgency. The deadline is written exactly once here and is
// never updated afterwards.
func (l *Ledger) Assign(ctx context.Context, handoffID, vendorID string, now time.Time) (*models.LeadHandoff, error) {
	now = now.UTC()

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewPersistenceFailureError("begin assign", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT `+handoffColumns+` FROM lead_handoffs WHERE id = $1 FOR UPDATE`, handoffID)
	h, err := scanHandoff(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewHandoffNotFoundError(handoffID)
	}
	if err != nil {
		return nil, errors.NewPersistenceFailureError("load handoff for assign", err)
	}
	if h.Status != models.StatusCreated && h.Status != models.StatusRejected {
		metrics.LedgerConflictsTotal.Inc()
		return nil, errors.NewTransitionConflictError(handoffID, string(h.Status), string(models.StatusAssigned))
	}

	deadline := now.Add(l.cfg.SLAHours(string(h.Urgency)))

	if _, err := tx.ExecContext(ctx, `
		UPDATE lead_handoffs
		SET status = $2, vendor_id = $3, assigned_at = $4, sla_deadline = $5
		WHERE id = $1`,
		handoffID, string(models.StatusAssigned), vendorID, now, deadline,
	); err != nil {
		return nil, errors.NewPersistenceFailureError("assign handoff", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE vendors SET current_load = current_load + 1 WHERE id = $1`, vendorID,
	); err != nil {
		return nil, errors.NewPersistenceFailureError("increment vendor load", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.NewPersistenceFailureError("commit assign", err)
	}

	prevStatus := h.Status
	h.Status = models.StatusAssigned
	h.VendorID = vendorID
	h.AssignedAt = &now
	h.SLADeadline = &deadline

	metrics.LedgerTransitionsTotal.WithLabelValues(string(prevStatus), string(models.StatusAssigned)).Inc()
	l.audit.Record(ctx, "handoff_assigned", map[string]interface{}{
		"handoffId":   handoffID,
		"vendorId":    vendorID,
		"slaDeadline": deadline,
	})
	l.logger.Info("handoff assigned", map[string]interface{}{
		"handoffId":   handoffID,
		"vendorId":    vendorID,
		"urgency":     h.Urgency,
		"slaDeadline": deadline,
	})

	if h.Urgency == models.UrgencyHigh {
		l.notifyOnce(ctx, h, models.KindUrgent, models.RecipientVendor, vendorID)
	}

	return h, nil
}

// Accept records the vendor's explicit acceptance: assigned → accepted.
func (l *Ledger) Accept(ctx context.Context, handoffID string, now time.Time) error {
	return l.guardedUpdate(ctx, handoffID, models.StatusAssigned, models.StatusAccepted,
		`UPDATE lead_handoffs SET status = $2, accepted_at = $3 WHERE id = $1 AND status = $4`,
		handoffID, string(models.StatusAccepted), now.UTC(), string(models.StatusAssigned))
}

// Reject records the vendor declining the lead: assigned → rejected. The
// vendor's load is released in the same transaction; the rejecting vendor
// stays on the row so re-recommendation can exclude it.
func (l *Ledger) Reject(ctx context.Context, handoffID string, now time.Time) (*models.LeadHandoff, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewPersistenceFailureError("begin reject", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT `+handoffColumns+` FROM lead_handoffs WHERE id = $1 FOR UPDATE`, handoffID)
	h, err := scanHandoff(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewHandoffNotFoundError(handoffID)
	}
	if err != nil {
		return nil, errors.NewPersistenceFailureError("load handoff for reject", err)
	}
	if h.Status != models.StatusAssigned {
		metrics.LedgerConflictsTotal.Inc()
		return nil, errors.NewTransitionConflictError(handoffID, string(h.Status), string(models.StatusRejected))
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE lead_handoffs SET status = $2 WHERE id = $1`,
		handoffID, string(models.StatusRejected),
	); err != nil {
		return nil, errors.NewPersistenceFailureError("reject handoff", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE vendors SET current_load = GREATEST(current_load - 1, 0) WHERE id = $1`, h.VendorID,
	); err != nil {
		return nil, errors.NewPersistenceFailureError("decrement vendor load", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.NewPersistenceFailureError("commit reject", err)
	}

	h.Status = models.StatusRejected

	metrics.LedgerTransitionsTotal.WithLabelValues(string(models.StatusAssigned), string(models.StatusRejected)).Inc()
	l.audit.Record(ctx, "handoff_rejected", map[string]interface{}{
		"handoffId": handoffID,
		"vendorId":  h.VendorID,
	})
	l.logger.Info("handoff rejected, eligible for re-recommendation", map[string]interface{}{
		"handoffId":       handoffID,
		"rejectingVendor": h.VendorID,
	})

	return h, nil
}

// RecordFirstContact logs the vendor's first contact with the lead. The
// timestamp is what the SLA monitor compares against the deadline; once
// set, the handoff is no longer SLA-at-risk.
func (l *Ledger) RecordFirstContact(ctx context.Context, handoffID string, now time.Time) error {
	res, err := l.db.ExecContext(ctx, `
		UPDATE lead_handoffs SET first_contact_at = $2
		WHERE id = $1 AND status = $3 AND first_contact_at IS NULL`,
		handoffID, now.UTC(), string(models.StatusAccepted))
	if err != nil {
		return errors.NewPersistenceFailureError("record first contact", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return l.conflictFor(ctx, handoffID, "first_contact")
	}

	l.audit.Record(ctx, "handoff_first_contact", map[string]interface{}{
		"handoffId": handoffID,
		"at":        now.UTC(),
	})
	return nil
}

// Close moves an accepted handoff to a terminal outcome (converted, lost,
// or completed) and releases the vendor's load slot in the same
// transaction.
func (l *Ledger) Close(ctx context.Context, handoffID string, outcome models.HandoffStatus, now time.Time) (*models.LeadHandoff, error) {
	switch outcome {
	case models.StatusConverted, models.StatusLost, models.StatusCompleted:
	default:
		return nil, errors.NewInvalidRequestContextError(fmt.Sprintf("invalid terminal outcome %q", outcome))
	}
	now = now.UTC()

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewPersistenceFailureError("begin close", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT `+handoffColumns+` FROM lead_handoffs WHERE id = $1 FOR UPDATE`, handoffID)
	h, err := scanHandoff(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewHandoffNotFoundError(handoffID)
	}
	if err != nil {
		return nil, errors.NewPersistenceFailureError("load handoff for close", err)
	}
	if h.Status != models.StatusAccepted && h.Status != models.StatusAssigned {
		metrics.LedgerConflictsTotal.Inc()
		return nil, errors.NewTransitionConflictError(handoffID, string(h.Status), string(outcome))
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE lead_handoffs SET status = $2, closed_at = $3 WHERE id = $1`,
		handoffID, string(outcome), now,
	); err != nil {
		return nil, errors.NewPersistenceFailureError("close handoff", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE vendors SET current_load = GREATEST(current_load - 1, 0) WHERE id = $1`, h.VendorID,
	); err != nil {
		return nil, errors.NewPersistenceFailureError("decrement vendor load", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.NewPersistenceFailureError("commit close", err)
	}

	prevStatus := h.Status
	h.Status = outcome
	h.ClosedAt = &now

	metrics.LedgerTransitionsTotal.WithLabelValues(string(prevStatus), string(outcome)).Inc()
	l.audit.Record(ctx, "handoff_closed", map[string]interface{}{
		"handoffId": handoffID,
		"outcome":   string(outcome),
	})

	if outcome == models.StatusConverted {
		l.notifyOnce(ctx, h, models.KindConverted, models.RecipientSDR, h.SDRID)
	}

	return h, nil
}

// RecordQualityScore fills the post-hoc feedback score on a resolved
// handoff. Only handoffs past the active pipeline accept a score.
func (l *Ledger) RecordQualityScore(ctx context.Context, handoffID string, score int) error {
	if score < 1 || score > 5 {
		return errors.NewInvalidRequestContextError(fmt.Sprintf("quality score must be 1..5, got %d", score))
	}

	res, err := l.db.ExecContext(ctx, `
		UPDATE lead_handoffs SET quality_score = $2
		WHERE id = $1 AND status IN ($3, $4, $5, $6) AND quality_score IS NULL`,
		handoffID, score,
		string(models.StatusAccepted), string(models.StatusCompleted),
		string(models.StatusConverted), string(models.StatusLost))
	if err != nil {
		return errors.NewPersistenceFailureError("record quality score", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return l.conflictFor(ctx, handoffID, "quality_score")
	}

	l.audit.Record(ctx, "handoff_feedback_recorded", map[string]interface{}{
		"handoffId": handoffID,
		"score":     score,
	})
	return nil
}

// ReconcileVendorLoads recomputes every vendor's current_load from the set
// of its handoffs in load-bearing states. Returns the number of vendors
// whose counter was corrected.
func (l *Ledger) ReconcileVendorLoads(ctx context.Context) (int, error) {
	res, err := l.db.ExecContext(ctx, `
		UPDATE vendors v
		SET current_load = sub.cnt
		FROM (
			SELECT v2.id, COUNT(h.id) AS cnt
			FROM vendors v2
			LEFT JOIN lead_handoffs h
			  ON h.vendor_id = v2.id AND h.status IN ($1, $2)
			GROUP BY v2.id
		) sub
		WHERE v.id = sub.id AND v.current_load <> sub.cnt`,
		string(models.StatusAssigned), string(models.StatusAccepted))
	if err != nil {
		return 0, errors.NewPersistenceFailureError("reconcile vendor loads", err)
	}

	affected, _ := res.RowsAffected()
	if affected > 0 {
		l.logger.Warn("vendor load counters corrected", map[string]interface{}{
			"vendors": affected,
		})
		l.audit.Record(ctx, "vendor_loads_reconciled", map[string]interface{}{
			"corrected": affected,
		})
	}
	return int(affected), nil
}

// guardedUpdate runs a single-row conditional transition and converts zero
// affected rows into a conflict or not-found error.
func (l *Ledger) guardedUpdate(ctx context.Context, handoffID string, from, to models.HandoffStatus, query string, args ...interface{}) error {
	res, err := l.db.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.NewPersistenceFailureError(fmt.Sprintf("transition to %s", to), err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return l.conflictFor(ctx, handoffID, string(to))
	}

	metrics.LedgerTransitionsTotal.WithLabelValues(string(from), string(to)).Inc()
	l.audit.Record(ctx, "handoff_"+string(to), map[string]interface{}{
		"handoffId": handoffID,
	})
	return nil
}

// conflictFor distinguishes a missing row from a state race after a guarded
// update matched nothing.
func (l *Ledger) conflictFor(ctx context.Context, handoffID, target string) error {
	var current string
	err := l.db.QueryRowContext(ctx,
		`SELECT status FROM lead_handoffs WHERE id = $1`, handoffID).Scan(&current)
	if err == sql.ErrNoRows {
		return errors.NewHandoffNotFoundError(handoffID)
	}
	if err != nil {
		return errors.NewPersistenceFailureError("resolve transition conflict", err)
	}
	metrics.LedgerConflictsTotal.Inc()
	return errors.NewTransitionConflictError(handoffID, current, target)
}

// notifyOnce attempts a lifecycle notification with send-once dedup:
// attempt the delivery, then record the outcome. Failures are logged and
// never propagated to the transition's caller.
func (l *Ledger) notifyOnce(ctx context.Context, h *models.LeadHandoff, kind models.NotificationKind, recipientType, recipientID string) {
	sent, err := l.events.AlreadyDelivered(ctx, h.ID, kind)
	if err != nil {
		l.logger.Warn("notification dedup check failed", map[string]interface{}{
			"handoffId": h.ID,
			"kind":      kind,
			"error":     err,
		})
		return
	}
	if sent {
		return
	}

	delivery, err := l.gateway.Send(ctx, models.Notice{
		HandoffID:     h.ID,
		Kind:          kind,
		RecipientType: recipientType,
		RecipientID:   recipientID,
		ProspectID:    h.ProspectID,
		ServiceType:   h.ServiceType,
		Urgency:       h.Urgency,
	})
	if err != nil {
		metrics.NotificationsTotal.WithLabelValues(string(kind), "failed").Inc()
		l.logger.Warn("lifecycle notification failed", map[string]interface{}{
			"handoffId": h.ID,
			"kind":      kind,
			"error":     err,
		})
		return
	}

	metrics.NotificationsTotal.WithLabelValues(string(kind), "sent").Inc()
	if err := l.events.Record(ctx, models.NotificationEvent{
		HandoffID:  h.ID,
		Kind:       kind,
		Delivered:  delivery.Delivered,
		ExternalID: delivery.ExternalID,
	}); err != nil {
		l.logger.Warn("notification event record failed", map[string]interface{}{
			"handoffId": h.ID,
			"kind":      kind,
			"error":     err,
		})
	}
}
