// internal/ledger/queries.go
package ledger

import (
	"context"
	"time"

	"leadrouter/internal/common/errors"
	"leadrouter/internal/models"
)

// WarningCandidates returns accepted handoffs with no first contact whose
// SLA deadline falls inside [now, now+window].
func (l *Ledger) WarningCandidates(ctx context.Context, now time.Time, window time.Duration) ([]*models.LeadHandoff, error) {
	return l.queryHandoffs(ctx, `
		SELECT `+handoffColumns+`
		FROM lead_handoffs
		WHERE status = $1
		  AND first_contact_at IS NULL
		  AND sla_deadline >= $2
		  AND sla_deadline <= $3
		ORDER BY sla_deadline`,
		string(models.StatusAccepted), now.UTC(), now.UTC().Add(window))
}

// OverdueCandidates returns accepted handoffs with no first contact whose
// SLA deadline has already passed.
func (l *Ledger) OverdueCandidates(ctx context.Context, now time.Time) ([]*models.LeadHandoff, error) {
	return l.queryHandoffs(ctx, `
		SELECT `+handoffColumns+`
		FROM lead_handoffs
		WHERE status = $1
		  AND first_contact_at IS NULL
		  AND sla_deadline < $2
		ORDER BY sla_deadline`,
		string(models.StatusAccepted), now.UTC())
}

// FeedbackCandidates returns handoffs created inside [windowStart,
// windowEnd] with no quality score yet, in a post-acceptance status.
func (l *Ledger) FeedbackCandidates(ctx context.Context, windowStart, windowEnd time.Time) ([]*models.LeadHandoff, error) {
	return l.queryHandoffs(ctx, `
		SELECT `+handoffColumns+`
		FROM lead_handoffs
		WHERE created_at >= $1
		  AND created_at <= $2
		  AND quality_score IS NULL
		  AND status IN ($3, $4, $5)
		ORDER BY created_at`,
		windowStart.UTC(), windowEnd.UTC(),
		string(models.StatusAccepted), string(models.StatusCompleted), string(models.StatusLost))
}

func (l *Ledger) queryHandoffs(ctx context.Context, query string, args ...interface{}) ([]*models.LeadHandoff, error) {
	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewPersistenceFailureError("query handoffs", err)
	}
	defer rows.Close()

	var handoffs []*models.LeadHandoff
	for rows.Next() {
		h, err := scanHandoff(rows)
		if err != nil {
			return nil, errors.NewPersistenceFailureError("scan handoff", err)
		}
		handoffs = append(handoffs, h)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewPersistenceFailureError("iterate handoffs", err)
	}
	return handoffs, nil
}
