// internal/ledger/events.go
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"leadrouter/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// EventStore persists notification events. The send-once guarantee is a
// data-layer invariant: a partial unique index on (handoff_id, kind) covers
// delivered events of every kind except overdue, so re-running a sweep can
// never produce a second delivered record for the same condition.
type EventStore struct {
	db *sql.DB
}

func NewEventStore(db *sql.DB) *EventStore {
	return &EventStore{db: db}
}

// Record inserts a notification attempt. A uniqueness violation means a
// concurrent run already recorded the delivery, which is exactly the state
// we wanted, so it is treated as success.
func (s *EventStore) Record(ctx context.Context, ev models.NotificationEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notification_events (id, handoff_id, kind, delivered, external_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		ev.ID, ev.HandoffID, string(ev.Kind), ev.Delivered, ev.ExternalID, ev.CreatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return nil
		}
		return fmt.Errorf("record notification event: %w", err)
	}
	return nil
}

// AlreadyDelivered reports whether a delivered event exists for the
// (handoff, kind) pair.
func (s *EventStore) AlreadyDelivered(ctx context.Context, handoffID string, kind models.NotificationKind) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM notification_events
			WHERE handoff_id = $1 AND kind = $2 AND delivered = TRUE
		)`, handoffID, string(kind)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check delivered event: %w", err)
	}
	return exists, nil
}

// LastDeliveredAt returns the most recent delivered event time for the
// (handoff, kind) pair, or nil when none exists. Used for the overdue
// resend throttle.
func (s *EventStore) LastDeliveredAt(ctx context.Context, handoffID string, kind models.NotificationKind) (*time.Time, error) {
	var last sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(created_at) FROM notification_events
		WHERE handoff_id = $1 AND kind = $2 AND delivered = TRUE`,
		handoffID, string(kind)).Scan(&last)
	if err != nil {
		return nil, fmt.Errorf("query last delivered event: %w", err)
	}
	if !last.Valid {
		return nil, nil
	}
	t := last.Time
	return &t, nil
}

// AttemptsSince counts attempts (delivered or not) for the (handoff, kind)
// pair since the given time. Caps the per-handoff retry storm when delivery
// keeps failing.
func (s *EventStore) AttemptsSince(ctx context.Context, handoffID string, kind models.NotificationKind, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM notification_events
		WHERE handoff_id = $1 AND kind = $2 AND created_at >= $3`,
		handoffID, string(kind), since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count notification attempts: %w", err)
	}
	return count, nil
}
