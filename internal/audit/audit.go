// internal/audit/audit.go
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"leadrouter/internal/common/logger"

	"github.com/google/uuid"
)

// Recorder is the audit sink contract. Fire-and-forget: a failed audit
// write must never roll back or block the primary state transition.
type Recorder interface {
	Record(ctx context.Context, action string, metadata map[string]interface{})
}

// PostgresRecorder writes audit entries to the audit_log table.
type PostgresRecorder struct {
	db     *sql.DB
	logger logger.Logger
}

func NewPostgresRecorder(db *sql.DB, log logger.Logger) *PostgresRecorder {
	return &PostgresRecorder{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "audit"}),
	}
}

func (r *PostgresRecorder) Record(ctx context.Context, action string, metadata map[string]interface{}) {
	payload, err := json.Marshal(metadata)
	if err != nil {
		payload = []byte("{}")
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, action, metadata, created_at)
		VALUES ($1, $2, $3, $4)`,
		uuid.New().String(), action, payload, time.Now().UTC(),
	)
	if err != nil {
		r.logger.Warn("audit write failed", map[string]interface{}{
			"action": action,
			"error":  err,
		})
	}
}

// NopRecorder discards audit entries, used by tests.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, string, map[string]interface{}) {}
