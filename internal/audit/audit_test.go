// internal/audit/audit_test.go
package audit

import (
	"context"
	stderrors "errors"
	"testing"

	"leadrouter/internal/common/logger"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

func TestPostgresRecorder_Record(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("INSERT INTO audit_log").
		WithArgs(sqlmock.AnyArg(), "handoff_assigned", []byte(`{"handoffId":"h1"}`), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec := NewPostgresRecorder(db, logger.NewNoOpLogger())
	rec.Record(context.Background(), "handoff_assigned", map[string]interface{}{"handoffId": "h1"})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRecorder_Record_FailureIsSwallowed(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("INSERT INTO audit_log").
		WillReturnError(stderrors.New("table missing"))

	rec := NewPostgresRecorder(db, logger.NewNoOpLogger())
	// must not panic or propagate
	rec.Record(context.Background(), "handoff_assigned", map[string]interface{}{"handoffId": "h1"})

	assert.NoError(t, mock.ExpectationsWereMet())
}
