// internal/sweep/sla_test.go
package sweep

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"leadrouter/internal/audit"
	"leadrouter/internal/common/config"
	"leadrouter/internal/common/logger"
	"leadrouter/internal/ledger"
	"leadrouter/internal/models"
	"leadrouter/internal/notify"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

// ==========================
// Test Helper Functions
// ==========================

type fakeGateway struct {
	sent []models.Notice
	err  error
}

func (g *fakeGateway) Send(ctx context.Context, notice models.Notice) (notify.Delivery, error) {
	if g.err != nil {
		return notify.Delivery{}, g.err
	}
	g.sent = append(g.sent, notice)
	return notify.Delivery{Delivered: true, ExternalID: "msg-" + notice.HandoffID}, nil
}

func testRoutingConfig() config.RoutingConfig {
	return config.RoutingConfig{
		SLAHoursByUrgency:     map[string]int{"low": 24, "medium": 8, "high": 4},
		WarningWindowHours:    2,
		FeedbackWindowDaysMin: 6,
		FeedbackWindowDaysMax: 7,
		OverdueResendHours:    4,
		MaxSendAttemptsPerDay: 3,
	}
}

func newTestMonitor(t *testing.T) (*SLAMonitor, sqlmock.Sqlmock, *fakeGateway) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	gateway := &fakeGateway{}
	events := ledger.NewEventStore(db)
	ldg := ledger.New(db, events, gateway, audit.NopRecorder{}, testRoutingConfig(), logger.NewNoOpLogger())
	monitor := NewSLAMonitor(ldg, events, gateway, audit.NopRecorder{}, testRoutingConfig(), logger.NewNoOpLogger())
	return monitor, mock, gateway
}

var handoffCols = []string{
	"id", "prospect_id", "vendor_id", "sdr_id", "service_type", "urgency",
	"status", "created_at", "assigned_at", "accepted_at", "first_contact_at",
	"sla_deadline", "quality_score", "closed_at",
}

func acceptedRow(rows *sqlmock.Rows, id string, deadline time.Time) *sqlmock.Rows {
	created := deadline.Add(-8 * time.Hour)
	return rows.AddRow(
		id, "prospect-1", "v1", "sdr-1", "roofing", "medium",
		"accepted", created, created, created, nil, deadline, nil, nil,
	)
}

func noCandidates() *sqlmock.Rows {
	return sqlmock.NewRows(handoffCols)
}

// ==========================
// Warning Tests
// ==========================

func TestSLAMonitor_Sweep_SendsWarningInsideWindow(t *testing.T) {
	monitor, mock, gateway := newTestMonitor(t)
	now := time.Now().UTC()

	rows := noCandidates()
	acceptedRow(rows, "h1", now.Add(30*time.Minute))

	mock.ExpectQuery("SELECT id, prospect_id").WillReturnRows(rows) // warning candidates
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("h1", "warning").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec("INSERT INTO notification_events").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT id, prospect_id").WillReturnRows(noCandidates()) // overdue candidates

	result, err := monitor.Sweep(context.Background(), now)

	assert.NoError(t, err)
	assert.Equal(t, 1, result.WarningsSent)
	assert.Equal(t, 0, result.OverdueSent)
	if assert.Len(t, gateway.sent, 1) {
		notice := gateway.sent[0]
		assert.Equal(t, models.KindWarning, notice.Kind)
		assert.Equal(t, models.RecipientVendor, notice.RecipientType)
		assert.Equal(t, "v1", notice.RecipientID)
		assert.InDelta(t, 0.5, notice.HoursRemaining, 1e-9)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSLAMonitor_Sweep_WarningIsSendOnce(t *testing.T) {
	monitor, mock, gateway := newTestMonitor(t)
	now := time.Now().UTC()

	rows := noCandidates()
	acceptedRow(rows, "h1", now.Add(time.Hour))

	mock.ExpectQuery("SELECT id, prospect_id").WillReturnRows(rows)
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("h1", "warning").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery("SELECT id, prospect_id").WillReturnRows(noCandidates())

	result, err := monitor.Sweep(context.Background(), now)

	assert.NoError(t, err)
	assert.Equal(t, 0, result.WarningsSent)
	assert.Empty(t, gateway.sent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSLAMonitor_Sweep_WarningDailyCapExhausted(t *testing.T) {
	monitor, mock, gateway := newTestMonitor(t)
	now := time.Now().UTC()

	rows := noCandidates()
	acceptedRow(rows, "h1", now.Add(time.Hour))

	mock.ExpectQuery("SELECT id, prospect_id").WillReturnRows(rows)
	mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery("SELECT id, prospect_id").WillReturnRows(noCandidates())

	result, err := monitor.Sweep(context.Background(), now)

	assert.NoError(t, err)
	assert.Equal(t, 0, result.WarningsSent)
	assert.Empty(t, gateway.sent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSLAMonitor_Sweep_FailedSendRecordsAttempt(t *testing.T) {
	monitor, mock, gateway := newTestMonitor(t)
	gateway.err = stderrors.New("ses unavailable")
	now := time.Now().UTC()

	rows := noCandidates()
	acceptedRow(rows, "h1", now.Add(time.Hour))

	mock.ExpectQuery("SELECT id, prospect_id").WillReturnRows(rows)
	mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	// the failed attempt is still recorded, not delivered
	mock.ExpectExec("INSERT INTO notification_events").
		WithArgs(sqlmock.AnyArg(), "h1", "warning", false, "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT id, prospect_id").WillReturnRows(noCandidates())

	result, err := monitor.Sweep(context.Background(), now)

	assert.NoError(t, err)
	assert.Equal(t, 0, result.WarningsSent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Overdue Tests
// ==========================

func TestSLAMonitor_Sweep_OverdueFirstAlert(t *testing.T) {
	monitor, mock, gateway := newTestMonitor(t)
	now := time.Now().UTC()

	rows := noCandidates()
	acceptedRow(rows, "h1", now.Add(-5*time.Hour))

	mock.ExpectQuery("SELECT id, prospect_id").WillReturnRows(noCandidates()) // warning candidates
	mock.ExpectQuery("SELECT id, prospect_id").WillReturnRows(rows)           // overdue candidates
	mock.ExpectQuery("SELECT MAX").
		WithArgs("h1", "overdue").
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(nil))
	mock.ExpectExec("INSERT INTO notification_events").
		WillReturnResult(sqlmock.NewResult(0, 1))

	result, err := monitor.Sweep(context.Background(), now)

	assert.NoError(t, err)
	assert.Equal(t, 1, result.OverdueSent)
	if assert.Len(t, gateway.sent, 1) {
		assert.Equal(t, models.KindOverdue, gateway.sent[0].Kind)
		assert.InDelta(t, 5.0, gateway.sent[0].HoursOverdue, 1e-9)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSLAMonitor_Sweep_OverdueThrottled(t *testing.T) {
	monitor, mock, gateway := newTestMonitor(t)
	now := time.Now().UTC()

	rows := noCandidates()
	acceptedRow(rows, "h1", now.Add(-5*time.Hour))

	mock.ExpectQuery("SELECT id, prospect_id").WillReturnRows(noCandidates())
	mock.ExpectQuery("SELECT id, prospect_id").WillReturnRows(rows)
	// last alert 2h ago, resend interval is 4h
	mock.ExpectQuery("SELECT MAX").
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(now.Add(-2 * time.Hour)))

	result, err := monitor.Sweep(context.Background(), now)

	assert.NoError(t, err)
	assert.Equal(t, 0, result.OverdueSent)
	assert.Empty(t, gateway.sent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSLAMonitor_Sweep_OverdueResendsAfterInterval(t *testing.T) {
	monitor, mock, gateway := newTestMonitor(t)
	now := time.Now().UTC()

	rows := noCandidates()
	acceptedRow(rows, "h1", now.Add(-10*time.Hour))

	mock.ExpectQuery("SELECT id, prospect_id").WillReturnRows(noCandidates())
	mock.ExpectQuery("SELECT id, prospect_id").WillReturnRows(rows)
	mock.ExpectQuery("SELECT MAX").
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(now.Add(-5 * time.Hour)))
	mock.ExpectExec("INSERT INTO notification_events").
		WillReturnResult(sqlmock.NewResult(0, 1))

	result, err := monitor.Sweep(context.Background(), now)

	assert.NoError(t, err)
	assert.Equal(t, 1, result.OverdueSent)
	assert.Len(t, gateway.sent, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Failure Handling
// ==========================

func TestSLAMonitor_Sweep_QueryFailureAbortsRun(t *testing.T) {
	monitor, mock, gateway := newTestMonitor(t)

	mock.ExpectQuery("SELECT id, prospect_id").
		WillReturnError(stderrors.New("connection refused"))

	_, err := monitor.Sweep(context.Background(), time.Now())

	assert.Error(t, err)
	assert.Empty(t, gateway.sent)
}

func TestSLAMonitor_Sweep_NoCandidates(t *testing.T) {
	monitor, mock, gateway := newTestMonitor(t)

	mock.ExpectQuery("SELECT id, prospect_id").WillReturnRows(noCandidates())
	mock.ExpectQuery("SELECT id, prospect_id").WillReturnRows(noCandidates())

	result, err := monitor.Sweep(context.Background(), time.Now())

	assert.NoError(t, err)
	assert.Equal(t, SLAResult{}, result)
	assert.Empty(t, gateway.sent)
}
