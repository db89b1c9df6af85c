package gate

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/linelogic/fraudgate/pkg/logger"
	"go.uber.org/zap"
)

// AttemptLogger is the append-only audit trail. Both writes are
// fire-and-forget: a failed audit write never blocks or fails the signup
// decision that produced it. Availability of the gate is prioritized over
// completeness of its trail.
type AttemptLogger struct {
	store   AuditProcedures
	timeout time.Duration
}

// NewAttemptLogger creates an attempt logger over the given store.
func NewAttemptLogger(store AuditProcedures, timeout time.Duration) *AttemptLogger {
	return &AttemptLogger{store: store, timeout: timeout}
}

// Record writes one fraud audit entry. Errors are logged and swallowed.
func (l *AttemptLogger) Record(ctx context.Context, record *FraudAttemptRecord) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	if err := l.store.LogFraudAttempt(ctx, record); err != nil {
		logger.Warn("fraud audit write failed",
			zap.String("ip", record.IPAddress),
			zap.String("fraud_type", string(record.FraudType)),
			zap.Error(err),
		)
	}
}

// RecordSignupAttempt writes one signup attempt row. Errors are logged and
// swallowed.
func (l *AttemptLogger) RecordSignupAttempt(ctx context.Context, attempt *SignupAttempt) {
	if attempt.ID == uuid.Nil {
		attempt.ID = uuid.New()
	}
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = time.Now()
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	if err := l.store.LogSignupAttempt(ctx, attempt); err != nil {
		logger.Warn("signup attempt write failed",
			zap.String("ip", attempt.IPAddress),
			zap.Error(err),
		)
	}
}

// ListFraudAttempts returns recent audit records for the operator console.
func (l *AttemptLogger) ListFraudAttempts(ctx context.Context, ip string, limit, offset int) ([]*FraudAttemptRecord, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	return l.store.ListFraudAttempts(ctx, ip, limit, offset)
}

// Stats aggregates audit activity since the given time.
func (l *AttemptLogger) Stats(ctx context.Context, since time.Time) (*FraudStats, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	return l.store.GetFraudStats(ctx, since)
}
