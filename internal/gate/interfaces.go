package gate

import (
	"context"
	"time"
)

// The gate never issues ad-hoc queries against its collaborator: every
// server-side capability it consumes is one typed method here, implemented by
// the repository. Tests substitute these with testify mocks.

// BanProcedures is the capability set required by the ban registry.
type BanProcedures interface {
	// IsIPBanned reports whether an active (unexpired) ban row exists.
	IsIPBanned(ctx context.Context, ip string) (bool, error)
	// BanIPAddress upserts a ban row; re-banning updates reason and author.
	BanIPAddress(ctx context.Context, ip, reason string, banType BanType, bannedBy string, expiresAt *time.Time) error
	// UnbanIPAddress deletes the ban row; no-op when absent.
	UnbanIPAddress(ctx context.Context, ip string) error
	// ListBans returns active bans, newest first, with the total count.
	ListBans(ctx context.Context, limit, offset int) ([]*BannedIP, int64, error)
}

// ScoreProcedures is the capability set required by the fraud scorer.
type ScoreProcedures interface {
	CalculateFraudScore(ctx context.Context, email, name, ip, userAgent string) (int, error)
	IsFraudName(ctx context.Context, name string) (bool, error)
	IsDomainAllowed(ctx context.Context, email string) (bool, error)
}

// AuditProcedures is the capability set required by the attempt logger and
// the operator console reads.
type AuditProcedures interface {
	LogFraudAttempt(ctx context.Context, record *FraudAttemptRecord) error
	LogSignupAttempt(ctx context.Context, attempt *SignupAttempt) error
	ListFraudAttempts(ctx context.Context, ip string, limit, offset int) ([]*FraudAttemptRecord, int64, error)
	GetFraudStats(ctx context.Context, since time.Time) (*FraudStats, error)
}

// AttemptCounter is the capability required by the application-level
// rate-limit window.
type AttemptCounter interface {
	CountSignupAttempts(ctx context.Context, ip string, since time.Time) (int, error)
}

// NormalizeProcedure is the capability required by the identifier normalizer.
type NormalizeProcedure interface {
	NormalizeEmail(ctx context.Context, email string) (string, error)
}
