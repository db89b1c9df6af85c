package gate

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is the PostgreSQL collaborator. Server-side procedures are
// invoked by name through one typed method each; row reads and writes use
// plain SQL over the same pool.
type Repository struct {
	db *pgxpool.Pool
}

// Ensure the concrete repository satisfies every capability interface.
var (
	_ BanProcedures      = (*Repository)(nil)
	_ ScoreProcedures    = (*Repository)(nil)
	_ AuditProcedures    = (*Repository)(nil)
	_ AttemptCounter     = (*Repository)(nil)
	_ NormalizeProcedure = (*Repository)(nil)
)

// NewRepository creates a new gate repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// IsIPBanned calls the is_ip_banned procedure. The procedure treats expired
// ban rows as absent.
func (r *Repository) IsIPBanned(ctx context.Context, ip string) (bool, error) {
	var banned bool
	err := r.db.QueryRow(ctx, `SELECT is_ip_banned($1)`, ip).Scan(&banned)
	if err != nil {
		return false, fmt.Errorf("is_ip_banned: %w", err)
	}
	return banned, nil
}

// BanIPAddress upserts a ban row via the ban_ip_address procedure.
func (r *Repository) BanIPAddress(ctx context.Context, ip, reason string, banType BanType, bannedBy string, expiresAt *time.Time) error {
	_, err := r.db.Exec(ctx,
		`SELECT ban_ip_address($1, $2, $3, $4, $5)`,
		ip, reason, string(banType), bannedBy, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("ban_ip_address: %w", err)
	}
	return nil
}

// UnbanIPAddress deletes the ban row for the IP.
func (r *Repository) UnbanIPAddress(ctx context.Context, ip string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM banned_ips WHERE ip_address = $1`, ip)
	if err != nil {
		return fmt.Errorf("delete ban: %w", err)
	}
	return nil
}

// ListBans returns active bans, newest first, with the total count.
func (r *Repository) ListBans(ctx context.Context, limit, offset int) ([]*BannedIP, int64, error) {
	var total int64
	countQuery := `
		SELECT COUNT(*)
		FROM banned_ips
		WHERE expires_at IS NULL OR expires_at > NOW()
	`
	if err := r.db.QueryRow(ctx, countQuery).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count bans: %w", err)
	}

	query := `
		SELECT ip_address, reason, ban_type, banned_by, created_at, expires_at
		FROM banned_ips
		WHERE expires_at IS NULL OR expires_at > NOW()
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list bans: %w", err)
	}
	defer rows.Close()

	bans := make([]*BannedIP, 0)
	for rows.Next() {
		var ban BannedIP
		if err := rows.Scan(
			&ban.IPAddress,
			&ban.Reason,
			&ban.BanType,
			&ban.BannedBy,
			&ban.CreatedAt,
			&ban.ExpiresAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan ban: %w", err)
		}
		bans = append(bans, &ban)
	}

	return bans, total, rows.Err()
}

// CalculateFraudScore calls the aggregate scoring procedure.
func (r *Repository) CalculateFraudScore(ctx context.Context, email, name, ip, userAgent string) (int, error) {
	var score int
	err := r.db.QueryRow(ctx,
		`SELECT calculate_fraud_score($1, $2, $3, $4)`,
		email, name, ip, userAgent,
	).Scan(&score)
	if err != nil {
		return 0, fmt.Errorf("calculate_fraud_score: %w", err)
	}
	return score, nil
}

// IsFraudName calls the name heuristic procedure.
func (r *Repository) IsFraudName(ctx context.Context, name string) (bool, error) {
	var fraud bool
	err := r.db.QueryRow(ctx, `SELECT is_fraud_name($1)`, name).Scan(&fraud)
	if err != nil {
		return false, fmt.Errorf("is_fraud_name: %w", err)
	}
	return fraud, nil
}

// IsDomainAllowed calls the domain allow-list procedure.
func (r *Repository) IsDomainAllowed(ctx context.Context, email string) (bool, error) {
	var allowed bool
	err := r.db.QueryRow(ctx, `SELECT is_domain_allowed($1)`, email).Scan(&allowed)
	if err != nil {
		return false, fmt.Errorf("is_domain_allowed: %w", err)
	}
	return allowed, nil
}

// NormalizeEmail calls the normalize_email procedure.
func (r *Repository) NormalizeEmail(ctx context.Context, email string) (string, error) {
	var normalized string
	err := r.db.QueryRow(ctx, `SELECT normalize_email($1)`, email).Scan(&normalized)
	if err != nil {
		return "", fmt.Errorf("normalize_email: %w", err)
	}
	return normalized, nil
}

// LogFraudAttempt writes one audit record via the log_fraud_attempt procedure.
func (r *Repository) LogFraudAttempt(ctx context.Context, record *FraudAttemptRecord) error {
	metadataJSON, err := json.Marshal(record.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = r.db.Exec(ctx,
		`SELECT log_fraud_attempt($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		record.ID,
		record.IPAddress,
		record.Email,
		record.Name,
		record.UserAgent,
		string(record.FraudType),
		string(record.Severity),
		string(record.ActionTaken),
		metadataJSON,
	)
	if err != nil {
		return fmt.Errorf("log_fraud_attempt: %w", err)
	}
	return nil
}

// LogSignupAttempt writes one attempt row via the log_signup_attempt procedure.
func (r *Repository) LogSignupAttempt(ctx context.Context, attempt *SignupAttempt) error {
	_, err := r.db.Exec(ctx,
		`SELECT log_signup_attempt($1, $2, $3, $4, $5, $6, $7)`,
		attempt.ID,
		attempt.IPAddress,
		attempt.EmailRaw,
		attempt.NormalizedEmail,
		attempt.UserAgent,
		attempt.Succeeded,
		attempt.FraudScore,
	)
	if err != nil {
		return fmt.Errorf("log_signup_attempt: %w", err)
	}
	return nil
}

// CountSignupAttempts counts attempt rows for the IP since the given time.
func (r *Repository) CountSignupAttempts(ctx context.Context, ip string, since time.Time) (int, error) {
	var count int
	query := `
		SELECT COUNT(*)
		FROM signup_attempts
		WHERE ip_address = $1 AND created_at >= $2
	`
	if err := r.db.QueryRow(ctx, query, ip, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("count signup attempts: %w", err)
	}
	return count, nil
}

// ListFraudAttempts returns audit records, newest first, optionally filtered
// by IP, with the total count.
func (r *Repository) ListFraudAttempts(ctx context.Context, ip string, limit, offset int) ([]*FraudAttemptRecord, int64, error) {
	var total int64
	countQuery := `
		SELECT COUNT(*)
		FROM fraud_attempts
		WHERE ($1 = '' OR ip_address = $1)
	`
	if err := r.db.QueryRow(ctx, countQuery, ip).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count fraud attempts: %w", err)
	}

	query := `
		SELECT id, ip_address, email, name, user_agent, fraud_type, severity,
		       action_taken, metadata, created_at
		FROM fraud_attempts
		WHERE ($1 = '' OR ip_address = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, ip, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list fraud attempts: %w", err)
	}
	defer rows.Close()

	records := make([]*FraudAttemptRecord, 0)
	for rows.Next() {
		var record FraudAttemptRecord
		var metadataJSON []byte

		if err := rows.Scan(
			&record.ID,
			&record.IPAddress,
			&record.Email,
			&record.Name,
			&record.UserAgent,
			&record.FraudType,
			&record.Severity,
			&record.ActionTaken,
			&metadataJSON,
			&record.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan fraud attempt: %w", err)
		}

		if err := json.Unmarshal(metadataJSON, &record.Metadata); err != nil {
			record.Metadata = make(map[string]interface{})
		}

		records = append(records, &record)
	}

	return records, total, rows.Err()
}

// GetFraudStats aggregates audit activity since the given time.
func (r *Repository) GetFraudStats(ctx context.Context, since time.Time) (*FraudStats, error) {
	stats := &FraudStats{
		Since:      since,
		BySeverity: make(map[string]int64),
		ByAction:   make(map[string]int64),
	}

	attemptsQuery := `
		SELECT COUNT(*)
		FROM signup_attempts
		WHERE created_at >= $1
	`
	if err := r.db.QueryRow(ctx, attemptsQuery, since).Scan(&stats.TotalAttempts); err != nil {
		return nil, fmt.Errorf("count attempts: %w", err)
	}

	auditQuery := `
		SELECT severity, action_taken, COUNT(*)
		FROM fraud_attempts
		WHERE created_at >= $1
		GROUP BY severity, action_taken
	`
	rows, err := r.db.Query(ctx, auditQuery, since)
	if err != nil {
		return nil, fmt.Errorf("aggregate fraud attempts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var severity, action string
		var count int64
		if err := rows.Scan(&severity, &action, &count); err != nil {
			return nil, fmt.Errorf("scan aggregate: %w", err)
		}
		stats.BySeverity[severity] += count
		stats.ByAction[action] += count
		stats.TotalEvaluated += count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	bansQuery := `
		SELECT COUNT(*)
		FROM banned_ips
		WHERE expires_at IS NULL OR expires_at > NOW()
	`
	if err := r.db.QueryRow(ctx, bansQuery).Scan(&stats.ActiveBans); err != nil {
		return nil, fmt.Errorf("count bans: %w", err)
	}

	return stats, nil
}
