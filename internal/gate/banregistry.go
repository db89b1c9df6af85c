package gate

import (
	"context"
	"fmt"
	"time"

	"github.com/linelogic/fraudgate/pkg/logger"
	"go.uber.org/zap"
)

// BanRegistry owns the banned-IP table. It is the only component that
// mutates ban rows.
//
// Failure policy: IsBanned fails open — an unreachable store must not lock
// every visitor out of signup. Writes surface their errors so callers can
// decide whether to swallow them (the gate treats ban creation as
// best-effort, the admin API does not).
type BanRegistry struct {
	store   BanProcedures
	timeout time.Duration
}

// NewBanRegistry creates a ban registry over the given store.
func NewBanRegistry(store BanProcedures, timeout time.Duration) *BanRegistry {
	return &BanRegistry{store: store, timeout: timeout}
}

// IsBanned reports whether an active ban exists for the IP. Store errors are
// logged and treated as "not banned".
func (r *BanRegistry) IsBanned(ctx context.Context, ip string) bool {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	banned, err := r.store.IsIPBanned(ctx, ip)
	if err != nil {
		logger.Warn("ban lookup failed, treating IP as not banned",
			zap.String("ip", ip),
			zap.Error(err),
		)
		return false
	}
	return banned
}

// Ban upserts a ban row for the IP. Re-banning an already-banned IP updates
// reason and author without creating a duplicate.
func (r *BanRegistry) Ban(ctx context.Context, ip, reason string, banType BanType, bannedBy string, expiresAt *time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.store.BanIPAddress(ctx, ip, reason, banType, bannedBy, expiresAt); err != nil {
		return fmt.Errorf("ban %s: %w", ip, err)
	}
	return nil
}

// Unban deletes the ban row for the IP; no-op if absent.
func (r *BanRegistry) Unban(ctx context.Context, ip string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.store.UnbanIPAddress(ctx, ip); err != nil {
		return fmt.Errorf("unban %s: %w", ip, err)
	}
	return nil
}

// List returns active bans, newest first, with the total count.
func (r *BanRegistry) List(ctx context.Context, limit, offset int) ([]*BannedIP, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	return r.store.ListBans(ctx, limit, offset)
}
