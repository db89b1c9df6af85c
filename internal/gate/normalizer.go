package gate

import (
	"context"
	"strings"
	"time"

	"github.com/linelogic/fraudgate/pkg/logger"
	"go.uber.org/zap"
)

// Normalizer canonicalizes email-like identifiers to a stable comparison key.
type Normalizer struct {
	proc    NormalizeProcedure
	timeout time.Duration
}

// NewNormalizer creates a normalizer over the normalize_email procedure.
func NewNormalizer(proc NormalizeProcedure, timeout time.Duration) *Normalizer {
	return &Normalizer{proc: proc, timeout: timeout}
}

// Normalize returns the canonical comparison key for the email. When the
// procedure is unreachable it falls back to trim+lowercase; it never fails
// the caller.
func (n *Normalizer) Normalize(ctx context.Context, email string) string {
	fallback := strings.ToLower(strings.TrimSpace(email))

	if n.proc == nil {
		return fallback
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	normalized, err := n.proc.NormalizeEmail(ctx, email)
	if err != nil {
		logger.Warn("normalize_email unavailable, using local fallback",
			zap.Error(err),
		)
		return fallback
	}
	if normalized == "" {
		return fallback
	}
	return normalized
}
