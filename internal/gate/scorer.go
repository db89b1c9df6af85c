package gate

import (
	"context"
	"fmt"
	"time"

	"github.com/linelogic/fraudgate/pkg/logger"
	"go.uber.org/zap"
)

// Scorer assembles the composite fraud-score call and interprets the result.
// The scoring algorithm itself lives behind the calculate_fraud_score
// procedure; this component only owns the call and the conservative-on-error
// policy of the two boolean sub-checks.
type Scorer struct {
	proc    ScoreProcedures
	timeout time.Duration
}

// NewScorer creates a scorer over the given procedures.
func NewScorer(proc ScoreProcedures, timeout time.Duration) *Scorer {
	return &Scorer{proc: proc, timeout: timeout}
}

// Score computes the composite risk score for a signup. Errors surface to
// the caller, which converts them to the SYSTEM_ERROR outcome.
func (s *Scorer) Score(ctx context.Context, email, name, ip, userAgent string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	score, err := s.proc.CalculateFraudScore(ctx, email, name, ip, userAgent)
	if err != nil {
		return 0, fmt.Errorf("calculate fraud score: %w", err)
	}
	if score < 0 {
		score = 0
	}
	return score, nil
}

// IsFraudulentName checks the name heuristic. Fails closed: an unreachable
// check is treated as fraudulent.
func (s *Scorer) IsFraudulentName(ctx context.Context, name string) bool {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	fraud, err := s.proc.IsFraudName(ctx, name)
	if err != nil {
		logger.Warn("name check failed, assuming fraudulent",
			zap.Error(err),
		)
		return true
	}
	return fraud
}

// IsDomainAllowed checks the domain allow-list. Fails closed: an unreachable
// check is treated as disallowed.
func (s *Scorer) IsDomainAllowed(ctx context.Context, email string) bool {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	allowed, err := s.proc.IsDomainAllowed(ctx, email)
	if err != nil {
		logger.Warn("domain check failed, assuming disallowed",
			zap.Error(err),
		)
		return false
	}
	return allowed
}
