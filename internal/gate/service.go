package gate

import (
	"context"
	"fmt"
	"time"

	"github.com/linelogic/fraudgate/pkg/config"
	"github.com/linelogic/fraudgate/pkg/logger"
	"go.uber.org/zap"
)

// Service is the fraud gate: it composes the ban registry, scorer, rate-limit
// window and attempt logger into one decision per signup attempt.
//
// Decisions are fail-closed (an error inside an evaluation denies the
// attempt); audit logging is fail-open (a lost audit row never fails the
// decision). The edge middleware in front of this service is fail-open for
// its own checks; that asymmetry is deliberate.
type Service struct {
	normalizer *Normalizer
	bans       *BanRegistry
	scorer     *Scorer
	window     *Window
	audit      *AttemptLogger
	fraudCfg   config.FraudConfig
	rateCfg    config.RateLimitConfig
}

// NewService creates the fraud gate service.
func NewService(
	normalizer *Normalizer,
	bans *BanRegistry,
	scorer *Scorer,
	window *Window,
	audit *AttemptLogger,
	fraudCfg config.FraudConfig,
	rateCfg config.RateLimitConfig,
) *Service {
	return &Service{
		normalizer: normalizer,
		bans:       bans,
		scorer:     scorer,
		window:     window,
		audit:      audit,
		fraudCfg:   fraudCfg,
		rateCfg:    rateCfg,
	}
}

// CheckSignupWindow runs the application-level rate-limit check for the IP.
// Callers run this before Evaluate so throttled sources never reach scoring.
func (s *Service) CheckSignupWindow(ctx context.Context, ip string) WindowStatus {
	return s.window.CheckAndCount(ctx, ip, s.rateCfg.AppWindow(), s.rateCfg.AppMaxAttempts)
}

// Evaluate runs the staged decision pipeline for one signup attempt.
// It always returns a decision; infrastructure failures inside the scoring
// stages surface as the SYSTEM_ERROR outcome.
func (s *Service) Evaluate(ctx context.Context, req SignupRequest) (result *Evaluation) {
	normalized := s.normalizer.Normalize(ctx, req.Email)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("evaluation panicked",
				zap.Any("panic", r),
				zap.String("ip", req.IPAddress),
			)
			result = s.systemError()
		}
		if result != nil {
			s.finish(ctx, req, normalized, result)
		}
	}()

	// Stage 1: a pre-existing ban is definitive. No score is computed.
	if s.bans.IsBanned(ctx, req.IPAddress) {
		s.audit.Record(ctx, &FraudAttemptRecord{
			IPAddress:   req.IPAddress,
			Email:       req.Email,
			Name:        req.Name,
			UserAgent:   req.UserAgent,
			FraudType:   FraudTypeBannedIP,
			Severity:    SeverityCritical,
			ActionTaken: ActionBlocked,
			Metadata:    map[string]interface{}{"normalized_email": normalized},
		})
		return &Evaluation{
			Allowed:     false,
			Banned:      true,
			Score:       BannedIPScore,
			Reason:      ReasonIPBanned,
			ActionTaken: ActionBlocked,
			Message:     ReasonIPBanned.Message(),
		}
	}

	// Stage 2: composite score.
	score, err := s.scorer.Score(ctx, req.Email, req.Name, req.IPAddress, req.UserAgent)
	if err != nil {
		logger.Error("fraud scoring failed",
			zap.String("ip", req.IPAddress),
			zap.Error(err),
		)
		return s.systemError()
	}

	switch {
	// Stage 3: critical band. The only path that creates a ban as a side
	// effect of an evaluation.
	case score >= s.fraudCfg.CriticalThreshold:
		banReason := fmt.Sprintf("Fraud name detection: %s", req.Name)
		if err := s.bans.Ban(ctx, req.IPAddress, banReason, BanTypeSystem, "system", nil); err != nil {
			logger.Warn("system ban write failed",
				zap.String("ip", req.IPAddress),
				zap.Error(err),
			)
		}
		s.audit.Record(ctx, &FraudAttemptRecord{
			IPAddress:   req.IPAddress,
			Email:       req.Email,
			Name:        req.Name,
			UserAgent:   req.UserAgent,
			FraudType:   FraudTypeNameFraud,
			Severity:    SeverityCritical,
			ActionTaken: ActionBanned,
			Metadata:    map[string]interface{}{"score": score},
		})
		return &Evaluation{
			Allowed:     false,
			Banned:      true,
			Score:       score,
			Reason:      ReasonFraudNameDetected,
			ActionTaken: ActionBanned,
			Message:     ReasonFraudNameDetected.Message(),
		}

	// Stage 4: high band. Blocked for this attempt only; no ban.
	case score >= s.fraudCfg.HighThreshold:
		s.audit.Record(ctx, &FraudAttemptRecord{
			IPAddress:   req.IPAddress,
			Email:       req.Email,
			Name:        req.Name,
			UserAgent:   req.UserAgent,
			FraudType:   FraudTypeHighRisk,
			Severity:    SeverityHigh,
			ActionTaken: ActionBlocked,
			Metadata:    map[string]interface{}{"score": score},
		})
		return &Evaluation{
			Allowed:     false,
			Banned:      false,
			Score:       score,
			Reason:      ReasonHighRiskSignup,
			ActionTaken: ActionBlocked,
			Message:     ReasonHighRiskSignup.Message(),
		}

	// Stage 5: medium band. Held for human review.
	case score >= s.fraudCfg.MediumThreshold:
		s.audit.Record(ctx, &FraudAttemptRecord{
			IPAddress:   req.IPAddress,
			Email:       req.Email,
			Name:        req.Name,
			UserAgent:   req.UserAgent,
			FraudType:   FraudTypeSuspicious,
			Severity:    SeverityMedium,
			ActionTaken: ActionFlagged,
			Metadata:    map[string]interface{}{"score": score},
		})
		return &Evaluation{
			Allowed:     false,
			Banned:      false,
			Score:       score,
			Reason:      ReasonManualReview,
			ActionTaken: ActionFlagged,
			Message:     ReasonManualReview.Message(),
		}
	}

	// Stage 6: low band. Allowed; no audit record is written for silent
	// allows, so the trail stays a trail of incidents.
	return &Evaluation{
		Allowed:     true,
		Banned:      false,
		Score:       score,
		ActionTaken: ActionAllowed,
	}
}

// RecordOutcome records the account-creation result reported by the external
// auth collaborator for an attempt that passed the gate.
func (s *Service) RecordOutcome(ctx context.Context, email, ip, userAgent string, succeeded bool) {
	normalized := s.normalizer.Normalize(ctx, email)
	s.audit.RecordSignupAttempt(ctx, &SignupAttempt{
		IPAddress:       ip,
		EmailRaw:        email,
		NormalizedEmail: normalized,
		UserAgent:       userAgent,
		Succeeded:       succeeded,
	})
}

// ListBans returns active bans for the operator console.
func (s *Service) ListBans(ctx context.Context, limit, offset int) ([]*BannedIP, int64, error) {
	return s.bans.List(ctx, limit, offset)
}

// BanIP creates a manual ban with an optional time limit.
func (s *Service) BanIP(ctx context.Context, ip, reason, bannedBy string, expiresAt *time.Time) error {
	return s.bans.Ban(ctx, ip, reason, BanTypeManual, bannedBy, expiresAt)
}

// UnbanIP removes a ban.
func (s *Service) UnbanIP(ctx context.Context, ip string) error {
	return s.bans.Unban(ctx, ip)
}

// ListFraudAttempts returns recent audit records, optionally filtered by IP.
func (s *Service) ListFraudAttempts(ctx context.Context, ip string, limit, offset int) ([]*FraudAttemptRecord, int64, error) {
	return s.audit.ListFraudAttempts(ctx, ip, limit, offset)
}

// Stats aggregates audit activity since the given time.
func (s *Service) Stats(ctx context.Context, since time.Time) (*FraudStats, error) {
	return s.audit.Stats(ctx, since)
}

func (s *Service) systemError() *Evaluation {
	return &Evaluation{
		Allowed:     false,
		Banned:      false,
		Score:       SystemErrorScore,
		Reason:      ReasonSystemError,
		ActionTaken: ActionBlocked,
		Message:     ReasonSystemError.Message(),
	}
}

// finish records the attempt row and the decision metric for every evaluated
// attempt, regardless of outcome.
func (s *Service) finish(ctx context.Context, req SignupRequest, normalized string, result *Evaluation) {
	evaluationsTotal.WithLabelValues(string(result.ActionTaken)).Inc()
	s.audit.RecordSignupAttempt(ctx, &SignupAttempt{
		IPAddress:       req.IPAddress,
		EmailRaw:        req.Email,
		NormalizedEmail: normalized,
		UserAgent:       req.UserAgent,
		Succeeded:       result.Allowed,
		FraudScore:      result.Score,
	})
}
