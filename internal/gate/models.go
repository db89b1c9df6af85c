package gate

import (
	"time"

	"github.com/google/uuid"
)

// BanType distinguishes bans created by the gate from operator-issued ones.
type BanType string

const (
	BanTypeSystem BanType = "system"
	BanTypeManual BanType = "manual"
)

// FraudType classifies an audited evaluation branch.
type FraudType string

const (
	FraudTypeBannedIP   FraudType = "banned_ip"
	FraudTypeNameFraud  FraudType = "name_fraud"
	FraudTypeHighRisk   FraudType = "high_risk"
	FraudTypeSuspicious FraudType = "suspicious"
)

// Severity labels an audited evaluation branch.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Action is the action the gate took for an attempt.
type Action string

const (
	ActionAllowed Action = "allowed"
	ActionFlagged Action = "flagged"
	ActionBlocked Action = "blocked"
	ActionBanned  Action = "banned"
)

// Reason is a typed denial reason from the fixed catalogue.
type Reason string

const (
	ReasonIPBanned          Reason = "IP_BANNED"
	ReasonFraudNameDetected Reason = "FRAUD_NAME_DETECTED"
	ReasonHighRiskSignup    Reason = "HIGH_RISK_SIGNUP"
	ReasonManualReview      Reason = "MANUAL_REVIEW_REQUIRED"
	ReasonSystemError       Reason = "SYSTEM_ERROR"
)

// reasonMessages is the fixed user-visible message catalogue. Reasons outside
// the catalogue map to the generic denial sentence.
var reasonMessages = map[Reason]string{
	ReasonIPBanned:          "Your network address has been blocked from creating accounts.",
	ReasonFraudNameDetected: "This signup was rejected and the originating address has been blocked.",
	ReasonHighRiskSignup:    "This signup could not be completed. Please contact support if you believe this is an error.",
	ReasonManualReview:      "Your signup is being held for manual review. You will be contacted by email.",
	ReasonSystemError:       "Signup is temporarily unavailable. Please try again later.",
}

const genericDenialMessage = "This signup could not be completed."

// Message returns the fixed user-visible sentence for the reason.
func (r Reason) Message() string {
	if msg, ok := reasonMessages[r]; ok {
		return msg
	}
	return genericDenialMessage
}

// BannedIPScore is the score reported for attempts short-circuited by a
// pre-existing ban; no score is actually computed on that path.
const BannedIPScore = 1000

// SystemErrorScore is the sentinel score reported when an evaluation aborts.
const SystemErrorScore = 999

// SignupAttempt is one evaluated signup. Rows are append-only and double as
// the application-level rate-limit counter.
type SignupAttempt struct {
	ID              uuid.UUID `json:"id"`
	IPAddress       string    `json:"ip_address"`
	EmailRaw        string    `json:"email_raw"`
	NormalizedEmail string    `json:"normalized_email"`
	UserAgent       string    `json:"user_agent"`
	Succeeded       bool      `json:"succeeded"`
	FraudScore      int       `json:"fraud_score"`
	CreatedAt       time.Time `json:"created_at"`
}

// BannedIP is a persistent IP-level block. A row whose ExpiresAt is in the
// past is treated as absent by every read path.
type BannedIP struct {
	IPAddress string     `json:"ip_address"`
	Reason    string     `json:"reason"`
	BanType   BanType    `json:"ban_type"`
	BannedBy  string     `json:"banned_by"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Active reports whether the ban is currently in force.
func (b *BannedIP) Active(now time.Time) bool {
	return b.ExpiresAt == nil || b.ExpiresAt.After(now)
}

// FraudAttemptRecord is a write-once audit entry for a non-trivial
// evaluation branch.
type FraudAttemptRecord struct {
	ID          uuid.UUID              `json:"id"`
	IPAddress   string                 `json:"ip_address"`
	Email       string                 `json:"email"`
	Name        string                 `json:"name"`
	UserAgent   string                 `json:"user_agent"`
	FraudType   FraudType              `json:"fraud_type"`
	Severity    Severity               `json:"severity"`
	ActionTaken Action                 `json:"action_taken"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

// SignupRequest is the input to one gate evaluation.
type SignupRequest struct {
	Email     string `json:"email"`
	Name      string `json:"name"`
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
}

// Evaluation is the decision produced by one gate evaluation.
type Evaluation struct {
	Allowed     bool   `json:"allowed"`
	Banned      bool   `json:"banned"`
	Score       int    `json:"score"`
	Reason      Reason `json:"reason,omitempty"`
	ActionTaken Action `json:"action_taken"`
	Message     string `json:"message,omitempty"`
}

// WindowStatus is the outcome of a rate-limit window check.
type WindowStatus struct {
	Allowed  bool       `json:"allowed"`
	Attempts int        `json:"attempts"`
	ResetAt  *time.Time `json:"reset_at,omitempty"`
}

// FraudStats aggregates audit activity since a point in time for the
// operator console.
type FraudStats struct {
	Since          time.Time        `json:"since"`
	TotalAttempts  int64            `json:"total_attempts"`
	TotalEvaluated int64            `json:"total_evaluated"`
	BySeverity     map[string]int64 `json:"by_severity"`
	ByAction       map[string]int64 `json:"by_action"`
	ActiveBans     int64            `json:"active_bans"`
}
