package gate

import (
	"context"
	"math"
	"time"

	"github.com/linelogic/fraudgate/pkg/logger"
	"go.uber.org/zap"
)

// Window is the application-level rate-limit window. It counts signup
// attempt rows per source IP inside a rolling interval.
//
// The count-then-compare check is not linearizable: two concurrent requests
// can both read the same count and both pass. This is an accepted soft
// limit.
type Window struct {
	counter AttemptCounter
	timeout time.Duration
	now     func() time.Time
}

// NewWindow creates a window over the given counter.
func NewWindow(counter AttemptCounter, timeout time.Duration) *Window {
	return &Window{counter: counter, timeout: timeout, now: time.Now}
}

// WithNow overrides the window's clock. Intended for tests.
func (w *Window) WithNow(now func() time.Time) {
	w.now = now
}

// CheckAndCount counts attempts for the IP inside the window and compares
// against maxAttempts. A store error fails closed: an unreadable counter
// must not be treated as "no prior attempts".
func (w *Window) CheckAndCount(ctx context.Context, ip string, window time.Duration, maxAttempts int) WindowStatus {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	now := w.now()
	attempts, err := w.counter.CountSignupAttempts(ctx, ip, now.Add(-window))
	if err != nil {
		logger.Error("attempt count failed, denying request",
			zap.String("ip", ip),
			zap.Error(err),
		)
		resetAt := now.Add(window)
		return WindowStatus{Allowed: false, Attempts: math.MaxInt, ResetAt: &resetAt}
	}

	if attempts >= maxAttempts {
		resetAt := now.Add(window)
		return WindowStatus{Allowed: false, Attempts: attempts, ResetAt: &resetAt}
	}

	return WindowStatus{Allowed: true, Attempts: attempts}
}
