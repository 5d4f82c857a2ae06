package authcore

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/crestbank/authcore/internal/rate"
	"github.com/crestbank/authcore/password"
	"github.com/crestbank/authcore/token"
)

// Engine defines a public type used by authcore APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config       Config
	store        UserStore
	mailer       Mailer
	tokens       *token.Manager
	passwordHash *password.Hasher
	rateLimiter  *rate.Limiter
	audit        *auditDispatcher
	metrics      *Metrics
	logger       *zap.Logger
	now          func() time.Time
	sleep        func(ctx context.Context, d time.Duration) error
}

// Close describes the close operation and its observable behavior.
//
// Close may return an error when input validation, dependency calls, or security checks fail.
// Close does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped may return an error when input validation, dependency calls, or security checks fail.
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot may return an error when input validation, dependency calls, or security checks fail.
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters: map[MetricID]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

/*
====================================
ACCOUNT STATE MACHINE
====================================
*/

// setStatus is the single writer for the status pair: Status is the
// canonical field and IsActive is derived from it. No other code may
// assign either field directly.
//
// IsActive records that the account was activated, not that it is
// currently usable: a lock is a temporary suspension of an activated
// account, so locked keeps the flag set. This keeps locked users
// visible to active-filtered store lookups, which is what lets the
// lockout window expire on their next attempt.
func setStatus(user *User, status AccountStatus) {
	user.Status = status
	user.IsActive = status == AccountActive || status == AccountLocked
}

// resetUserState clears the failed-login counters, optionally the OTP
// pair, and lifts an expired lock. It mutates user in memory only; the
// caller persists.
func (e *Engine) resetUserState(user *User, clearOTP bool) {
	user.FailedLoginAttempts = 0
	user.LastFailedLogin = nil
	if clearOTP {
		user.OTP = ""
		user.OTPExpiresAt = nil
	}
	if user.Status == AccountLocked {
		setStatus(user, AccountActive)
	}
}

// validateUserStatus enforces the status precedence for authenticated
// operations: inactive flag first, then locked, then inactive status.
func validateUserStatus(user *User) error {
	if !user.IsActive {
		return ErrAccountNotActive
	}
	switch user.Status {
	case AccountLocked:
		return ErrAccountLocked
	case AccountInactive:
		return ErrAccountInactive
	}
	return nil
}

// clearOTP removes the OTP pair together. The two fields are never
// written independently.
func clearOTP(user *User) {
	user.OTP = ""
	user.OTPExpiresAt = nil
}

func (e *Engine) setOTP(user *User, otp string) {
	expiry := e.now().Add(e.config.OTP.TTL)
	user.OTP = otp
	user.OTPExpiresAt = &expiry
}

func (e *Engine) issueSessionTokens(user *User) (access, refresh string, err error) {
	access, err = e.tokens.Mint(user.ID.String(), token.KindAccess)
	if err != nil {
		return "", "", err
	}
	refresh, err = e.tokens.Mint(user.ID.String(), token.KindRefresh)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

func defaultSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
