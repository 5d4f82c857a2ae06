package authcore

import (
	"context"
	"fmt"
	"math"
	"time"
)

// LockedError reports a temporary lock with the time left until it
// expires. errors.Is(err, ErrAccountLocked) matches it.
type LockedError struct {
	RetryAfter time.Duration
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account locked, try again in %d minute(s)", e.RemainingMinutes())
}

// Is describes the is operation and its observable behavior.
//
// Is may return an error when input validation, dependency calls, or security checks fail.
// Is does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *LockedError) Is(target error) bool {
	return target == ErrAccountLocked
}

// RemainingMinutes reports the lock time left, rounded up so a caller
// never displays zero minutes for a live lock.
func (e *LockedError) RemainingMinutes() int {
	return int(math.Ceil(e.RetryAfter.Minutes()))
}

// InvalidCredentialsError reports a credential failure together with the
// attempts left before the account locks.
// errors.Is(err, ErrInvalidCredentials) matches it.
type InvalidCredentialsError struct {
	RemainingAttempts int
}

func (e *InvalidCredentialsError) Error() string {
	return fmt.Sprintf("invalid credentials, %d attempt(s) remaining", e.RemainingAttempts)
}

// Is describes the is operation and its observable behavior.
//
// Is may return an error when input validation, dependency calls, or security checks fail.
// Is does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *InvalidCredentialsError) Is(target error) bool {
	return target == ErrInvalidCredentials
}

// checkLockout applies the lockout window. An expired lock is lifted in
// place (state reset persisted); a live lock yields [LockedError] with
// the remaining window.
func (e *Engine) checkLockout(ctx context.Context, user *User) error {
	if user.LastFailedLogin == nil {
		return nil
	}

	now := e.now()
	lockExpiry := user.LastFailedLogin.Add(e.config.Lockout.Duration)

	if !now.Before(lockExpiry) {
		wasLocked := user.Status == AccountLocked
		e.resetUserState(user, true)
		if err := e.store.UpdateUser(ctx, user); err != nil {
			return err
		}
		if wasLocked {
			e.metricInc(MetricAccountUnlocked)
			e.emitAudit(ctx, auditEventAccountUnlocked, true, user.ID.String(), user.Email, nil, nil)
		}
		return nil
	}

	if user.Status == AccountLocked {
		return &LockedError{RetryAfter: lockExpiry.Sub(now)}
	}

	return nil
}

// recordFailedLogin counts one failed attempt, locking the account once
// the threshold is reached, and returns the matching caller-facing error.
func (e *Engine) recordFailedLogin(ctx context.Context, user *User) error {
	now := e.now()
	user.LastFailedLogin = &now
	user.FailedLoginAttempts++

	locked := user.FailedLoginAttempts >= e.config.Lockout.MaxAttempts
	if locked {
		setStatus(user, AccountLocked)
	}

	if err := e.store.UpdateUser(ctx, user); err != nil {
		return err
	}

	if locked {
		e.metricInc(MetricAccountLockout)
		e.emitAudit(ctx, auditEventAccountLockout, false, user.ID.String(), user.Email, ErrAccountLocked, func() map[string]string {
			return map[string]string{
				"failed_attempts": fmt.Sprintf("%d", user.FailedLoginAttempts),
			}
		})
		return &LockedError{RetryAfter: e.config.Lockout.Duration}
	}

	return &InvalidCredentialsError{
		RemainingAttempts: e.config.Lockout.MaxAttempts - user.FailedLoginAttempts,
	}
}
