package authcore

import (
	"context"
	"crypto/subtle"
	"errors"

	"go.uber.org/zap"

	"github.com/crestbank/authcore/internal/rate"
)

// RequestLoginOTP verifies the password stage of the two-step login and,
// on success, delivers a one-time code to the account email. The return
// distinguishes credential and policy failures but never reveals whether
// the email exists: an unknown account resolves to the same nil ack as a
// delivered code.
func (e *Engine) RequestLoginOTP(ctx context.Context, email, password string) error {
	if err := e.throttleOTPRequest(ctx, email); err != nil {
		return err
	}

	user, err := e.store.GetUserByEmail(ctx, email, true)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.emitAudit(ctx, auditEventOTPRequestFailure, false, "", email, ErrUserNotFound, nil)
			return nil
		}
		return err
	}

	if err := e.checkLockout(ctx, user); err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID.String(), user.Email, err, nil)
		return err
	}

	ok, err := e.passwordHash.Verify(password, user.PasswordHash)
	if err != nil {
		return err
	}
	if !ok {
		failErr := e.recordFailedLogin(ctx, user)
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID.String(), user.Email, failErr, nil)
		return failErr
	}

	// Status is checked only after the caller proved the password, so an
	// unauthenticated probe cannot learn that the account exists but is
	// not yet activated.
	if err := validateUserStatus(user); err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID.String(), user.Email, err, nil)
		return err
	}

	if user.FailedLoginAttempts > 0 {
		e.resetUserState(user, false)
	}

	return e.generateAndDeliverOTP(ctx, user)
}

// VerifyLoginOTP completes the two-step login. A matching unexpired code
// is consumed, the failure counters reset, and a fresh access/refresh
// pair issued. A missing or wrong code counts against the lockout budget
// exactly like a wrong password.
func (e *Engine) VerifyLoginOTP(ctx context.Context, email, otp string) (*LoginResult, error) {
	user, err := e.store.GetUserByEmail(ctx, email, false)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.metricInc(MetricLoginFailure)
			e.emitAudit(ctx, auditEventLoginFailure, false, "", email, ErrInvalidCredentials, nil)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := e.checkLockout(ctx, user); err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID.String(), user.Email, err, nil)
		return nil, err
	}

	// A missing code and a wrong code are the same credential failure:
	// both count against the lockout budget. Expiry is only reported for
	// a code the caller actually knew.
	if user.OTP == "" || subtle.ConstantTimeCompare([]byte(user.OTP), []byte(otp)) != 1 {
		failErr := e.recordFailedLogin(ctx, user)
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID.String(), user.Email, failErr, nil)
		return nil, failErr
	}

	if user.OTPExpiresAt == nil || e.now().After(*user.OTPExpiresAt) {
		clearOTP(user)
		if err := e.store.UpdateUser(ctx, user); err != nil {
			return nil, err
		}
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID.String(), user.Email, ErrOTPExpired, nil)
		return nil, ErrOTPExpired
	}

	// Single use: the consumed code and the failure counters go together.
	e.resetUserState(user, true)
	user.UpdatedAt = e.now()
	if err := e.store.UpdateUser(ctx, user); err != nil {
		return nil, err
	}

	access, refresh, err := e.issueSessionTokens(user)
	if err != nil {
		return nil, err
	}

	e.clearOTPThrottle(ctx, user.Email)
	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, user.ID.String(), user.Email, nil, nil)

	return &LoginResult{
		AccessToken:  access,
		RefreshToken: refresh,
		User:         user.summary(),
	}, nil
}

// throttleOTPRequest applies the Redis flood budget when configured. A
// Redis outage fails open: the durable per-account lockout still limits
// credential abuse, so availability wins here.
func (e *Engine) throttleOTPRequest(ctx context.Context, email string) error {
	if e.rateLimiter == nil {
		return nil
	}

	ip := clientIPFromContext(ctx)

	if err := e.rateLimiter.CheckOTPRequest(ctx, email, ip); err != nil {
		switch {
		case errors.Is(err, rate.ErrRateLimited):
			e.metricInc(MetricLoginFailure)
			e.emitRateLimit(ctx, "otp_request", email)
			e.emitAudit(ctx, auditEventOTPRateLimited, false, "", email, ErrRequestRateLimited, nil)
			return ErrRequestRateLimited
		case errors.Is(err, rate.ErrRedisUnavailable):
			e.logger.Warn("otp throttle backend unavailable, failing open", zap.Error(err))
			return nil
		default:
			return err
		}
	}

	if err := e.rateLimiter.IncrementOTPRequest(ctx, email, ip); err != nil {
		switch {
		case errors.Is(err, rate.ErrRateLimited):
			e.metricInc(MetricLoginFailure)
			e.emitRateLimit(ctx, "otp_request", email)
			e.emitAudit(ctx, auditEventOTPRateLimited, false, "", email, ErrRequestRateLimited, nil)
			return ErrRequestRateLimited
		case errors.Is(err, rate.ErrRedisUnavailable):
			e.logger.Warn("otp throttle backend unavailable, failing open", zap.Error(err))
			return nil
		default:
			return err
		}
	}

	return nil
}

// clearOTPThrottle drops the flood counters after a fully verified login
// so the next legitimate login is never blocked by its own requests.
func (e *Engine) clearOTPThrottle(ctx context.Context, email string) {
	if e.rateLimiter == nil {
		return
	}

	if err := e.rateLimiter.ResetOTPRequest(ctx, email, clientIPFromContext(ctx)); err != nil {
		e.logger.Warn("otp throttle reset failed", zap.Error(err))
	}
}
