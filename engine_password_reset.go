package authcore

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/crestbank/authcore/internal/rate"
	"github.com/crestbank/authcore/token"
)

// RequestPasswordReset emails a reset token to a known account. A reset
// must not require the account to be already usable, so pending and
// locked accounts receive a token too; only administratively disabled
// accounts are skipped. The nil ack is generic: unknown emails, disabled
// accounts, and delivery failures are indistinguishable to the caller.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	if err := e.throttleResetRequest(ctx, email); err != nil {
		return err
	}

	user, err := e.store.GetUserByEmail(ctx, email, true)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.emitAudit(ctx, auditEventPasswordResetFailure, false, "", email, ErrUserNotFound, nil)
			return nil
		}
		return err
	}

	if user.Status == AccountInactive {
		e.emitAudit(ctx, auditEventPasswordResetFailure, false, user.ID.String(), user.Email, ErrAccountInactive, nil)
		return nil
	}

	tok, err := e.tokens.Mint(user.ID.String(), token.KindPasswordReset)
	if err != nil {
		return err
	}

	body := fmt.Sprintf("This reset token expires in %d minutes. Use it to set a new password: %s",
		int(e.config.Token.ResetTTL.Minutes()), tok)
	if err := e.mailer.Send(ctx, user.Email, "Reset your password", body); err != nil {
		e.emitAudit(ctx, auditEventPasswordResetFailure, false, user.ID.String(), user.Email, ErrEmailDeliveryFailed, nil)
		e.logger.Warn("password reset email delivery failed",
			zap.String("user_id", user.ID.String()),
			zap.Error(err))
		return nil
	}

	e.metricInc(MetricPasswordResetRequest)
	e.emitAudit(ctx, auditEventPasswordResetRequest, true, user.ID.String(), user.Email, nil, nil)
	return nil
}

// ResetPassword sets a new password from a valid reset token. Any
// non-disabled account may reset, pending ones included; a successful
// reset also lifts any lock and clears the OTP pair. The token proves
// mailbox control, which supersedes prior failed attempts.
func (e *Engine) ResetPassword(ctx context.Context, resetToken, newPassword, confirmPassword string) error {
	if newPassword != confirmPassword {
		return ErrPasswordMismatch
	}
	if len(newPassword) < e.config.Password.MinLength || len(newPassword) > e.config.Password.MaxLength {
		return ErrPasswordPolicy
	}

	userID, err := e.verifyTypedToken(resetToken, token.KindPasswordReset)
	if err != nil {
		e.metricInc(MetricPasswordResetFailure)
		e.emitAudit(ctx, auditEventPasswordResetFailure, false, "", "", err, nil)
		return err
	}

	user, err := e.store.GetUserByID(ctx, userID, true)
	if err != nil {
		e.metricInc(MetricPasswordResetFailure)
		e.emitAudit(ctx, auditEventPasswordResetFailure, false, userID.String(), "", err, nil)
		return err
	}

	if user.Status == AccountInactive {
		e.metricInc(MetricPasswordResetFailure)
		e.emitAudit(ctx, auditEventPasswordResetFailure, false, user.ID.String(), user.Email, ErrAccountInactive, nil)
		return ErrAccountInactive
	}

	hash, err := e.passwordHash.Hash(newPassword)
	if err != nil {
		return err
	}

	user.PasswordHash = hash
	e.resetUserState(user, true)
	user.UpdatedAt = e.now()

	if err := e.store.UpdateUser(ctx, user); err != nil {
		return err
	}

	e.metricInc(MetricPasswordResetSuccess)
	e.emitAudit(ctx, auditEventPasswordResetSuccess, true, user.ID.String(), user.Email, nil, nil)
	return nil
}

// throttleResetRequest mirrors the OTP flood budget for reset requests,
// with the same fail-open posture on a Redis outage.
func (e *Engine) throttleResetRequest(ctx context.Context, email string) error {
	if e.rateLimiter == nil {
		return nil
	}

	ip := clientIPFromContext(ctx)

	err := e.rateLimiter.CheckResetRequest(ctx, email, ip)
	if err == nil {
		err = e.rateLimiter.IncrementResetRequest(ctx, email, ip)
	}
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, rate.ErrRateLimited):
		e.emitRateLimit(ctx, "password_reset", email)
		e.emitAudit(ctx, auditEventPasswordResetLimited, false, "", email, ErrRequestRateLimited, nil)
		return ErrRequestRateLimited
	case errors.Is(err, rate.ErrRedisUnavailable):
		e.logger.Warn("reset throttle backend unavailable, failing open", zap.Error(err))
		return nil
	default:
		return err
	}
}
