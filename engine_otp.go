package authcore

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/crestbank/authcore/internal"
)

// generateAndDeliverOTP stores a fresh OTP on the user and attempts
// delivery with bounded retries. On delivery exhaustion the OTP pair is
// cleared and persisted (fail closed) so an undelivered code can never
// be guessed at; the caller still resolves to its generic ack.
func (e *Engine) generateAndDeliverOTP(ctx context.Context, user *User) error {
	otp, err := internal.NewOTP(e.config.OTP.Digits)
	if err != nil {
		return err
	}

	e.setOTP(user, otp)
	if err := e.store.UpdateUser(ctx, user); err != nil {
		return err
	}

	subject := "Your login code"
	body := fmt.Sprintf("Your one-time login code is %s. It expires in %d minutes.",
		otp, int(e.config.OTP.TTL.Minutes()))

	if err := e.deliverWithRetry(ctx, user.Email, subject, body); err != nil {
		clearOTP(user)
		if updateErr := e.store.UpdateUser(ctx, user); updateErr != nil {
			e.logger.Error("otp clear after delivery failure did not persist",
				zap.String("user_id", user.ID.String()),
				zap.Error(updateErr))
			return updateErr
		}
		e.metricInc(MetricOTPDeliveryFailure)
		e.emitAudit(ctx, auditEventOTPDeliveryFailure, false, user.ID.String(), user.Email, ErrEmailDeliveryFailed, nil)
		e.logger.Warn("otp delivery exhausted, code cleared",
			zap.String("user_id", user.ID.String()),
			zap.Int("attempts", e.config.OTP.MaxDeliveryAttempts),
			zap.Error(err))
		return nil
	}

	e.metricInc(MetricOTPRequested)
	e.emitAudit(ctx, auditEventOTPRequested, true, user.ID.String(), user.Email, nil, nil)
	return nil
}

// deliverWithRetry sends through the mailer, doubling the configured
// backoff between attempts (1x, 2x, ...). The final failure returns
// immediately; there is no attempt left for a delay to serve.
func (e *Engine) deliverWithRetry(ctx context.Context, to, subject, body string) error {
	var lastErr error

	for attempt := 0; attempt < e.config.OTP.MaxDeliveryAttempts; attempt++ {
		lastErr = e.mailer.Send(ctx, to, subject, body)
		if lastErr == nil {
			return nil
		}
		if attempt == e.config.OTP.MaxDeliveryAttempts-1 {
			break
		}

		if err := e.sleep(ctx, e.config.OTP.DeliveryBackoff<<attempt); err != nil {
			return err
		}
	}

	return lastErr
}
