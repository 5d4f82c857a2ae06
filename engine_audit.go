package authcore

import (
	"context"
	"errors"
)

const (
	auditEventRegisterSuccess       = "register_success"
	auditEventRegisterFailure       = "register_failure"
	auditEventRegisterDuplicate     = "register_duplicate"
	auditEventActivationSent        = "activation_sent"
	auditEventActivationFailure     = "activation_email_failure"
	auditEventActivateSuccess       = "activate_success"
	auditEventActivateFailure       = "activate_failure"
	auditEventOTPRequested          = "otp_requested"
	auditEventOTPRequestFailure     = "otp_request_failure"
	auditEventOTPDeliveryFailure    = "otp_delivery_failure"
	auditEventOTPRateLimited        = "otp_request_rate_limited"
	auditEventLoginSuccess          = "login_success"
	auditEventLoginFailure          = "login_failure"
	auditEventAccountLockout        = "account_lockout"
	auditEventAccountUnlocked       = "account_unlocked"
	auditEventRefreshSuccess        = "refresh_success"
	auditEventRefreshFailure        = "refresh_failure"
	auditEventPasswordResetRequest  = "password_reset_request"
	auditEventPasswordResetSuccess  = "password_reset_success"
	auditEventPasswordResetFailure  = "password_reset_failure"
	auditEventPasswordResetLimited  = "password_reset_rate_limited"
	auditEventFederatedLoginSuccess = "federated_login_success"
	auditEventFederatedLoginFailure = "federated_login_failure"
	auditEventFederatedUserCreated  = "federated_user_created"
	auditEventRateLimitTriggered    = "rate_limit_triggered"
)

// AuditErrorCode defines a public type used by authcore APIs.
//
// AuditErrorCode instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrUserNotFound       AuditErrorCode = "user_not_found"
	auditErrAccountNotActive   AuditErrorCode = "account_not_active"
	auditErrAccountInactive    AuditErrorCode = "account_inactive"
	auditErrAccountLocked      AuditErrorCode = "account_locked"
	auditErrAlreadyActivated   AuditErrorCode = "already_activated"
	auditErrOTPExpired         AuditErrorCode = "otp_expired"
	auditErrPasswordPolicy     AuditErrorCode = "password_policy"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrTokenExpired       AuditErrorCode = "token_expired"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrDeliveryFailed     AuditErrorCode = "delivery_failed"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrProviderEmail      AuditErrorCode = "provider_email_missing"
	auditErrIDAllocation       AuditErrorCode = "id_allocation_exhausted"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	email string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		UserID:    userID,
		Email:     email,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) emitRateLimit(ctx context.Context, scope, email string) {
	e.metricInc(MetricRateLimitHit)
	e.emitAudit(ctx, auditEventRateLimitTriggered, false, "", email, ErrRequestRateLimited, func() map[string]string {
		return map[string]string{
			"scope": scope,
		}
	})
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrBindingNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrAccountLocked):
		return auditErrAccountLocked
	case errors.Is(err, ErrAccountNotActive):
		return auditErrAccountNotActive
	case errors.Is(err, ErrAccountInactive):
		return auditErrAccountInactive
	case errors.Is(err, ErrAlreadyActivated):
		return auditErrAlreadyActivated
	case errors.Is(err, ErrOTPExpired):
		return auditErrOTPExpired
	case errors.Is(err, ErrPasswordMismatch),
		errors.Is(err, ErrPasswordPolicy):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrTokenExpired):
		return auditErrTokenExpired
	case errors.Is(err, ErrMissingToken),
		errors.Is(err, ErrTokenInvalidType),
		errors.Is(err, ErrTokenMalformed):
		return auditErrInvalidToken
	case errors.Is(err, ErrEmailTaken),
		errors.Is(err, ErrIDNumberTaken),
		errors.Is(err, ErrUsernameTaken),
		errors.Is(err, ErrDuplicateBinding):
		return auditErrDuplicate
	case errors.Is(err, ErrEmailDeliveryFailed):
		return auditErrDeliveryFailed
	case errors.Is(err, ErrRequestRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrProviderEmailMissing):
		return auditErrProviderEmail
	case errors.Is(err, ErrIDAllocationExhausted):
		return auditErrIDAllocation
	case errors.Is(err, ErrStoreUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
