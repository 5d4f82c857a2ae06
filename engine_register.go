package authcore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/crestbank/authcore/internal"
	"github.com/crestbank/authcore/token"
)

const usernameCreateAttempts = 3

// Register creates a pending account and emails its activation token.
// The account is committed before delivery is attempted: a delivery
// failure surfaces [ErrEmailDeliveryFailed] while the stored user can
// still request a resend.
func (e *Engine) Register(ctx context.Context, input RegisterInput) (*UserSummary, error) {
	if e.passwordHash == nil {
		return nil, ErrEngineNotReady
	}

	if input.Password != input.ConfirmPassword {
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", input.Email, ErrPasswordMismatch, nil)
		return nil, ErrPasswordMismatch
	}
	if len(input.Password) < e.config.Password.MinLength || len(input.Password) > e.config.Password.MaxLength {
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", input.Email, ErrPasswordPolicy, nil)
		return nil, ErrPasswordPolicy
	}

	if _, err := e.store.GetUserByEmail(ctx, input.Email, true); err == nil {
		e.metricInc(MetricRegisterDuplicate)
		e.emitAudit(ctx, auditEventRegisterDuplicate, false, "", input.Email, ErrEmailTaken, nil)
		return nil, ErrEmailTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	if _, err := e.store.GetUserByIDNumber(ctx, input.IDNumber); err == nil {
		e.metricInc(MetricRegisterDuplicate)
		e.emitAudit(ctx, auditEventRegisterDuplicate, false, "", input.Email, ErrIDNumberTaken, nil)
		return nil, ErrIDNumberTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	hash, err := e.passwordHash.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	role := input.Role
	if role == "" {
		role = e.config.Account.DefaultRole
	}

	now := e.now()
	user := &User{
		ID:                uuid.New(),
		Email:             input.Email,
		FirstName:         input.FirstName,
		MiddleName:        input.MiddleName,
		LastName:          input.LastName,
		IDNumber:          input.IDNumber,
		PasswordHash:      hash,
		Role:              role,
		PreferredLanguage: input.PreferredLanguage,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	setStatus(user, AccountPending)

	if err := e.createWithUsername(ctx, user); err != nil {
		switch {
		case errors.Is(err, ErrEmailTaken), errors.Is(err, ErrIDNumberTaken):
			e.metricInc(MetricRegisterDuplicate)
			e.emitAudit(ctx, auditEventRegisterDuplicate, false, "", input.Email, err, nil)
		}
		return nil, err
	}

	if err := e.sendActivationEmail(ctx, user); err != nil {
		e.metricInc(MetricActivationEmailFailure)
		e.emitAudit(ctx, auditEventActivationFailure, false, user.ID.String(), user.Email, ErrEmailDeliveryFailed, nil)
		return nil, fmt.Errorf("%w: %v", ErrEmailDeliveryFailed, err)
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventRegisterSuccess, true, user.ID.String(), user.Email, nil, nil)

	summary := user.summary()
	return &summary, nil
}

// createWithUsername persists the user under a freshly generated
// username, resampling on the unlikely collision.
func (e *Engine) createWithUsername(ctx context.Context, user *User) error {
	var err error
	for attempt := 0; attempt < usernameCreateAttempts; attempt++ {
		user.Username, err = internal.NewUsername(e.config.Account.UsernamePrefix, e.config.Account.UsernameLength)
		if err != nil {
			return err
		}

		err = e.store.CreateUser(ctx, user)
		if err == nil || !errors.Is(err, ErrUsernameTaken) {
			return err
		}
	}
	return err
}

func (e *Engine) sendActivationEmail(ctx context.Context, user *User) error {
	tok, err := e.tokens.Mint(user.ID.String(), token.KindActivation)
	if err != nil {
		return err
	}

	body := fmt.Sprintf("Welcome %s. Use this token to activate your account: %s",
		user.FullName(), tok)
	return e.mailer.Send(ctx, user.Email, "Activate your account", body)
}

// Activate verifies an activation token and transitions the account from
// pending to active, clearing any leftover lockout or OTP state.
func (e *Engine) Activate(ctx context.Context, activationToken string) (*UserSummary, error) {
	userID, err := e.verifyTypedToken(activationToken, token.KindActivation)
	if err != nil {
		e.metricInc(MetricActivateFailure)
		e.emitAudit(ctx, auditEventActivateFailure, false, "", "", err, nil)
		return nil, err
	}

	user, err := e.store.GetUserByID(ctx, userID, true)
	if err != nil {
		e.metricInc(MetricActivateFailure)
		e.emitAudit(ctx, auditEventActivateFailure, false, userID.String(), "", err, nil)
		return nil, err
	}

	if user.IsActive {
		e.metricInc(MetricActivateFailure)
		e.emitAudit(ctx, auditEventActivateFailure, false, user.ID.String(), user.Email, ErrAlreadyActivated, nil)
		return nil, ErrAlreadyActivated
	}

	e.resetUserState(user, true)
	setStatus(user, AccountActive)
	user.UpdatedAt = e.now()

	if err := e.store.UpdateUser(ctx, user); err != nil {
		return nil, err
	}

	e.metricInc(MetricActivateSuccess)
	e.emitAudit(ctx, auditEventActivateSuccess, true, user.ID.String(), user.Email, nil, nil)

	summary := user.summary()
	return &summary, nil
}

// ResendActivation mints a fresh activation token for a known pending
// account. Unlike the login paths this reports a missing account: the
// caller already proved knowledge of the email at registration.
func (e *Engine) ResendActivation(ctx context.Context, email string) error {
	user, err := e.store.GetUserByEmail(ctx, email, true)
	if err != nil {
		return err
	}

	if user.IsActive {
		return ErrAlreadyActivated
	}

	if err := e.sendActivationEmail(ctx, user); err != nil {
		e.metricInc(MetricActivationEmailFailure)
		e.emitAudit(ctx, auditEventActivationFailure, false, user.ID.String(), user.Email, ErrEmailDeliveryFailed, nil)
		return fmt.Errorf("%w: %v", ErrEmailDeliveryFailed, err)
	}

	e.emitAudit(ctx, auditEventActivationSent, true, user.ID.String(), user.Email, nil, nil)
	return nil
}

// verifyTypedToken maps token package failures onto engine sentinels and
// parses the subject into a user id.
func (e *Engine) verifyTypedToken(tok string, kind token.Kind) (uuid.UUID, error) {
	if tok == "" {
		return uuid.Nil, ErrMissingToken
	}

	subject, err := e.tokens.Verify(tok, kind)
	if err != nil {
		switch {
		case errors.Is(err, token.ErrExpired):
			return uuid.Nil, ErrTokenExpired
		case errors.Is(err, token.ErrInvalidKind):
			return uuid.Nil, ErrTokenInvalidType
		default:
			return uuid.Nil, ErrTokenMalformed
		}
	}

	userID, err := uuid.Parse(subject)
	if err != nil {
		return uuid.Nil, ErrTokenMalformed
	}

	return userID, nil
}
