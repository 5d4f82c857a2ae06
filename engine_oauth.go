package authcore

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/crestbank/authcore/internal"
)

// FederatedLogin resolves a verified external identity to a local
// account and issues a session for it. Resolution is three-way: an
// existing provider binding wins, then an email match links the
// provider to the existing account, and otherwise a new active account
// is provisioned. Federated accounts carry an opaque password hash that
// can never verify, so the password login path stays closed to them
// until a reset through the mailbox.
func (e *Engine) FederatedLogin(ctx context.Context, identity ExternalIdentity) (*FederatedLoginResult, error) {
	if identity.Email == "" {
		e.metricInc(MetricFederatedLoginFailure)
		e.emitAudit(ctx, auditEventFederatedLoginFailure, false, "", "", ErrProviderEmailMissing, func() map[string]string {
			return map[string]string{"provider": identity.Provider}
		})
		return nil, ErrProviderEmailMissing
	}

	user, err := e.resolveFederatedUser(ctx, identity)
	if err != nil {
		e.metricInc(MetricFederatedLoginFailure)
		e.emitAudit(ctx, auditEventFederatedLoginFailure, false, "", identity.Email, err, func() map[string]string {
			return map[string]string{"provider": identity.Provider}
		})
		return nil, err
	}

	access, refresh, err := e.issueSessionTokens(user)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricFederatedLoginSuccess)
	e.emitAudit(ctx, auditEventFederatedLoginSuccess, true, user.ID.String(), user.Email, nil, func() map[string]string {
		return map[string]string{"provider": identity.Provider}
	})

	return &FederatedLoginResult{
		AccessToken:  access,
		RefreshToken: refresh,
		User:         user.summary(),
		KYCRequired:  !user.KYCVerified,
	}, nil
}

func (e *Engine) resolveFederatedUser(ctx context.Context, identity ExternalIdentity) (*User, error) {
	binding, err := e.store.GetProviderBinding(ctx, identity.Provider, identity.Subject)
	if err == nil {
		return e.store.GetUserByID(ctx, binding.UserID, true)
	}
	if !errors.Is(err, ErrBindingNotFound) {
		return nil, err
	}

	user, err := e.store.GetUserByEmail(ctx, identity.Email, true)
	switch {
	case err == nil:
		return e.linkProvider(ctx, identity, user)
	case errors.Is(err, ErrUserNotFound):
		return e.createFederatedUser(ctx, identity)
	default:
		return nil, err
	}
}

// linkProvider attaches the provider pair to an existing account. A
// duplicate binding means a concurrent login already linked it, which
// counts as success.
func (e *Engine) linkProvider(ctx context.Context, identity ExternalIdentity, user *User) (*User, error) {
	binding := &ProviderBinding{
		ID:        uuid.New(),
		Provider:  identity.Provider,
		Subject:   identity.Subject,
		UserID:    user.ID,
		CreatedAt: e.now(),
	}

	if err := e.store.CreateProviderBinding(ctx, binding); err != nil {
		if errors.Is(err, ErrDuplicateBinding) {
			return user, nil
		}
		return nil, err
	}

	return user, nil
}

// createFederatedUser provisions an active account from the external
// identity. The account is immediately usable for federated sessions
// but has never passed identity verification, so KYCVerified starts
// false.
func (e *Engine) createFederatedUser(ctx context.Context, identity ExternalIdentity) (*User, error) {
	secret, err := internal.NewOpaqueSecret()
	if err != nil {
		return nil, err
	}
	hash, err := e.passwordHash.Hash(secret)
	if err != nil {
		return nil, err
	}

	idNumber, err := e.allocateIDNumber(ctx)
	if err != nil {
		return nil, err
	}

	now := e.now()
	user := &User{
		ID:           uuid.New(),
		Email:        identity.Email,
		FirstName:    identity.GivenName,
		LastName:     identity.FamilyName,
		IDNumber:     idNumber,
		PasswordHash: hash,
		Role:         e.config.Account.DefaultRole,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	setStatus(user, AccountActive)

	if err := e.createWithUsername(ctx, user); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			// Lost a race with a concurrent first login for the same
			// identity; resolve against the winner's account.
			winner, lookupErr := e.store.GetUserByEmail(ctx, identity.Email, true)
			if lookupErr != nil {
				return nil, lookupErr
			}
			return e.linkProvider(ctx, identity, winner)
		}
		return nil, err
	}

	if _, err := e.linkProvider(ctx, identity, user); err != nil {
		return nil, err
	}

	e.metricInc(MetricFederatedUserCreated)
	e.emitAudit(ctx, auditEventFederatedUserCreated, true, user.ID.String(), user.Email, nil, func() map[string]string {
		return map[string]string{"provider": identity.Provider}
	})

	return user, nil
}

// allocateIDNumber samples the configured range until a free placeholder
// id number is found. Exhausting the attempt budget fails the login
// rather than retrying forever against a dense range.
func (e *Engine) allocateIDNumber(ctx context.Context) (int64, error) {
	for attempt := 0; attempt < e.config.Account.IDAllocationAttempts; attempt++ {
		candidate, err := internal.NewIDNumber(e.config.Account.IDNumberMin, e.config.Account.IDNumberMax)
		if err != nil {
			return 0, err
		}

		_, err = e.store.GetUserByIDNumber(ctx, candidate)
		if errors.Is(err, ErrUserNotFound) {
			return candidate, nil
		}
		if err != nil {
			return 0, err
		}
	}

	return 0, ErrIDAllocationExhausted
}
