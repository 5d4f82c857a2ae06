package authcore

import (
	"context"

	"github.com/crestbank/authcore/token"
)

// Authenticate resolves a bearer access token to its account. It is the
// per-request hot path: one token verification plus one store lookup,
// with no counters or audit noise on the happy path.
func (e *Engine) Authenticate(ctx context.Context, accessToken string) (*UserSummary, error) {
	userID, err := e.verifyTypedToken(accessToken, token.KindAccess)
	if err != nil {
		return nil, err
	}

	user, err := e.store.GetUserByID(ctx, userID, false)
	if err != nil {
		return nil, err
	}

	if err := validateUserStatus(user); err != nil {
		return nil, err
	}

	summary := user.summary()
	return &summary, nil
}
