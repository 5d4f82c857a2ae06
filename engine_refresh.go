package authcore

import (
	"context"

	"github.com/crestbank/authcore/token"
)

// Refresh exchanges a valid refresh token for a fresh access token. The
// refresh token itself is not rotated; it stays valid until its own
// expiry and is echoed back in the result.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	userID, err := e.verifyTypedToken(refreshToken, token.KindRefresh)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshFailure, false, "", "", err, nil)
		return nil, err
	}

	user, err := e.store.GetUserByID(ctx, userID, false)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshFailure, false, userID.String(), "", err, nil)
		return nil, err
	}

	// A lock acquired since the token was issued refuses the exchange;
	// an expired one is lifted here like on any login attempt.
	if err := e.checkLockout(ctx, user); err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshFailure, false, user.ID.String(), user.Email, err, nil)
		return nil, err
	}

	if err := validateUserStatus(user); err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshFailure, false, user.ID.String(), user.Email, err, nil)
		return nil, err
	}

	access, err := e.tokens.Mint(user.ID.String(), token.KindAccess)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, user.ID.String(), user.Email, nil, nil)

	return &RefreshResult{
		AccessToken:  access,
		RefreshToken: refreshToken,
		User:         user.summary(),
	}, nil
}
