package authcore

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLogin_TwoStepHappyPath(t *testing.T) {
	env := newTestEngine(t, testConfig())
	env.seedActiveUser(t, testEmail, testPassword)
	ctx := context.Background()

	otp := env.requestOTP(t, testEmail, testPassword)
	if len(otp) != 6 {
		t.Fatalf("OTP length = %d, want 6", len(otp))
	}

	result, err := env.engine.VerifyLoginOTP(ctx, testEmail, otp)
	if err != nil {
		t.Fatalf("VerifyLoginOTP failed: %v", err)
	}
	if result.AccessToken == "" || result.RefreshToken == "" {
		t.Fatal("expected both tokens after login")
	}
	if result.User.Email != testEmail {
		t.Fatalf("result user = %q, want %q", result.User.Email, testEmail)
	}

	// Single use: the consumed code must be gone from the record.
	stored := env.store.mustGetByEmail(t, testEmail)
	if stored.OTP != "" || stored.OTPExpiresAt != nil {
		t.Fatal("OTP must be cleared after successful verification")
	}
}

func TestLogin_UnknownEmailGetsGenericAck(t *testing.T) {
	env := newTestEngine(t, testConfig())

	// Same nil ack as a real delivery, so callers cannot probe for
	// registered emails.
	if err := env.engine.RequestLoginOTP(context.Background(), "nobody@example.com", "whatever-pass"); err != nil {
		t.Fatalf("expected generic nil ack, got %v", err)
	}
	if env.mailer.calls() != 0 {
		t.Fatal("no mail may be sent for unknown emails")
	}
}

func TestLogin_WrongPasswordCountsDown(t *testing.T) {
	env := newTestEngine(t, testConfig())
	env.seedActiveUser(t, testEmail, testPassword)
	ctx := context.Background()

	err := env.engine.RequestLoginOTP(ctx, testEmail, "wrong-password")
	var invalid *InvalidCredentialsError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidCredentialsError, got %v", err)
	}
	if invalid.RemainingAttempts != 2 {
		t.Fatalf("remaining = %d, want 2", invalid.RemainingAttempts)
	}
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatal("InvalidCredentialsError must match ErrInvalidCredentials")
	}
}

func TestLogin_ThirdFailureLocksAccount(t *testing.T) {
	env := newTestEngine(t, testConfig())
	env.seedActiveUser(t, testEmail, testPassword)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := env.engine.RequestLoginOTP(ctx, testEmail, "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i+1, err)
		}
	}

	err := env.engine.RequestLoginOTP(ctx, testEmail, "wrong-password")
	var locked *LockedError
	if !errors.As(err, &locked) {
		t.Fatalf("expected LockedError on third failure, got %v", err)
	}
	if locked.RemainingMinutes() != 5 {
		t.Fatalf("remaining minutes = %d, want 5", locked.RemainingMinutes())
	}

	// The lock suspends an activated account; the activation flag stays
	// set so the record remains visible to filtered lookups.
	stored := env.store.mustGetByEmail(t, testEmail)
	if stored.Status != AccountLocked || !stored.IsActive {
		t.Fatalf("stored status = %q active=%v, want locked/true", stored.Status, stored.IsActive)
	}

	// Correct password is refused while the lock holds.
	if err := env.engine.RequestLoginOTP(ctx, testEmail, testPassword); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked with correct password, got %v", err)
	}
}

func TestLogin_LockExpiresAutomatically(t *testing.T) {
	env := newTestEngine(t, testConfig())
	env.seedActiveUser(t, testEmail, testPassword)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		env.engine.RequestLoginOTP(ctx, testEmail, "wrong-password")
	}

	env.clock.Advance(5 * time.Minute)

	otp := env.requestOTP(t, testEmail, testPassword)
	result, err := env.engine.VerifyLoginOTP(ctx, testEmail, otp)
	if err != nil {
		t.Fatalf("login after lock expiry failed: %v", err)
	}
	if result.AccessToken == "" {
		t.Fatal("expected access token after unlock")
	}

	stored := env.store.mustGetByEmail(t, testEmail)
	if stored.FailedLoginAttempts != 0 || stored.LastFailedLogin != nil {
		t.Fatal("lock expiry must reset the failure counters")
	}
	if stored.Status != AccountActive {
		t.Fatalf("stored status = %q, want active", stored.Status)
	}
}

func TestLogin_PendingAccountRefusedAfterPassword(t *testing.T) {
	env := newTestEngine(t, testConfig())
	ctx := context.Background()

	if _, err := env.engine.Register(ctx, registerInput(testEmail)); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	// Wrong password on a pending account stays generic; the status is
	// only disclosed to callers who know the password.
	if err := env.engine.RequestLoginOTP(ctx, testEmail, "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	if err := env.engine.RequestLoginOTP(ctx, testEmail, testPassword); !errors.Is(err, ErrAccountNotActive) {
		t.Fatalf("expected ErrAccountNotActive, got %v", err)
	}
}

func TestLogin_WrongOTPCountsAgainstLockout(t *testing.T) {
	env := newTestEngine(t, testConfig())
	env.seedActiveUser(t, testEmail, testPassword)
	ctx := context.Background()

	env.requestOTP(t, testEmail, testPassword)

	for i := 0; i < 2; i++ {
		if _, err := env.engine.VerifyLoginOTP(ctx, testEmail, "000000"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i+1, err)
		}
	}

	if _, err := env.engine.VerifyLoginOTP(ctx, testEmail, "000000"); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked on third wrong code, got %v", err)
	}
}

func TestLogin_VerifyRefusedWhileLocked(t *testing.T) {
	env := newTestEngine(t, testConfig())
	env.seedActiveUser(t, testEmail, testPassword)
	ctx := context.Background()

	otp := env.requestOTP(t, testEmail, testPassword)

	for i := 0; i < 3; i++ {
		env.engine.RequestLoginOTP(ctx, testEmail, "wrong-password")
	}

	// Even the correct code is refused while the lock holds, and the
	// caller learns it is a lock, not a bad credential.
	_, err := env.engine.VerifyLoginOTP(ctx, testEmail, otp)
	var locked *LockedError
	if !errors.As(err, &locked) {
		t.Fatalf("expected LockedError, got %v", err)
	}
	if locked.RemainingMinutes() != 5 {
		t.Fatalf("remaining minutes = %d, want 5", locked.RemainingMinutes())
	}
}

func TestLogin_VerifyLiftsExpiredLock(t *testing.T) {
	env := newTestEngine(t, testConfig())
	env.seedActiveUser(t, testEmail, testPassword)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		env.engine.RequestLoginOTP(ctx, testEmail, "wrong-password")
	}

	env.clock.Advance(5 * time.Minute)

	// The elapsed window is observed on the verify path too: the lock is
	// lifted in place and the attempt proceeds to normal credential
	// evaluation. Unlocking cleared the OTP pair, so this attempt is the
	// first counted failure of a fresh budget.
	_, err := env.engine.VerifyLoginOTP(ctx, testEmail, "000000")
	var invalid *InvalidCredentialsError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidCredentialsError after lock expiry, got %v", err)
	}
	if invalid.RemainingAttempts != 2 {
		t.Fatalf("remaining = %d, want 2 on a fresh budget", invalid.RemainingAttempts)
	}

	stored := env.store.mustGetByEmail(t, testEmail)
	if stored.Status == AccountLocked {
		t.Fatal("expired lock must be lifted on verification")
	}
}

func TestLogin_MissingOTPCountsAsFailure(t *testing.T) {
	env := newTestEngine(t, testConfig())
	env.seedActiveUser(t, testEmail, testPassword)
	ctx := context.Background()

	// No code was ever requested; guessing must burn an attempt.
	if _, err := env.engine.VerifyLoginOTP(ctx, testEmail, "123456"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials with no OTP set, got %v", err)
	}

	stored := env.store.mustGetByEmail(t, testEmail)
	if stored.FailedLoginAttempts != 1 {
		t.Fatalf("attempts = %d, want 1", stored.FailedLoginAttempts)
	}
}

func TestLogin_WrongExpiredOTPStillCounts(t *testing.T) {
	env := newTestEngine(t, testConfig())
	env.seedActiveUser(t, testEmail, testPassword)
	ctx := context.Background()

	env.requestOTP(t, testEmail, testPassword)
	env.clock.Advance(6 * time.Minute)

	// A wrong guess at an expired code is still a wrong guess; the
	// mismatch wins over the expiry and the attempt is counted.
	if _, err := env.engine.VerifyLoginOTP(ctx, testEmail, "000000"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	stored := env.store.mustGetByEmail(t, testEmail)
	if stored.FailedLoginAttempts != 1 {
		t.Fatalf("attempts = %d, want 1", stored.FailedLoginAttempts)
	}
}

func TestLogin_ExpiredOTP(t *testing.T) {
	env := newTestEngine(t, testConfig())
	env.seedActiveUser(t, testEmail, testPassword)
	ctx := context.Background()

	otp := env.requestOTP(t, testEmail, testPassword)

	env.clock.Advance(6 * time.Minute)

	if _, err := env.engine.VerifyLoginOTP(ctx, testEmail, otp); !errors.Is(err, ErrOTPExpired) {
		t.Fatalf("expected ErrOTPExpired, got %v", err)
	}

	// Expiry is only reported for the code the caller knew; it is not a
	// counted credential failure, and the pair is removed.
	stored := env.store.mustGetByEmail(t, testEmail)
	if stored.OTP != "" {
		t.Fatal("expired OTP must be cleared")
	}
	if stored.FailedLoginAttempts != 0 {
		t.Fatalf("attempts = %d, an expired matching code must not count", stored.FailedLoginAttempts)
	}
}

func TestLogin_OTPSingleUse(t *testing.T) {
	env := newTestEngine(t, testConfig())
	env.seedActiveUser(t, testEmail, testPassword)
	ctx := context.Background()

	otp := env.requestOTP(t, testEmail, testPassword)

	if _, err := env.engine.VerifyLoginOTP(ctx, testEmail, otp); err != nil {
		t.Fatalf("first verification failed: %v", err)
	}

	// The consumed code is gone, so a replay is a plain credential
	// failure and counts against the lockout budget.
	if _, err := env.engine.VerifyLoginOTP(ctx, testEmail, otp); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials on replay, got %v", err)
	}
	stored := env.store.mustGetByEmail(t, testEmail)
	if stored.FailedLoginAttempts != 1 {
		t.Fatalf("attempts = %d, want 1 after replay", stored.FailedLoginAttempts)
	}
}

func TestLogin_DeliveryFailureFailsClosed(t *testing.T) {
	env := newTestEngine(t, testConfig())
	env.seedActiveUser(t, testEmail, testPassword)
	env.mailer.failAll = true
	ctx := context.Background()

	// The ack stays generic even though nothing was delivered.
	if err := env.engine.RequestLoginOTP(ctx, testEmail, testPassword); err != nil {
		t.Fatalf("expected generic nil ack, got %v", err)
	}

	if env.mailer.calls() != 3 {
		t.Fatalf("delivery attempts = %d, want 3", env.mailer.calls())
	}

	// Fail closed: an undelivered code must not be guessable.
	stored := env.store.mustGetByEmail(t, testEmail)
	if stored.OTP != "" || stored.OTPExpiresAt != nil {
		t.Fatal("OTP must be cleared after delivery exhaustion")
	}
}

func TestLogin_DeliveryRetriesThenSucceeds(t *testing.T) {
	env := newTestEngine(t, testConfig())
	env.seedActiveUser(t, testEmail, testPassword)
	env.mailer.failFirst = 2
	ctx := context.Background()

	if err := env.engine.RequestLoginOTP(ctx, testEmail, testPassword); err != nil {
		t.Fatalf("RequestLoginOTP failed: %v", err)
	}
	if env.mailer.calls() != 3 {
		t.Fatalf("delivery attempts = %d, want 3", env.mailer.calls())
	}

	stored := env.store.mustGetByEmail(t, testEmail)
	if stored.OTP == "" {
		t.Fatal("OTP must survive a delivery that eventually succeeded")
	}
	if _, err := env.engine.VerifyLoginOTP(ctx, testEmail, stored.OTP); err != nil {
		t.Fatalf("verification after retried delivery failed: %v", err)
	}
}

func TestLogin_StoreFailureSurfaces(t *testing.T) {
	env := newTestEngine(t, testConfig())
	env.seedActiveUser(t, testEmail, testPassword)
	env.store.failUpdate = errTest("db down")

	// Persistence failures are never masked by the generic ack.
	err := env.engine.RequestLoginOTP(context.Background(), testEmail, testPassword)
	if err == nil || errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected store error to surface, got %v", err)
	}
}

func TestLogin_SuccessResetsFailureCounters(t *testing.T) {
	env := newTestEngine(t, testConfig())
	env.seedActiveUser(t, testEmail, testPassword)
	ctx := context.Background()

	env.engine.RequestLoginOTP(ctx, testEmail, "wrong-password")

	otp := env.requestOTP(t, testEmail, testPassword)
	if _, err := env.engine.VerifyLoginOTP(ctx, testEmail, otp); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	stored := env.store.mustGetByEmail(t, testEmail)
	if stored.FailedLoginAttempts != 0 || stored.LastFailedLogin != nil {
		t.Fatal("successful login must reset failure counters")
	}
}
