package authcore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newThrottledEngine(t *testing.T, cfg Config) (*testEnv, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	store := newMockStore()
	mailer := &recordingMailer{}
	clock := newTestClock()

	engine, err := New().
		WithConfig(cfg).
		WithStore(store).
		WithMailer(mailer).
		WithRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()})).
		WithClock(clock.Now).
		Build()
	if err != nil {
		t.Fatalf("engine build: %v", err)
	}
	t.Cleanup(engine.Close)

	engine.sleep = func(context.Context, time.Duration) error { return nil }

	return &testEnv{engine: engine, store: store, mailer: mailer, clock: clock}, mr
}

func throttleConfig() Config {
	cfg := testConfig()
	cfg.Security.EnableRequestThrottle = true
	cfg.Security.MaxOTPRequests = 3
	cfg.Security.MaxResetRequests = 2
	return cfg
}

func TestThrottle_OTPRequestsLimited(t *testing.T) {
	env, _ := newThrottledEngine(t, throttleConfig())
	env.seedActiveUser(t, testEmail, testPassword)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := env.engine.RequestLoginOTP(ctx, testEmail, testPassword); err != nil {
			t.Fatalf("request %d failed: %v", i+1, err)
		}
	}

	err := env.engine.RequestLoginOTP(ctx, testEmail, testPassword)
	if !errors.Is(err, ErrRequestRateLimited) {
		t.Fatalf("expected ErrRequestRateLimited on 4th request, got %v", err)
	}
}

func TestThrottle_WindowExpiryRestoresBudget(t *testing.T) {
	env, mr := newThrottledEngine(t, throttleConfig())
	env.seedActiveUser(t, testEmail, testPassword)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		env.engine.RequestLoginOTP(ctx, testEmail, testPassword)
	}

	mr.FastForward(16 * time.Minute)

	if err := env.engine.RequestLoginOTP(ctx, testEmail, testPassword); err != nil {
		t.Fatalf("request after window expiry failed: %v", err)
	}
}

func TestThrottle_VerifiedLoginResetsBudget(t *testing.T) {
	env, _ := newThrottledEngine(t, throttleConfig())
	env.seedActiveUser(t, testEmail, testPassword)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := env.engine.RequestLoginOTP(ctx, testEmail, testPassword); err != nil {
			t.Fatalf("request %d failed: %v", i+1, err)
		}
	}

	stored := env.store.mustGetByEmail(t, testEmail)
	if _, err := env.engine.VerifyLoginOTP(ctx, testEmail, stored.OTP); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	// The full budget is available again after the verified login.
	for i := 0; i < 3; i++ {
		if err := env.engine.RequestLoginOTP(ctx, testEmail, testPassword); err != nil {
			t.Fatalf("post-login request %d failed: %v", i+1, err)
		}
	}
}

func TestThrottle_ResetRequestsLimited(t *testing.T) {
	env, _ := newThrottledEngine(t, throttleConfig())
	env.seedActiveUser(t, testEmail, testPassword)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := env.engine.RequestPasswordReset(ctx, testEmail); err != nil {
			t.Fatalf("request %d failed: %v", i+1, err)
		}
	}

	err := env.engine.RequestPasswordReset(ctx, testEmail)
	if !errors.Is(err, ErrRequestRateLimited) {
		t.Fatalf("expected ErrRequestRateLimited on 3rd request, got %v", err)
	}
}

func TestThrottle_RedisOutageFailsOpen(t *testing.T) {
	env, mr := newThrottledEngine(t, throttleConfig())
	env.seedActiveUser(t, testEmail, testPassword)

	mr.Close()

	// Durable lockout still guards credentials; availability wins when
	// the flood backend is down.
	if err := env.engine.RequestLoginOTP(context.Background(), testEmail, testPassword); err != nil {
		t.Fatalf("expected fail-open nil, got %v", err)
	}
}

func TestThrottle_IPBudgetIsSeparate(t *testing.T) {
	cfg := throttleConfig()
	cfg.Security.EnableIPThrottle = true

	env, _ := newThrottledEngine(t, cfg)
	env.seedActiveUser(t, testEmail, testPassword)
	env.seedActiveUser(t, "second@example.com", testPassword)

	ctx := WithClientIP(context.Background(), "203.0.113.7")

	// Two identities from one IP share the IP budget.
	for i := 0; i < 3; i++ {
		if err := env.engine.RequestLoginOTP(ctx, testEmail, testPassword); err != nil {
			t.Fatalf("request %d failed: %v", i+1, err)
		}
	}

	err := env.engine.RequestLoginOTP(ctx, "second@example.com", testPassword)
	if !errors.Is(err, ErrRequestRateLimited) {
		t.Fatalf("expected IP budget exhaustion, got %v", err)
	}
}
