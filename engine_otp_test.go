package authcore

import (
	"context"
	"testing"
	"time"
)

func TestOTP_BackoffSleepsBetweenAttemptsOnly(t *testing.T) {
	env := newTestEngine(t, testConfig())
	env.seedActiveUser(t, testEmail, testPassword)
	env.mailer.failAll = true

	var slept []time.Duration
	env.engine.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	if err := env.engine.RequestLoginOTP(context.Background(), testEmail, testPassword); err != nil {
		t.Fatalf("expected generic nil ack, got %v", err)
	}
	if env.mailer.calls() != 3 {
		t.Fatalf("delivery attempts = %d, want 3", env.mailer.calls())
	}

	// Three attempts leave two gaps; the final failure returns without a
	// parting delay.
	want := []time.Duration{time.Second, 2 * time.Second}
	if len(slept) != len(want) {
		t.Fatalf("sleeps = %v, want %v", slept, want)
	}
	for i := range want {
		if slept[i] != want[i] {
			t.Fatalf("sleep %d = %v, want %v", i, slept[i], want[i])
		}
	}
}
