package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds flood-control tuning parameters.
type Config struct {
	EnableIPThrottle   bool
	MaxOTPRequests     int
	OTPRequestWindow   time.Duration
	MaxResetRequests   int
	ResetRequestWindow time.Duration
}

// Limiter enforces per-identifier and per-IP flood limits for the
// OTP-request and password-reset-request endpoints using Redis counters.
// It protects the mail pipeline; the durable lockout policy on the user
// record remains the authority for credential failures.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a flood [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// CheckOTPRequest checks whether the identifier+IP pair is within the
// OTP request budget. Returns an error if rate-limited.
func (l *Limiter) CheckOTPRequest(ctx context.Context, identifier, ip string) error {
	return l.check(ctx, otpIdentifierKey(identifier), otpIPKey(ip), ip, l.config.MaxOTPRequests)
}

// IncrementOTPRequest records an OTP request for the identifier+IP pair.
func (l *Limiter) IncrementOTPRequest(ctx context.Context, identifier, ip string) error {
	return l.increment(ctx, otpIdentifierKey(identifier), otpIPKey(ip), ip, l.config.MaxOTPRequests, l.config.OTPRequestWindow)
}

// ResetOTPRequest clears the OTP request counter for the identifier+IP
// pair. Called after a fully verified login.
func (l *Limiter) ResetOTPRequest(ctx context.Context, identifier, ip string) error {
	keys := []string{otpIdentifierKey(identifier)}
	if l.config.EnableIPThrottle && ip != "" {
		keys = append(keys, otpIPKey(ip))
	}

	if err := l.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// CheckResetRequest checks whether the identifier+IP pair is within the
// password reset request budget.
func (l *Limiter) CheckResetRequest(ctx context.Context, identifier, ip string) error {
	return l.check(ctx, resetIdentifierKey(identifier), resetIPKey(ip), ip, l.config.MaxResetRequests)
}

// IncrementResetRequest records a password reset request for the
// identifier+IP pair.
func (l *Limiter) IncrementResetRequest(ctx context.Context, identifier, ip string) error {
	return l.increment(ctx, resetIdentifierKey(identifier), resetIPKey(ip), ip, l.config.MaxResetRequests, l.config.ResetRequestWindow)
}

func (l *Limiter) check(ctx context.Context, identifierKey, ipKey, ip string, maxRequests int) error {
	if err := l.checkCounter(ctx, identifierKey, maxRequests); err != nil {
		return err
	}

	if l.config.EnableIPThrottle && ip != "" {
		if err := l.checkCounter(ctx, ipKey, maxRequests); err != nil {
			return err
		}
	}

	return nil
}

func (l *Limiter) increment(ctx context.Context, identifierKey, ipKey, ip string, maxRequests int, window time.Duration) error {
	count, err := l.incrementWithTTL(ctx, identifierKey, window)
	if err != nil {
		return err
	}
	if count > int64(maxRequests) {
		return ErrRateLimited
	}

	if l.config.EnableIPThrottle && ip != "" {
		count, err = l.incrementWithTTL(ctx, ipKey, window)
		if err != nil {
			return err
		}
		if count > int64(maxRequests) {
			return ErrRateLimited
		}
	}

	return nil
}

func (l *Limiter) checkCounter(ctx context.Context, key string, maxRequests int) error {
	count, err := l.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if count > int64(maxRequests) {
		return ErrRateLimited
	}

	return nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}

func otpIdentifierKey(identifier string) string {
	return "fo:" + identifier
}

func otpIPKey(ip string) string {
	return "foi:" + ip
}

func resetIdentifierKey(identifier string) string {
	return "fr:" + identifier
}

func resetIPKey(ip string) string {
	return "fri:" + ip
}
