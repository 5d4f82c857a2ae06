package authcore

import (
	"errors"
	"time"
)

// Config defines a public type used by authcore APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Token    TokenConfig
	Password PasswordConfig
	Lockout  LockoutConfig
	OTP      OTPConfig
	Account  AccountConfig
	Security SecurityConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig defines a public type used by authcore APIs.
//
// TokenConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TokenConfig struct {
	Secret        []byte
	Issuer        string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	ActivationTTL time.Duration
	ResetTTL      time.Duration
	Leeway        time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig defines a public type used by authcore APIs.
//
// PasswordConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	MinLength   int
	MaxLength   int
}

/*
====================================
LOCKOUT CONFIG
====================================
*/

// LockoutConfig defines a public type used by authcore APIs.
//
// LockoutConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type LockoutConfig struct {
	MaxAttempts int
	Duration    time.Duration
}

/*
====================================
OTP CONFIG
====================================
*/

// OTPConfig defines a public type used by authcore APIs.
//
// OTPConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type OTPConfig struct {
	Digits              int
	TTL                 time.Duration
	MaxDeliveryAttempts int
	DeliveryBackoff     time.Duration
}

/*
====================================
ACCOUNT CONFIG
====================================
*/

// AccountConfig defines a public type used by authcore APIs.
//
// AccountConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AccountConfig struct {
	DefaultRole          Role
	UsernamePrefix       string
	UsernameLength       int
	IDNumberMin          int64
	IDNumberMax          int64
	IDAllocationAttempts int
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig defines a public type used by authcore APIs.
//
// SecurityConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SecurityConfig struct {
	EnableRequestThrottle bool
	EnableIPThrottle      bool
	MaxOTPRequests        int
	OTPRequestWindow      time.Duration
	MaxResetRequests      int
	ResetRequestWindow    time.Duration
}

// AuditConfig defines a public type used by authcore APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by authcore APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled bool
}

// DefaultConfig describes the defaultconfig operation and its observable behavior.
//
// DefaultConfig may return an error when input validation, dependency calls, or security checks fail.
// DefaultConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Token: TokenConfig{
			Issuer:        "authcore",
			AccessTTL:     30 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			ActivationTTL: 30 * time.Minute,
			ResetTTL:      15 * time.Minute,
		},
		Password: PasswordConfig{
			Memory:      65536,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
			MinLength:   8,
			MaxLength:   40,
		},
		Lockout: LockoutConfig{
			MaxAttempts: 3,
			Duration:    5 * time.Minute,
		},
		OTP: OTPConfig{
			Digits:              6,
			TTL:                 5 * time.Minute,
			MaxDeliveryAttempts: 3,
			DeliveryBackoff:     time.Second,
		},
		Account: AccountConfig{
			DefaultRole:          RoleCustomer,
			UsernamePrefix:       "CB",
			UsernameLength:       12,
			IDNumberMin:          1_000_000,
			IDNumberMax:          9_999_999,
			IDAllocationAttempts: 10,
		},
		Security: SecurityConfig{
			MaxOTPRequests:     10,
			OTPRequestWindow:   15 * time.Minute,
			MaxResetRequests:   5,
			ResetRequestWindow: 15 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.Secret = cloneBytes(cfg.Token.Secret)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Config) Validate() error {
	if len(c.Token.Secret) < 32 {
		return errors.New("Token.Secret must be at least 32 bytes")
	}
	if c.Token.AccessTTL <= 0 {
		return errors.New("Token.AccessTTL must be positive")
	}
	if c.Token.RefreshTTL <= c.Token.AccessTTL {
		return errors.New("Token.RefreshTTL must exceed Token.AccessTTL")
	}
	if c.Token.ActivationTTL <= 0 {
		return errors.New("Token.ActivationTTL must be positive")
	}
	if c.Token.ResetTTL <= 0 {
		return errors.New("Token.ResetTTL must be positive")
	}
	if c.Token.Leeway < 0 {
		return errors.New("Token.Leeway must not be negative")
	}

	if c.Password.Memory < 8192 {
		return errors.New("Password.Memory below safe minimum (8192 KB)")
	}
	if c.Password.Time < 1 {
		return errors.New("Password.Time must be at least 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password.Parallelism must be at least 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password.SaltLength below safe minimum (16)")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password.KeyLength below safe minimum (16)")
	}
	if c.Password.MinLength < 8 {
		return errors.New("Password.MinLength below policy minimum (8)")
	}
	if c.Password.MaxLength < c.Password.MinLength {
		return errors.New("Password.MaxLength must not be below Password.MinLength")
	}

	if c.Lockout.MaxAttempts < 1 {
		return errors.New("Lockout.MaxAttempts must be at least 1")
	}
	if c.Lockout.Duration <= 0 {
		return errors.New("Lockout.Duration must be positive")
	}

	if c.OTP.Digits < 6 || c.OTP.Digits > 10 {
		return errors.New("OTP.Digits must be between 6 and 10")
	}
	if c.OTP.TTL <= 0 {
		return errors.New("OTP.TTL must be positive")
	}
	if c.OTP.MaxDeliveryAttempts < 1 {
		return errors.New("OTP.MaxDeliveryAttempts must be at least 1")
	}
	if c.OTP.DeliveryBackoff < 0 {
		return errors.New("OTP.DeliveryBackoff must not be negative")
	}

	if c.Account.DefaultRole == "" {
		return errors.New("Account.DefaultRole must be set")
	}
	if c.Account.UsernamePrefix == "" {
		return errors.New("Account.UsernamePrefix must be set")
	}
	if c.Account.UsernameLength <= len(c.Account.UsernamePrefix)+1 {
		return errors.New("Account.UsernameLength must exceed prefix length")
	}
	if c.Account.IDNumberMin <= 0 || c.Account.IDNumberMax <= c.Account.IDNumberMin {
		return errors.New("Account id number range is invalid")
	}
	if c.Account.IDAllocationAttempts < 1 {
		return errors.New("Account.IDAllocationAttempts must be at least 1")
	}

	if c.Security.EnableRequestThrottle {
		if c.Security.MaxOTPRequests < 1 {
			return errors.New("Security.MaxOTPRequests must be at least 1")
		}
		if c.Security.OTPRequestWindow <= 0 {
			return errors.New("Security.OTPRequestWindow must be positive")
		}
		if c.Security.MaxResetRequests < 1 {
			return errors.New("Security.MaxResetRequests must be at least 1")
		}
		if c.Security.ResetRequestWindow <= 0 {
			return errors.New("Security.ResetRequestWindow must be positive")
		}
	}

	if c.Audit.Enabled && c.Audit.BufferSize < 1 {
		return errors.New("Audit.BufferSize must be at least 1 when audit is enabled")
	}

	return nil
}
