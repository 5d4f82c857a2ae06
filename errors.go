package authcore

import "errors"

var (
	// ErrInvalidCredentials is an exported constant or variable used by the authentication engine.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotFound is an exported constant or variable used by the authentication engine.
	ErrUserNotFound = errors.New("user not found")
	// ErrBindingNotFound is an exported constant or variable used by the authentication engine.
	ErrBindingNotFound = errors.New("provider binding not found")
	// ErrEmailTaken is an exported constant or variable used by the authentication engine.
	ErrEmailTaken = errors.New("email already registered")
	// ErrIDNumberTaken is an exported constant or variable used by the authentication engine.
	ErrIDNumberTaken = errors.New("id number already registered")
	// ErrUsernameTaken is an exported constant or variable used by the authentication engine.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrDuplicateBinding is an exported constant or variable used by the authentication engine.
	ErrDuplicateBinding = errors.New("provider binding already exists")
	// ErrAccountNotActive is an exported constant or variable used by the authentication engine.
	ErrAccountNotActive = errors.New("account is not active")
	// ErrAccountInactive is an exported constant or variable used by the authentication engine.
	ErrAccountInactive = errors.New("account is inactive")
	// ErrAccountLocked is an exported constant or variable used by the authentication engine.
	ErrAccountLocked = errors.New("account locked")
	// ErrAlreadyActivated is an exported constant or variable used by the authentication engine.
	ErrAlreadyActivated = errors.New("account already activated")
	// ErrOTPExpired is an exported constant or variable used by the authentication engine.
	ErrOTPExpired = errors.New("otp expired")
	// ErrPasswordMismatch is an exported constant or variable used by the authentication engine.
	ErrPasswordMismatch = errors.New("passwords do not match")
	// ErrPasswordPolicy is an exported constant or variable used by the authentication engine.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrMissingToken is an exported constant or variable used by the authentication engine.
	ErrMissingToken = errors.New("missing token")
	// ErrTokenExpired is an exported constant or variable used by the authentication engine.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalidType is an exported constant or variable used by the authentication engine.
	ErrTokenInvalidType = errors.New("invalid token type")
	// ErrTokenMalformed is an exported constant or variable used by the authentication engine.
	ErrTokenMalformed = errors.New("malformed token")
	// ErrEmailDeliveryFailed is an exported constant or variable used by the authentication engine.
	ErrEmailDeliveryFailed = errors.New("email delivery failed")
	// ErrProviderEmailMissing is an exported constant or variable used by the authentication engine.
	ErrProviderEmailMissing = errors.New("provider returned no email")
	// ErrIDAllocationExhausted is an exported constant or variable used by the authentication engine.
	ErrIDAllocationExhausted = errors.New("placeholder id allocation exhausted")
	// ErrRequestRateLimited is an exported constant or variable used by the authentication engine.
	ErrRequestRateLimited = errors.New("request rate limited")
	// ErrStoreUnavailable is an exported constant or variable used by the authentication engine.
	ErrStoreUnavailable = errors.New("user store unavailable")
	// ErrEngineNotReady is an exported constant or variable used by the authentication engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)
