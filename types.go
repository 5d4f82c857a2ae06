package authcore

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	internalaudit "github.com/crestbank/authcore/internal/audit"
)

// AccountStatus represents the lifecycle state of a user account.
// Status is the canonical field; the IsActive flag on [User] is derived
// from it by the engine's transition helpers and must never be written
// independently.
type AccountStatus string

const (
	// AccountPending is an exported constant or variable used by the authentication engine.
	AccountPending AccountStatus = "pending"
	// AccountActive is an exported constant or variable used by the authentication engine.
	AccountActive AccountStatus = "active"
	// AccountLocked is an exported constant or variable used by the authentication engine.
	AccountLocked AccountStatus = "locked"
	// AccountInactive is an exported constant or variable used by the authentication engine.
	AccountInactive AccountStatus = "inactive"
)

// Role defines a public type used by authcore APIs.
//
// Role instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Role string

const (
	// RoleCustomer is an exported constant or variable used by the authentication engine.
	RoleCustomer Role = "customer"
	// RoleTeller is an exported constant or variable used by the authentication engine.
	RoleTeller Role = "teller"
	// RoleAccountExecutive is an exported constant or variable used by the authentication engine.
	RoleAccountExecutive Role = "account_executive"
	// RoleBranchManager is an exported constant or variable used by the authentication engine.
	RoleBranchManager Role = "branch_manager"
	// RoleAdmin is an exported constant or variable used by the authentication engine.
	RoleAdmin Role = "admin"
	// RoleSuperAdmin is an exported constant or variable used by the authentication engine.
	RoleSuperAdmin Role = "super_admin"
)

// User is the full account record exchanged with [UserStore]. The engine
// owns every mutation of the lockout and OTP fields; stores persist them
// verbatim.
type User struct {
	ID                  uuid.UUID
	Email               string
	Username            string
	FirstName           string
	MiddleName          string
	LastName            string
	IDNumber            int64
	PasswordHash        string
	Role                Role
	IsActive            bool
	Status              AccountStatus
	FailedLoginAttempts int
	LastFailedLogin     *time.Time
	OTP                 string
	OTPExpiresAt        *time.Time
	PreferredLanguage   string
	KYCVerified         bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// FullName joins the user's name parts, skipping the empty middle name.
func (u *User) FullName() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{u.FirstName, u.MiddleName, u.LastName} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// ProviderBinding links an external identity (provider, subject) to a
// local user. The (Provider, Subject) pair is unique.
type ProviderBinding struct {
	ID        uuid.UUID
	Provider  string
	Subject   string
	UserID    uuid.UUID
	CreatedAt time.Time
}

// ExternalIdentity is the verified identity payload handed over by the
// OAuth transport layer after code exchange.
type ExternalIdentity struct {
	Provider   string
	Subject    string
	Email      string
	GivenName  string
	FamilyName string
}

// UserStore is the primary interface that callers must implement to
// integrate authcore with their user database. Lookups that filter on
// the active flag take includeInactive; not-found is reported with
// [ErrUserNotFound] / [ErrBindingNotFound] and unique violations with
// the matching ErrXTaken / [ErrDuplicateBinding] sentinel.
type UserStore interface {
	CreateUser(ctx context.Context, user *User) error
	GetUserByEmail(ctx context.Context, email string, includeInactive bool) (*User, error)
	GetUserByID(ctx context.Context, id uuid.UUID, includeInactive bool) (*User, error)
	GetUserByIDNumber(ctx context.Context, idNumber int64) (*User, error)
	UpdateUser(ctx context.Context, user *User) error
	GetProviderBinding(ctx context.Context, provider, subject string) (*ProviderBinding, error)
	CreateProviderBinding(ctx context.Context, binding *ProviderBinding) error
}

// Mailer delivers a single message to one recipient. The engine only
// observes success or failure; rendering and localization live with the
// implementation.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// RegisterInput is the input for [Engine.Register].
type RegisterInput struct {
	Email             string
	FirstName         string
	MiddleName        string
	LastName          string
	IDNumber          int64
	Role              Role
	PreferredLanguage string
	Password          string
	ConfirmPassword   string
}

// UserSummary is the caller-facing projection of a [User] returned with
// issued tokens. It never carries credential or OTP material.
type UserSummary struct {
	ID       uuid.UUID
	Email    string
	Username string
	FullName string
	Role     Role
	Status   AccountStatus
}

// LoginResult is returned by [Engine.VerifyLoginOTP].
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	User         UserSummary
}

// RefreshResult is returned by [Engine.Refresh]. RefreshToken echoes the
// presented token; access tokens alone are re-minted.
type RefreshResult struct {
	AccessToken  string
	RefreshToken string
	User         UserSummary
}

// FederatedLoginResult is returned by [Engine.FederatedLogin].
// KYCRequired tells the transport layer to route the user into identity
// verification before sensitive operations.
type FederatedLoginResult struct {
	AccessToken  string
	RefreshToken string
	User         UserSummary
	KYCRequired  bool
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

func (u *User) summary() UserSummary {
	return UserSummary{
		ID:       u.ID,
		Email:    u.Email,
		Username: u.Username,
		FullName: u.FullName(),
		Role:     u.Role,
		Status:   u.Status,
	}
}
