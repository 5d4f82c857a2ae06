package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/crestbank/authcore"
)

const pgUniqueViolation = "23505"

// Store implements [authcore.UserStore] on a PostgreSQL database.
type Store struct {
	db *sql.DB
}

// Open connects to PostgreSQL through the pgx stdlib driver and verifies
// the connection before returning a [Store].
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{db: db}, nil
}

// New wraps an existing database handle. The caller keeps ownership of
// the handle's lifecycle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for migrations.
func (s *Store) DB() *sql.DB {
	return s.db
}

const userColumns = `id, email, username, first_name, middle_name, last_name, id_number,
	password_hash, role, is_active, status, failed_login_attempts, last_failed_login,
	otp, otp_expires_at, preferred_language, kyc_verified, created_at, updated_at`

// CreateUser inserts the user, reporting unique violations with the
// matching authcore sentinel.
func (s *Store) CreateUser(ctx context.Context, user *authcore.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		user.ID, user.Email, user.Username, user.FirstName, user.MiddleName, user.LastName,
		user.IDNumber, user.PasswordHash, string(user.Role), user.IsActive, string(user.Status),
		user.FailedLoginAttempts, nullTime(user.LastFailedLogin), user.OTP,
		nullTime(user.OTPExpiresAt), user.PreferredLanguage, user.KYCVerified,
		user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return mapUserConstraint(err)
	}
	return nil
}

// GetUserByEmail describes the getuserbyemail operation and its observable behavior.
//
// GetUserByEmail may return an error when input validation, dependency calls, or security checks fail.
// GetUserByEmail does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) GetUserByEmail(ctx context.Context, email string, includeInactive bool) (*authcore.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE email = $1 AND ($2 OR is_active)`,
		email, includeInactive,
	)
	return scanUser(row)
}

// GetUserByID describes the getuserbyid operation and its observable behavior.
//
// GetUserByID may return an error when input validation, dependency calls, or security checks fail.
// GetUserByID does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID, includeInactive bool) (*authcore.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1 AND ($2 OR is_active)`,
		id, includeInactive,
	)
	return scanUser(row)
}

// GetUserByIDNumber describes the getuserbyidnumber operation and its observable behavior.
//
// GetUserByIDNumber may return an error when input validation, dependency calls, or security checks fail.
// GetUserByIDNumber does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) GetUserByIDNumber(ctx context.Context, idNumber int64) (*authcore.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id_number = $1`,
		idNumber,
	)
	return scanUser(row)
}

// UpdateUser persists the mutable account fields by primary key.
func (s *Store) UpdateUser(ctx context.Context, user *authcore.User) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET email = $2, username = $3, first_name = $4, middle_name = $5, last_name = $6,
			id_number = $7, password_hash = $8, role = $9, is_active = $10, status = $11,
			failed_login_attempts = $12, last_failed_login = $13, otp = $14,
			otp_expires_at = $15, preferred_language = $16, kyc_verified = $17,
			updated_at = $18
		WHERE id = $1`,
		user.ID, user.Email, user.Username, user.FirstName, user.MiddleName, user.LastName,
		user.IDNumber, user.PasswordHash, string(user.Role), user.IsActive, string(user.Status),
		user.FailedLoginAttempts, nullTime(user.LastFailedLogin), user.OTP,
		nullTime(user.OTPExpiresAt), user.PreferredLanguage, user.KYCVerified, user.UpdatedAt,
	)
	if err != nil {
		return mapUserConstraint(err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return authcore.ErrUserNotFound
	}
	return nil
}

// GetProviderBinding describes the getproviderbinding operation and its observable behavior.
//
// GetProviderBinding may return an error when input validation, dependency calls, or security checks fail.
// GetProviderBinding does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) GetProviderBinding(ctx context.Context, provider, subject string) (*authcore.ProviderBinding, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, provider, subject, user_id, created_at
		FROM user_providers
		WHERE provider = $1 AND subject = $2`,
		provider, subject,
	)

	var binding authcore.ProviderBinding
	err := row.Scan(&binding.ID, &binding.Provider, &binding.Subject, &binding.UserID, &binding.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, authcore.ErrBindingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &binding, nil
}

// CreateProviderBinding describes the createproviderbinding operation and its observable behavior.
//
// CreateProviderBinding may return an error when input validation, dependency calls, or security checks fail.
// CreateProviderBinding does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) CreateProviderBinding(ctx context.Context, binding *authcore.ProviderBinding) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_providers (id, provider, subject, user_id, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		binding.ID, binding.Provider, binding.Subject, binding.UserID, binding.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return authcore.ErrDuplicateBinding
		}
		return err
	}
	return nil
}

func scanUser(row *sql.Row) (*authcore.User, error) {
	var (
		user         authcore.User
		role, status string
		lastFailed   sql.NullTime
		otpExpiry    sql.NullTime
	)

	err := row.Scan(
		&user.ID, &user.Email, &user.Username, &user.FirstName, &user.MiddleName,
		&user.LastName, &user.IDNumber, &user.PasswordHash, &role, &user.IsActive,
		&status, &user.FailedLoginAttempts, &lastFailed, &user.OTP, &otpExpiry,
		&user.PreferredLanguage, &user.KYCVerified, &user.CreatedAt, &user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, authcore.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	user.Role = authcore.Role(role)
	user.Status = authcore.AccountStatus(status)
	if lastFailed.Valid {
		t := lastFailed.Time
		user.LastFailedLogin = &t
	}
	if otpExpiry.Valid {
		t := otpExpiry.Time
		user.OTPExpiresAt = &t
	}

	return &user, nil
}

func mapUserConstraint(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return err
	}

	switch pgErr.ConstraintName {
	case "users_email_key":
		return authcore.ErrEmailTaken
	case "users_username_key":
		return authcore.ErrUsernameTaken
	case "users_id_number_key":
		return authcore.ErrIDNumberTaken
	default:
		return err
	}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
