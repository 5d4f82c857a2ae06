package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Kind identifies the purpose a token was minted for. A token of one
// kind never verifies as another.
type Kind string

const (
	// KindActivation is an exported constant or variable used by the token service.
	KindActivation Kind = "activation"
	// KindPasswordReset is an exported constant or variable used by the token service.
	KindPasswordReset Kind = "password_reset"
	// KindAccess is an exported constant or variable used by the token service.
	KindAccess Kind = "access"
	// KindRefresh is an exported constant or variable used by the token service.
	KindRefresh Kind = "refresh"
)

var (
	// ErrExpired is an exported constant or variable used by the token service.
	ErrExpired = errors.New("token expired")
	// ErrInvalidKind is an exported constant or variable used by the token service.
	ErrInvalidKind = errors.New("token kind mismatch")
	// ErrMalformed is an exported constant or variable used by the token service.
	ErrMalformed = errors.New("token malformed")
)

const minSecretLen = 32

// Config holds signing material and per-kind lifetimes.
type Config struct {
	Secret        []byte
	Issuer        string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	ActivationTTL time.Duration
	ResetTTL      time.Duration
	Leeway        time.Duration
	Now           func() time.Time // nil = time.Now
}

// Claims is the verified payload of an authcore token.
type Claims struct {
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// Manager signs and verifies typed HS256 tokens.
//
// Manager instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Manager struct {
	config Config
	ttls   map[Kind]time.Duration
	now    func() time.Time
}

// NewManager validates cfg and returns a ready [Manager].
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) < minSecretLen {
		return nil, errors.New("token secret must be at least 32 bytes")
	}
	if cfg.Issuer == "" {
		return nil, errors.New("token issuer must be set")
	}
	ttls := map[Kind]time.Duration{
		KindAccess:        cfg.AccessTTL,
		KindRefresh:       cfg.RefreshTTL,
		KindActivation:    cfg.ActivationTTL,
		KindPasswordReset: cfg.ResetTTL,
	}
	for kind, ttl := range ttls {
		if ttl <= 0 {
			return nil, errors.New("token ttl for " + string(kind) + " must be positive")
		}
	}
	if cfg.Leeway < 0 {
		return nil, errors.New("token leeway must not be negative")
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Manager{
		config: cfg,
		ttls:   ttls,
		now:    now,
	}, nil
}

// Mint creates a signed token of the given kind for userID.
func (m *Manager) Mint(userID string, kind Kind) (string, error) {
	ttl, ok := m.ttls[kind]
	if !ok {
		return "", ErrInvalidKind
	}
	if userID == "" {
		return "", errors.New("token subject must be set")
	}

	now := m.now()
	claims := Claims{
		TokenType: string(kind),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.config.Secret)
}

// Verify parses tok, checks signature, expiry, and issuer, then enforces
// that the embedded kind matches the expected one. The user id is
// returned on success.
func (m *Manager) Verify(tok string, kind Kind) (string, error) {
	if tok == "" {
		return "", ErrMalformed
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.config.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(m.config.Leeway),
		jwt.WithTimeFunc(m.now),
	)

	claims := &Claims{}
	_, err := parser.ParseWithClaims(tok, claims, func(t *jwt.Token) (interface{}, error) {
		return m.config.Secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpired
		}
		return "", ErrMalformed
	}

	if claims.TokenType != string(kind) {
		return "", ErrInvalidKind
	}
	if claims.Subject == "" {
		return "", ErrMalformed
	}

	return claims.Subject, nil
}
