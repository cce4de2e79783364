package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// SessionTTL is how long an admin session token stays valid.
	SessionTTL = time.Hour

	sessionIssuer = "keygate"
)

// Claims is the payload of an admin session token.
type Claims struct {
	AdminID int64  `json:"id"`
	Email   string `json:"email"`
	jwt.RegisteredClaims
}

// SessionIssuer signs and verifies HS256 admin session tokens.
type SessionIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// SessionOption customizes a SessionIssuer.
type SessionOption func(*SessionIssuer)

// WithSessionClock overrides the time source used for iat, exp and
// validation.
func WithSessionClock(now func() time.Time) SessionOption {
	return func(s *SessionIssuer) { s.now = now }
}

// NewSessionIssuer returns an issuer signing with secret. An empty secret is
// ErrSecretMissing.
func NewSessionIssuer(secret string, opts ...SessionOption) (*SessionIssuer, error) {
	if secret == "" {
		return nil, ErrSecretMissing
	}
	s := &SessionIssuer{
		secret: []byte(secret),
		ttl:    SessionTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// TTL returns the lifetime of issued tokens.
func (s *SessionIssuer) TTL() time.Duration {
	return s.ttl
}

// Issue signs a token for the admin that expires TTL after now.
func (s *SessionIssuer) Issue(adminID int64, email string) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := Claims{
		AdminID: adminID,
		Email:   email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Issuer:    sessionIssuer,
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}
	return token, expiresAt, nil
}

// Verify checks the signature, algorithm, issuer and expiry of token.
// Every failure is ErrInvalidToken.
func (s *SessionIssuer) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (interface{}, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: expired", ErrInvalidToken)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
