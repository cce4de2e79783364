package service

import "errors"

// Outcomes callers branch on. Handlers map these to HTTP statuses.
var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrConflict         = errors.New("already exists")
	ErrUnauthorized     = errors.New("invalid email or password")
	ErrUnauthenticated  = errors.New("token not provided")
	ErrForbidden        = errors.New("token invalid or expired")
	ErrStoreUnavailable = errors.New("credential store unavailable")
)

// Lower level failures from the credential primitives.
var (
	ErrEntropyUnavailable = errors.New("secure random source unavailable")
	ErrSecretMissing      = errors.New("signing secret is not configured")
	ErrMalformedHash      = errors.New("stored password hash is malformed")
	ErrInvalidToken       = errors.New("invalid session token")
)
