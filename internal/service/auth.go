package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/keygate/keygate/internal/model"
	"github.com/keygate/keygate/internal/store"
)

// AdminStore is the slice of the credential store AuthService needs.
type AdminStore interface {
	FindAdminByEmail(ctx context.Context, email string) (*model.Admin, error)
	CreateAdmin(ctx context.Context, admin *model.Admin) error
}

// Session is the result of a successful login.
type Session struct {
	Token     string
	AdminID   int64
	Email     string
	ExpiresAt time.Time
}

// AuthService registers admins, issues their sessions and checks the
// bearer tokens they present.
type AuthService struct {
	store    AdminStore
	hasher   PasswordHasher
	sessions *SessionIssuer
	opts     options
}

// NewAuthService wires the admin flows. sessions may be nil for callers that
// only register admins, such as the CLI; Login then fails with
// ErrSecretMissing.
func NewAuthService(s AdminStore, hasher PasswordHasher, sessions *SessionIssuer, opts ...Option) *AuthService {
	return &AuthService{
		store:    s,
		hasher:   hasher,
		sessions: sessions,
		opts:     newOptions(opts),
	}
}

// Register creates an admin account and returns its id.
func (s *AuthService) Register(ctx context.Context, email, password string) (int64, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		s.opts.recorder.ObserveRegistration(OutcomeInvalid)
		return 0, fmt.Errorf("%w: email and password are required", ErrInvalidInput)
	}

	id, err := s.register(ctx, email, password)
	switch {
	case err == nil:
		s.opts.recorder.ObserveRegistration(OutcomeSuccess)
	case errors.Is(err, ErrConflict):
		s.opts.recorder.ObserveRegistration(OutcomeConflict)
	case errors.Is(err, ErrInvalidInput):
		s.opts.recorder.ObserveRegistration(OutcomeInvalid)
	default:
		s.opts.recorder.ObserveRegistration(OutcomeError)
		s.opts.logger.Error("admin registration failed", "error", err)
	}
	return id, err
}

func (s *AuthService) register(ctx context.Context, email, password string) (int64, error) {
	lookupCtx, cancel := s.opts.storeCtx(ctx)
	_, err := s.store.FindAdminByEmail(lookupCtx, email)
	cancel()
	if err == nil {
		return 0, ErrConflict
	}
	if !errors.Is(err, store.ErrNotFound) {
		return 0, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return 0, err
	}

	admin := &model.Admin{Email: email, PasswordHash: hash}
	insertCtx, cancel := s.opts.storeCtx(ctx)
	defer cancel()
	if err := s.store.CreateAdmin(insertCtx, admin); err != nil {
		// Lost a race with a concurrent registration of the same email.
		if errors.Is(err, store.ErrConflict) {
			return 0, ErrConflict
		}
		return 0, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return admin.ID, nil
}

// Login checks the credentials and issues a session token. An unknown email
// and a wrong password both yield ErrUnauthorized.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	sess, err := s.login(ctx, normalizeEmail(email), password)
	switch {
	case err == nil:
		s.opts.recorder.ObserveLogin(OutcomeSuccess)
	case errors.Is(err, ErrUnauthorized):
		s.opts.recorder.ObserveLogin(OutcomeUnauthorized)
	default:
		s.opts.recorder.ObserveLogin(OutcomeError)
		s.opts.logger.Error("admin login failed", "error", err)
	}
	return sess, err
}

func (s *AuthService) login(ctx context.Context, email, password string) (*Session, error) {
	if email == "" || password == "" {
		return nil, ErrUnauthorized
	}

	lookupCtx, cancel := s.opts.storeCtx(ctx)
	admin, err := s.store.FindAdminByEmail(lookupCtx, email)
	cancel()
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	ok, err := s.hasher.Verify(password, admin.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("admin %d: %w", admin.ID, err)
	}
	if !ok {
		return nil, ErrUnauthorized
	}

	if s.sessions == nil {
		return nil, ErrSecretMissing
	}
	token, expiresAt, err := s.sessions.Issue(admin.ID, admin.Email)
	if err != nil {
		return nil, err
	}
	return &Session{
		Token:     token,
		AdminID:   admin.ID,
		Email:     admin.Email,
		ExpiresAt: expiresAt,
	}, nil
}

// AuthenticateRequest validates an Authorization header of the form
// "Bearer <token>". A missing header or scheme is ErrUnauthenticated; a token
// that fails verification is ErrForbidden. The store is never consulted.
func (s *AuthService) AuthenticateRequest(ctx context.Context, header string) (*Claims, error) {
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return nil, ErrUnauthenticated
	}

	if s.sessions == nil {
		return nil, fmt.Errorf("%w: %w", ErrForbidden, ErrSecretMissing)
	}
	claims, err := s.sessions.Verify(strings.TrimSpace(token))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrForbidden, err)
	}
	return claims, nil
}

// normalizeEmail trims and lower-cases email so uniqueness does not depend on
// the collation of the store's dialect.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
