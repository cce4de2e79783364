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

// KeyTTL is the lifetime of an issued API key, in calendar years.
const KeyTTL = 1

// KeyStore is the slice of the credential store KeyService needs.
type KeyStore interface {
	CreateUserWithKey(ctx context.Context, user *model.User, key *model.APIKey) error
	ListUserKeyRows(ctx context.Context) ([]model.DashboardRow, error)
}

// IssueKeyRequest describes the user an API key is issued to.
type IssueKeyRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email"`
}

// IssuedKey carries the plaintext secret. It is the only place the secret is
// ever handed out.
type IssuedKey struct {
	UserID    int64
	KeyID     int64
	APIKey    string
	ExpiresAt time.Time
}

// KeyService issues API keys to new users and lists them for admins.
type KeyService struct {
	store KeyStore
	gen   *KeyGenerator
	opts  options
}

// NewKeyService returns a KeyService; a nil gen uses crypto/rand.
func NewKeyService(s KeyStore, gen *KeyGenerator, opts ...Option) *KeyService {
	if gen == nil {
		gen = NewKeyGenerator(nil)
	}
	return &KeyService{store: s, gen: gen, opts: newOptions(opts)}
}

// IssueForNewUser creates the user and its first key atomically and returns
// the plaintext secret.
func (s *KeyService) IssueForNewUser(ctx context.Context, req IssueKeyRequest) (*IssuedKey, error) {
	issued, err := s.issue(ctx, req)
	switch {
	case err == nil:
		s.opts.recorder.ObserveKeyIssued(OutcomeSuccess)
	case errors.Is(err, ErrInvalidInput):
		s.opts.recorder.ObserveKeyIssued(OutcomeInvalid)
	case errors.Is(err, ErrConflict):
		s.opts.recorder.ObserveKeyIssued(OutcomeConflict)
	default:
		s.opts.recorder.ObserveKeyIssued(OutcomeError)
		s.opts.logger.Error("api key issuance failed", "email", req.Email, "error", err)
	}
	return issued, err
}

func (s *KeyService) issue(ctx context.Context, req IssueKeyRequest) (*IssuedKey, error) {
	firstName := strings.TrimSpace(req.FirstName)
	email := normalizeEmail(req.Email)
	if firstName == "" || email == "" {
		return nil, fmt.Errorf("%w: first name and email are required", ErrInvalidInput)
	}

	plaintext, digest, err := s.gen.Generate()
	if err != nil {
		return nil, err
	}

	user := &model.User{FirstName: firstName, Email: email}
	if last := strings.TrimSpace(req.LastName); last != "" {
		user.LastName = &last
	}
	key := &model.APIKey{
		KeyHash:    digest,
		Status:     model.KeyStatusActive,
		ExpiryDate: s.opts.now().UTC().AddDate(KeyTTL, 0, 0),
	}
	if s.opts.persistPlaintext {
		key.KeyValue = plaintext
	}

	storeCtx, cancel := s.opts.storeCtx(ctx)
	defer cancel()
	if err := s.store.CreateUserWithKey(storeCtx, user, key); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, fmt.Errorf("%w: %w", ErrConflict, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	return &IssuedKey{
		UserID:    user.ID,
		KeyID:     key.ID,
		APIKey:    plaintext,
		ExpiresAt: key.ExpiryDate,
	}, nil
}

// FetchDashboard lists every user with its key, newest user first. Stored
// key values are masked.
func (s *KeyService) FetchDashboard(ctx context.Context) ([]model.DashboardRow, error) {
	storeCtx, cancel := s.opts.storeCtx(ctx)
	defer cancel()

	rows, err := s.store.ListUserKeyRows(storeCtx)
	if err != nil {
		s.opts.logger.Error("dashboard query failed", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	for i := range rows {
		rows[i].APIKeyValue = MaskKey(rows[i].APIKeyValue)
	}
	if rows == nil {
		rows = []model.DashboardRow{}
	}
	return rows, nil
}

// MaskKey keeps the first six and last four characters of a key.
func MaskKey(v string) string {
	if v == "" {
		return ""
	}
	if len(v) <= 10 {
		return strings.Repeat("*", len(v))
	}
	return v[:6] + "..." + v[len(v)-4:]
}
