package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/keygate/keygate/internal/model"
	"github.com/keygate/keygate/internal/service"
)

type contextKeyAuth string

const (
	// AuthPrincipalKey is the context key for the authenticated principal.
	AuthPrincipalKey contextKeyAuth = "auth_principal"
)

// Principal is the admin an authenticated request acts as.
type Principal struct {
	AdminID int64
	Email   string
}

// Authenticator validates the Authorization header of a request.
type Authenticator interface {
	AuthenticateRequest(ctx context.Context, header string) (*service.Claims, error)
}

// Authenticate returns an HTTP middleware that requires a valid admin
// Bearer token. A missing or malformed header is answered with 401, a token
// that fails verification with 403. Rejected requests never reach next.
func Authenticate(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := auth.AuthenticateRequest(r.Context(), r.Header.Get("Authorization"))
			if err != nil {
				if errors.Is(err, service.ErrUnauthenticated) {
					writeAuthError(w, http.StatusUnauthorized, "Access denied. Token not provided.")
					return
				}
				writeAuthError(w, http.StatusForbidden, "Token is invalid or expired.")
				return
			}

			principal := &Principal{AdminID: claims.AdminID, Email: claims.Email}
			ctx := context.WithValue(r.Context(), AuthPrincipalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetPrincipal extracts the authenticated principal from the context.
// Returns nil if no principal is present (i.e., unauthenticated request).
func GetPrincipal(ctx context.Context) *Principal {
	if p, ok := ctx.Value(AuthPrincipalKey).(*Principal); ok {
		return p
	}
	return nil
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(model.Fail(message))
}
