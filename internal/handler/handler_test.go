package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/keygate/keygate/internal/model"
	"github.com/keygate/keygate/internal/service"
	"github.com/keygate/keygate/internal/store"
)

const (
	testJWTSecret = "test-secret-for-handler-tests"
	testPassword  = "supersecretpassword"
)

// testEnv holds shared state for handler integration tests.
type testEnv struct {
	store    *store.Store
	sessions *service.SessionIssuer
	router   chi.Router
}

// newTestEnv wires handlers over an in-memory store. Routes are mounted
// without auth middleware for direct handler testing.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := store.NewInMemory()
	if err != nil {
		t.Fatalf("store.NewInMemory: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	sessions, err := service.NewSessionIssuer(testJWTSecret)
	if err != nil {
		t.Fatalf("NewSessionIssuer: %v", err)
	}
	auth := service.NewAuthService(st, service.NewBcryptHasher(bcrypt.MinCost), sessions)
	keys := service.NewKeyService(st, nil)

	admin := NewAdminHandler(auth, keys)
	key := NewKeyHandler(keys)

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Post("/admin/register", admin.Register)
		r.Post("/admin/login", admin.Login)
		r.Get("/admin/dashboard", admin.Dashboard)
		r.Post("/key/generate", key.Generate)
	})

	return &testEnv{store: st, sessions: sessions, router: r}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v (body=%q)", err, rr.Body.String())
	}
}

func (e *testEnv) register(t *testing.T, email string) {
	t.Helper()
	rr := e.do(t, "POST", "/api/admin/register", credentialsRequest{Email: email, Password: testPassword})
	if rr.Code != http.StatusCreated {
		t.Fatalf("register: status %d, body %s", rr.Code, rr.Body.String())
	}
}

// ---------------------------------------------------------------------------
// Register
// ---------------------------------------------------------------------------

func TestRegister(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "POST", "/api/admin/register", credentialsRequest{Email: "admin@example.com", Password: testPassword})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var res model.Result
	decode(t, rr, &res)
	if !res.Success {
		t.Error("expected success=true")
	}

	admin, err := env.store.FindAdminByEmail(context.Background(), "admin@example.com")
	if err != nil {
		t.Fatalf("FindAdminByEmail: %v", err)
	}
	if admin.PasswordHash == testPassword {
		t.Error("password stored in plaintext")
	}
}

func TestRegisterErrors(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "taken@example.com")

	tests := []struct {
		name       string
		body       interface{}
		wantStatus int
		wantMsg    string
	}{
		{"duplicate", credentialsRequest{Email: "taken@example.com", Password: "x"}, http.StatusConflict, "Email is already registered as an admin."},
		{"missing password", credentialsRequest{Email: "new@example.com"}, http.StatusBadRequest, "Email and password are required."},
		{"missing email", credentialsRequest{Password: "x"}, http.StatusBadRequest, "Email and password are required."},
		{"malformed json", "{not json", http.StatusBadRequest, msgBadBody},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, "POST", "/api/admin/register", tt.body)
			if rr.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, rr.Code, rr.Body.String())
			}
			var res model.Result
			decode(t, rr, &res)
			if res.Success || res.Message != tt.wantMsg {
				t.Errorf("got %+v, want message %q", res, tt.wantMsg)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Login
// ---------------------------------------------------------------------------

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "admin@example.com")

	rr := env.do(t, "POST", "/api/admin/login", credentialsRequest{Email: "admin@example.com", Password: testPassword})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var res model.LoginResult
	decode(t, rr, &res)
	if !res.Success || res.Token == "" {
		t.Fatalf("unexpected login result: %+v", res)
	}
	if res.Message != "Login successful." {
		t.Errorf("message = %q", res.Message)
	}
	if res.ExpiresIn != 3600 {
		t.Errorf("expiresIn = %d, want 3600", res.ExpiresIn)
	}

	claims, err := env.sessions.Verify(res.Token)
	if err != nil {
		t.Fatalf("token does not verify: %v", err)
	}
	if claims.AdminID != res.AdminID {
		t.Errorf("token id %d != adminId %d", claims.AdminID, res.AdminID)
	}
}

func TestLoginFailuresLookIdentical(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "admin@example.com")

	wrongPw := env.do(t, "POST", "/api/admin/login", credentialsRequest{Email: "admin@example.com", Password: "nope"})
	unknown := env.do(t, "POST", "/api/admin/login", credentialsRequest{Email: "ghost@example.com", Password: testPassword})

	if wrongPw.Code != http.StatusUnauthorized || unknown.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401/401, got %d/%d", wrongPw.Code, unknown.Code)
	}
	if wrongPw.Body.String() != unknown.Body.String() {
		t.Errorf("bodies differ:\n%s\n%s", wrongPw.Body.String(), unknown.Body.String())
	}
}

func TestLoginMalformedBody(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, "POST", "/api/admin/login", "[]")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rr.Code)
	}
}

// ---------------------------------------------------------------------------
// Key generation and dashboard
// ---------------------------------------------------------------------------

func TestGenerateKey(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "POST", "/api/key/generate", service.IssueKeyRequest{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("Cache-Control") != "no-store" {
		t.Error("expected Cache-Control: no-store on key response")
	}

	var res model.KeyResult
	decode(t, rr, &res)
	if len(res.APIKey) != 64 {
		t.Fatalf("apiKey length = %d, want 64", len(res.APIKey))
	}

	stored, err := env.store.FindAPIKeyByHash(context.Background(), service.HashAPIKey(res.APIKey))
	if err != nil {
		t.Fatalf("stored key not found by digest: %v", err)
	}
	if stored.Status != model.KeyStatusActive {
		t.Errorf("status = %q, want active", stored.Status)
	}
}

func TestGenerateKeyErrors(t *testing.T) {
	env := newTestEnv(t)
	if rr := env.do(t, "POST", "/api/key/generate", service.IssueKeyRequest{FirstName: "A", Email: "dup@example.com"}); rr.Code != http.StatusCreated {
		t.Fatalf("seed: %d", rr.Code)
	}

	tests := []struct {
		name       string
		body       interface{}
		wantStatus int
		wantMsg    string
	}{
		{"duplicate email", service.IssueKeyRequest{FirstName: "B", Email: "dup@example.com"}, http.StatusConflict, "Email is already registered."},
		{"missing first name", service.IssueKeyRequest{Email: "x@example.com"}, http.StatusBadRequest, "First name and email are required."},
		{"missing email", service.IssueKeyRequest{FirstName: "X"}, http.StatusBadRequest, "First name and email are required."},
		{"malformed json", "{", http.StatusBadRequest, msgBadBody},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, "POST", "/api/key/generate", tt.body)
			if rr.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, rr.Code, rr.Body.String())
			}
			var res model.KeyResult
			decode(t, rr, &res)
			if res.Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", res.Message, tt.wantMsg)
			}
			if res.APIKey != "" {
				t.Error("failed generation must not return a key")
			}
		})
	}
}

func TestDashboard(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "GET", "/api/admin/dashboard", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if body := strings.TrimSpace(rr.Body.String()); body != `{"success":true,"message":"Dashboard data loaded.","data":[]}` {
		t.Errorf("empty dashboard body = %s", body)
	}

	var keys []string
	for i := 1; i <= 3; i++ {
		rr := env.do(t, "POST", "/api/key/generate", service.IssueKeyRequest{FirstName: fmt.Sprintf("U%d", i), Email: fmt.Sprintf("u%d@example.com", i)})
		var res model.KeyResult
		decode(t, rr, &res)
		keys = append(keys, res.APIKey)
	}

	rr = env.do(t, "GET", "/api/admin/dashboard", nil)
	raw := rr.Body.String()
	var res model.DashboardResult
	decode(t, rr, &res)

	want := []string{"U3", "U2", "U1"}
	if len(res.Data) != len(want) {
		t.Fatalf("got %d rows, want %d", len(res.Data), len(want))
	}
	for i, row := range res.Data {
		if row.FirstName != want[i] {
			t.Errorf("row %d: got %q, want %q", i, row.FirstName, want[i])
		}
	}

	for _, k := range keys {
		if strings.Contains(raw, k) {
			t.Error("dashboard exposes a full API key")
		}
	}
}

// ---------------------------------------------------------------------------
// statusFor
// ---------------------------------------------------------------------------

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{service.ErrInvalidInput, http.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", service.ErrConflict), http.StatusConflict},
		{service.ErrUnauthorized, http.StatusUnauthorized},
		{service.ErrUnauthenticated, http.StatusUnauthorized},
		{service.ErrForbidden, http.StatusForbidden},
		{service.ErrStoreUnavailable, http.StatusInternalServerError},
		{service.ErrEntropyUnavailable, http.StatusInternalServerError},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestWriteServiceErrorHidesDetails(t *testing.T) {
	rr := httptest.NewRecorder()
	writeServiceError(rr, fmt.Errorf("%w: dial tcp 10.0.0.5:3306: refused", service.ErrStoreUnavailable), registerMessages)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "10.0.0.5") {
		t.Error("internal error detail leaked to client")
	}
	var res model.Result
	decode(t, rr, &res)
	if res.Message != msgInternal {
		t.Errorf("message = %q, want %q", res.Message, msgInternal)
	}
}
