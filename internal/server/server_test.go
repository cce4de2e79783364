package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"github.com/keygate/keygate/internal/metrics"
	"github.com/keygate/keygate/internal/model"
	"github.com/keygate/keygate/internal/service"
	"github.com/keygate/keygate/internal/store"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

const (
	testJWTSecret = "test-secret-for-jwt-integration-tests"
	testPassword  = "supersecretpassword"
)

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

// testEnv holds all the shared state for integration tests.
type testEnv struct {
	server  *Server
	store   *store.Store
	metrics *metrics.Metrics
	clock   *clock
}

// newTestEnv creates a fresh test environment with an in-memory store and a
// fully wired Server.
func newTestEnv(t *testing.T, cfgs ...func(*Config)) *testEnv {
	t.Helper()

	st, err := store.NewInMemory()
	if err != nil {
		t.Fatalf("store.NewInMemory: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	c := &clock{t: time.Now().Truncate(time.Second)}
	env := &testEnv{store: st, metrics: metrics.New(), clock: c}
	env.server = newServer(t, st, env.metrics, c, cfgs...)
	return env
}

func newServer(t *testing.T, st *store.Store, m *metrics.Metrics, c *clock, cfgs ...func(*Config)) *Server {
	t.Helper()
	sessions, err := service.NewSessionIssuer(testJWTSecret, service.WithSessionClock(c.Now))
	if err != nil {
		t.Fatalf("NewSessionIssuer: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts := []service.Option{service.WithLogger(logger), service.WithRecorder(m)}

	cfg := DefaultConfig()
	for _, f := range cfgs {
		f(&cfg)
	}
	return New(cfg, Deps{
		Store:   st,
		Auth:    service.NewAuthService(st, service.NewBcryptHasher(bcrypt.MinCost), sessions, opts...),
		Keys:    service.NewKeyService(st, nil, opts...),
		Metrics: m,
		Logger:  logger,
		Version: "test",
	})
}

// do executes an HTTP request against the test server and returns the recorder.
// headers is an optional map of header key-value pairs.
func (e *testEnv) do(t *testing.T, method, path string, body io.Reader, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	return doReq(t, e.server, method, path, body, headers)
}

func doReq(t *testing.T, h http.Handler, method, path string, body io.Reader, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

// adminToken registers the default admin and returns a session token.
func (e *testEnv) adminToken(t *testing.T) string {
	t.Helper()
	creds := map[string]string{"email": "admin@example.com", "password": testPassword}

	rr := e.do(t, "POST", "/api/admin/register", jsonBody(t, creds), nil)
	assertStatus(t, rr, http.StatusCreated)

	rr = e.do(t, "POST", "/api/admin/login", jsonBody(t, creds), nil)
	assertStatus(t, rr, http.StatusOK)

	var resp model.LoginResult
	decodeJSON(t, rr, &resp)
	if resp.Token == "" {
		t.Fatal("adminToken: got empty token from login")
	}
	return resp.Token
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func jsonBody(t *testing.T, v interface{}) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(v); err != nil {
		t.Fatalf("jsonBody: %v", err)
	}
	return buf
}

func assertStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Errorf("status = %d, want %d; body = %s", rr.Code, want, rr.Body.String())
	}
}

func assertContentType(t *testing.T, rr *httptest.ResponseRecorder, want string) {
	t.Helper()
	got := rr.Header().Get("Content-Type")
	if got != want {
		t.Errorf("Content-Type = %q, want %q", got, want)
	}
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decodeJSON: %v; body = %s", err, rr.Body.String())
	}
}

// ---------------------------------------------------------------------------
// Health check tests
// ---------------------------------------------------------------------------

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "GET", "/healthz", nil, nil)
	assertStatus(t, rr, http.StatusOK)
	assertContentType(t, rr, "application/json")

	var resp map[string]string
	decodeJSON(t, rr, &resp)
	if resp["status"] != "ok" {
		t.Errorf("status = %q, want %q", resp["status"], "ok")
	}
}

func TestReadyz(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "GET", "/readyz", nil, nil)
	assertStatus(t, rr, http.StatusOK)

	var resp struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	decodeJSON(t, rr, &resp)
	if resp.Status != "ok" || resp.Checks["store"] != "ok" {
		t.Errorf("readyz = %+v", resp)
	}
}

type downStore struct{}

func (downStore) Ping(context.Context) error { return errors.New("dial tcp: connection refused") }

func TestReadyzStoreDown(t *testing.T) {
	srv := New(DefaultConfig(), Deps{Store: downStore{}, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})

	rr := doReq(t, srv, "GET", "/readyz", nil, nil)
	assertStatus(t, rr, http.StatusServiceUnavailable)
	if strings.Contains(rr.Body.String(), "connection refused") {
		t.Error("readiness body should not leak driver errors")
	}
}

// ---------------------------------------------------------------------------
// End-to-end flow
// ---------------------------------------------------------------------------

func TestAdminFlow(t *testing.T) {
	env := newTestEnv(t)
	token := env.adminToken(t)

	for _, u := range []map[string]string{
		{"first_name": "U1", "email": "u1@example.com"},
		{"first_name": "U2", "last_name": "Two", "email": "u2@example.com"},
	} {
		rr := env.do(t, "POST", "/api/key/generate", jsonBody(t, u), nil)
		assertStatus(t, rr, http.StatusCreated)
	}

	rr := env.do(t, "GET", "/api/admin/dashboard", nil, bearer(token))
	assertStatus(t, rr, http.StatusOK)

	var dash model.DashboardResult
	decodeJSON(t, rr, &dash)
	if len(dash.Data) != 2 || dash.Data[0].FirstName != "U2" || dash.Data[1].FirstName != "U1" {
		t.Errorf("dashboard = %+v, want U2 then U1", dash.Data)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
}

func TestDashboardAuth(t *testing.T) {
	env := newTestEnv(t)
	token := env.adminToken(t)

	tests := []struct {
		name    string
		headers map[string]string
		want    int
	}{
		{"no header", nil, http.StatusUnauthorized},
		{"wrong scheme", map[string]string{"Authorization": "Token " + token}, http.StatusUnauthorized},
		{"garbage token", bearer("not.a.jwt"), http.StatusForbidden},
		{"valid", bearer(token), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, "GET", "/api/admin/dashboard", nil, tt.headers)
			assertStatus(t, rr, tt.want)
		})
	}
}

func TestDashboardExpiredToken(t *testing.T) {
	env := newTestEnv(t)
	token := env.adminToken(t)

	env.clock.t = env.clock.t.Add(59*time.Minute + 59*time.Second)
	assertStatus(t, env.do(t, "GET", "/api/admin/dashboard", nil, bearer(token)), http.StatusOK)

	env.clock.t = env.clock.t.Add(time.Second)
	assertStatus(t, env.do(t, "GET", "/api/admin/dashboard", nil, bearer(token)), http.StatusForbidden)
}

// Rejected dashboard requests must not touch the store. The sqlmock store has
// no expectations, so any query would fail and surface as a 500.
func TestRejectedDashboardSkipsStore(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st, err := store.NewWithDB(sqlx.NewDb(db, "sqlmock"), store.DialectSQLite)
	if err != nil {
		t.Fatalf("NewWithDB: %v", err)
	}
	srv := newServer(t, st, metrics.New(), &clock{t: time.Now()})

	assertStatus(t, doReq(t, srv, "GET", "/api/admin/dashboard", nil, nil), http.StatusUnauthorized)
	assertStatus(t, doReq(t, srv, "GET", "/api/admin/dashboard", nil, bearer("forged.token.value")), http.StatusForbidden)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unexpected store activity: %v", err)
	}
}

func TestLoginMetrics(t *testing.T) {
	env := newTestEnv(t)
	env.adminToken(t)

	bad := map[string]string{"email": "admin@example.com", "password": "wrong"}
	assertStatus(t, env.do(t, "POST", "/api/admin/login", jsonBody(t, bad), nil), http.StatusUnauthorized)

	rr := env.do(t, "GET", "/metrics", nil, nil)
	assertStatus(t, rr, http.StatusOK)
	body := rr.Body.String()
	for _, want := range []string{
		`keygate_admin_logins_total{outcome="success"} 1`,
		`keygate_admin_logins_total{outcome="unauthorized"} 1`,
		`keygate_admin_registrations_total{outcome="success"} 1`,
		`route="/api/admin/login"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestOpenAPIEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "GET", "/openapi.json", nil, nil)
	assertStatus(t, rr, http.StatusOK)
	assertContentType(t, rr, "application/json")

	var doc struct {
		OpenAPI string                 `json:"openapi"`
		Paths   map[string]interface{} `json:"paths"`
	}
	decodeJSON(t, rr, &doc)
	if doc.OpenAPI != "3.1.0" {
		t.Errorf("openapi = %q", doc.OpenAPI)
	}
	if _, ok := doc.Paths["/api/key/generate"]; !ok {
		t.Error("paths missing /api/key/generate")
	}
}

func TestStaticDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>keygate</h1>"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	env := newTestEnv(t, func(c *Config) { c.StaticDir = dir })

	rr := env.do(t, "GET", "/", nil, nil)
	assertStatus(t, rr, http.StatusOK)
	if !strings.Contains(rr.Body.String(), "keygate") {
		t.Errorf("static index not served: %q", rr.Body.String())
	}

	// API routes still win over the file server.
	assertStatus(t, env.do(t, "GET", "/api/admin/dashboard", nil, nil), http.StatusUnauthorized)
}

func TestRunShutsDownOnCancel(t *testing.T) {
	env := newTestEnv(t, func(c *Config) {
		c.Host = "127.0.0.1"
		c.Port = 0
		c.ShutdownTimeout = time.Second
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.server.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
