package handler

import (
	"net/http"

	"github.com/keygate/keygate/internal/model"
	"github.com/keygate/keygate/internal/service"
)

// AdminHandler serves admin registration, login and the key dashboard.
type AdminHandler struct {
	auth *service.AuthService
	keys *service.KeyService
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(auth *service.AuthService, keys *service.KeyService) *AdminHandler {
	return &AdminHandler{auth: auth, keys: keys}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

var registerMessages = map[int]string{
	http.StatusBadRequest: "Email and password are required.",
	http.StatusConflict:   "Email is already registered as an admin.",
}

// Register creates an admin account.
// POST /api/admin/register
func (h *AdminHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgBadBody)
		return
	}

	if _, err := h.auth.Register(r.Context(), req.Email, req.Password); err != nil {
		writeServiceError(w, err, registerMessages)
		return
	}
	writeJSON(w, http.StatusCreated, model.OK("Admin registered successfully."))
}

var loginMessages = map[int]string{
	http.StatusUnauthorized: "Invalid email or password.",
}

// Login exchanges admin credentials for a session token.
// POST /api/admin/login
func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgBadBody)
		return
	}

	sess, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, err, loginMessages)
		return
	}

	writeJSON(w, http.StatusOK, model.LoginResult{
		Result:    model.OK("Login successful."),
		Token:     sess.Token,
		AdminID:   sess.AdminID,
		ExpiresIn: int(service.SessionTTL.Seconds()),
	})
}

// Dashboard lists every user with its key. Requires an admin session.
// GET /api/admin/dashboard
func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	rows, err := h.keys.FetchDashboard(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load dashboard data.")
		return
	}
	writeJSON(w, http.StatusOK, model.DashboardResult{
		Result: model.OK("Dashboard data loaded."),
		Data:   rows,
	})
}
