package handler

import (
	"net/http"

	"github.com/keygate/keygate/internal/model"
	"github.com/keygate/keygate/internal/service"
)

// KeyHandler issues API keys to new users.
type KeyHandler struct {
	keys *service.KeyService
}

// NewKeyHandler creates a KeyHandler.
func NewKeyHandler(keys *service.KeyService) *KeyHandler {
	return &KeyHandler{keys: keys}
}

var generateMessages = map[int]string{
	http.StatusBadRequest:          "First name and email are required.",
	http.StatusConflict:            "Email is already registered.",
	http.StatusInternalServerError: "Failed to save user and API key.",
}

// Generate registers a user and returns its new API key. The key is shown
// once and cannot be retrieved again.
// POST /api/key/generate
func (h *KeyHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req service.IssueKeyRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgBadBody)
		return
	}

	issued, err := h.keys.IssueForNewUser(r.Context(), req)
	if err != nil {
		writeServiceError(w, err, generateMessages)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusCreated, model.KeyResult{
		Result: model.OK("User and API key saved successfully."),
		APIKey: issued.APIKey,
	})
}
