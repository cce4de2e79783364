package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/keygate/keygate/internal/model"
	"github.com/keygate/keygate/internal/service"
)

// maxBodyBytes caps request bodies; every request here is a small JSON object.
const maxBodyBytes = 1 << 20

// Messages shared across handlers.
const (
	msgBadBody  = "Invalid request body."
	msgInternal = "Internal server error."
)

// writeJSON serializes v as JSON and writes it to the response with the given
// HTTP status code. The Content-Type header is set to application/json.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes the failure envelope.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, model.Fail(message))
}

// readJSON decodes the request body as JSON into v. The body is closed after
// decoding regardless of success or failure.
func readJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

// statusFor maps a service error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, service.ErrUnauthorized), errors.Is(err, service.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError answers with the status for err and the message
// registered for that status, falling back to a generic 500 message. Raw
// error text is never sent to the client.
func writeServiceError(w http.ResponseWriter, err error, messages map[int]string) {
	status := statusFor(err)
	msg, ok := messages[status]
	if !ok {
		status = http.StatusInternalServerError
		msg = messages[status]
	}
	if msg == "" {
		msg = msgInternal
	}
	writeError(w, status, msg)
}
