package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"shopflow/internal/domain"
)

// errorBody is the JSON shape of every failed request. Error names the
// attempted action followed by the cause.
type errorBody struct {
	Error  string   `json:"error"`
	Field  string   `json:"field,omitempty"`
	Done   []string `json:"done,omitempty"`
	Failed []string `json:"failed,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Error("Failed to encode response")
	}
}

// writeError maps the domain error taxonomy onto HTTP statuses
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, action string, err error) {
	body := errorBody{Error: fmt.Sprintf("%s: %v", action, err)}
	status := http.StatusInternalServerError

	var vErr *domain.ValidationError
	var pErr *domain.PartialFailureError
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		status = http.StatusUnauthorized
	case errors.As(err, &pErr):
		body.Done = pErr.Done
		body.Failed = pErr.Failed
	case errors.As(err, &vErr):
		status = http.StatusUnprocessableEntity
		body.Field = vErr.Field
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	}

	if status >= 500 {
		log.WithError(err).WithFields(log.Fields{
			"action":     action,
			"request_id": middleware.GetReqID(r.Context()),
		}).Error("Failed to " + action)
	}
	writeJSON(w, status, body)
}

// decodeJSON reads the request body into v. A malformed body is a
// validation error on field "body".
func decodeJSON(r *http.Request, v interface{}) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return domain.NewValidationError("body", "invalid JSON: %v", err)
	}
	return nil
}

// queryInt parses an optional integer query parameter
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, domain.NewValidationError(name, "must be a non-negative integer")
	}
	return n, nil
}

// getURLParam is a helper to get URL parameters
func getURLParam(r *http.Request, key string) string {
	return chi.URLParam(r, key)
}
