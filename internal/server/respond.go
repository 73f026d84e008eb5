package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dpeterek-muni/faktury-export/internal/logger"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error            string `json:"error"`
	Details          any    `json:"details,omitempty"`
	NeedsCredentials bool   `json:"needsCredentials,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string, details any) {
	logger.FromContext(r.Context()).Warn().Int("status", status).Str("error", message).Msg("Request failed")
	writeJSON(w, status, errorBody{Error: message, Details: details})
}

// writeNeedsCredentials reports a missing or rejected credential set.
func writeNeedsCredentials(w http.ResponseWriter, r *http.Request, err error) {
	logger.FromContext(r.Context()).Warn().Err(err).Msg("Credentials rejected")
	writeJSON(w, http.StatusUnauthorized, errorBody{Error: err.Error(), NeedsCredentials: true})
}

// decodeJSON reads a JSON request body of at most limit bytes into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return fmt.Errorf("request body exceeds %d bytes: %w", tooLarge.Limit, tooLarge)
		case errors.Is(err, io.EOF):
			return errors.New("request body is empty")
		default:
			return fmt.Errorf("invalid JSON: %w", err)
		}
	}
	return nil
}
