package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

const maxBody = 1 << 20

type errorBody struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(r.Context(), "failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, code int, reason string, err error) {
	msg := http.StatusText(code)
	if err != nil {
		msg = err.Error()
	}

	writeJSON(w, r, code, errorBody{Error: msg, Reason: reason})
}

var errBadContentType = errors.New("content type must be application/json")

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	if ct := r.Header.Get("Content-Type"); len(ct) > 0 && !strings.HasPrefix(ct, "application/json") {
		return errBadContentType
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}

	return nil
}
