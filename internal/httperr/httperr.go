// Package httperr builds the uniform error envelope used across every
// handler and middleware: {"error": {"message", "type", "code", ...extras}}.
package httperr

import (
	"encoding/json"
	"net/http"
)

// Write sends a JSON error envelope with the given status, message, error
// type, and error code. extras are merged alongside message/type/code
// inside the "error" object.
func Write(w http.ResponseWriter, status int, message, errType, code string, extras map[string]any) {
	body := map[string]any{
		"message": message,
		"type":    errType,
		"code":    code,
	}
	for k, v := range extras {
		body[k] = v
	}

	data, err := json.Marshal(map[string]any{"error": body})
	if err != nil {
		http.Error(w, message, status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data) //nolint:errcheck
}

// JSON writes an arbitrary non-error JSON payload with the given status.
func JSON(w http.ResponseWriter, status int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data) //nolint:errcheck
}
