// Package shared holds the response helpers common to all HTTP handlers.
package shared

import (
	"encoding/json"
	"net/http"

	dErrors "gavel/pkg/domain-errors"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps a domain error onto its HTTP status and a JSON envelope.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	WriteJSON(w, dErrors.ToHTTPStatus(code), errorBody{
		Error: err.Error(),
		Code:  string(code),
	})
}
