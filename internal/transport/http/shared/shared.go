// Package shared holds the JSON envelope helpers used by every handler
// package, so error translation stays consistent across the API surface.
package shared

import (
	"encoding/json"
	"net/http"
	"strconv"

	dErrors "attest/pkg/domain-errors"
)

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a domain error into the HTTP error envelope.
// Unknown errors collapse to a generic 500 so internals never leak.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	resp := ErrorResponse{Error: string(code), Message: dErrors.MessageOf(err)}
	if code == dErrors.CodeInternal {
		resp.Message = "internal error"
	}
	WriteJSON(w, StatusOf(code), resp)
}

// StatusOf maps a domain error code to an HTTP status.
func StatusOf(code dErrors.Code) int {
	switch code {
	case dErrors.CodeInvalidInput, dErrors.CodeOutOfRange:
		return http.StatusBadRequest
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict, dErrors.CodeInvariantViolation:
		return http.StatusConflict
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// PageParams reads the start and limit query parameters, defaulting to the
// first page of 50.
func PageParams(r *http.Request) (start, limit int, err error) {
	start, err = queryInt(r, "start", 0)
	if err != nil {
		return 0, 0, err
	}
	limit, err = queryInt(r, "limit", 50)
	if err != nil {
		return 0, 0, err
	}
	return start, limit, nil
}

func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, dErrors.Newf(dErrors.CodeInvalidInput, "%s must be an integer", name)
	}
	return v, nil
}

// DecodeJSON decodes the request body into v, rejecting unknown fields.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid request body")
	}
	return nil
}
