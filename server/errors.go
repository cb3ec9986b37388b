package server

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"

	"github.com/C010UR/fangi-prototype-sub000/grants"
	"github.com/C010UR/fangi-prototype-sub000/scopes"
	"github.com/C010UR/fangi-prototype-sub000/token"
)

const (
	contentTypeJSON = "application/json; charset=utf-8"
)

// writeJSONError writes an OAuth2 error response
func writeJSONError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":             errorCode,
		"error_description": description,
	})
}

// writeDomainError maps a domain error onto an OAuth2 error code and HTTP
// status. Unknown errors are reported as server_error without detail.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, grants.ErrUnknownClient), errors.Is(err, grants.ErrInvalidSecret):
		writeJSONError(w, "invalid_client", "client authentication failed", http.StatusUnauthorized)
	case errors.Is(err, grants.ErrClientBanned), errors.Is(err, grants.ErrClientInactive):
		writeJSONError(w, "unauthorized_client", "client is not permitted to use this endpoint", http.StatusForbidden)
	case errors.Is(err, grants.ErrRedirectURINotAllowed),
		errors.Is(err, grants.ErrRedirectURIMismatch),
		errors.Is(err, grants.ErrClientMismatch):
		writeJSONError(w, "invalid_grant", "redirect or client binding rejected", http.StatusBadRequest)
	case errors.Is(err, grants.ErrInvalidCode), errors.Is(err, grants.ErrCodeExpired),
		errors.Is(err, token.ErrInvalidRefreshToken), errors.Is(err, token.ErrRefreshTokenExpired):
		writeJSONError(w, "invalid_grant", "presented credential is invalid or expired", http.StatusBadRequest)
	case errors.Is(err, scopes.ErrMalformedScope):
		writeJSONError(w, "invalid_scope", "malformed scope entry", http.StatusBadRequest)
	default:
		writeJSONError(w, "server_error", "internal error", http.StatusInternalServerError)
	}
}
