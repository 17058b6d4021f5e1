package middleware

import (
	"log/slog"
	"net/http"

	"attest/pkg/platform/secrets"
)

// RequireAdminToken gates administrative routes behind the X-Admin-Token
// header, verified against a bcrypt hash so the plaintext token never
// lives in server configuration. This is boundary policy only; the
// registry's owner-address check remains the authoritative gate.
func RequireAdminToken(tokenHash string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get("X-Admin-Token")
			if tokenHash == "" || secrets.Verify(token, tokenHash) != nil {
				logger.WarnContext(r.Context(), "admin token mismatch",
					"request_id", GetRequestID(r.Context()),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","message":"admin token required"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
