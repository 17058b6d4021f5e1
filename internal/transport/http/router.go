// Package httptransport assembles the public HTTP surface: middleware
// chain, domain handlers, health, and metrics.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	certhandler "attest/internal/certificate/handler"
	issuerhandler "attest/internal/issuer/handler"
	"attest/internal/platform/middleware"
	"attest/internal/transport/http/shared"
	verificationhandler "attest/internal/verification/handler"
)

// Config carries the transport-level knobs.
type Config struct {
	Logger         *slog.Logger
	AdminTokenHash string
	MaxUploadBytes int64
	RequestTimeout time.Duration

	// Health reports backing-store readiness; nil means always ready.
	Health func(ctx context.Context) error
}

// NewRouter wires the full API surface.
func NewRouter(cfg Config, issuers *issuerhandler.Handler, certs *certhandler.Handler, verification *verificationhandler.Handler) http.Handler {
	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Timeout(timeout))
	if cfg.MaxUploadBytes > 0 {
		r.Use(middleware.MaxBytes(cfg.MaxUploadBytes))
	}

	admin := middleware.RequireAdminToken(cfg.AdminTokenHash, cfg.Logger)
	issuers.Register(r, admin)
	certs.Register(r)
	verification.Register(r)

	r.Get("/healthz", handleHealth(cfg.Health))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}

func handleHealth(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			if err := check(r.Context()); err != nil {
				shared.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "unavailable",
				})
				return
			}
		}
		shared.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
