// Package handler exposes certificate issuance and lookups over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"attest/internal/certificate/models"
	"attest/internal/fingerprint"
	"attest/internal/transport/http/shared"
	"attest/pkg/domain"
)

// Service defines the certificate operations the HTTP layer needs.
type Service interface {
	Issue(ctx context.Context, caller domain.Address, fp fingerprint.Digest, recipient domain.Address) (*models.Certificate, error)
	Revoke(ctx context.Context, caller domain.Address, fp fingerprint.Digest) (*models.Certificate, error)
	Info(ctx context.Context, fp fingerprint.Digest) (*models.Certificate, error)
	CertificatesFor(ctx context.Context, recipient domain.Address, start, limit int) ([]fingerprint.Digest, bool, error)
	Stats(ctx context.Context) (models.StoreStats, error)
}

// Handler handles certificate endpoints. The acting issuer is taken from
// the request body; authority is enforced by the service against the
// registry, not by transport middleware.
type Handler struct {
	logger *slog.Logger
	certs  Service
}

// New creates a new certificate Handler.
func New(certs Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, certs: certs}
}

// Register registers the certificate routes.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api/certificates", func(r chi.Router) {
		r.Post("/", h.handleIssue)
		r.Get("/stats", h.handleStats)
		r.Get("/recipient/{address}", h.handleListByRecipient)
		r.Get("/{fingerprint}", h.handleInfo)
		r.Post("/{fingerprint}/revoke", h.handleRevoke)
	})
}

type issueRequest struct {
	Fingerprint string `json:"fingerprint"`
	Issuer      string `json:"issuer"`
	Recipient   string `json:"recipient"`
}

type revokeRequest struct {
	Issuer string `json:"issuer"`
}

type certificateResponse struct {
	Fingerprint string `json:"fingerprint"`
	Issuer      string `json:"issuer"`
	Recipient   string `json:"recipient"`
	IssuedAt    string `json:"issued_at"`
	Revoked     bool   `json:"revoked"`
	RevokedAt   string `json:"revoked_at,omitempty"`
}

func toCertificateResponse(c *models.Certificate) certificateResponse {
	resp := certificateResponse{
		Fingerprint: c.Fingerprint.String(),
		Issuer:      c.Issuer.Hex(),
		Recipient:   c.Recipient.Hex(),
		IssuedAt:    c.IssuedAt.UTC().Format(time.RFC3339),
		Revoked:     c.Revoked,
	}
	if c.RevokedAt != nil {
		resp.RevokedAt = c.RevokedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func (h *Handler) handleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req issueRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	fp, err := fingerprint.ParseHex(req.Fingerprint)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	issuer, err := domain.ParseAddress(req.Issuer)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	recipient, err := domain.ParseAddress(req.Recipient)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	cert, err := h.certs.Issue(ctx, issuer, fp, recipient)
	if err != nil {
		h.logError(ctx, "issue certificate failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toCertificateResponse(cert))
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	fp, err := fingerprint.ParseHex(chi.URLParam(r, "fingerprint"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req revokeRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	caller, err := domain.ParseAddress(req.Issuer)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	cert, err := h.certs.Revoke(ctx, caller, fp)
	if err != nil {
		h.logError(ctx, "revoke certificate failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toCertificateResponse(cert))
}

func (h *Handler) handleInfo(w http.ResponseWriter, r *http.Request) {
	fp, err := fingerprint.ParseHex(chi.URLParam(r, "fingerprint"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	cert, err := h.certs.Info(r.Context(), fp)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toCertificateResponse(cert))
}

func (h *Handler) handleListByRecipient(w http.ResponseWriter, r *http.Request) {
	recipient, err := domain.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	start, limit, err := shared.PageParams(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	fps, hasMore, err := h.certs.CertificatesFor(r.Context(), recipient, start, limit)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	out := make([]string, 0, len(fps))
	for _, fp := range fps {
		out = append(out, fp.String())
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"fingerprints": out,
		"has_more":     hasMore,
	})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.certs.Stats(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) logError(ctx context.Context, msg string, err error) {
	if h.logger != nil {
		h.logger.ErrorContext(ctx, msg, "error", err)
	}
}
