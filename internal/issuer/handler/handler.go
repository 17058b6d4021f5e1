// Package handler exposes the issuer registry over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"attest/internal/issuer/models"
	"attest/internal/transport/http/shared"
	"attest/pkg/domain"
)

// Service defines the registry operations the HTTP layer needs.
type Service interface {
	Register(ctx context.Context, caller, addr domain.Address, name, location string) (*models.Issuer, error)
	Update(ctx context.Context, caller, addr domain.Address, name, location string) (*models.Issuer, error)
	Deactivate(ctx context.Context, caller, addr domain.Address) (*models.Issuer, error)
	Reactivate(ctx context.Context, caller, addr domain.Address) (*models.Issuer, error)
	Info(ctx context.Context, addr domain.Address) (*models.Issuer, error)
	IsKnown(ctx context.Context, addr domain.Address) (bool, error)
	IsRegisteredActive(ctx context.Context, addr domain.Address) (bool, error)
	ListAll(ctx context.Context, start, limit int) ([]domain.Address, bool, error)
	ListActive(ctx context.Context, start, limit int) ([]domain.Address, []string, bool, error)
	Stats(ctx context.Context) (models.RegistryStats, error)
}

// Handler handles issuer registry endpoints. Admin routes act as the
// registry owner; the admin-token middleware guarding them is applied by
// the router.
type Handler struct {
	logger   *slog.Logger
	registry Service
	owner    domain.Address
}

// New creates a new issuer Handler.
func New(registry Service, owner domain.Address, logger *slog.Logger) *Handler {
	return &Handler{
		logger:   logger,
		registry: registry,
		owner:    owner,
	}
}

// Register registers the issuer routes. admin wraps the mutating routes
// with the operator authentication middleware.
func (h *Handler) Register(r chi.Router, admin func(http.Handler) http.Handler) {
	r.Route("/api/issuers", func(r chi.Router) {
		r.Get("/", h.handleListAll)
		r.Get("/active", h.handleListActive)
		r.Get("/stats", h.handleStats)
		r.Get("/{address}", h.handleInfo)
		r.Get("/{address}/status", h.handleStatus)

		r.Group(func(r chi.Router) {
			r.Use(admin)
			r.Post("/", h.handleRegister)
			r.Put("/{address}", h.handleUpdate)
			r.Post("/{address}/deactivate", h.handleDeactivate)
			r.Post("/{address}/reactivate", h.handleReactivate)
		})
	})
}

type upsertIssuerRequest struct {
	Address  string `json:"address,omitempty"`
	Name     string `json:"name"`
	Location string `json:"location"`
}

type issuerResponse struct {
	Address          string `json:"address"`
	Name             string `json:"name"`
	Location         string `json:"location"`
	RegisteredAt     string `json:"registered_at"`
	Active           bool   `json:"active"`
	CertificateCount uint64 `json:"certificate_count"`
}

func toIssuerResponse(i *models.Issuer) issuerResponse {
	return issuerResponse{
		Address:          i.Address.Hex(),
		Name:             i.Name,
		Location:         i.Location,
		RegisteredAt:     i.RegisteredAt.UTC().Format(time.RFC3339),
		Active:           i.Active,
		CertificateCount: i.CertificateCount,
	}
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req upsertIssuerRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	addr, err := domain.ParseAddress(req.Address)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	issuer, err := h.registry.Register(ctx, h.owner, addr, req.Name, req.Location)
	if err != nil {
		h.logError(ctx, "register issuer failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toIssuerResponse(issuer))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	addr, err := domain.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req upsertIssuerRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}

	issuer, err := h.registry.Update(ctx, h.owner, addr, req.Name, req.Location)
	if err != nil {
		h.logError(ctx, "update issuer failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toIssuerResponse(issuer))
}

func (h *Handler) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, h.registry.Deactivate)
}

func (h *Handler) handleReactivate(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, h.registry.Reactivate)
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request, op func(context.Context, domain.Address, domain.Address) (*models.Issuer, error)) {
	ctx := r.Context()

	addr, err := domain.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	issuer, err := op(ctx, h.owner, addr)
	if err != nil {
		h.logError(ctx, "issuer transition failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toIssuerResponse(issuer))
}

func (h *Handler) handleInfo(w http.ResponseWriter, r *http.Request) {
	addr, err := domain.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	issuer, err := h.registry.Info(r.Context(), addr)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toIssuerResponse(issuer))
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	addr, err := domain.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	known, err := h.registry.IsKnown(r.Context(), addr)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	active, err := h.registry.IsRegisteredActive(r.Context(), addr)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]bool{
		"known":  known,
		"active": active,
	})
}

func (h *Handler) handleListAll(w http.ResponseWriter, r *http.Request) {
	start, limit, err := shared.PageParams(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	addrs, hasMore, err := h.registry.ListAll(r.Context(), start, limit)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, a.Hex())
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"issuers":  out,
		"has_more": hasMore,
	})
}

func (h *Handler) handleListActive(w http.ResponseWriter, r *http.Request) {
	start, limit, err := shared.PageParams(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	addrs, names, hasMore, err := h.registry.ListActive(r.Context(), start, limit)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	type activeIssuer struct {
		Address string `json:"address"`
		Name    string `json:"name"`
	}
	out := make([]activeIssuer, 0, len(addrs))
	for i, a := range addrs {
		out = append(out, activeIssuer{Address: a.Hex(), Name: names[i]})
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"issuers":  out,
		"has_more": hasMore,
	})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.registry.Stats(r.Context())
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
