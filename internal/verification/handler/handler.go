// Package handler exposes document verification over HTTP: file uploads,
// fingerprint text lookups, and fingerprint computation.
package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"attest/internal/certificate/models"
	"attest/internal/fingerprint"
	"attest/internal/transport/http/shared"
	dErrors "attest/pkg/domain-errors"
)

// Service defines the verification operations the HTTP layer needs.
type Service interface {
	Fingerprint(document []byte) fingerprint.Digest
	VerifyDocument(ctx context.Context, document []byte) (*models.VerificationResult, error)
	VerifyFingerprintText(ctx context.Context, text string) (*models.VerificationResult, error)
}

// Handler handles verification endpoints. Upload size is capped by the
// MaxBytes middleware applied at the router; an oversize body surfaces
// here as a read error.
type Handler struct {
	logger   *slog.Logger
	verifier Service
}

// New creates a new verification Handler.
func New(verifier Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, verifier: verifier}
}

// Register registers the verification routes.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api/verification", func(r chi.Router) {
		r.Post("/file", h.handleVerifyFile)
		r.Post("/hash", h.handleVerifyHash)
	})
	r.Post("/api/fingerprint", h.handleFingerprint)
}

type verifyHashRequest struct {
	Fingerprint string `json:"fingerprint"`
}

func (h *Handler) handleVerifyFile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	document, err := readUpload(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	result, err := h.verifier.VerifyDocument(ctx, document)
	if err != nil {
		h.logError(ctx, "document verification failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleVerifyHash(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req verifyHashRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	result, err := h.verifier.VerifyFingerprintText(ctx, req.Fingerprint)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleFingerprint(w http.ResponseWriter, r *http.Request) {
	document, err := readUpload(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	fp := h.verifier.Fingerprint(document)
	shared.WriteJSON(w, http.StatusOK, map[string]string{
		"fingerprint": fp.Hex(true),
		"hex":         fp.Hex(false),
	})
}

// readUpload extracts the uploaded document from a multipart form under
// the "file" field, or falls back to the raw request body.
func readUpload(r *http.Request) ([]byte, error) {
	file, _, err := r.FormFile("file")
	if err == nil {
		defer file.Close()
		document, err := io.ReadAll(file)
		if err != nil {
			return nil, uploadError(err)
		}
		if len(document) == 0 {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "uploaded file is empty")
		}
		return document, nil
	}
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		document, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, uploadError(err)
		}
		if len(document) == 0 {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "request contains no document")
		}
		return document, nil
	}
	return nil, uploadError(err)
}

func uploadError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return dErrors.New(dErrors.CodeInvalidInput, "uploaded file exceeds the size limit")
	}
	return dErrors.Wrap(err, dErrors.CodeInvalidInput, "failed to read uploaded file")
}

func (h *Handler) logError(ctx context.Context, msg string, err error) {
	if h.logger != nil {
		h.logger.ErrorContext(ctx, msg, "error", err)
	}
}
