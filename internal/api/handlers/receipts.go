package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/previa-finance/previa-backend/internal/api/dto"
	"github.com/previa-finance/previa-backend/internal/api/middleware"
	"github.com/previa-finance/previa-backend/internal/application/reconcile"
	"github.com/previa-finance/previa-backend/internal/infrastructure/storage"
	"github.com/previa-finance/previa-backend/internal/webhook"
)

// ReceiptsHandler handles receipt-related HTTP requests.
type ReceiptsHandler struct {
	*Base
	service  *reconcile.Service
	notifier *webhook.Notifier
	logger   *slog.Logger
}

// NewReceiptsHandler creates a new receipts handler. The notifier may be nil
// when webhooks are disabled.
func NewReceiptsHandler(repo storage.Repository, service *reconcile.Service, notifier *webhook.Notifier, logger *slog.Logger) *ReceiptsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReceiptsHandler{
		Base:     NewBase(repo),
		service:  service,
		notifier: notifier,
		logger:   logger,
	}
}

// Create handles POST /api/receipts - registers an uploaded receipt in the
// pending state and notifies the OCR pipeline.
func (h *ReceiptsHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	var req dto.CreateReceiptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid JSON body"))
		return
	}

	receipt := &storage.Receipt{
		ID:               uuid.NewString(),
		UserID:           userID,
		Merchant:         req.Merchant,
		TotalCents:       req.TotalCents,
		ProcessingStatus: storage.ReceiptStatusPending,
		CreatedAt:        time.Now().UTC(),
	}
	if req.ReceiptDate != "" {
		parsed, err := time.Parse("2006-01-02", req.ReceiptDate)
		if err != nil {
			h.WriteError(w, http.StatusBadRequest, dto.ValidationError("receipt_date must be YYYY-MM-DD"))
			return
		}
		receipt.ReceiptDate = parsed
	}

	if err := h.repo.SaveReceipt(receipt); err != nil {
		h.logger.Error("failed to save receipt", "error", err)
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	// Delivery is best effort; a dead webhook endpoint must not fail the
	// upload.
	if h.notifier != nil {
		go func(userID, receiptID string) {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			if err := h.notifier.NotifyReceiptUploaded(ctx, userID, receiptID); err != nil {
				h.logger.Warn("webhook delivery failed", "receipt_id", receiptID, "error", err)
			}
		}(userID, receipt.ID)
	}

	h.WriteJSON(w, http.StatusCreated, receipt)
}

// List handles GET /api/receipts - returns the user's receipts, newest first.
func (h *ReceiptsHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	limit := ParseIntParam(r, "limit", 50)

	receipts, err := h.repo.ListReceipts(userID, limit)
	if err != nil {
		h.logger.Error("failed to list receipts", "error", err)
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	h.WriteJSON(w, http.StatusOK, dto.ReceiptListResponse{
		Receipts: receipts,
		Count:    len(receipts),
	})
}

// Get handles GET /api/receipts/{id} - returns a single receipt by ID.
func (h *ReceiptsHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	receiptID := chi.URLParam(r, "id")

	receipt, err := h.repo.GetReceipt(receiptID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.WriteError(w, http.StatusNotFound, dto.NotFoundError("receipt"))
			return
		}
		h.logger.Error("failed to get receipt", "error", err)
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}
	// A foreign receipt reads as missing
	if receipt.UserID != userID {
		h.WriteError(w, http.StatusNotFound, dto.NotFoundError("receipt"))
		return
	}

	h.WriteJSON(w, http.StatusOK, receipt)
}

// OCRCallback handles POST /api/receipts/{id}/ocr - records the extraction
// result posted back by the OCR pipeline.
func (h *ReceiptsHandler) OCRCallback(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	receiptID := chi.URLParam(r, "id")

	var req dto.OCRCallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid JSON body"))
		return
	}

	receipt, err := h.repo.GetReceipt(receiptID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.WriteError(w, http.StatusNotFound, dto.NotFoundError("receipt"))
			return
		}
		h.logger.Error("failed to get receipt", "error", err)
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}
	if receipt.UserID != userID {
		h.WriteError(w, http.StatusNotFound, dto.NotFoundError("receipt"))
		return
	}

	update := storage.OCRUpdate{
		Merchant:   req.Merchant,
		TotalCents: req.TotalCents,
		TaxCents:   req.TaxCents,
		OCRData:    req.OCRData,
		Confidence: req.Confidence,
		Status:     storage.ReceiptStatusCompleted,
	}
	if !req.Success {
		update.Status = storage.ReceiptStatusFailed
	}
	if req.ReceiptDate != "" {
		parsed, err := time.Parse("2006-01-02", req.ReceiptDate)
		if err != nil {
			h.WriteError(w, http.StatusBadRequest, dto.ValidationError("receipt_date must be YYYY-MM-DD"))
			return
		}
		update.ReceiptDate = parsed
	}

	if err := h.repo.ApplyOCRResult(receiptID, update); err != nil {
		h.logger.Error("failed to apply OCR result", "receipt_id", receiptID, "error", err)
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	updated, err := h.repo.GetReceipt(receiptID)
	if err != nil {
		h.logger.Error("failed to reload receipt", "receipt_id", receiptID, "error", err)
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	h.WriteJSON(w, http.StatusOK, updated)
}

// Match handles POST /api/receipts/{id}/match - runs the match generator for
// one receipt and returns the persisted suggestions.
func (h *ReceiptsHandler) Match(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	receiptID := chi.URLParam(r, "id")

	result, err := h.service.GenerateMatches(r.Context(), userID, receiptID)
	if err != nil {
		switch {
		case errors.Is(err, reconcile.ErrNotFound):
			h.WriteError(w, http.StatusNotFound, dto.NotFoundError("receipt"))
		case errors.Is(err, reconcile.ErrForbidden):
			h.WriteError(w, http.StatusForbidden, dto.ForbiddenError())
		case errors.Is(err, reconcile.ErrOracleUnavailable):
			h.WriteError(w, http.StatusServiceUnavailable, dto.UnavailableError("matching service unavailable"))
		default:
			h.logger.Error("match run failed", "receipt_id", receiptID, "error", err)
			h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		}
		return
	}

	h.WriteJSON(w, http.StatusOK, dto.NewMatchRunResponse(result))
}
