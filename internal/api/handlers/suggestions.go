package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/previa-finance/previa-backend/internal/api/dto"
	"github.com/previa-finance/previa-backend/internal/api/middleware"
	"github.com/previa-finance/previa-backend/internal/application/reconcile"
	"github.com/previa-finance/previa-backend/internal/domain/review"
	"github.com/previa-finance/previa-backend/internal/infrastructure/storage"
)

// SuggestionsHandler handles the review workflow HTTP requests.
type SuggestionsHandler struct {
	*Base
	service *reconcile.Service
	logger  *slog.Logger
}

// NewSuggestionsHandler creates a new suggestions handler.
func NewSuggestionsHandler(repo storage.Repository, service *reconcile.Service, logger *slog.Logger) *SuggestionsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SuggestionsHandler{
		Base:    NewBase(repo),
		service: service,
		logger:  logger,
	}
}

// List handles GET /api/suggestions - pending suggestions with denormalized
// transaction and receipt, confidence descending, plus summary stats.
func (h *SuggestionsHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	pending, err := h.service.ListSuggestions(userID)
	if err != nil {
		h.logger.Error("failed to list suggestions", "error", err)
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	h.WriteJSON(w, http.StatusOK, dto.SuggestionListResponse{
		Suggestions: pending,
		Count:       len(pending),
		Stats:       review.ComputeStats(pending),
	})
}

// Stats handles GET /api/suggestions/stats - summary stats only.
func (h *SuggestionsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	pending, err := h.service.ListSuggestions(userID)
	if err != nil {
		h.logger.Error("failed to list suggestions", "error", err)
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	h.WriteJSON(w, http.StatusOK, review.ComputeStats(pending))
}

// Approve handles POST /api/suggestions/{id}/approve.
func (h *SuggestionsHandler) Approve(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	suggestionID := chi.URLParam(r, "id")

	if err := h.service.Approve(userID, suggestionID); err != nil {
		h.writeResolveError(w, suggestionID, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"status":  storage.SuggestionStatusApproved,
	})
}

// Reject handles POST /api/suggestions/{id}/reject.
func (h *SuggestionsHandler) Reject(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	suggestionID := chi.URLParam(r, "id")

	if err := h.service.Reject(userID, suggestionID); err != nil {
		h.writeResolveError(w, suggestionID, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"status":  storage.SuggestionStatusRejected,
	})
}

// BulkApprove handles POST /api/suggestions/bulk-approve - approves every
// pending suggestion at or above the threshold. Item failures are counted,
// not fatal.
func (h *SuggestionsHandler) BulkApprove(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	var req dto.BulkApproveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid JSON body"))
		return
	}
	if req.Threshold < 0 || req.Threshold > 1 {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError("threshold must be between 0 and 1"))
		return
	}

	result, err := h.service.BulkApprove(userID, req.Threshold)
	if err != nil {
		h.logger.Error("bulk approve failed", "error", err)
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	h.WriteJSON(w, http.StatusOK, dto.BulkApproveResponse{
		Approved: result.Approved,
		Failed:   result.Failed,
	})
}

func (h *SuggestionsHandler) writeResolveError(w http.ResponseWriter, suggestionID string, err error) {
	switch {
	case errors.Is(err, reconcile.ErrNotFound):
		h.WriteError(w, http.StatusNotFound, dto.NotFoundError("suggestion"))
	case errors.Is(err, reconcile.ErrConflict):
		h.WriteError(w, http.StatusConflict, dto.ConflictError("suggestion already resolved"))
	default:
		h.logger.Error("failed to resolve suggestion", "suggestion_id", suggestionID, "error", err)
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
	}
}
