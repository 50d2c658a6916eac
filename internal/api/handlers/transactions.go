package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/previa-finance/previa-backend/internal/api/dto"
	"github.com/previa-finance/previa-backend/internal/api/middleware"
	"github.com/previa-finance/previa-backend/internal/infrastructure/storage"
)

// TransactionsHandler handles bank-transaction HTTP requests.
type TransactionsHandler struct {
	*Base
	logger *slog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(repo storage.Repository, logger *slog.Logger) *TransactionsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TransactionsHandler{
		Base:   NewBase(repo),
		logger: logger,
	}
}

// List handles GET /api/transactions - returns the user's transactions.
func (h *TransactionsHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	filters := storage.TransactionFilters{
		Status:   r.URL.Query().Get("status"),
		DaysBack: ParseIntParam(r, "days_back", 0),
		Limit:    ParseIntParam(r, "limit", 50),
	}

	transactions, err := h.repo.ListTransactions(userID, filters)
	if err != nil {
		h.logger.Error("failed to list transactions", "error", err)
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	h.WriteJSON(w, http.StatusOK, dto.TransactionListResponse{
		Transactions: transactions,
		Count:        len(transactions),
	})
}

// Create handles POST /api/transactions - imports one statement row.
func (h *TransactionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	var req dto.CreateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid JSON body"))
		return
	}
	if req.Description == "" {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError("description is required"))
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError("date must be YYYY-MM-DD"))
		return
	}

	tx := &storage.Transaction{
		ID:          uuid.NewString(),
		UserID:      userID,
		Date:        date,
		Description: req.Description,
		AmountCents: req.AmountCents,
		Status:      storage.TxStatusUnreconciled,
		Category:    req.Category,
		CreatedAt:   time.Now().UTC(),
	}

	if err := h.repo.SaveTransaction(tx); err != nil {
		h.logger.Error("failed to save transaction", "error", err)
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	h.WriteJSON(w, http.StatusCreated, tx)
}

// Update handles PATCH /api/transactions/{id} - manual category or
// description edits. Status is never editable here; reconciliation owns it.
func (h *TransactionsHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	txID := chi.URLParam(r, "id")

	var req dto.UpdateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid JSON body"))
		return
	}
	if req.Category == nil && req.Description == nil {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError("nothing to update"))
		return
	}

	if err := h.repo.UpdateTransactionDetails(txID, userID, req.Category, req.Description); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.WriteError(w, http.StatusNotFound, dto.NotFoundError("transaction"))
			return
		}
		h.logger.Error("failed to update transaction", "transaction_id", txID, "error", err)
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	updated, err := h.repo.GetTransaction(txID)
	if err != nil {
		h.logger.Error("failed to reload transaction", "transaction_id", txID, "error", err)
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	h.WriteJSON(w, http.StatusOK, updated)
}
