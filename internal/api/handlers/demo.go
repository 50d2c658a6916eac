package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/previa-finance/previa-backend/internal/api/dto"
	"github.com/previa-finance/previa-backend/internal/api/middleware"
	"github.com/previa-finance/previa-backend/internal/infrastructure/storage"
	"github.com/previa-finance/previa-backend/internal/ratelimit"
)

// Rate-limit action names. Seeding and deletion are throttled separately.
const (
	ActionSeedDemoData   = "seed_demo_data"
	ActionDeleteDemoData = "delete_demo_data"
)

// DemoHandler seeds and deletes sample financial data for a user.
type DemoHandler struct {
	*Base
	limiter *ratelimit.Limiter
	logger  *slog.Logger
}

// NewDemoHandler creates a new demo-data handler.
func NewDemoHandler(repo storage.Repository, limiter *ratelimit.Limiter, logger *slog.Logger) *DemoHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DemoHandler{
		Base:    NewBase(repo),
		limiter: limiter,
		logger:  logger,
	}
}

// demoReceipt pairs a seeded receipt with the statement row it should match.
type demoReceipt struct {
	merchant    string
	daysAgo     int
	totalCents  int64
	taxCents    int64
	description string
}

// demoSet is built so some pairs match cleanly, one has a small amount
// variance, and some transactions have no receipt at all.
var demoSet = []demoReceipt{
	{"Woolworths Metro", 3, 4520, 411, "WOOLWORTHS 1234 SYDNEY"},
	{"Coffee Supreme", 5, 1250, 114, "COFFEE SUPREME PTY LTD"},
	{"Bunnings Warehouse", 12, 18799, 1709, "BUNNINGS 302000 ALEXANDRIA"},
	{"Chemist Warehouse", 20, 3465, 315, "CHEMIST WHS SURRY HILLS"},
	{"Uber Eats", 1, 5630, 0, "UBER *EATS"},
}

var demoUnmatchedTransactions = []struct {
	daysAgo     int
	amountCents int64
	description string
}{
	{2, -899, "SPOTIFY P2EBD8"},
	{8, -15000, "TRANSFER TO SAVINGS"},
	{15, -6420, "AMAZON MKTP AU"},
}

// Seed handles POST /api/demo-data - populates the user's account with
// sample receipts and transactions.
func (h *DemoHandler) Seed(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	if !h.allow(w, userID, ActionSeedDemoData) {
		return
	}

	now := time.Now().UTC()
	receipts := 0
	transactions := 0

	for _, d := range demoSet {
		date := now.AddDate(0, 0, -d.daysAgo)

		receipt := &storage.Receipt{
			ID:               uuid.NewString(),
			UserID:           userID,
			Merchant:         d.merchant,
			ReceiptDate:      date,
			TotalCents:       d.totalCents,
			TaxCents:         d.taxCents,
			Confidence:       0.95,
			ProcessingStatus: storage.ReceiptStatusCompleted,
			CreatedAt:        now,
		}
		if err := h.repo.SaveReceipt(receipt); err != nil {
			h.logger.Error("failed to seed receipt", "error", err)
			h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
			return
		}
		receipts++

		tx := &storage.Transaction{
			ID:          uuid.NewString(),
			UserID:      userID,
			Date:        date,
			Description: d.description,
			AmountCents: -d.totalCents,
			Status:      storage.TxStatusUnreconciled,
			CreatedAt:   now,
		}
		if err := h.repo.SaveTransaction(tx); err != nil {
			h.logger.Error("failed to seed transaction", "error", err)
			h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
			return
		}
		transactions++
	}

	for _, d := range demoUnmatchedTransactions {
		tx := &storage.Transaction{
			ID:          uuid.NewString(),
			UserID:      userID,
			Date:        now.AddDate(0, 0, -d.daysAgo),
			Description: d.description,
			AmountCents: d.amountCents,
			Status:      storage.TxStatusUnreconciled,
			CreatedAt:   now,
		}
		if err := h.repo.SaveTransaction(tx); err != nil {
			h.logger.Error("failed to seed transaction", "error", err)
			h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
			return
		}
		transactions++
	}

	h.WriteJSON(w, http.StatusCreated, dto.SeedResponse{
		ReceiptsCreated:     receipts,
		TransactionsCreated: transactions,
	})
}

// Delete handles DELETE /api/demo-data - removes all of the user's financial
// rows.
func (h *DemoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	if !h.allow(w, userID, ActionDeleteDemoData) {
		return
	}

	if err := h.repo.DeleteUserData(userID); err != nil {
		h.logger.Error("failed to delete user data", "error", err)
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}

// allow checks the rate limit and writes the 429 itself when exceeded.
func (h *DemoHandler) allow(w http.ResponseWriter, userID, action string) bool {
	if h.limiter == nil {
		return true
	}
	err := h.limiter.Allow(userID, action)
	if err == nil {
		return true
	}

	var limited *ratelimit.ErrLimited
	if errors.As(err, &limited) {
		msg := fmt.Sprintf("rate limit exceeded, retry in %s", limited.RetryAfter.Round(time.Minute))
		h.WriteError(w, http.StatusTooManyRequests, dto.RateLimitedError(msg))
		return false
	}

	h.logger.Error("rate limit check failed", "action", action, "error", err)
	h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
	return false
}
