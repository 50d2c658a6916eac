package dto

import (
	"time"

	"github.com/previa-finance/previa-backend/internal/application/reconcile"
	"github.com/previa-finance/previa-backend/internal/domain/review"
	"github.com/previa-finance/previa-backend/internal/infrastructure/storage"
)

// HealthResponse is returned by the health check endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// NewHealthResponse creates a health response with current timestamp.
func NewHealthResponse() HealthResponse {
	return HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// MatchRunResponse is returned by POST /api/receipts/{id}/match
type MatchRunResponse struct {
	Success      bool             `json:"success"`
	ReceiptID    string           `json:"receipt_id"`
	MatchesFound int              `json:"matches_found"`
	Matches      []MatchCandidate `json:"matches"`
	Message      string           `json:"message,omitempty"`
}

// MatchCandidate is one ranked candidate in a match run response
type MatchCandidate struct {
	TransactionID string  `json:"transaction_id"`
	Confidence    float64 `json:"confidence"`
	Reason        string  `json:"reason"`
}

// NewMatchRunResponse converts a service result
func NewMatchRunResponse(result *reconcile.MatchRunResult) MatchRunResponse {
	resp := MatchRunResponse{
		Success:      true,
		ReceiptID:    result.ReceiptID,
		MatchesFound: result.MatchesFound,
		Matches:      make([]MatchCandidate, 0, len(result.Matches)),
		Message:      result.Message,
	}
	for _, m := range result.Matches {
		resp.Matches = append(resp.Matches, MatchCandidate{
			TransactionID: m.TransactionID,
			Confidence:    m.Confidence,
			Reason:        m.Reason,
		})
	}
	return resp
}

// SuggestionListResponse is returned by GET /api/suggestions
type SuggestionListResponse struct {
	Suggestions []*storage.PendingSuggestion `json:"suggestions"`
	Count       int                          `json:"count"`
	Stats       review.Stats                 `json:"stats"`
}

// BulkApproveResponse reports a bulk approval in aggregate
type BulkApproveResponse struct {
	Approved int    `json:"approved"`
	Failed   int    `json:"failed"`
	Message  string `json:"message,omitempty"`
}

// ReceiptListResponse is returned by GET /api/receipts
type ReceiptListResponse struct {
	Receipts []*storage.Receipt `json:"receipts"`
	Count    int                `json:"count"`
}

// TransactionListResponse is returned by GET /api/transactions
type TransactionListResponse struct {
	Transactions []*storage.Transaction `json:"transactions"`
	Count        int                    `json:"count"`
}

// SeedResponse reports demo-data seeding
type SeedResponse struct {
	ReceiptsCreated     int `json:"receipts_created"`
	TransactionsCreated int `json:"transactions_created"`
}
