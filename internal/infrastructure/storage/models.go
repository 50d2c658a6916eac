package storage

import (
	"encoding/json"
	"time"
)

// Receipt processing statuses
const (
	ReceiptStatusPending    = "pending"
	ReceiptStatusProcessing = "processing"
	ReceiptStatusCompleted  = "completed"
	ReceiptStatusFailed     = "failed"
)

// Transaction reconciliation statuses
const (
	TxStatusUnreconciled = "unreconciled"
	TxStatusMatched      = "matched"
	TxStatusApproved     = "approved"
	TxStatusRejected     = "rejected"
	TxStatusReconciled   = "reconciled"
)

// Match suggestion lifecycle statuses. Transitions are one-way:
// suggested -> approved or suggested -> rejected, both terminal.
const (
	SuggestionStatusSuggested = "suggested"
	SuggestionStatusApproved  = "approved"
	SuggestionStatusRejected  = "rejected"
)

// Receipt is one uploaded, OCR-processed proof of purchase.
// Amounts are integer cents.
type Receipt struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	Merchant         string    `json:"merchant"`
	ReceiptDate      time.Time `json:"receipt_date"`
	TotalCents       int64     `json:"total_cents"`
	TaxCents         int64     `json:"tax_cents"`
	Confidence       float64   `json:"confidence"`
	ProcessingStatus string    `json:"processing_status"`
	CreatedAt        time.Time `json:"created_at"`

	// Structured OCR payload stored as JSON
	OCRData string `json:"ocr_data,omitempty"`
}

// OCRPayload is the structured extraction result produced by the external
// OCR pipeline. Each section carries its own confidence.
type OCRPayload struct {
	Merchant    OCRSection `json:"merchant"`
	Transaction OCRSection `json:"transaction"`
	LineItems   OCRSection `json:"line_items"`
	Payment     OCRSection `json:"payment"`
	Tax         OCRSection `json:"tax"`
}

// OCRSection is one extracted sub-object with its confidence score.
type OCRSection struct {
	Fields     map[string]any `json:"fields,omitempty"`
	Confidence float64        `json:"confidence"`
}

// SetOCRPayload serializes the OCR payload to JSON for storage
func (r *Receipt) SetOCRPayload(p *OCRPayload) error {
	if p == nil {
		r.OCRData = ""
		return nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	r.OCRData = string(data)
	return nil
}

// GetOCRPayload deserializes the OCR payload from JSON
func (r *Receipt) GetOCRPayload() (*OCRPayload, error) {
	if r.OCRData == "" {
		return nil, nil
	}
	var p OCRPayload
	if err := json.Unmarshal([]byte(r.OCRData), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Transaction is one bank-ledger line. AmountCents is signed:
// negative means a debit.
type Transaction struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Date        time.Time `json:"date"`
	Description string    `json:"description"`
	AmountCents int64     `json:"amount_cents"`
	Status      string    `json:"status"`
	Category    string    `json:"category,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// MatchSuggestion is a scored candidate pairing of one receipt to one
// transaction. Rows are never deleted; they form the audit trail.
type MatchSuggestion struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	ReceiptID     string    `json:"receipt_id"`
	TransactionID string    `json:"transaction_id"`
	Confidence    float64   `json:"confidence_score"`
	MatchReason   string    `json:"match_reason"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

// PendingSuggestion is a suggestion with its transaction and receipt
// denormalized for display.
type PendingSuggestion struct {
	MatchSuggestion
	Transaction *Transaction `json:"transaction"`
	Receipt     *Receipt     `json:"receipt"`
}

// ReconciliationMatch is the durable record of an accepted pairing.
// Insert-only; the transaction's status column is a cache of this table.
type ReconciliationMatch struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	ReceiptID     string    `json:"receipt_id"`
	TransactionID string    `json:"transaction_id"`
	MatchedAt     time.Time `json:"matched_at"`
}

// OCRUpdate carries the fields the OCR callback is allowed to set.
type OCRUpdate struct {
	Merchant    string
	ReceiptDate time.Time
	TotalCents  int64
	TaxCents    int64
	OCRData     string
	Confidence  float64
	Status      string
}

// TransactionFilters defines filters for listing transactions
type TransactionFilters struct {
	Status   string // empty = all
	DaysBack int    // 0 = all time
	Limit    int    // 0 = default 50
}
