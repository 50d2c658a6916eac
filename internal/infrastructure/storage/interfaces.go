package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("storage: not found")

// ErrConflict is returned when a conditional status transition matched no
// row, i.e. the suggestion was already resolved.
var ErrConflict = errors.New("storage: conflicting status transition")

// Repository defines the complete storage interface.
// This interface allows swapping implementations (SQLite, PostgreSQL, etc.)
// and makes testing with mocks straightforward.
type Repository interface {
	ReceiptRepository
	TransactionRepository
	SuggestionRepository
	MatchRepository
	RateLimitRepository
	Close() error
}

// ReceiptRepository handles receipt rows
type ReceiptRepository interface {
	// SaveReceipt inserts or replaces a receipt
	SaveReceipt(r *Receipt) error

	// GetReceipt retrieves a receipt by id; ErrNotFound if missing
	GetReceipt(id string) (*Receipt, error)

	// ListReceipts returns a user's receipts, newest first
	ListReceipts(userID string, limit int) ([]*Receipt, error)

	// ApplyOCRResult records the OCR callback payload on a receipt
	ApplyOCRResult(id string, update OCRUpdate) error
}

// TransactionRepository handles bank-ledger rows
type TransactionRepository interface {
	// SaveTransaction inserts or replaces a transaction
	SaveTransaction(t *Transaction) error

	// GetTransaction retrieves a transaction by id; ErrNotFound if missing
	GetTransaction(id string) (*Transaction, error)

	// ListTransactions returns a user's transactions matching the filters,
	// newest first
	ListTransactions(userID string, f TransactionFilters) ([]*Transaction, error)

	// ListUnreconciled returns up to limit unreconciled transactions for the
	// user dated on or after since, newest first
	ListUnreconciled(userID string, since time.Time, limit int) ([]*Transaction, error)

	// UpdateTransactionStatus sets the status of the user's transaction;
	// ErrNotFound if no row matched
	UpdateTransactionStatus(id, userID, status string) error

	// UpdateTransactionDetails updates category and/or description. Nil
	// pointers leave the column unchanged.
	UpdateTransactionDetails(id, userID string, category, description *string) error
}

// SuggestionRepository handles AI match suggestion rows
type SuggestionRepository interface {
	// SaveSuggestion inserts a suggestion row
	SaveSuggestion(s *MatchSuggestion) error

	// GetSuggestion retrieves a suggestion by id; ErrNotFound if missing
	GetSuggestion(id string) (*MatchSuggestion, error)

	// ListPendingSuggestions returns the user's suggested-status rows with
	// denormalized transaction and receipt, confidence descending
	ListPendingSuggestions(userID string) ([]*PendingSuggestion, error)

	// TransitionSuggestion conditionally moves a suggestion from one status
	// to another. Returns ErrConflict when the row is not currently in the
	// from status (or does not belong to the user). This is the compare-and-
	// swap that makes double resolution safe regardless of UI disabling.
	TransitionSuggestion(id, userID, from, to string) error
}

// MatchRepository handles durable reconciliation matches
type MatchRepository interface {
	// SaveMatch inserts a reconciliation match row
	SaveMatch(m *ReconciliationMatch) error

	// ListMatches returns a user's matches, newest first
	ListMatches(userID string, limit int) ([]*ReconciliationMatch, error)

	// CountMatchesForTransaction counts active matches referencing the
	// transaction
	CountMatchesForTransaction(transactionID string) (int, error)

	// DeleteUserData removes all of a user's financial rows (demo-data reset)
	DeleteUserData(userID string) error
}

// RateLimitRepository is a store-backed fixed-window counter. Serverless-style
// instances do not share memory, so throttling state lives in the database.
type RateLimitRepository interface {
	// IncrementRateCounter bumps and returns the counter for
	// (userID, action, windowStart)
	IncrementRateCounter(userID, action string, windowStart time.Time) (int, error)
}
