// Package reconcile orchestrates the receipt-to-transaction reconciliation
// core: generating AI match suggestions for a receipt, adjudicating them,
// and materializing approvals into durable reconciliation matches.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/previa-finance/previa-backend/internal/domain/matching"
	"github.com/previa-finance/previa-backend/internal/infrastructure/storage"
)

// Sentinel errors for the service's failure taxonomy. Handlers map these to
// HTTP statuses.
var (
	// ErrNotFound covers both a genuinely missing resource and an
	// ownership mismatch, so foreign resources never leak their existence.
	ErrNotFound = errors.New("reconcile: not found")

	// ErrForbidden is returned when a receipt exists but belongs to
	// another user.
	ErrForbidden = errors.New("reconcile: forbidden")

	// ErrConflict is returned when acting on a suggestion that is no
	// longer in the suggested state.
	ErrConflict = errors.New("reconcile: suggestion already resolved")

	// ErrOracleUnavailable is returned when the ranking oracle is
	// unconfigured or its call fails. No partial suggestion state is
	// written in either case.
	ErrOracleUnavailable = errors.New("reconcile: ranking oracle unavailable")
)

// Ranker scores candidate transactions against a receipt
type Ranker interface {
	Rank(ctx context.Context, receipt *storage.Receipt, candidates []*storage.Transaction) ([]matching.Candidate, error)
}

// Config holds matcher windowing settings
type Config struct {
	LookbackDays   int
	CandidateLimit int
}

// DefaultConfig returns the standard 90-day / 100-candidate window
func DefaultConfig() Config {
	return Config{
		LookbackDays:   matching.DefaultLookbackDays,
		CandidateLimit: matching.DefaultCandidateLimit,
	}
}

// MatchRunResult is the outcome of one matching run for a receipt
type MatchRunResult struct {
	ReceiptID    string               `json:"receipt_id"`
	MatchesFound int                  `json:"matches_found"`
	Matches      []matching.Candidate `json:"matches"`
	Message      string               `json:"message,omitempty"`
}

// BulkResult reports a bulk approval in aggregate
type BulkResult struct {
	Approved int `json:"approved"`
	Failed   int `json:"failed"`
}

// DefaultBulkThreshold is the confidence floor for bulk approval
const DefaultBulkThreshold = 0.80

// Service implements the reconciliation core over a repository and a
// ranking oracle. Ranker may be nil when no oracle credential is
// configured; matching then fails with ErrOracleUnavailable.
type Service struct {
	repo   storage.Repository
	ranker Ranker
	config Config
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a reconciliation service
func NewService(repo storage.Repository, ranker Ranker, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = matching.DefaultLookbackDays
	}
	if cfg.CandidateLimit <= 0 {
		cfg.CandidateLimit = matching.DefaultCandidateLimit
	}
	return &Service{
		repo:   repo,
		ranker: ranker,
		config: cfg,
		logger: logger,
		now:    time.Now,
	}
}

// GenerateMatches runs the match generator for one receipt: load the
// receipt, window the user's unreconciled transactions, delegate ranking to
// the oracle, and persist up to 5 validated suggestions.
//
// Re-running matching for a receipt appends new suggestion rows; callers
// must tolerate duplicates.
func (s *Service) GenerateMatches(ctx context.Context, userID, receiptID string) (*MatchRunResult, error) {
	receipt, err := s.repo.GetReceipt(receiptID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading receipt: %w", err)
	}

	// Ownership check at the data-access boundary; the client-supplied id
	// is never trusted on its own.
	if receipt.UserID != userID {
		return nil, ErrForbidden
	}

	since := s.now().UTC().AddDate(0, 0, -s.config.LookbackDays)
	candidates, err := s.repo.ListUnreconciled(userID, since, s.config.CandidateLimit)
	if err != nil {
		return nil, fmt.Errorf("loading candidate transactions: %w", err)
	}

	result := &MatchRunResult{
		ReceiptID: receiptID,
		Matches:   []matching.Candidate{},
	}

	// Short-circuit before touching the oracle
	if len(candidates) == 0 {
		result.Message = fmt.Sprintf("no unreconciled transactions in the last %d days", s.config.LookbackDays)
		return result, nil
	}

	if s.ranker == nil {
		return nil, ErrOracleUnavailable
	}

	ranked, err := s.ranker.Rank(ctx, receipt, candidates)
	if err != nil {
		s.logger.Error("ranking run failed", "receipt_id", receiptID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrOracleUnavailable, err)
	}

	// Persist per candidate; individual failures are tolerated (partial
	// success) but logged and counted.
	failed := 0
	for _, candidate := range ranked {
		suggestion := &storage.MatchSuggestion{
			ID:            uuid.NewString(),
			UserID:        userID,
			ReceiptID:     receiptID,
			TransactionID: candidate.TransactionID,
			Confidence:    candidate.Confidence,
			MatchReason:   candidate.Reason,
			Status:        storage.SuggestionStatusSuggested,
		}
		if err := s.repo.SaveSuggestion(suggestion); err != nil {
			failed++
			s.logger.Warn("failed to persist suggestion",
				"receipt_id", receiptID,
				"transaction_id", candidate.TransactionID,
				"error", err)
			continue
		}
		result.Matches = append(result.Matches, candidate)
	}

	result.MatchesFound = len(result.Matches)
	if failed > 0 {
		result.Message = fmt.Sprintf("%d suggestion(s) could not be persisted", failed)
	}

	s.logger.Info("matching run complete",
		"receipt_id", receiptID,
		"candidates", len(candidates),
		"matches", result.MatchesFound,
		"persist_failures", failed)

	return result, nil
}

// ListSuggestions returns the user's pending suggestions, each with its
// denormalized transaction and receipt, sorted by confidence descending.
func (s *Service) ListSuggestions(userID string) ([]*storage.PendingSuggestion, error) {
	return s.repo.ListPendingSuggestions(userID)
}

// Approve resolves a suggestion as correct and materializes it: the
// suggestion becomes approved, a reconciliation match row is written, and
// the transaction's status is updated.
//
// Failure policy is deliberately asymmetric: a failed match insert rolls
// the suggestion back to suggested and fails the call, while a failed
// transaction status update only logs a warning. The match table is the
// source of truth; the status column is a cache of it.
func (s *Service) Approve(userID, suggestionID string) error {
	suggestion, err := s.loadOwnSuggestion(userID, suggestionID)
	if err != nil {
		return err
	}

	// Re-validate via compare-and-swap; a concurrent double approval loses
	// here regardless of what the UI showed.
	err = s.repo.TransitionSuggestion(suggestionID, userID,
		storage.SuggestionStatusSuggested, storage.SuggestionStatusApproved)
	if errors.Is(err, storage.ErrConflict) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("approving suggestion: %w", err)
	}

	match := &storage.ReconciliationMatch{
		ID:            uuid.NewString(),
		UserID:        userID,
		ReceiptID:     suggestion.ReceiptID,
		TransactionID: suggestion.TransactionID,
		MatchedAt:     s.now().UTC(),
	}
	if err := s.repo.SaveMatch(match); err != nil {
		// An approval must never exist without its match row; revert.
		if rbErr := s.repo.TransitionSuggestion(suggestionID, userID,
			storage.SuggestionStatusApproved, storage.SuggestionStatusSuggested); rbErr != nil {
			s.logger.Error("failed to roll back suggestion after match insert failure",
				"suggestion_id", suggestionID, "error", rbErr)
		}
		return fmt.Errorf("recording reconciliation match: %w", err)
	}

	// Best effort only: the match row above is authoritative.
	if err := s.repo.UpdateTransactionStatus(suggestion.TransactionID, userID, storage.TxStatusReconciled); err != nil {
		s.logger.Warn("failed to update transaction status after approval",
			"suggestion_id", suggestionID,
			"transaction_id", suggestion.TransactionID,
			"error", err)
	}

	return nil
}

// Reject resolves a suggestion as incorrect. Neither the transaction nor
// the match table is touched.
func (s *Service) Reject(userID, suggestionID string) error {
	if _, err := s.loadOwnSuggestion(userID, suggestionID); err != nil {
		return err
	}

	err := s.repo.TransitionSuggestion(suggestionID, userID,
		storage.SuggestionStatusSuggested, storage.SuggestionStatusRejected)
	if errors.Is(err, storage.ErrConflict) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("rejecting suggestion: %w", err)
	}
	return nil
}

// BulkApprove approves every pending suggestion at or above the confidence
// threshold, each through the same materialization path as a single
// approval. Individual failures are reported in aggregate, never aborting
// the batch. Zero qualifying suggestions is a no-op result, not an error.
func (s *Service) BulkApprove(userID string, threshold float64) (BulkResult, error) {
	if threshold <= 0 {
		threshold = DefaultBulkThreshold
	}

	pending, err := s.repo.ListPendingSuggestions(userID)
	if err != nil {
		return BulkResult{}, fmt.Errorf("listing suggestions: %w", err)
	}

	var result BulkResult
	for _, suggestion := range pending {
		if suggestion.Confidence < threshold {
			continue
		}
		if err := s.Approve(userID, suggestion.ID); err != nil {
			result.Failed++
			s.logger.Warn("bulk approval item failed",
				"suggestion_id", suggestion.ID, "error", err)
			continue
		}
		result.Approved++
	}

	return result, nil
}

// loadOwnSuggestion fetches a suggestion, hiding foreign and missing rows
// behind the same error, and fast-fails on already-resolved rows.
func (s *Service) loadOwnSuggestion(userID, suggestionID string) (*storage.MatchSuggestion, error) {
	suggestion, err := s.repo.GetSuggestion(suggestionID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading suggestion: %w", err)
	}
	if suggestion.UserID != userID {
		return nil, ErrNotFound
	}
	if suggestion.Status != storage.SuggestionStatusSuggested {
		return nil, ErrConflict
	}
	return suggestion, nil
}
