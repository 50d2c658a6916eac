package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/previa-finance/previa-backend/internal/domain/matching"
	"github.com/previa-finance/previa-backend/internal/infrastructure/storage"
)

// fakeRanker is a scripted Ranker for tests
type fakeRanker struct {
	candidates     []matching.Candidate
	err            error
	calls          int
	lastCandidates []*storage.Transaction
}

func (f *fakeRanker) Rank(_ context.Context, _ *storage.Receipt, candidates []*storage.Transaction) ([]matching.Candidate, error) {
	f.calls++
	f.lastCandidates = candidates
	return f.candidates, f.err
}

func seedReceipt(t *testing.T, repo *storage.MockRepository, userID string) *storage.Receipt {
	t.Helper()
	receipt := &storage.Receipt{
		ID:               "rcpt-1",
		UserID:           userID,
		Merchant:         "Woolworths Metro",
		ReceiptDate:      time.Date(2025, 1, 12, 0, 0, 0, 0, time.UTC),
		TotalCents:       4500,
		ProcessingStatus: storage.ReceiptStatusCompleted,
	}
	require.NoError(t, repo.SaveReceipt(receipt))
	return receipt
}

func seedTransaction(t *testing.T, repo *storage.MockRepository, id, userID string, daysAgo int) *storage.Transaction {
	t.Helper()
	tx := &storage.Transaction{
		ID:          id,
		UserID:      userID,
		Date:        time.Now().UTC().AddDate(0, 0, -daysAgo),
		Description: "WOOLWORTHS 1234",
		AmountCents: -4500,
		Status:      storage.TxStatusUnreconciled,
	}
	require.NoError(t, repo.SaveTransaction(tx))
	return tx
}

func seedSuggestion(t *testing.T, repo *storage.MockRepository, id, userID string, confidence float64) *storage.MatchSuggestion {
	t.Helper()
	sg := &storage.MatchSuggestion{
		ID:            id,
		UserID:        userID,
		ReceiptID:     "rcpt-1",
		TransactionID: "tx-1",
		Confidence:    confidence,
		MatchReason:   "same day, exact amount",
		Status:        storage.SuggestionStatusSuggested,
	}
	require.NoError(t, repo.SaveSuggestion(sg))
	return sg
}

func TestGenerateMatches(t *testing.T) {
	t.Run("persists validated candidates as suggestions", func(t *testing.T) {
		repo := storage.NewMockRepository()
		seedReceipt(t, repo, "user-1")
		seedTransaction(t, repo, "tx-1", "user-1", 1)
		seedTransaction(t, repo, "tx-2", "user-1", 3)

		ranker := &fakeRanker{candidates: []matching.Candidate{
			{TransactionID: "tx-1", Confidence: 0.93, Reason: "same day, exact amount"},
			{TransactionID: "tx-2", Confidence: 0.41, Reason: "amount close, date off"},
		}}
		svc := NewService(repo, ranker, DefaultConfig(), nil)

		result, err := svc.GenerateMatches(context.Background(), "user-1", "rcpt-1")
		require.NoError(t, err)

		assert.Equal(t, 2, result.MatchesFound)
		require.Len(t, result.Matches, 2)
		assert.Equal(t, "tx-1", result.Matches[0].TransactionID)

		pending, err := repo.ListPendingSuggestions("user-1")
		require.NoError(t, err)
		require.Len(t, pending, 2)
		for _, sg := range pending {
			assert.Equal(t, storage.SuggestionStatusSuggested, sg.Status)
			assert.Equal(t, "user-1", sg.UserID)
			assert.GreaterOrEqual(t, sg.Confidence, 0.0)
			assert.LessOrEqual(t, sg.Confidence, 1.0)
		}
	})

	t.Run("receipt not found", func(t *testing.T) {
		repo := storage.NewMockRepository()
		svc := NewService(repo, &fakeRanker{}, DefaultConfig(), nil)

		_, err := svc.GenerateMatches(context.Background(), "user-1", "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("ownership mismatch is forbidden and writes nothing", func(t *testing.T) {
		repo := storage.NewMockRepository()
		seedReceipt(t, repo, "user-1")
		seedTransaction(t, repo, "tx-1", "user-1", 1)

		ranker := &fakeRanker{candidates: []matching.Candidate{
			{TransactionID: "tx-1", Confidence: 0.9, Reason: "match"},
		}}
		svc := NewService(repo, ranker, DefaultConfig(), nil)

		_, err := svc.GenerateMatches(context.Background(), "user-2", "rcpt-1")
		assert.ErrorIs(t, err, ErrForbidden)
		assert.Equal(t, 0, ranker.calls)
		assert.False(t, repo.SaveSuggestionCalled)
	})

	t.Run("empty candidate window short-circuits without the oracle", func(t *testing.T) {
		repo := storage.NewMockRepository()
		seedReceipt(t, repo, "user-1")
		// Only a transaction far outside the 90-day window
		seedTransaction(t, repo, "tx-old", "user-1", 180)

		ranker := &fakeRanker{}
		svc := NewService(repo, ranker, DefaultConfig(), nil)

		result, err := svc.GenerateMatches(context.Background(), "user-1", "rcpt-1")
		require.NoError(t, err)

		assert.Equal(t, 0, result.MatchesFound)
		assert.Empty(t, result.Matches)
		assert.NotEmpty(t, result.Message)
		assert.Equal(t, 0, ranker.calls)
	})

	t.Run("missing oracle credential is unavailable", func(t *testing.T) {
		repo := storage.NewMockRepository()
		seedReceipt(t, repo, "user-1")
		seedTransaction(t, repo, "tx-1", "user-1", 1)

		svc := NewService(repo, nil, DefaultConfig(), nil)

		_, err := svc.GenerateMatches(context.Background(), "user-1", "rcpt-1")
		assert.ErrorIs(t, err, ErrOracleUnavailable)
		assert.False(t, repo.SaveSuggestionCalled)
	})

	t.Run("oracle call failure is unavailable and writes nothing", func(t *testing.T) {
		repo := storage.NewMockRepository()
		seedReceipt(t, repo, "user-1")
		seedTransaction(t, repo, "tx-1", "user-1", 1)

		svc := NewService(repo, &fakeRanker{err: errors.New("status 500")}, DefaultConfig(), nil)

		_, err := svc.GenerateMatches(context.Background(), "user-1", "rcpt-1")
		assert.ErrorIs(t, err, ErrOracleUnavailable)
		assert.False(t, repo.SaveSuggestionCalled)
	})

	t.Run("persistence failures are tolerated and counted", func(t *testing.T) {
		repo := storage.NewMockRepository()
		seedReceipt(t, repo, "user-1")
		seedTransaction(t, repo, "tx-1", "user-1", 1)
		repo.SaveSuggestionErr = errors.New("disk full")

		ranker := &fakeRanker{candidates: []matching.Candidate{
			{TransactionID: "tx-1", Confidence: 0.9, Reason: "match"},
		}}
		svc := NewService(repo, ranker, DefaultConfig(), nil)

		result, err := svc.GenerateMatches(context.Background(), "user-1", "rcpt-1")
		require.NoError(t, err)
		assert.Equal(t, 0, result.MatchesFound)
		assert.Contains(t, result.Message, "could not be persisted")
	})

	t.Run("respects the candidate limit", func(t *testing.T) {
		repo := storage.NewMockRepository()
		seedReceipt(t, repo, "user-1")
		for i := 0; i < 10; i++ {
			seedTransaction(t, repo, "tx-"+string(rune('a'+i)), "user-1", i+1)
		}

		ranker := &fakeRanker{}
		svc := NewService(repo, ranker, Config{LookbackDays: 90, CandidateLimit: 4}, nil)

		_, err := svc.GenerateMatches(context.Background(), "user-1", "rcpt-1")
		require.NoError(t, err)
		assert.Len(t, ranker.lastCandidates, 4)
	})
}

func TestApprove(t *testing.T) {
	t.Run("materializes the approval", func(t *testing.T) {
		repo := storage.NewMockRepository()
		seedReceipt(t, repo, "user-1")
		seedTransaction(t, repo, "tx-1", "user-1", 1)
		seedSuggestion(t, repo, "sg-1", "user-1", 0.92)

		svc := NewService(repo, nil, DefaultConfig(), nil)

		require.NoError(t, svc.Approve("user-1", "sg-1"))

		sg, err := repo.GetSuggestion("sg-1")
		require.NoError(t, err)
		assert.Equal(t, storage.SuggestionStatusApproved, sg.Status)

		matches, err := repo.ListMatches("user-1", 10)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "rcpt-1", matches[0].ReceiptID)
		assert.Equal(t, "tx-1", matches[0].TransactionID)

		tx, err := repo.GetTransaction("tx-1")
		require.NoError(t, err)
		assert.Equal(t, storage.TxStatusReconciled, tx.Status)
	})

	t.Run("double approval conflicts without a second match row", func(t *testing.T) {
		repo := storage.NewMockRepository()
		seedReceipt(t, repo, "user-1")
		seedTransaction(t, repo, "tx-1", "user-1", 1)
		seedSuggestion(t, repo, "sg-1", "user-1", 0.92)

		svc := NewService(repo, nil, DefaultConfig(), nil)

		require.NoError(t, svc.Approve("user-1", "sg-1"))
		assert.ErrorIs(t, svc.Approve("user-1", "sg-1"), ErrConflict)

		matches, err := repo.ListMatches("user-1", 10)
		require.NoError(t, err)
		assert.Len(t, matches, 1)
	})

	t.Run("match insert failure rolls the suggestion back", func(t *testing.T) {
		repo := storage.NewMockRepository()
		seedReceipt(t, repo, "user-1")
		seedTransaction(t, repo, "tx-1", "user-1", 1)
		seedSuggestion(t, repo, "sg-1", "user-1", 0.92)
		repo.SaveMatchErr = errors.New("constraint violated")

		svc := NewService(repo, nil, DefaultConfig(), nil)

		err := svc.Approve("user-1", "sg-1")
		require.Error(t, err)

		// Never approved without a match row
		sg, getErr := repo.GetSuggestion("sg-1")
		require.NoError(t, getErr)
		assert.Equal(t, storage.SuggestionStatusSuggested, sg.Status)

		tx, getErr := repo.GetTransaction("tx-1")
		require.NoError(t, getErr)
		assert.Equal(t, storage.TxStatusUnreconciled, tx.Status)
	})

	t.Run("transaction status update failure is soft", func(t *testing.T) {
		repo := storage.NewMockRepository()
		seedReceipt(t, repo, "user-1")
		seedTransaction(t, repo, "tx-1", "user-1", 1)
		seedSuggestion(t, repo, "sg-1", "user-1", 0.92)
		repo.UpdateStatusErr = errors.New("timeout")

		svc := NewService(repo, nil, DefaultConfig(), nil)

		// The match record is authoritative; the status column is a cache.
		require.NoError(t, svc.Approve("user-1", "sg-1"))

		matches, err := repo.ListMatches("user-1", 10)
		require.NoError(t, err)
		assert.Len(t, matches, 1)
	})

	t.Run("foreign suggestion reads as not found", func(t *testing.T) {
		repo := storage.NewMockRepository()
		seedReceipt(t, repo, "user-1")
		seedTransaction(t, repo, "tx-1", "user-1", 1)
		seedSuggestion(t, repo, "sg-1", "user-1", 0.92)

		svc := NewService(repo, nil, DefaultConfig(), nil)

		assert.ErrorIs(t, svc.Approve("user-2", "sg-1"), ErrNotFound)
		assert.False(t, repo.SaveMatchCalled)
	})
}

func TestReject(t *testing.T) {
	t.Run("marks the suggestion rejected and touches nothing else", func(t *testing.T) {
		repo := storage.NewMockRepository()
		seedReceipt(t, repo, "user-1")
		seedTransaction(t, repo, "tx-1", "user-1", 1)
		seedSuggestion(t, repo, "sg-1", "user-1", 0.92)

		svc := NewService(repo, nil, DefaultConfig(), nil)

		require.NoError(t, svc.Reject("user-1", "sg-1"))

		sg, err := repo.GetSuggestion("sg-1")
		require.NoError(t, err)
		assert.Equal(t, storage.SuggestionStatusRejected, sg.Status)

		tx, err := repo.GetTransaction("tx-1")
		require.NoError(t, err)
		assert.Equal(t, storage.TxStatusUnreconciled, tx.Status)
		assert.False(t, repo.SaveMatchCalled)
	})

	t.Run("rejecting a resolved suggestion conflicts", func(t *testing.T) {
		repo := storage.NewMockRepository()
		seedReceipt(t, repo, "user-1")
		seedTransaction(t, repo, "tx-1", "user-1", 1)
		seedSuggestion(t, repo, "sg-1", "user-1", 0.92)

		svc := NewService(repo, nil, DefaultConfig(), nil)

		require.NoError(t, svc.Approve("user-1", "sg-1"))
		assert.ErrorIs(t, svc.Reject("user-1", "sg-1"), ErrConflict)

		matches, err := repo.ListMatches("user-1", 10)
		require.NoError(t, err)
		assert.Len(t, matches, 1)
	})
}

func TestBulkApprove(t *testing.T) {
	t.Run("approves exactly the set at or above the threshold", func(t *testing.T) {
		repo := storage.NewMockRepository()
		seedReceipt(t, repo, "user-1")
		seedTransaction(t, repo, "tx-1", "user-1", 1)
		seedSuggestion(t, repo, "sg-high", "user-1", 0.92)
		seedSuggestion(t, repo, "sg-edge", "user-1", 0.80)
		seedSuggestion(t, repo, "sg-mid", "user-1", 0.60)

		svc := NewService(repo, nil, DefaultConfig(), nil)

		result, err := svc.BulkApprove("user-1", 0.80)
		require.NoError(t, err)
		assert.Equal(t, 2, result.Approved)
		assert.Equal(t, 0, result.Failed)

		mid, err := repo.GetSuggestion("sg-mid")
		require.NoError(t, err)
		assert.Equal(t, storage.SuggestionStatusSuggested, mid.Status)

		edge, err := repo.GetSuggestion("sg-edge")
		require.NoError(t, err)
		assert.Equal(t, storage.SuggestionStatusApproved, edge.Status)
	})

	t.Run("zero qualifying suggestions is a no-op, not an error", func(t *testing.T) {
		repo := storage.NewMockRepository()
		seedReceipt(t, repo, "user-1")
		seedTransaction(t, repo, "tx-1", "user-1", 1)
		seedSuggestion(t, repo, "sg-low", "user-1", 0.40)

		svc := NewService(repo, nil, DefaultConfig(), nil)

		result, err := svc.BulkApprove("user-1", 0.80)
		require.NoError(t, err)
		assert.Equal(t, BulkResult{}, result)
	})

	t.Run("defaults the threshold to 0.80", func(t *testing.T) {
		repo := storage.NewMockRepository()
		seedReceipt(t, repo, "user-1")
		seedTransaction(t, repo, "tx-1", "user-1", 1)
		seedSuggestion(t, repo, "sg-high", "user-1", 0.85)
		seedSuggestion(t, repo, "sg-mid", "user-1", 0.79)

		svc := NewService(repo, nil, DefaultConfig(), nil)

		result, err := svc.BulkApprove("user-1", 0)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Approved)
	})

	t.Run("item failures are counted, not fatal", func(t *testing.T) {
		repo := storage.NewMockRepository()
		seedReceipt(t, repo, "user-1")
		seedTransaction(t, repo, "tx-1", "user-1", 1)
		seedSuggestion(t, repo, "sg-1", "user-1", 0.95)
		seedSuggestion(t, repo, "sg-2", "user-1", 0.90)
		repo.SaveMatchErr = errors.New("constraint violated")

		svc := NewService(repo, nil, DefaultConfig(), nil)

		result, err := svc.BulkApprove("user-1", 0.80)
		require.NoError(t, err)
		assert.Equal(t, 0, result.Approved)
		assert.Equal(t, 2, result.Failed)
	})
}
