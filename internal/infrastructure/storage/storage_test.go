package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := NewStorage(filepath.Join(t.TempDir(), "previa_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestReceiptRoundTrip(t *testing.T) {
	s := newTestStorage(t)

	receipt := &Receipt{
		ID:               "rcpt-1",
		UserID:           "user-1",
		Merchant:         "Woolworths Metro",
		ReceiptDate:      time.Date(2025, 1, 12, 0, 0, 0, 0, time.UTC),
		TotalCents:       4500,
		TaxCents:         409,
		Confidence:       0.93,
		ProcessingStatus: ReceiptStatusCompleted,
	}
	require.NoError(t, s.SaveReceipt(receipt))

	got, err := s.GetReceipt("rcpt-1")
	require.NoError(t, err)
	assert.Equal(t, "Woolworths Metro", got.Merchant)
	assert.Equal(t, int64(4500), got.TotalCents)
	assert.Equal(t, ReceiptStatusCompleted, got.ProcessingStatus)
	assert.Equal(t, "user-1", got.UserID)
}

func TestGetReceipt_NotFound(t *testing.T) {
	s := newTestStorage(t)

	_, err := s.GetReceipt("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestApplyOCRResult(t *testing.T) {
	s := newTestStorage(t)

	require.NoError(t, s.SaveReceipt(&Receipt{
		ID:               "rcpt-1",
		UserID:           "user-1",
		ProcessingStatus: ReceiptStatusProcessing,
	}))

	err := s.ApplyOCRResult("rcpt-1", OCRUpdate{
		Merchant:    "Coles",
		ReceiptDate: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		TotalCents:  1250,
		TaxCents:    113,
		OCRData:     `{"merchant":{"confidence":0.9}}`,
		Confidence:  0.88,
		Status:      ReceiptStatusCompleted,
	})
	require.NoError(t, err)

	got, err := s.GetReceipt("rcpt-1")
	require.NoError(t, err)
	assert.Equal(t, "Coles", got.Merchant)
	assert.Equal(t, int64(1250), got.TotalCents)
	assert.Equal(t, ReceiptStatusCompleted, got.ProcessingStatus)
	assert.Contains(t, got.OCRData, "merchant")

	assert.ErrorIs(t, s.ApplyOCRResult("missing", OCRUpdate{}), ErrNotFound)
}

func TestListUnreconciled_WindowAndOrder(t *testing.T) {
	s := newTestStorage(t)
	now := time.Now().UTC()

	txns := []*Transaction{
		{ID: "tx-old", UserID: "user-1", Date: now.AddDate(0, 0, -120), AmountCents: -1000, Status: TxStatusUnreconciled},
		{ID: "tx-mid", UserID: "user-1", Date: now.AddDate(0, 0, -30), AmountCents: -2000, Status: TxStatusUnreconciled},
		{ID: "tx-new", UserID: "user-1", Date: now.AddDate(0, 0, -1), AmountCents: -3000, Status: TxStatusUnreconciled},
		{ID: "tx-done", UserID: "user-1", Date: now.AddDate(0, 0, -2), AmountCents: -4000, Status: TxStatusReconciled},
		{ID: "tx-other", UserID: "user-2", Date: now.AddDate(0, 0, -3), AmountCents: -5000, Status: TxStatusUnreconciled},
	}
	for _, tx := range txns {
		require.NoError(t, s.SaveTransaction(tx))
	}

	got, err := s.ListUnreconciled("user-1", now.AddDate(0, 0, -90), 100)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, "tx-new", got[0].ID) // newest first
	assert.Equal(t, "tx-mid", got[1].ID)
}

func TestListTransactions_Filters(t *testing.T) {
	s := newTestStorage(t)
	now := time.Now().UTC()

	require.NoError(t, s.SaveTransaction(&Transaction{
		ID: "tx-1", UserID: "user-1", Date: now.AddDate(0, 0, -5), AmountCents: -1000, Status: TxStatusUnreconciled,
	}))
	require.NoError(t, s.SaveTransaction(&Transaction{
		ID: "tx-2", UserID: "user-1", Date: now.AddDate(0, 0, -10), AmountCents: -2000, Status: TxStatusReconciled,
	}))

	got, err := s.ListTransactions("user-1", TransactionFilters{Status: TxStatusReconciled})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "tx-2", got[0].ID)

	got, err = s.ListTransactions("user-1", TransactionFilters{DaysBack: 7})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "tx-1", got[0].ID)
}

func TestUpdateTransactionStatus_ScopedByUser(t *testing.T) {
	s := newTestStorage(t)

	require.NoError(t, s.SaveTransaction(&Transaction{
		ID: "tx-1", UserID: "user-1", Date: time.Now().UTC(), AmountCents: -1000, Status: TxStatusUnreconciled,
	}))

	// Wrong user must not touch the row
	assert.ErrorIs(t, s.UpdateTransactionStatus("tx-1", "user-2", TxStatusReconciled), ErrNotFound)

	require.NoError(t, s.UpdateTransactionStatus("tx-1", "user-1", TxStatusReconciled))
	got, err := s.GetTransaction("tx-1")
	require.NoError(t, err)
	assert.Equal(t, TxStatusReconciled, got.Status)
}

func TestTransitionSuggestion_CAS(t *testing.T) {
	s := newTestStorage(t)
	seedSuggestionFixtures(t, s)

	require.NoError(t, s.SaveSuggestion(&MatchSuggestion{
		ID: "sg-1", UserID: "user-1", ReceiptID: "rcpt-1", TransactionID: "tx-1",
		Confidence: 0.92, MatchReason: "same day, same amount", Status: SuggestionStatusSuggested,
	}))

	require.NoError(t, s.TransitionSuggestion("sg-1", "user-1", SuggestionStatusSuggested, SuggestionStatusApproved))

	// Second resolution of a terminal suggestion conflicts
	assert.ErrorIs(t,
		s.TransitionSuggestion("sg-1", "user-1", SuggestionStatusSuggested, SuggestionStatusRejected),
		ErrConflict)

	// Wrong user conflicts too
	assert.ErrorIs(t,
		s.TransitionSuggestion("sg-1", "user-2", SuggestionStatusApproved, SuggestionStatusSuggested),
		ErrConflict)

	got, err := s.GetSuggestion("sg-1")
	require.NoError(t, err)
	assert.Equal(t, SuggestionStatusApproved, got.Status)
}

func TestListPendingSuggestions_DenormalizedAndSorted(t *testing.T) {
	s := newTestStorage(t)
	seedSuggestionFixtures(t, s)

	suggestions := []*MatchSuggestion{
		{ID: "sg-low", UserID: "user-1", ReceiptID: "rcpt-1", TransactionID: "tx-1", Confidence: 0.42, Status: SuggestionStatusSuggested},
		{ID: "sg-high", UserID: "user-1", ReceiptID: "rcpt-1", TransactionID: "tx-1", Confidence: 0.95, Status: SuggestionStatusSuggested},
		{ID: "sg-done", UserID: "user-1", ReceiptID: "rcpt-1", TransactionID: "tx-1", Confidence: 0.80, Status: SuggestionStatusApproved},
	}
	for _, sg := range suggestions {
		require.NoError(t, s.SaveSuggestion(sg))
	}

	pending, err := s.ListPendingSuggestions("user-1")
	require.NoError(t, err)

	require.Len(t, pending, 2)
	assert.Equal(t, "sg-high", pending[0].ID)
	assert.Equal(t, "sg-low", pending[1].ID)

	require.NotNil(t, pending[0].Transaction)
	require.NotNil(t, pending[0].Receipt)
	assert.Equal(t, "WOOLWORTHS 1234", pending[0].Transaction.Description)
	assert.Equal(t, "Woolworths Metro", pending[0].Receipt.Merchant)
}

func TestSaveAndListMatches(t *testing.T) {
	s := newTestStorage(t)
	seedSuggestionFixtures(t, s)

	require.NoError(t, s.SaveMatch(&ReconciliationMatch{
		ID: "m-1", UserID: "user-1", ReceiptID: "rcpt-1", TransactionID: "tx-1",
	}))

	matches, err := s.ListMatches("user-1", 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "tx-1", matches[0].TransactionID)
	assert.False(t, matches[0].MatchedAt.IsZero())

	count, err := s.CountMatchesForTransaction("tx-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestDeleteUserData(t *testing.T) {
	s := newTestStorage(t)
	seedSuggestionFixtures(t, s)

	require.NoError(t, s.SaveSuggestion(&MatchSuggestion{
		ID: "sg-1", UserID: "user-1", ReceiptID: "rcpt-1", TransactionID: "tx-1",
		Confidence: 0.9, Status: SuggestionStatusSuggested,
	}))
	require.NoError(t, s.SaveMatch(&ReconciliationMatch{
		ID: "m-1", UserID: "user-1", ReceiptID: "rcpt-1", TransactionID: "tx-1",
	}))

	require.NoError(t, s.DeleteUserData("user-1"))

	_, err := s.GetReceipt("rcpt-1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetTransaction("tx-1")
	assert.ErrorIs(t, err, ErrNotFound)
	pending, err := s.ListPendingSuggestions("user-1")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestIncrementRateCounter(t *testing.T) {
	s := newTestStorage(t)
	window := time.Now().UTC().Truncate(time.Hour)

	for i := 1; i <= 3; i++ {
		count, err := s.IncrementRateCounter("user-1", "seed_demo_data", window)
		require.NoError(t, err)
		assert.Equal(t, i, count)
	}

	// Separate window starts fresh
	count, err := s.IncrementRateCounter("user-1", "seed_demo_data", window.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

// seedSuggestionFixtures inserts the receipt and transaction rows the
// suggestion foreign keys point at.
func seedSuggestionFixtures(t *testing.T, s *Storage) {
	t.Helper()
	require.NoError(t, s.SaveReceipt(&Receipt{
		ID: "rcpt-1", UserID: "user-1", Merchant: "Woolworths Metro",
		ReceiptDate:      time.Date(2025, 1, 12, 0, 0, 0, 0, time.UTC),
		TotalCents:       4500,
		ProcessingStatus: ReceiptStatusCompleted,
	}))
	require.NoError(t, s.SaveTransaction(&Transaction{
		ID: "tx-1", UserID: "user-1", Date: time.Date(2025, 1, 12, 0, 0, 0, 0, time.UTC),
		Description: "WOOLWORTHS 1234", AmountCents: -4500, Status: TxStatusUnreconciled,
	}))
}
