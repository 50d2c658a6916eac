package storage

import (
	"sort"
	"sync"
	"time"
)

// MockRepository is an in-memory implementation of Repository for testing.
// It stores all data in maps, making tests fast and isolated.
type MockRepository struct {
	mu           sync.Mutex
	receipts     map[string]*Receipt
	transactions map[string]*Transaction
	suggestions  map[string]*MatchSuggestion
	matches      map[string]*ReconciliationMatch
	rateCounts   map[string]int

	// Hooks for test assertions
	SaveSuggestionCalled bool
	LastSavedSuggestion  *MatchSuggestion
	SaveMatchCalled      bool
	LastSavedMatch       *ReconciliationMatch
	TransitionCalls      []string // "id:from->to"
	StatusUpdates        []string // "id:status"

	// Error injection for testing error paths
	SaveReceiptErr     error
	SaveTransactionErr error
	SaveSuggestionErr  error
	SaveMatchErr       error
	TransitionErr      error
	UpdateStatusErr    error
	ListPendingErr     error
}

// Compile-time check that MockRepository implements Repository
var _ Repository = (*MockRepository)(nil)

// NewMockRepository creates a new mock repository for testing
func NewMockRepository() *MockRepository {
	return &MockRepository{
		receipts:     make(map[string]*Receipt),
		transactions: make(map[string]*Transaction),
		suggestions:  make(map[string]*MatchSuggestion),
		matches:      make(map[string]*ReconciliationMatch),
		rateCounts:   make(map[string]int),
	}
}

// Close does nothing for mock
func (m *MockRepository) Close() error {
	return nil
}

// SaveReceipt saves a receipt to the in-memory map
func (m *MockRepository) SaveReceipt(r *Receipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveReceiptErr != nil {
		return m.SaveReceiptErr
	}
	copied := *r
	m.receipts[r.ID] = &copied
	return nil
}

// GetReceipt retrieves a receipt from the in-memory map
func (m *MockRepository) GetReceipt(id string) (*Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.receipts[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *r
	return &copied, nil
}

// ListReceipts returns a user's receipts, newest first
func (m *MockRepository) ListReceipts(userID string, limit int) ([]*Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = 50
	}
	var receipts []*Receipt
	for _, r := range m.receipts {
		if r.UserID == userID {
			copied := *r
			receipts = append(receipts, &copied)
		}
	}
	sort.Slice(receipts, func(i, j int) bool {
		return receipts[i].CreatedAt.After(receipts[j].CreatedAt)
	})
	if len(receipts) > limit {
		receipts = receipts[:limit]
	}
	return receipts, nil
}

// ApplyOCRResult records the OCR callback payload on a receipt
func (m *MockRepository) ApplyOCRResult(id string, update OCRUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.receipts[id]
	if !ok {
		return ErrNotFound
	}
	r.Merchant = update.Merchant
	r.ReceiptDate = update.ReceiptDate
	r.TotalCents = update.TotalCents
	r.TaxCents = update.TaxCents
	r.OCRData = update.OCRData
	r.Confidence = update.Confidence
	r.ProcessingStatus = update.Status
	return nil
}

// SaveTransaction saves a transaction to the in-memory map
func (m *MockRepository) SaveTransaction(t *Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveTransactionErr != nil {
		return m.SaveTransactionErr
	}
	copied := *t
	m.transactions[t.ID] = &copied
	return nil
}

// GetTransaction retrieves a transaction from the in-memory map
func (m *MockRepository) GetTransaction(id string) (*Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.transactions[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *t
	return &copied, nil
}

// ListTransactions returns a user's transactions matching the filters
func (m *MockRepository) ListTransactions(userID string, f TransactionFilters) ([]*Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	var cutoff time.Time
	if f.DaysBack > 0 {
		cutoff = time.Now().UTC().AddDate(0, 0, -f.DaysBack)
	}
	var txns []*Transaction
	for _, t := range m.transactions {
		if t.UserID != userID {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if f.DaysBack > 0 && t.Date.Before(cutoff) {
			continue
		}
		copied := *t
		txns = append(txns, &copied)
	}
	sort.Slice(txns, func(i, j int) bool {
		return txns[i].Date.After(txns[j].Date)
	})
	if len(txns) > limit {
		txns = txns[:limit]
	}
	return txns, nil
}

// ListUnreconciled returns unreconciled transactions dated on or after since,
// newest first
func (m *MockRepository) ListUnreconciled(userID string, since time.Time, limit int) ([]*Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = 100
	}
	var txns []*Transaction
	for _, t := range m.transactions {
		if t.UserID != userID || t.Status != TxStatusUnreconciled || t.Date.Before(since) {
			continue
		}
		copied := *t
		txns = append(txns, &copied)
	}
	sort.Slice(txns, func(i, j int) bool {
		return txns[i].Date.After(txns[j].Date)
	})
	if len(txns) > limit {
		txns = txns[:limit]
	}
	return txns, nil
}

// UpdateTransactionStatus sets the status of the user's transaction
func (m *MockRepository) UpdateTransactionStatus(id, userID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StatusUpdates = append(m.StatusUpdates, id+":"+status)
	if m.UpdateStatusErr != nil {
		return m.UpdateStatusErr
	}
	t, ok := m.transactions[id]
	if !ok || t.UserID != userID {
		return ErrNotFound
	}
	t.Status = status
	return nil
}

// UpdateTransactionDetails updates category and/or description
func (m *MockRepository) UpdateTransactionDetails(id, userID string, category, description *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.transactions[id]
	if !ok || t.UserID != userID {
		return ErrNotFound
	}
	if category != nil {
		t.Category = *category
	}
	if description != nil {
		t.Description = *description
	}
	return nil
}

// SaveSuggestion inserts a suggestion row
func (m *MockRepository) SaveSuggestion(s *MatchSuggestion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveSuggestionCalled = true
	m.LastSavedSuggestion = s
	if m.SaveSuggestionErr != nil {
		return m.SaveSuggestionErr
	}
	copied := *s
	m.suggestions[s.ID] = &copied
	return nil
}

// GetSuggestion retrieves a suggestion by id
func (m *MockRepository) GetSuggestion(id string) (*MatchSuggestion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.suggestions[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *s
	return &copied, nil
}

// ListPendingSuggestions returns suggested-status rows with denormalized
// transaction and receipt, confidence descending
func (m *MockRepository) ListPendingSuggestions(userID string) ([]*PendingSuggestion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListPendingErr != nil {
		return nil, m.ListPendingErr
	}
	var pending []*PendingSuggestion
	for _, s := range m.suggestions {
		if s.UserID != userID || s.Status != SuggestionStatusSuggested {
			continue
		}
		p := &PendingSuggestion{MatchSuggestion: *s}
		if t, ok := m.transactions[s.TransactionID]; ok {
			copied := *t
			p.Transaction = &copied
		}
		if r, ok := m.receipts[s.ReceiptID]; ok {
			copied := *r
			p.Receipt = &copied
		}
		pending = append(pending, p)
	}
	sort.Slice(pending, func(i, j int) bool {
		if pending[i].Confidence != pending[j].Confidence {
			return pending[i].Confidence > pending[j].Confidence
		}
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	return pending, nil
}

// TransitionSuggestion conditionally moves a suggestion between statuses
func (m *MockRepository) TransitionSuggestion(id, userID, from, to string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TransitionCalls = append(m.TransitionCalls, id+":"+from+"->"+to)
	if m.TransitionErr != nil {
		return m.TransitionErr
	}
	s, ok := m.suggestions[id]
	if !ok || s.UserID != userID || s.Status != from {
		return ErrConflict
	}
	s.Status = to
	return nil
}

// SaveMatch inserts a reconciliation match row
func (m *MockRepository) SaveMatch(match *ReconciliationMatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveMatchCalled = true
	m.LastSavedMatch = match
	if m.SaveMatchErr != nil {
		return m.SaveMatchErr
	}
	copied := *match
	m.matches[match.ID] = &copied
	return nil
}

// ListMatches returns a user's matches, newest first
func (m *MockRepository) ListMatches(userID string, limit int) ([]*ReconciliationMatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = 50
	}
	var matches []*ReconciliationMatch
	for _, match := range m.matches {
		if match.UserID == userID {
			copied := *match
			matches = append(matches, &copied)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].MatchedAt.After(matches[j].MatchedAt)
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// CountMatchesForTransaction counts matches referencing the transaction
func (m *MockRepository) CountMatchesForTransaction(transactionID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, match := range m.matches {
		if match.TransactionID == transactionID {
			count++
		}
	}
	return count, nil
}

// DeleteUserData removes all of a user's financial rows
func (m *MockRepository) DeleteUserData(userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.receipts {
		if r.UserID == userID {
			delete(m.receipts, id)
		}
	}
	for id, t := range m.transactions {
		if t.UserID == userID {
			delete(m.transactions, id)
		}
	}
	for id, s := range m.suggestions {
		if s.UserID == userID {
			delete(m.suggestions, id)
		}
	}
	for id, match := range m.matches {
		if match.UserID == userID {
			delete(m.matches, id)
		}
	}
	return nil
}

// IncrementRateCounter bumps and returns the fixed-window counter
func (m *MockRepository) IncrementRateCounter(userID, action string, windowStart time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := userID + "|" + action + "|" + windowStart.UTC().Format(time.RFC3339)
	m.rateCounts[key]++
	return m.rateCounts[key], nil
}
