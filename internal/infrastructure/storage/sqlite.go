package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Storage provides SQLite database access for Previa's financial tables.
// It implements the Repository interface.
type Storage struct {
	db *sql.DB
}

// Compile-time check that Storage implements Repository
var _ Repository = (*Storage)(nil)

// NewStorage creates a new storage instance with SQLite database
func NewStorage(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable foreign key constraints (SQLite-specific)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Storage{db: db}

	if err := s.runMigrations(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

// SaveReceipt inserts or replaces a receipt
func (s *Storage) SaveReceipt(r *Receipt) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	query := `
	INSERT OR REPLACE INTO receipts
	(id, user_id, merchant, receipt_date, total_cents, tax_cents,
	 ocr_data, confidence, processing_status, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		r.ID,
		r.UserID,
		r.Merchant,
		r.ReceiptDate,
		r.TotalCents,
		r.TaxCents,
		r.OCRData,
		r.Confidence,
		r.ProcessingStatus,
		r.CreatedAt,
	)

	return err
}

// GetReceipt retrieves a receipt by id
func (s *Storage) GetReceipt(id string) (*Receipt, error) {
	query := `
	SELECT id, user_id, merchant, receipt_date, total_cents, tax_cents,
	       ocr_data, confidence, processing_status, created_at
	FROM receipts WHERE id = ?
	`

	r := &Receipt{}
	var receiptDate sql.NullTime
	err := s.db.QueryRow(query, id).Scan(
		&r.ID,
		&r.UserID,
		&r.Merchant,
		&receiptDate,
		&r.TotalCents,
		&r.TaxCents,
		&r.OCRData,
		&r.Confidence,
		&r.ProcessingStatus,
		&r.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if receiptDate.Valid {
		r.ReceiptDate = receiptDate.Time
	}

	return r, nil
}

// ListReceipts returns a user's receipts, newest first
func (s *Storage) ListReceipts(userID string, limit int) ([]*Receipt, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
	SELECT id, user_id, merchant, receipt_date, total_cents, tax_cents,
	       ocr_data, confidence, processing_status, created_at
	FROM receipts
	WHERE user_id = ?
	ORDER BY created_at DESC
	LIMIT ?
	`

	rows, err := s.db.Query(query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var receipts []*Receipt
	for rows.Next() {
		r := &Receipt{}
		var receiptDate sql.NullTime
		if err := rows.Scan(
			&r.ID,
			&r.UserID,
			&r.Merchant,
			&receiptDate,
			&r.TotalCents,
			&r.TaxCents,
			&r.OCRData,
			&r.Confidence,
			&r.ProcessingStatus,
			&r.CreatedAt,
		); err != nil {
			return nil, err
		}
		if receiptDate.Valid {
			r.ReceiptDate = receiptDate.Time
		}
		receipts = append(receipts, r)
	}

	return receipts, rows.Err()
}

// ApplyOCRResult records the OCR callback payload on a receipt
func (s *Storage) ApplyOCRResult(id string, update OCRUpdate) error {
	query := `
	UPDATE receipts
	SET merchant = ?, receipt_date = ?, total_cents = ?, tax_cents = ?,
	    ocr_data = ?, confidence = ?, processing_status = ?
	WHERE id = ?
	`

	result, err := s.db.Exec(query,
		update.Merchant,
		update.ReceiptDate,
		update.TotalCents,
		update.TaxCents,
		update.OCRData,
		update.Confidence,
		update.Status,
		id,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveTransaction inserts or replaces a transaction
func (s *Storage) SaveTransaction(t *Transaction) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	query := `
	INSERT OR REPLACE INTO transactions
	(id, user_id, date, description, amount_cents, status, category, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		t.ID,
		t.UserID,
		t.Date,
		t.Description,
		t.AmountCents,
		t.Status,
		t.Category,
		t.CreatedAt,
	)

	return err
}

// GetTransaction retrieves a transaction by id
func (s *Storage) GetTransaction(id string) (*Transaction, error) {
	query := `
	SELECT id, user_id, date, description, amount_cents, status, category, created_at
	FROM transactions WHERE id = ?
	`

	t := &Transaction{}
	err := s.db.QueryRow(query, id).Scan(
		&t.ID,
		&t.UserID,
		&t.Date,
		&t.Description,
		&t.AmountCents,
		&t.Status,
		&t.Category,
		&t.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return t, nil
}

// ListTransactions returns a user's transactions matching the filters
func (s *Storage) ListTransactions(userID string, f TransactionFilters) ([]*Transaction, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `
	SELECT id, user_id, date, description, amount_cents, status, category, created_at
	FROM transactions
	WHERE user_id = ?
	`
	args := []any{userID}

	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, f.Status)
	}
	if f.DaysBack > 0 {
		query += ` AND date >= ?`
		args = append(args, time.Now().UTC().AddDate(0, 0, -f.DaysBack))
	}

	query += ` ORDER BY date DESC LIMIT ?`
	args = append(args, limit)

	return s.queryTransactions(query, args...)
}

// ListUnreconciled returns up to limit unreconciled transactions dated on or
// after since, newest first
func (s *Storage) ListUnreconciled(userID string, since time.Time, limit int) ([]*Transaction, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
	SELECT id, user_id, date, description, amount_cents, status, category, created_at
	FROM transactions
	WHERE user_id = ? AND status = 'unreconciled' AND date >= ?
	ORDER BY date DESC
	LIMIT ?
	`

	return s.queryTransactions(query, userID, since, limit)
}

func (s *Storage) queryTransactions(query string, args ...any) ([]*Transaction, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var txns []*Transaction
	for rows.Next() {
		t := &Transaction{}
		if err := rows.Scan(
			&t.ID,
			&t.UserID,
			&t.Date,
			&t.Description,
			&t.AmountCents,
			&t.Status,
			&t.Category,
			&t.CreatedAt,
		); err != nil {
			return nil, err
		}
		txns = append(txns, t)
	}

	return txns, rows.Err()
}

// UpdateTransactionStatus sets the status of the user's transaction
func (s *Storage) UpdateTransactionStatus(id, userID, status string) error {
	result, err := s.db.Exec(
		`UPDATE transactions SET status = ? WHERE id = ? AND user_id = ?`,
		status, id, userID,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateTransactionDetails updates category and/or description
func (s *Storage) UpdateTransactionDetails(id, userID string, category, description *string) error {
	if category == nil && description == nil {
		return nil
	}

	query := `UPDATE transactions SET `
	var args []any
	if category != nil {
		query += `category = ?`
		args = append(args, *category)
	}
	if description != nil {
		if category != nil {
			query += `, `
		}
		query += `description = ?`
		args = append(args, *description)
	}
	query += ` WHERE id = ? AND user_id = ?`
	args = append(args, id, userID)

	result, err := s.db.Exec(query, args...)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveSuggestion inserts a suggestion row
func (s *Storage) SaveSuggestion(sg *MatchSuggestion) error {
	if sg.CreatedAt.IsZero() {
		sg.CreatedAt = time.Now().UTC()
	}

	query := `
	INSERT INTO ai_match_suggestions
	(id, user_id, receipt_id, transaction_id, confidence, match_reason, status, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		sg.ID,
		sg.UserID,
		sg.ReceiptID,
		sg.TransactionID,
		sg.Confidence,
		sg.MatchReason,
		sg.Status,
		sg.CreatedAt,
	)

	return err
}

// GetSuggestion retrieves a suggestion by id
func (s *Storage) GetSuggestion(id string) (*MatchSuggestion, error) {
	query := `
	SELECT id, user_id, receipt_id, transaction_id, confidence, match_reason, status, created_at
	FROM ai_match_suggestions WHERE id = ?
	`

	sg := &MatchSuggestion{}
	err := s.db.QueryRow(query, id).Scan(
		&sg.ID,
		&sg.UserID,
		&sg.ReceiptID,
		&sg.TransactionID,
		&sg.Confidence,
		&sg.MatchReason,
		&sg.Status,
		&sg.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return sg, nil
}

// ListPendingSuggestions returns the user's suggested-status rows with
// denormalized transaction and receipt, confidence descending
func (s *Storage) ListPendingSuggestions(userID string) ([]*PendingSuggestion, error) {
	query := `
	SELECT sg.id, sg.user_id, sg.receipt_id, sg.transaction_id, sg.confidence,
	       sg.match_reason, sg.status, sg.created_at,
	       t.id, t.user_id, t.date, t.description, t.amount_cents, t.status, t.category, t.created_at,
	       r.id, r.user_id, r.merchant, r.receipt_date, r.total_cents, r.tax_cents,
	       r.confidence, r.processing_status, r.created_at
	FROM ai_match_suggestions sg
	JOIN transactions t ON t.id = sg.transaction_id
	JOIN receipts r ON r.id = sg.receipt_id
	WHERE sg.user_id = ? AND sg.status = 'suggested'
	ORDER BY sg.confidence DESC, sg.created_at ASC
	`

	rows, err := s.db.Query(query, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var pending []*PendingSuggestion
	for rows.Next() {
		p := &PendingSuggestion{
			Transaction: &Transaction{},
			Receipt:     &Receipt{},
		}
		var receiptDate sql.NullTime
		if err := rows.Scan(
			&p.ID,
			&p.UserID,
			&p.ReceiptID,
			&p.TransactionID,
			&p.Confidence,
			&p.MatchReason,
			&p.Status,
			&p.CreatedAt,
			&p.Transaction.ID,
			&p.Transaction.UserID,
			&p.Transaction.Date,
			&p.Transaction.Description,
			&p.Transaction.AmountCents,
			&p.Transaction.Status,
			&p.Transaction.Category,
			&p.Transaction.CreatedAt,
			&p.Receipt.ID,
			&p.Receipt.UserID,
			&p.Receipt.Merchant,
			&receiptDate,
			&p.Receipt.TotalCents,
			&p.Receipt.TaxCents,
			&p.Receipt.Confidence,
			&p.Receipt.ProcessingStatus,
			&p.Receipt.CreatedAt,
		); err != nil {
			return nil, err
		}
		if receiptDate.Valid {
			p.Receipt.ReceiptDate = receiptDate.Time
		}
		pending = append(pending, p)
	}

	return pending, rows.Err()
}

// TransitionSuggestion conditionally moves a suggestion between statuses
func (s *Storage) TransitionSuggestion(id, userID, from, to string) error {
	result, err := s.db.Exec(
		`UPDATE ai_match_suggestions SET status = ? WHERE id = ? AND user_id = ? AND status = ?`,
		to, id, userID, from,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrConflict
	}
	return nil
}

// SaveMatch inserts a reconciliation match row
func (s *Storage) SaveMatch(m *ReconciliationMatch) error {
	if m.MatchedAt.IsZero() {
		m.MatchedAt = time.Now().UTC()
	}

	query := `
	INSERT INTO reconciliation_matches
	(id, user_id, receipt_id, transaction_id, matched_at)
	VALUES (?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		m.ID,
		m.UserID,
		m.ReceiptID,
		m.TransactionID,
		m.MatchedAt,
	)

	return err
}

// ListMatches returns a user's matches, newest first
func (s *Storage) ListMatches(userID string, limit int) ([]*ReconciliationMatch, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
	SELECT id, user_id, receipt_id, transaction_id, matched_at
	FROM reconciliation_matches
	WHERE user_id = ?
	ORDER BY matched_at DESC
	LIMIT ?
	`

	rows, err := s.db.Query(query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var matches []*ReconciliationMatch
	for rows.Next() {
		m := &ReconciliationMatch{}
		if err := rows.Scan(
			&m.ID,
			&m.UserID,
			&m.ReceiptID,
			&m.TransactionID,
			&m.MatchedAt,
		); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}

	return matches, rows.Err()
}

// CountMatchesForTransaction counts matches referencing the transaction
func (s *Storage) CountMatchesForTransaction(transactionID string) (int, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM reconciliation_matches WHERE transaction_id = ?`,
		transactionID,
	).Scan(&count)
	return count, err
}

// DeleteUserData removes all of a user's financial rows. Order matters for
// the foreign key constraints.
func (s *Storage) DeleteUserData(userID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}

	queries := []string{
		`DELETE FROM reconciliation_matches WHERE user_id = ?`,
		`DELETE FROM ai_match_suggestions WHERE user_id = ?`,
		`DELETE FROM receipts WHERE user_id = ?`,
		`DELETE FROM transactions WHERE user_id = ?`,
	}

	for _, query := range queries {
		if _, err := tx.Exec(query, userID); err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// IncrementRateCounter bumps and returns the fixed-window counter
func (s *Storage) IncrementRateCounter(userID, action string, windowStart time.Time) (int, error) {
	query := `
	INSERT INTO rate_limits (user_id, action, window_start, count)
	VALUES (?, ?, ?, 1)
	ON CONFLICT(user_id, action, window_start) DO UPDATE SET count = count + 1
	`

	if _, err := s.db.Exec(query, userID, action, windowStart); err != nil {
		return 0, err
	}

	var count int
	err := s.db.QueryRow(
		`SELECT count FROM rate_limits WHERE user_id = ? AND action = ? AND window_start = ?`,
		userID, action, windowStart,
	).Scan(&count)
	return count, err
}
