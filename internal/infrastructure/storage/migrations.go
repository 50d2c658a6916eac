package storage

import (
	"database/sql"
	"fmt"
)

// Migration represents a database schema migration
type Migration struct {
	Version int
	Name    string
	Up      func(*sql.Tx) error
}

// allMigrations defines all migrations in order
var allMigrations = []Migration{
	{
		Version: 1,
		Name:    "financial_tables",
		Up:      migration001FinancialTables,
	},
	{
		Version: 2,
		Name:    "reconciliation_tables",
		Up:      migration002ReconciliationTables,
	},
	{
		Version: 3,
		Name:    "rate_limits_table",
		Up:      migration003RateLimitsTable,
	},
}

// runMigrations executes all pending migrations
func (s *Storage) runMigrations() error {
	if err := s.ensureMigrationsTable(); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := s.getAppliedMigrations()
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	for _, migration := range allMigrations {
		if applied[migration.Version] {
			continue
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}

		if err := migration.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", migration.Version, migration.Name, err)
		}

		if _, err := tx.Exec(
			`INSERT INTO schema_migrations (version, name) VALUES (?, ?)`,
			migration.Version, migration.Name,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

// ensureMigrationsTable creates the schema_migrations table
func (s *Storage) ensureMigrationsTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	_, err := s.db.Exec(query)
	return err
}

// getAppliedMigrations returns a set of applied migration versions
func (s *Storage) getAppliedMigrations() (map[int]bool, error) {
	applied := make(map[int]bool)

	rows, err := s.db.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}

	return applied, rows.Err()
}

// migration001FinancialTables creates the receipts and transactions tables
func migration001FinancialTables(tx *sql.Tx) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS receipts (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			merchant TEXT DEFAULT '',
			receipt_date TIMESTAMP,
			total_cents INTEGER DEFAULT 0,
			tax_cents INTEGER DEFAULT 0,
			ocr_data TEXT DEFAULT '',
			confidence REAL DEFAULT 0,
			processing_status TEXT DEFAULT 'pending',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS transactions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			date TIMESTAMP NOT NULL,
			description TEXT DEFAULT '',
			amount_cents INTEGER NOT NULL,
			status TEXT DEFAULT 'unreconciled',
			category TEXT DEFAULT '',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_receipts_user
		 ON receipts(user_id, processing_status)`,

		`CREATE INDEX IF NOT EXISTS idx_transactions_user_status_date
		 ON transactions(user_id, status, date)`,
	}

	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}

	return nil
}

// migration002ReconciliationTables creates the suggestion and match tables.
// Note: reconciliation_matches deliberately has no unique constraint on
// transaction_id so a transaction can carry multiple partial matches.
func migration002ReconciliationTables(tx *sql.Tx) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS ai_match_suggestions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			receipt_id TEXT NOT NULL REFERENCES receipts(id),
			transaction_id TEXT NOT NULL REFERENCES transactions(id),
			confidence REAL NOT NULL,
			match_reason TEXT DEFAULT '',
			status TEXT DEFAULT 'suggested',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS reconciliation_matches (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			receipt_id TEXT NOT NULL REFERENCES receipts(id),
			transaction_id TEXT NOT NULL REFERENCES transactions(id),
			matched_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_suggestions_user_status
		 ON ai_match_suggestions(user_id, status)`,

		`CREATE INDEX IF NOT EXISTS idx_matches_user
		 ON reconciliation_matches(user_id)`,

		`CREATE INDEX IF NOT EXISTS idx_matches_transaction
		 ON reconciliation_matches(transaction_id)`,
	}

	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}

	return nil
}

// migration003RateLimitsTable creates the store-backed rate limiter table
func migration003RateLimitsTable(tx *sql.Tx) error {
	query := `
	CREATE TABLE IF NOT EXISTS rate_limits (
		user_id TEXT NOT NULL,
		action TEXT NOT NULL,
		window_start TIMESTAMP NOT NULL,
		count INTEGER DEFAULT 0,
		PRIMARY KEY (user_id, action, window_start)
	)`

	_, err := tx.Exec(query)
	return err
}
