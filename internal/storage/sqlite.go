package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/BenjaminSRussell/shelfcrawl/internal/types"
	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		destination TEXT NOT NULL,
		price_datetime TEXT,
		price TEXT,
		price_promo TEXT,
		sku_status TEXT,
		sku_barcode TEXT,
		sku_article TEXT,
		sku_name TEXT,
		sku_category TEXT,
		sku_country TEXT,
		sku_weight_min TEXT,
		sku_volume_min TEXT,
		sku_quantity_min TEXT,
		sku_link TEXT,
		sku_images TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_records_run ON records(run_id);
	CREATE INDEX IF NOT EXISTS idx_records_article ON records(sku_article, sku_barcode);
	`

// SQLiteSink stores result sets in a local SQLite database for ad-hoc queries.
type SQLiteSink struct {
	db    *sql.DB
	runID string
}

// NewSQLiteSink opens (or creates) the database at dbPath
func NewSQLiteSink(dbPath, runID string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s, err := newSQLiteSink(db, runID)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func newSQLiteSink(db *sql.DB, runID string) (*SQLiteSink, error) {
	if _, err := db.Exec(sqliteSchema); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &SQLiteSink{db: db, runID: runID}, nil
}

// Persist replaces the rows of this run and destination with records in one
// transaction.
func (s *SQLiteSink) Persist(ctx context.Context, records []types.Record, schema []string, destination string) error {
	if err := checkSchema(schema); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, deleteSQL(func(int) string { return "?" }), s.runID, destination); err != nil {
		return fmt.Errorf("failed to clear previous rows: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, insertSQL(schema, func(int) string { return "?" }))
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, rowArgs(s.runID, destination, r, schema)...); err != nil {
			return fmt.Errorf("failed to insert record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
