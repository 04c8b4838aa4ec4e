package storage

import (
	"context"
	"fmt"

	"github.com/BenjaminSRussell/shelfcrawl/internal/types"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS records (
		id BIGSERIAL PRIMARY KEY,
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
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_records_run ON records(run_id);
	`

// pgDB is the part of *pgxpool.Pool the sink uses.
type pgDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresSink writes result sets to a shared PostgreSQL table.
type PostgresSink struct {
	db    pgDB
	pool  *pgxpool.Pool
	runID string
}

// NewPostgresSink connects to connStr and makes sure the records table exists.
func NewPostgresSink(ctx context.Context, connStr, runID string) (*PostgresSink, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	s, err := newPostgresSink(ctx, pool, runID)
	if err != nil {
		pool.Close()
		return nil, err
	}
	s.pool = pool
	return s, nil
}

func newPostgresSink(ctx context.Context, db pgDB, runID string) (*PostgresSink, error) {
	if _, err := db.Exec(ctx, postgresSchema); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &PostgresSink{db: db, runID: runID}, nil
}

// Persist sends every insert in one batch inside a transaction, after
// clearing the rows an earlier persist of the same run and destination wrote.
func (s *PostgresSink) Persist(ctx context.Context, records []types.Record, schema []string, destination string) error {
	if err := checkSchema(schema); err != nil {
		return err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, deleteSQL(func(i int) string { return fmt.Sprintf("$%d", i) }), s.runID, destination); err != nil {
		return fmt.Errorf("failed to clear previous rows: %w", err)
	}

	query := insertSQL(schema, func(i int) string { return fmt.Sprintf("$%d", i) })
	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(query, rowArgs(s.runID, destination, r, schema)...)
	}

	br := tx.SendBatch(ctx, batch)
	for range records {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("failed to insert record: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("failed to insert record: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func (s *PostgresSink) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}
