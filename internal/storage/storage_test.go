package storage

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/BenjaminSRussell/shelfcrawl/internal/types"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var testSchema = []string{types.FieldArticle, types.FieldBarcode}

func testRecords() []types.Record {
	return []types.Record{
		{Article: "A1", Barcode: "B1", Name: "Felix"},
		{Article: "A2", Barcode: "B2", Name: "Whiskas"},
	}
}

func TestJSONLSinkPersist(t *testing.T) {
	tmpDir := t.TempDir()
	sink, err := NewJSONLSink(tmpDir, "run-1")
	if err != nil {
		t.Fatalf("Failed to create sink: %v", err)
	}

	if err := sink.Persist(context.Background(), testRecords(), types.RecordSchema, "results_1.csv"); err != nil {
		t.Fatalf("Persist failed: %v", err)
	}

	path := filepath.Join(tmpDir, "results_1.jsonl")
	if sink.Path("results_1.csv") != path {
		t.Errorf("Expected path %s, got %s", path, sink.Path("results_1.csv"))
	}

	lines, err := LoadLines(path)
	if err != nil {
		t.Fatalf("Failed to load lines: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("Expected 2 lines, got %d", len(lines))
	}
	if lines[0][RunIDField] != "run-1" {
		t.Errorf("Expected run id on every line, got %q", lines[0][RunIDField])
	}
	if lines[1][types.FieldArticle] != "A2" || lines[1][types.FieldName] != "Whiskas" {
		t.Errorf("Unexpected second line: %v", lines[1])
	}
}

func TestJSONLSinkOverwritesDestination(t *testing.T) {
	tmpDir := t.TempDir()
	sink, _ := NewJSONLSink(tmpDir, "run-1")
	ctx := context.Background()

	if err := sink.Persist(ctx, testRecords(), testSchema, "out"); err != nil {
		t.Fatalf("Persist failed: %v", err)
	}
	if err := sink.Persist(ctx, testRecords()[:1], testSchema, "out"); err != nil {
		t.Fatalf("Persist failed: %v", err)
	}

	lines, _ := LoadLines(sink.Path("out"))
	if len(lines) != 1 {
		t.Errorf("Expected second persist to replace the file, got %d lines", len(lines))
	}
}

func TestLoadLinesMissingAndMalformed(t *testing.T) {
	tmpDir := t.TempDir()

	lines, err := LoadLines(filepath.Join(tmpDir, "missing.jsonl"))
	if err != nil || len(lines) != 0 {
		t.Errorf("Expected empty result for missing file, got %v, %v", lines, err)
	}

	path := filepath.Join(tmpDir, "mixed.jsonl")
	content := "{\"sku_article\":\"A1\"}\nnot json\n\n{\"sku_article\":\"A2\"}"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	lines, err = LoadLines(path)
	if err != nil {
		t.Fatalf("LoadLines failed: %v", err)
	}
	if len(lines) != 2 || lines[1][types.FieldArticle] != "A2" {
		t.Errorf("Expected malformed lines to be skipped, got %v", lines)
	}
}

func TestCheckSchema(t *testing.T) {
	if err := checkSchema(types.RecordSchema); err != nil {
		t.Errorf("Expected full schema to pass: %v", err)
	}
	if err := checkSchema([]string{"sku_article", "price; DROP TABLE records"}); !errors.Is(err, ErrUnknownField) {
		t.Errorf("Expected ErrUnknownField, got %v", err)
	}
	if err := checkSchema(nil); !errors.Is(err, ErrUnknownField) {
		t.Errorf("Expected ErrUnknownField for empty schema, got %v", err)
	}
}

func TestInsertSQL(t *testing.T) {
	got := insertSQL(testSchema, func(i int) string { return "?" })
	want := "INSERT INTO records (run_id, destination, sku_article, sku_barcode) VALUES (?, ?, ?, ?)"
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestSQLiteSinkPersistMock(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS records").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM records").WithArgs("run-1", "results_1").WillReturnResult(sqlmock.NewResult(0, 0))
	prep := mock.ExpectPrepare("INSERT INTO records")
	prep.ExpectExec().WithArgs("run-1", "results_1", "A1", "B1").WillReturnResult(sqlmock.NewResult(1, 1))
	prep.ExpectExec().WithArgs("run-1", "results_1", "A2", "B2").WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	sink, err := newSQLiteSink(db, "run-1")
	if err != nil {
		t.Fatalf("Failed to create sink: %v", err)
	}
	if err := sink.Persist(context.Background(), testRecords(), testSchema, "results_1"); err != nil {
		t.Errorf("Persist failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestSQLiteSinkPersistRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS records").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM records").WithArgs("run-1", "results_1").WillReturnResult(sqlmock.NewResult(0, 0))
	prep := mock.ExpectPrepare("INSERT INTO records")
	prep.ExpectExec().WithArgs("run-1", "results_1", "A1", "B1").WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	sink, err := newSQLiteSink(db, "run-1")
	if err != nil {
		t.Fatalf("Failed to create sink: %v", err)
	}

	err = sink.Persist(context.Background(), testRecords(), testSchema, "results_1")
	if err == nil || !strings.Contains(err.Error(), "failed to insert record") {
		t.Errorf("Expected insert error, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestSQLiteSinkSchemaError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS records").WillReturnError(errors.New("read-only database"))

	if _, err := newSQLiteSink(db, "run-1"); err == nil {
		t.Error("Expected schema error")
	}
}

func TestSQLiteSinkFile(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "records.db")

	sink, err := NewSQLiteSink(dbPath, "run-1")
	if err != nil {
		if strings.Contains(err.Error(), "CGO_ENABLED") {
			t.Skip("go-sqlite3 needs cgo")
		}
		t.Fatalf("Failed to create SQLite sink: %v", err)
	}
	defer sink.Close()

	ctx := context.Background()
	if err := sink.Persist(ctx, testRecords(), types.RecordSchema, "results_1"); err != nil {
		t.Fatalf("Persist failed: %v", err)
	}

	total := countRows(t, sink, "run-1")
	if total != 2 {
		t.Errorf("Expected 2 rows, got %d", total)
	}

	articles := runArticles(t, sink, "run-1")
	if strings.Join(articles, ",") != "A1,A2" {
		t.Errorf("Expected insertion order A1,A2, got %v", articles)
	}
}

func TestSQLiteSinkRepeatedPersistReplacesRows(t *testing.T) {
	sink, err := NewSQLiteSink(filepath.Join(t.TempDir(), "records.db"), "run-1")
	if err != nil {
		if strings.Contains(err.Error(), "CGO_ENABLED") {
			t.Skip("go-sqlite3 needs cgo")
		}
		t.Fatalf("Failed to create SQLite sink: %v", err)
	}
	defer sink.Close()

	ctx := context.Background()
	if err := sink.Persist(ctx, testRecords()[:1], types.RecordSchema, "results_1"); err != nil {
		t.Fatalf("Persist failed: %v", err)
	}
	if err := sink.Persist(ctx, testRecords()[:1], types.RecordSchema, "results_1"); err != nil {
		t.Fatalf("Persist failed: %v", err)
	}
	if total := countRows(t, sink, "run-1"); total != 1 {
		t.Errorf("Expected repeated persist to keep 1 row, got %d", total)
	}

	if err := sink.Persist(ctx, testRecords(), types.RecordSchema, "results_1"); err != nil {
		t.Fatalf("Persist failed: %v", err)
	}
	if articles := runArticles(t, sink, "run-1"); strings.Join(articles, ",") != "A1,A2" {
		t.Errorf("Expected rows A1,A2 after the set grew, got %v", articles)
	}

	other, err := newSQLiteSink(sink.db, "run-2")
	if err != nil {
		t.Fatalf("Failed to create second sink: %v", err)
	}
	if err := other.Persist(ctx, testRecords()[:1], types.RecordSchema, "results_1"); err != nil {
		t.Fatalf("Persist failed: %v", err)
	}
	if total := countRows(t, sink, ""); total != 3 {
		t.Errorf("Expected other runs to keep their rows, got %d total", total)
	}
}

// countRows returns how many rows a run wrote. An empty runID counts all rows.
func countRows(t *testing.T, s *SQLiteSink, runID string) int {
	t.Helper()
	query := "SELECT COUNT(*) FROM records"
	var args []any
	if runID != "" {
		query += " WHERE run_id = ?"
		args = append(args, runID)
	}

	var total int
	if err := s.db.QueryRow(query, args...).Scan(&total); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	return total
}

func runArticles(t *testing.T, s *SQLiteSink, runID string) []string {
	t.Helper()
	rows, err := s.db.Query("SELECT sku_article FROM records WHERE run_id = ? ORDER BY id", runID)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	defer rows.Close()

	var articles []string
	for rows.Next() {
		var a sql.NullString
		if err := rows.Scan(&a); err != nil {
			t.Fatalf("scan failed: %v", err)
		}
		articles = append(articles, a.String)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("rows failed: %v", err)
	}
	return articles
}

type fakeBatchResults struct {
	pgx.BatchResults
	execErr error
	execs   int
}

func (b *fakeBatchResults) Exec() (pgconn.CommandTag, error) {
	b.execs++
	return pgconn.NewCommandTag("INSERT 0 1"), b.execErr
}

func (b *fakeBatchResults) Close() error { return nil }

type fakeTx struct {
	pgx.Tx
	results    *fakeBatchResults
	batch      *pgx.Batch
	execSQL    []string
	execArgs   [][]any
	committed  bool
	rolledBack bool
}

func (tx *fakeTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	tx.execSQL = append(tx.execSQL, sql)
	tx.execArgs = append(tx.execArgs, args)
	return pgconn.NewCommandTag("DELETE 0"), nil
}

func (tx *fakeTx) SendBatch(_ context.Context, b *pgx.Batch) pgx.BatchResults {
	tx.batch = b
	return tx.results
}

func (tx *fakeTx) Commit(context.Context) error {
	tx.committed = true
	return nil
}

func (tx *fakeTx) Rollback(context.Context) error {
	if !tx.committed {
		tx.rolledBack = true
	}
	return nil
}

type fakePG struct {
	execSQL  []string
	execErr  error
	beginErr error
	tx       *fakeTx
}

func (f *fakePG) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	f.execSQL = append(f.execSQL, sql)
	return pgconn.CommandTag{}, f.execErr
}

func (f *fakePG) Begin(context.Context) (pgx.Tx, error) {
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	return f.tx, nil
}

func TestPostgresSinkPersist(t *testing.T) {
	db := &fakePG{tx: &fakeTx{results: &fakeBatchResults{}}}
	ctx := context.Background()

	sink, err := newPostgresSink(ctx, db, "run-1")
	if err != nil {
		t.Fatalf("Failed to create sink: %v", err)
	}
	if len(db.execSQL) != 1 || !strings.Contains(db.execSQL[0], "CREATE TABLE IF NOT EXISTS records") {
		t.Errorf("Expected schema creation, got %v", db.execSQL)
	}

	if err := sink.Persist(ctx, testRecords(), testSchema, "results_1"); err != nil {
		t.Fatalf("Persist failed: %v", err)
	}

	tx := db.tx
	if len(tx.execSQL) != 1 || tx.execSQL[0] != "DELETE FROM records WHERE run_id = $1 AND destination = $2" {
		t.Errorf("Expected previous rows to be cleared first, got %v", tx.execSQL)
	}
	if len(tx.execArgs) == 1 && (tx.execArgs[0][0] != "run-1" || tx.execArgs[0][1] != "results_1") {
		t.Errorf("Unexpected delete arguments: %v", tx.execArgs[0])
	}
	if tx.batch.Len() != 2 {
		t.Fatalf("Expected 2 queued inserts, got %d", tx.batch.Len())
	}
	first := tx.batch.QueuedQueries[0]
	if first.SQL != "INSERT INTO records (run_id, destination, sku_article, sku_barcode) VALUES ($1, $2, $3, $4)" {
		t.Errorf("Unexpected insert: %s", first.SQL)
	}
	if first.Arguments[0] != "run-1" || first.Arguments[2] != "A1" {
		t.Errorf("Unexpected arguments: %v", first.Arguments)
	}
	if !tx.committed || tx.rolledBack {
		t.Errorf("Expected commit without rollback, committed=%v rolledBack=%v", tx.committed, tx.rolledBack)
	}
}

func TestPostgresSinkPersistErrors(t *testing.T) {
	ctx := context.Background()

	db := &fakePG{tx: &fakeTx{results: &fakeBatchResults{execErr: errors.New("unique violation")}}}
	sink, _ := newPostgresSink(ctx, db, "run-1")
	if err := sink.Persist(ctx, testRecords(), testSchema, "results_1"); err == nil {
		t.Error("Expected insert error")
	}
	if db.tx.committed || !db.tx.rolledBack {
		t.Error("Expected rollback after insert error")
	}

	db = &fakePG{beginErr: errors.New("connection refused")}
	sink, _ = newPostgresSink(ctx, db, "run-1")
	if err := sink.Persist(ctx, testRecords(), testSchema, "results_1"); err == nil {
		t.Error("Expected begin error")
	}

	db = &fakePG{execErr: errors.New("permission denied")}
	if _, err := newPostgresSink(ctx, db, "run-1"); err == nil {
		t.Error("Expected schema error")
	}
}

func TestPostgresSinkIntegration(t *testing.T) {
	connStr := os.Getenv("SHELFCRAWL_TEST_POSTGRES_URL")
	if connStr == "" {
		t.Skip("SHELFCRAWL_TEST_POSTGRES_URL not set")
	}

	ctx := context.Background()
	sink, err := NewPostgresSink(ctx, connStr, "integration")
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer sink.Close()

	if err := sink.Persist(ctx, testRecords(), types.RecordSchema, "integration"); err != nil {
		t.Errorf("Persist failed: %v", err)
	}
}
