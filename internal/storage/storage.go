// Package storage persists result sets to line-delimited JSON and SQL databases.
package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BenjaminSRussell/shelfcrawl/internal/export"
	"github.com/BenjaminSRussell/shelfcrawl/internal/types"
)

// RunIDField is the extra key JSONL lines and SQL rows carry.
const RunIDField = "run_id"

var ErrUnknownField = errors.New("unknown record field")

var knownFields = func() map[string]bool {
	m := make(map[string]bool, len(types.RecordSchema))
	for _, f := range types.RecordSchema {
		m[f] = true
	}
	return m
}()

// checkSchema rejects field names that are not part of the record schema.
// Column names are interpolated into SQL, so this doubles as the whitelist.
func checkSchema(schema []string) error {
	if len(schema) == 0 {
		return fmt.Errorf("%w: empty schema", ErrUnknownField)
	}
	for _, f := range schema {
		if !knownFields[f] {
			return fmt.Errorf("%w: %q", ErrUnknownField, f)
		}
	}
	return nil
}

// insertSQL builds the insert statement for schema. placeholder returns the
// bind marker for the 1-based argument position.
func insertSQL(schema []string, placeholder func(int) string) string {
	cols := append([]string{RunIDField, "destination"}, schema...)
	marks := make([]string, len(cols))
	for i := range cols {
		marks[i] = placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO records (%s) VALUES (%s)",
		strings.Join(cols, ", "), strings.Join(marks, ", "))
}

// deleteSQL clears the rows an earlier persist of the same run and
// destination wrote, so a repeated persist replaces them.
func deleteSQL(placeholder func(int) string) string {
	return fmt.Sprintf("DELETE FROM records WHERE %s = %s AND destination = %s",
		RunIDField, placeholder(1), placeholder(2))
}

func rowArgs(runID, destination string, r types.Record, schema []string) []any {
	args := make([]any, 0, len(schema)+2)
	args = append(args, runID, destination)
	for _, v := range r.Values(schema) {
		args = append(args, v)
	}
	return args
}

// JSONLSink appends one JSON object per record to <destination>.jsonl.
type JSONLSink struct {
	dataDir string
	runID   string
	mu      sync.Mutex
}

// NewJSONLSink creates a new JSONL sink
func NewJSONLSink(dataDir, runID string) (*JSONLSink, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return &JSONLSink{
		dataDir: dataDir,
		runID:   runID,
	}, nil
}

// Path returns the file a destination is written to.
func (s *JSONLSink) Path(destination string) string {
	return filepath.Join(s.dataDir, export.FileName(destination, ".jsonl"))
}

func (s *JSONLSink) Persist(_ context.Context, records []types.Record, schema []string, destination string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.Path(destination), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open JSONL file: %w", err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	enc := json.NewEncoder(w)
	for _, r := range records {
		line := make(map[string]string, len(schema)+1)
		line[RunIDField] = s.runID
		for _, name := range schema {
			line[name] = r.Field(name)
		}
		if err := enc.Encode(line); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	return file.Close()
}

// LoadLines reads back a JSONL file. Malformed lines are skipped.
func LoadLines(path string) ([]map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to read JSONL file: %w", err)
	}
	defer file.Close()

	lines := make([]map[string]string, 0)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var line map[string]string
		if err := json.Unmarshal(scanner.Bytes(), &line); err == nil {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read JSONL file: %w", err)
	}

	return lines, nil
}
