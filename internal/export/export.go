// Package export writes result sets to delimited and JSON files.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/BenjaminSRussell/shelfcrawl/internal/types"
)

const (
	DefaultDelimiter = ';'
	categoriesFile   = "categories.csv"
)

// CategorySchema is the header of categories.csv.
var CategorySchema = []string{"name", "id", "parent_id"}

type Exporter struct {
	outputDir string
	delimiter rune
}

// NewExporter creates outputDir if needed. An empty delimiter means ';'.
func NewExporter(outputDir, delimiter string) (*Exporter, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	comma := DefaultDelimiter
	if delimiter != "" {
		comma, _ = utf8.DecodeRuneInString(delimiter)
	}

	return &Exporter{
		outputDir: outputDir,
		delimiter: comma,
	}, nil
}

// Path returns the location of fileName inside the output directory.
func (e *Exporter) Path(fileName string) string {
	return filepath.Join(e.outputDir, fileName)
}

// ExportCSV writes header followed by rows to fileName.
func (e *Exporter) ExportCSV(header []string, rows [][]string, fileName string) error {
	file, err := os.Create(e.Path(fileName))
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	writer.Comma = e.delimiter

	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}
	if err := writer.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write CSV records: %w", err)
	}
	return file.Close()
}

// ExportRecordsCSV writes records projected onto schema.
func (e *Exporter) ExportRecordsCSV(records []types.Record, schema []string, fileName string) error {
	rows := make([][]string, len(records))
	for i, r := range records {
		rows[i] = r.Values(schema)
	}
	return e.ExportCSV(schema, rows, fileName)
}

// ExportJSON writes records as an array of objects keyed by schema fields,
// with keys in schema order.
func (e *Exporter) ExportJSON(records []types.Record, schema []string, fileName string) error {
	objects := make([]orderedObject, len(records))
	for i, r := range records {
		objects[i] = orderedObject{keys: schema, values: r.Values(schema)}
	}

	data, err := json.MarshalIndent(objects, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if err := os.WriteFile(e.Path(fileName), data, 0644); err != nil {
		return fmt.Errorf("failed to write JSON file: %w", err)
	}
	return nil
}

// orderedObject marshals as a JSON object whose keys keep their slice order.
type orderedObject struct {
	keys   []string
	values []string
}

func (o orderedObject) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(o.values[i])
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// WriteCategories writes categories.csv and returns its path.
func (e *Exporter) WriteCategories(cats []types.Category) (string, error) {
	rows := make([][]string, len(cats))
	for i, c := range cats {
		rows[i] = []string{c.Name, c.ID, c.ParentID}
	}
	if err := e.ExportCSV(CategorySchema, rows, categoriesFile); err != nil {
		return "", err
	}
	return e.Path(categoriesFile), nil
}

// FileName gives destination the extension ext unless it already has it.
func FileName(destination, ext string) string {
	current := filepath.Ext(destination)
	if strings.EqualFold(current, ext) {
		return destination
	}
	return strings.TrimSuffix(destination, current) + ext
}

// CSVSink persists result sets as delimited files.
type CSVSink struct {
	exporter *Exporter
}

// NewCSVSink creates a new CSVSink
func NewCSVSink(outputDir, delimiter string) (*CSVSink, error) {
	e, err := NewExporter(outputDir, delimiter)
	if err != nil {
		return nil, err
	}
	return &CSVSink{exporter: e}, nil
}

func (s *CSVSink) Persist(_ context.Context, records []types.Record, schema []string, destination string) error {
	return s.exporter.ExportRecordsCSV(records, schema, FileName(destination, ".csv"))
}

// JSONSink persists result sets as a JSON array.
type JSONSink struct {
	exporter *Exporter
}

// NewJSONSink creates a new JSONSink
func NewJSONSink(outputDir string) (*JSONSink, error) {
	e, err := NewExporter(outputDir, "")
	if err != nil {
		return nil, err
	}
	return &JSONSink{exporter: e}, nil
}

func (s *JSONSink) Persist(_ context.Context, records []types.Record, schema []string, destination string) error {
	return s.exporter.ExportJSON(records, schema, FileName(destination, ".json"))
}
