package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/BenjaminSRussell/shelfcrawl/internal/types"
)

func sampleRecords() []types.Record {
	return []types.Record{
		{
			PriceDatetime: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
			Price:         "120",
			PricePromo:    "99",
			Status:        "1",
			Barcode:       "4600001",
			Article:       "1001",
			Name:          "Whiskas; 12 шт",
			Link:          "https://zootovary.ru/catalog/koshki/korm/whiskas-12/",
		},
		{Article: "1002", Barcode: "4600002", Status: "0"},
	}
}

func TestExporterNew(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")

	exporter, err := NewExporter(dir, "")
	if err != nil {
		t.Fatalf("Failed to create exporter: %v", err)
	}
	if exporter.delimiter != ';' {
		t.Errorf("Expected default delimiter ';', got %q", exporter.delimiter)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("Expected output directory to exist: %v", err)
	}
}

func TestCSVSinkPersist(t *testing.T) {
	dir := t.TempDir()

	sink, err := NewCSVSink(dir, ";")
	if err != nil {
		t.Fatalf("Failed to create sink: %v", err)
	}
	if err := sink.Persist(context.Background(), sampleRecords(), types.RecordSchema, "results_1"); err != nil {
		t.Fatalf("Persist failed: %v", err)
	}

	file, err := os.Open(filepath.Join(dir, "results_1.csv"))
	if err != nil {
		t.Fatalf("Expected results_1.csv: %v", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.Comma = ';'
	rows, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("Failed to read CSV: %v", err)
	}

	if len(rows) != 3 {
		t.Fatalf("Expected header and 2 rows, got %d", len(rows))
	}
	if strings.Join(rows[0], ",") != strings.Join(types.RecordSchema, ",") {
		t.Errorf("Unexpected header: %v", rows[0])
	}
	if rows[1][0] != "2024-05-01 10:00:00" {
		t.Errorf("Expected formatted datetime, got %q", rows[1][0])
	}
	if rows[1][6] != "Whiskas; 12 шт" {
		t.Errorf("Expected delimiter inside a field to round-trip, got %q", rows[1][6])
	}
	if rows[2][5] != "1002" {
		t.Errorf("Expected article 1002, got %q", rows[2][5])
	}
}

func TestCSVSinkEmptyResultSet(t *testing.T) {
	dir := t.TempDir()
	sink, _ := NewCSVSink(dir, ",")

	if err := sink.Persist(context.Background(), nil, types.RecordSchema, "empty.csv"); err != nil {
		t.Fatalf("Persist failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "empty.csv"))
	if err != nil {
		t.Fatalf("Expected empty.csv: %v", err)
	}
	if got := strings.TrimSpace(string(data)); got != strings.Join(types.RecordSchema, ",") {
		t.Errorf("Expected header only, got %q", got)
	}
}

func TestJSONSinkPersist(t *testing.T) {
	dir := t.TempDir()
	sink, _ := NewJSONSink(dir)

	if err := sink.Persist(context.Background(), sampleRecords(), types.RecordSchema, "results_2.csv"); err != nil {
		t.Fatalf("Persist failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "results_2.json"))
	if err != nil {
		t.Fatalf("Expected results_2.json: %v", err)
	}

	var got []map[string]string
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if len(got) != 2 || got[0]["sku_article"] != "1001" || got[0]["price_promo"] != "99" {
		t.Errorf("Unexpected JSON content: %v", got)
	}
}

func TestJSONSinkKeepsSchemaOrder(t *testing.T) {
	dir := t.TempDir()
	sink, _ := NewJSONSink(dir)

	if err := sink.Persist(context.Background(), sampleRecords()[:1], types.RecordSchema, "ordered"); err != nil {
		t.Fatalf("Persist failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "ordered.json"))
	if err != nil {
		t.Fatalf("Expected ordered.json: %v", err)
	}

	last := -1
	for _, field := range types.RecordSchema {
		idx := strings.Index(string(data), `"`+field+`":`)
		if idx < 0 {
			t.Fatalf("Missing key %s in %s", field, data)
		}
		if idx < last {
			t.Errorf("Key %s is out of schema order", field)
		}
		last = idx
	}

	var got []map[string]string
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if len(got) != 1 || got[0]["sku_article"] != "1001" {
		t.Errorf("Unexpected JSON content: %v", got)
	}
}

func TestWriteCategories(t *testing.T) {
	dir := t.TempDir()
	exporter, _ := NewExporter(dir, ";")

	path, err := exporter.WriteCategories([]types.Category{
		{Name: "Кошки", ID: "koshki", Link: "/catalog/koshki/"},
		{Name: "Корм", ID: "koshki/korm", ParentID: "koshki", Link: "/catalog/koshki/korm/"},
	})
	if err != nil {
		t.Fatalf("WriteCategories failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Expected categories.csv: %v", err)
	}
	want := "name;id;parent_id\nКошки;koshki;\nКорм;koshki/korm;koshki\n"
	if string(data) != want {
		t.Errorf("Expected %q, got %q", want, string(data))
	}
}

func TestFileName(t *testing.T) {
	tests := []struct {
		dest, ext, want string
	}{
		{"results_1", ".csv", "results_1.csv"},
		{"results_1.csv", ".csv", "results_1.csv"},
		{"results_1.csv", ".json", "results_1.json"},
		{"out.CSV", ".csv", "out.CSV"},
	}
	for _, tt := range tests {
		if got := FileName(tt.dest, tt.ext); got != tt.want {
			t.Errorf("FileName(%q, %q) = %q, want %q", tt.dest, tt.ext, got, tt.want)
		}
	}
}
