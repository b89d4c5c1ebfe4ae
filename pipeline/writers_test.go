package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/aluiziolira/go-fiction-books/models"
)

func testRecords() models.CleanDataset {
	return models.CleanDataset{
		{Title: "Book A", Authors: "X; Y", FirstPublishYear: 1999},
		{Title: "Dune, Part One", Authors: "Frank Herbert", FirstPublishYear: 1965},
	}
}

func exportAll(t *testing.T, w OutputWriter, records models.CleanDataset) {
	t.Helper()
	if err := w.Write(records); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := w.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return names
}

func TestCSVWriterWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "books.csv")

	writer, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("create csv writer: %v", err)
	}
	exportAll(t, writer, testRecords())

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("records=%d, want 3", len(records))
	}
	if records[0][0] != "title" || records[0][1] != "authors" || records[0][2] != "first_publish_year" {
		t.Fatalf("unexpected header: %v", records[0])
	}
	if records[2][0] != "Dune, Part One" || records[2][2] != "1965" {
		t.Fatalf("unexpected row: %v", records[2])
	}
	if names := dirEntries(t, dir); len(names) != 1 {
		t.Fatalf("staging files left behind: %v", names)
	}
}

func TestCSVWriterValidateHeaderOnly(t *testing.T) {
	writer, err := NewCSVWriter(filepath.Join(t.TempDir(), "books.csv"))
	if err != nil {
		t.Fatalf("create csv writer: %v", err)
	}
	defer writer.Close()

	if err := writer.Write(models.CleanDataset{}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := writer.Validate(); !errors.Is(err, ErrNoRows) {
		t.Fatalf("validate on header-only csv = %v, want ErrNoRows", err)
	}
}

func TestJSONWriterValidateEmpty(t *testing.T) {
	writer, err := NewJSONWriter(filepath.Join(t.TempDir(), "books.jsonl"))
	if err != nil {
		t.Fatalf("create json writer: %v", err)
	}
	defer writer.Close()

	if err := writer.Validate(); !errors.Is(err, ErrNoRows) {
		t.Fatalf("validate before any write = %v, want ErrNoRows", err)
	}
}

func TestWriterCloseKeepsPreviousExport(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "books.csv")
	previous := "title,authors,first_publish_year\nDune,Frank Herbert,1965\n"
	if err := os.WriteFile(path, []byte(previous), 0o644); err != nil {
		t.Fatalf("seed export: %v", err)
	}

	writer, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("create csv writer: %v", err)
	}
	if err := writer.Write(testRecords()); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if string(got) != previous {
		t.Fatalf("uncommitted export replaced the file: %q", got)
	}
	if names := dirEntries(t, dir); len(names) != 1 {
		t.Fatalf("staging files left behind: %v", names)
	}
}

func TestJSONWriterWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "books.jsonl")

	writer, err := NewJSONWriter(path)
	if err != nil {
		t.Fatalf("create json writer: %v", err)
	}
	exportAll(t, writer, testRecords())

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open json: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var decoded []models.CleanRecord
	for scanner.Scan() {
		var rec models.CleanRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("invalid json line: %v", err)
		}
		decoded = append(decoded, rec)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan json: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("json lines=%d, want 2", len(decoded))
	}
	if decoded[0].Authors != "X; Y" {
		t.Fatalf("authors=%q, want %q", decoded[0].Authors, "X; Y")
	}
}

func TestNewOutputWriterDual(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "books.csv")
	jsonPath := filepath.Join(dir, "books.json")

	writer, err := NewOutputWriter("dual", csvPath)
	if err != nil {
		t.Fatalf("create dual writer: %v", err)
	}
	exportAll(t, writer, testRecords())

	if info, err := os.Stat(csvPath); err != nil || info.Size() == 0 {
		t.Fatalf("csv file missing or empty")
	}
	if info, err := os.Stat(jsonPath); err != nil || info.Size() == 0 {
		t.Fatalf("json file missing or empty")
	}
}

func TestNewOutputWriterUnknownFormat(t *testing.T) {
	if _, err := NewOutputWriter("xml", filepath.Join(t.TempDir(), "books.xml")); err == nil {
		t.Fatalf("expected error for unsupported format")
	}
}
