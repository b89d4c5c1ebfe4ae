package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/aluiziolira/go-fiction-books/models"
)

// ErrNoRows is returned by Validate when an exporter received no records.
var ErrNoRows = errors.New("no rows exported")

// stagedFile collects output in a temp file beside path. Commit renames it
// over path; Discard removes it and leaves any previous export untouched.
type stagedFile struct {
	path string
	tmp  *os.File
	done bool
}

func newStagedFile(path string) (*stagedFile, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("stage %s: %w", path, err)
	}
	return &stagedFile{path: path, tmp: tmp}, nil
}

func (s *stagedFile) commit() error {
	if s.done {
		return fmt.Errorf("export %s already finished", s.path)
	}
	s.done = true
	if err := s.tmp.Chmod(0o644); err != nil {
		s.tmp.Close()
		os.Remove(s.tmp.Name())
		return fmt.Errorf("chmod staged %s: %w", s.path, err)
	}
	if err := s.tmp.Close(); err != nil {
		os.Remove(s.tmp.Name())
		return fmt.Errorf("close staged %s: %w", s.path, err)
	}
	if err := os.Rename(s.tmp.Name(), s.path); err != nil {
		os.Remove(s.tmp.Name())
		return fmt.Errorf("publish %s: %w", s.path, err)
	}
	return nil
}

func (s *stagedFile) discard() error {
	if s.done {
		return nil
	}
	s.done = true
	closeErr := s.tmp.Close()
	if err := os.Remove(s.tmp.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return closeErr
}

// rowCount checks that every record handed to Write reached the output.
type rowCount struct {
	expected int
	written  int
}

func (rc *rowCount) validate(kind string) error {
	if rc.written == 0 {
		return fmt.Errorf("%s export: %w", kind, ErrNoRows)
	}
	if rc.written != rc.expected {
		return fmt.Errorf("%s export: wrote %d of %d rows", kind, rc.written, rc.expected)
	}
	return nil
}

// CSVWriter exports a dataset as CSV with a Schema header row.
type CSVWriter struct {
	file *stagedFile
	csv  *csv.Writer
	rows rowCount
}

// NewCSVWriter stages a CSV export for filename. Nothing at filename changes
// until Commit.
func NewCSVWriter(filename string) (*CSVWriter, error) {
	file, err := newStagedFile(filename)
	if err != nil {
		return nil, err
	}

	cw := &CSVWriter{file: file, csv: csv.NewWriter(file.tmp)}
	if err := cw.csv.Write(models.ColumnNames()); err != nil {
		file.discard()
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	return cw, nil
}

func (cw *CSVWriter) Write(records models.CleanDataset) error {
	cw.rows.expected += len(records)
	for _, rec := range records {
		row := []string{rec.Title, rec.Authors, strconv.Itoa(rec.FirstPublishYear)}
		if err := cw.csv.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
		cw.rows.written++
	}
	cw.csv.Flush()
	return cw.csv.Error()
}

// Validate fails when no rows were written or some were lost.
func (cw *CSVWriter) Validate() error {
	return cw.rows.validate("csv")
}

// Commit moves the staged CSV over the target file.
func (cw *CSVWriter) Commit() error {
	cw.csv.Flush()
	if err := cw.csv.Error(); err != nil {
		cw.file.discard()
		return fmt.Errorf("flush csv: %w", err)
	}
	return cw.file.commit()
}

// Close drops an uncommitted export.
func (cw *CSVWriter) Close() error {
	return cw.file.discard()
}

// JSONWriter exports a dataset as JSON lines.
type JSONWriter struct {
	file *stagedFile
	buf  *bufio.Writer
	enc  *json.Encoder
	rows rowCount
}

// NewJSONWriter stages a JSONL export for filename.
func NewJSONWriter(filename string) (*JSONWriter, error) {
	file, err := newStagedFile(filename)
	if err != nil {
		return nil, err
	}
	buf := bufio.NewWriter(file.tmp)
	return &JSONWriter{file: file, buf: buf, enc: json.NewEncoder(buf)}, nil
}

func (jw *JSONWriter) Write(records models.CleanDataset) error {
	jw.rows.expected += len(records)
	for _, rec := range records {
		if err := jw.enc.Encode(rec); err != nil {
			return fmt.Errorf("encode json row: %w", err)
		}
		jw.rows.written++
	}
	return nil
}

func (jw *JSONWriter) Validate() error {
	return jw.rows.validate("json")
}

func (jw *JSONWriter) Commit() error {
	if err := jw.buf.Flush(); err != nil {
		jw.file.discard()
		return fmt.Errorf("flush json: %w", err)
	}
	return jw.file.commit()
}

func (jw *JSONWriter) Close() error {
	return jw.file.discard()
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}

// NewOutputWriter returns the exporter for format. The dual format writes
// filename as CSV and a sibling .json file.
func NewOutputWriter(format, filename string) (OutputWriter, error) {
	switch format {
	case "json":
		return NewJSONWriter(filename)
	case "csv":
		return NewCSVWriter(filename)
	case "dual":
		jsonFilename := strings.TrimSuffix(filename, ".csv") + ".json"
		return NewDualWriter(filename, jsonFilename)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}
