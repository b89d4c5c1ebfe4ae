package pipeline

import (
	"errors"

	"github.com/aluiziolira/go-fiction-books/models"
)

// DualWriter fans one export out to a CSV file and a JSONL file.
type DualWriter struct {
	csv  *CSVWriter
	json *JSONWriter
}

func NewDualWriter(csvFilename, jsonFilename string) (*DualWriter, error) {
	cw, err := NewCSVWriter(csvFilename)
	if err != nil {
		return nil, err
	}
	jw, err := NewJSONWriter(jsonFilename)
	if err != nil {
		cw.Close()
		return nil, err
	}
	return &DualWriter{csv: cw, json: jw}, nil
}

func (dw *DualWriter) Write(records models.CleanDataset) error {
	if err := dw.csv.Write(records); err != nil {
		return err
	}
	return dw.json.Write(records)
}

func (dw *DualWriter) Validate() error {
	return errors.Join(dw.csv.Validate(), dw.json.Validate())
}

// Commit publishes the CSV first. If the JSON rename then fails, the CSV
// is already in place.
func (dw *DualWriter) Commit() error {
	if err := dw.csv.Commit(); err != nil {
		dw.json.Close()
		return err
	}
	return dw.json.Commit()
}

func (dw *DualWriter) Close() error {
	return errors.Join(dw.csv.Close(), dw.json.Close())
}
