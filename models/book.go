// Package models defines the records that flow through the book pipeline.
package models

import (
	"bytes"
	"encoding/json"
	"strings"
)

// AuthorDelimiter joins author names into the single authors column.
const AuthorDelimiter = "; "

// Field names as they appear in the search payload.
const (
	FieldTitle            = "title"
	FieldAuthors          = "author_name"
	FieldFirstPublishYear = "first_publish_year"
)

// RawRecord is a search result document before validation. Each field keeps
// the raw JSON value of its key: nil when the key was absent from the
// payload, the literal null when the payload carried JSON null.
type RawRecord struct {
	Title            json.RawMessage `json:"title,omitempty"`
	Authors          json.RawMessage `json:"author_name,omitempty"`
	FirstPublishYear json.RawMessage `json:"first_publish_year,omitempty"`
}

// Has reports whether the named field was present in the payload.
func (r RawRecord) Has(field string) bool {
	return r.field(field) != nil
}

// IsNull reports whether the named field is absent or JSON null.
func (r RawRecord) IsNull(field string) bool {
	return isNull(r.field(field))
}

func (r RawRecord) field(name string) json.RawMessage {
	switch name {
	case FieldTitle:
		return r.Title
	case FieldAuthors:
		return r.Authors
	case FieldFirstPublishYear:
		return r.FirstPublishYear
	default:
		return nil
	}
}

func isNull(v json.RawMessage) bool {
	trimmed := bytes.TrimSpace(v)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// NewRawRecord builds a RawRecord from Go values. A nil argument leaves the
// field absent; use RawNull to set an explicit JSON null.
func NewRawRecord(title, authors, year any) RawRecord {
	return RawRecord{
		Title:            rawValue(title),
		Authors:          rawValue(authors),
		FirstPublishYear: rawValue(year),
	}
}

// RawNull is the JSON null literal, for building records with null fields.
var RawNull = json.RawMessage("null")

func rawValue(v any) json.RawMessage {
	switch val := v.(type) {
	case nil:
		return nil
	case json.RawMessage:
		return val
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}

// CleanRecord is a validated row. All fields are required.
type CleanRecord struct {
	Title            string `csv:"title" json:"title"`
	Authors          string `csv:"authors" json:"authors"`
	FirstPublishYear int    `csv:"first_publish_year" json:"first_publish_year"`
}

// Key identifies a record for deduplication.
func (c CleanRecord) Key() DedupKey {
	return DedupKey{Title: c.Title, Authors: c.Authors}
}

// Values returns the row in Schema column order.
func (c CleanRecord) Values() []any {
	return []any{c.Title, c.Authors, c.FirstPublishYear}
}

// AsRaw reinterprets a clean record as search input, splitting the authors
// column back into a name list.
func (c CleanRecord) AsRaw() RawRecord {
	return NewRawRecord(c.Title, strings.Split(c.Authors, AuthorDelimiter), c.FirstPublishYear)
}

// DedupKey is the composite uniqueness key of a CleanDataset.
type DedupKey struct {
	Title   string
	Authors string
}

// CleanDataset is an ordered set of CleanRecord, unique on (title, authors).
type CleanDataset []CleanRecord

// AsRaw reinterprets every record as raw input.
func (d CleanDataset) AsRaw() []RawRecord {
	out := make([]RawRecord, len(d))
	for i, rec := range d {
		out[i] = rec.AsRaw()
	}
	return out
}

// YearCount is one bucket of a YearHistogram.
type YearCount struct {
	Year  int `json:"year"`
	Count int `json:"count"`
}

// YearHistogram counts records per first publish year, ascending by year.
type YearHistogram []YearCount

// Total returns the number of records counted.
func (h YearHistogram) Total() int {
	total := 0
	for _, bucket := range h {
		total += bucket.Count
	}
	return total
}
