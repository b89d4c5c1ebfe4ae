// Package normalizer turns raw search documents into a clean, deduplicated
// dataset.
package normalizer

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aluiziolira/go-fiction-books/models"
)

// Drop reasons reported in Stats.
const (
	ReasonMissingTitle   = "missing_title"
	ReasonMissingAuthors = "missing_authors"
	ReasonInvalidYear    = "invalid_year"
	ReasonDuplicate      = "duplicate"
)

// Stats summarises one Clean call.
type Stats struct {
	Input   int
	Output  int
	Dropped map[string]int
}

// TotalDropped returns the number of input records that did not survive.
func (s Stats) TotalDropped() int {
	total := 0
	for _, n := range s.Dropped {
		total += n
	}
	return total
}

// Clean applies the cleaning stages to raw and returns the dataset.
func Clean(raw []models.RawRecord) models.CleanDataset {
	ds, _ := CleanWithStats(raw)
	return ds
}

// row is a record between stages. Nil pointers are nulls awaiting the
// required-field drop.
type row struct {
	raw     models.RawRecord
	title   string
	authors *string
	year    *int
}

// CleanWithStats is Clean plus per-reason drop counts. The stages run in a
// fixed order: each one relies on the nulls removed by the previous ones.
func CleanWithStats(raw []models.RawRecord) (models.CleanDataset, Stats) {
	stats := Stats{Input: len(raw), Dropped: make(map[string]int)}

	rows := filterTitles(raw, stats.Dropped)
	flattenAuthors(rows)
	coerceYears(rows)
	rows = dropIncomplete(rows, stats.Dropped)
	out := dedupe(rows, stats.Dropped)

	stats.Output = len(out)
	return out, stats
}

func filterTitles(raw []models.RawRecord, dropped map[string]int) []row {
	rows := make([]row, 0, len(raw))
	for _, rec := range raw {
		title, ok := Title(rec.Title)
		if !ok {
			dropped[ReasonMissingTitle]++
			continue
		}
		rows = append(rows, row{raw: rec, title: title})
	}
	return rows
}

func flattenAuthors(rows []row) {
	for i := range rows {
		if joined, ok := JoinAuthors(rows[i].raw.Authors); ok {
			rows[i].authors = &joined
		}
	}
}

func coerceYears(rows []row) {
	for i := range rows {
		if year, ok := CoerceYear(rows[i].raw.FirstPublishYear); ok {
			rows[i].year = &year
		}
	}
}

func dropIncomplete(rows []row, dropped map[string]int) []row {
	kept := rows[:0]
	for _, r := range rows {
		switch {
		case r.authors == nil:
			dropped[ReasonMissingAuthors]++
		case r.year == nil:
			dropped[ReasonInvalidYear]++
		default:
			kept = append(kept, r)
		}
	}
	return kept
}

func dedupe(rows []row, dropped map[string]int) models.CleanDataset {
	out := make(models.CleanDataset, 0, len(rows))
	if len(rows) == 0 {
		return out
	}

	// Sized to the input so nothing is ever evicted. lru.New only rejects
	// a non-positive size, which the empty check above rules out.
	seen, _ := lru.New[models.DedupKey, struct{}](len(rows))
	for _, r := range rows {
		rec := models.CleanRecord{
			Title:            r.title,
			Authors:          *r.authors,
			FirstPublishYear: *r.year,
		}
		key := rec.Key()
		if seen.Contains(key) {
			dropped[ReasonDuplicate]++
			continue
		}
		seen.Add(key, struct{}{})
		out = append(out, rec)
	}
	return out
}
