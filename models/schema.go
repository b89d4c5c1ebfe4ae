package models

import "strings"

// Column describes one column of the stored table.
type Column struct {
	Name string
	Type string
}

// Schema is the column layout shared by the normalizer output, the store and
// the exporters. Order matches CleanRecord.Values.
var Schema = []Column{
	{Name: "title", Type: "TEXT"},
	{Name: "authors", Type: "TEXT"},
	{Name: "first_publish_year", Type: "INTEGER"},
}

// ColumnNames returns the Schema column names in order.
func ColumnNames() []string {
	names := make([]string, len(Schema))
	for i, col := range Schema {
		names[i] = col.Name
	}
	return names
}

// ColumnList renders the column names for use in SQL statements.
func ColumnList() string {
	return strings.Join(ColumnNames(), ", ")
}
