// Package store persists a clean dataset to a SQLite table, replacing the
// table wholesale on every save.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/aluiziolira/go-fiction-books/config"
	"github.com/aluiziolira/go-fiction-books/models"
)

// Store is a file-backed table holding one CleanDataset.
type Store struct {
	db    *sql.DB
	table string
}

// Open opens (creating if needed) the database at path for table.
func Open(path, table string) (*Store, error) {
	if !config.ValidTableName(table) {
		return nil, &StoreError{Op: "open", Table: table, Err: fmt.Errorf("invalid table name")}
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &StoreError{Op: "open", Err: fmt.Errorf("creating database dir: %w", err)}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &StoreError{Op: "open", Err: err}
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &StoreError{Op: "open", Err: err}
	}

	return &Store{db: db, table: table}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Table returns the table name this store writes to.
func (s *Store) Table() string {
	return s.table
}

func (s *Store) quotedTable() string {
	return `"` + s.table + `"`
}

func createTableSQL(table string) string {
	defs := make([]string, len(models.Schema))
	for i, col := range models.Schema {
		defs[i] = fmt.Sprintf("%s %s NOT NULL", col.Name, col.Type)
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", table, strings.Join(defs, ", "))
}

func insertSQL(table string) string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(models.Schema)), ", ")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, models.ColumnList(), placeholders)
}

// Save replaces the table contents with ds. Any existing rows are discarded.
func (s *Store) Save(ctx context.Context, ds models.CleanDataset) error {
	if err := s.save(ctx, ds); err != nil {
		return &StoreError{Op: "save", Table: s.table, Err: err}
	}
	return nil
}

func (s *Store) save(ctx context.Context, ds models.CleanDataset) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+s.quotedTable()); err != nil {
		return fmt.Errorf("dropping table: %w", err)
	}
	if _, err := tx.ExecContext(ctx, createTableSQL(s.quotedTable())); err != nil {
		return fmt.Errorf("creating table: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, insertSQL(s.quotedTable()))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, rec := range ds {
		if _, err := stmt.ExecContext(ctx, rec.Values()...); err != nil {
			return fmt.Errorf("inserting row %d (%q): %w", i, rec.Title, err)
		}
	}

	return tx.Commit()
}

// Load returns every stored row in storage order.
func (s *Store) Load(ctx context.Context) (models.CleanDataset, error) {
	ds, err := s.load(ctx)
	if err != nil {
		return nil, &StoreError{Op: "load", Table: s.table, Err: err}
	}
	return ds, nil
}

func (s *Store) load(ctx context.Context) (models.CleanDataset, error) {
	exists, err := s.tableExists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrTableNotFound
	}

	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY rowid", models.ColumnList(), s.quotedTable())
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying rows: %w", err)
	}
	defer rows.Close()

	ds := models.CleanDataset{}
	for rows.Next() {
		var (
			rec  models.CleanRecord
			year int64
		)
		if err := rows.Scan(&rec.Title, &rec.Authors, &year); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		rec.FirstPublishYear = int(year)
		ds = append(ds, rec)
	}
	return ds, rows.Err()
}

// Count returns the number of stored rows.
func (s *Store) Count(ctx context.Context) (int, error) {
	exists, err := s.tableExists(ctx)
	if err != nil {
		return 0, &StoreError{Op: "count", Table: s.table, Err: err}
	}
	if !exists {
		return 0, &StoreError{Op: "count", Table: s.table, Err: ErrTableNotFound}
	}

	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+s.quotedTable()).Scan(&n); err != nil {
		return 0, &StoreError{Op: "count", Table: s.table, Err: err}
	}
	return n, nil
}

func (s *Store) tableExists(ctx context.Context) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", s.table,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking table: %w", err)
	}
	return n > 0, nil
}
