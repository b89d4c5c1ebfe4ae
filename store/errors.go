package store

import (
	"errors"
	"fmt"
)

// ErrTableNotFound is wrapped by StoreError when the table does not exist.
var ErrTableNotFound = errors.New("table not found")

// StoreError reports a failed store operation.
type StoreError struct {
	Op    string
	Table string
	Err   error
}

func (e *StoreError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store %s %q: %v", e.Op, e.Table, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
