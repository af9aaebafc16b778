package db

import (
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

// Error kinds surfaced by extraction. Callers match them with errors.Is.
var (
	// ErrNotFound means the database file does not exist.
	ErrNotFound = errors.New("database file not found")

	// ErrLocked means another process holds an incompatible lock.
	ErrLocked = errors.New("database is locked")

	// ErrCorrupt means the catalog could not be parsed into a schema model.
	ErrCorrupt = errors.New("database file is corrupt or not a database")
)

// TableError records the failure of a single table during extraction.
type TableError struct {
	Table string
	Err   error
}

func (e *TableError) Error() string {
	return fmt.Sprintf("table %s: %v", e.Table, e.Err)
}

func (e *TableError) Unwrap() error { return e.Err }

// PartialError aggregates per-table failures from one extraction pass.
// The extraction still returns a model covering every table that succeeded.
type PartialError struct {
	Tables []*TableError
}

func (e *PartialError) Error() string {
	if len(e.Tables) == 1 {
		return fmt.Sprintf("extraction incomplete: %v", e.Tables[0])
	}
	return fmt.Sprintf("extraction incomplete: %d tables failed (first: %v)", len(e.Tables), e.Tables[0])
}

func (e *PartialError) Unwrap() []error {
	errs := make([]error, len(e.Tables))
	for i, te := range e.Tables {
		errs[i] = te
	}
	return errs
}

// classifyError maps SQLite engine error codes onto the error kinds above.
// Errors that match no kind pass through unchanged.
func classifyError(err error) error {
	var serr sqlite3.Error
	if !errors.As(err, &serr) {
		return err
	}
	switch serr.Code {
	case sqlite3.ErrBusy, sqlite3.ErrLocked:
		return fmt.Errorf("%w: %v", ErrLocked, err)
	case sqlite3.ErrCorrupt, sqlite3.ErrNotADB:
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return err
}
