package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteClient manages one read-only connection to one SQLite database file.
// A client is owned by a single extraction pass and released unconditionally
// when the pass finishes.
type SQLiteClient struct {
	db   *sql.DB
	path string
}

// NewSQLiteClient opens the database file read-only. The file is never
// created or mutated. Returns ErrNotFound if the path does not exist,
// ErrLocked on lock contention, and ErrCorrupt if the catalog is unreadable.
func NewSQLiteClient(ctx context.Context, path string) (*SQLiteClient, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to stat database: %w", err)
	}

	dsn := "file:" + path + "?mode=ro&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Probe the catalog so lock contention and corruption surface here
	// rather than halfway through extraction.
	var n int
	if err := db.QueryRowContext(ctx, "SELECT count(*) FROM sqlite_master").Scan(&n); err != nil {
		_ = db.Close()
		return nil, classifyError(err)
	}

	return &SQLiteClient{db: db, path: path}, nil
}

// Close closes the database connection
func (c *SQLiteClient) Close() error {
	return c.db.Close()
}

// GetDB returns the underlying database connection
func (c *SQLiteClient) GetDB() *sql.DB {
	return c.db
}

// Path returns the database file path the client was opened with.
func (c *SQLiteClient) Path() string {
	return c.path
}
