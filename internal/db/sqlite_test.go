package db

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mattn/go-sqlite3"
)

// createTestDB builds a throwaway SQLite database from the given statements
// and returns its path.
func createTestDB(t *testing.T, stmts ...string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("failed to open fixture database: %v", err)
	}
	defer conn.Close()

	for _, stmt := range stmts {
		if _, err := conn.Exec(stmt); err != nil {
			t.Fatalf("fixture statement failed: %v\n%s", err, stmt)
		}
	}
	return path
}

func openExtractor(t *testing.T, path string) *SQLiteExtractor {
	t.Helper()

	client, err := NewSQLiteClient(context.Background(), path)
	if err != nil {
		t.Fatalf("failed to open client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return NewSQLiteExtractor(client)
}

func TestExtractBasic(t *testing.T) {
	path := createTestDB(t,
		`CREATE TABLE users (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT DEFAULT 'none'
		)`,
	)

	model, err := openExtractor(t, path).Extract(context.Background())
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}

	if model.Source != path {
		t.Errorf("Source = %q, want %q", model.Source, path)
	}
	if len(model.Tables) != 1 {
		t.Fatalf("expected 1 table, got %d", len(model.Tables))
	}

	users := model.Table("users")
	if users == nil {
		t.Fatal("users table missing from model")
	}
	if !strings.Contains(users.SQL, "CREATE TABLE users") {
		t.Errorf("verbatim SQL not captured: %q", users.SQL)
	}
	if users.Opaque {
		t.Error("ordinary table must not be opaque")
	}

	if got := users.ColumnNames(); len(got) != 3 || got[0] != "id" || got[1] != "name" || got[2] != "email" {
		t.Fatalf("columns out of order: %v", got)
	}

	id := users.Column("id")
	if !id.PrimaryKey || id.Ordinal != 0 {
		t.Errorf("id column: %+v", id)
	}
	name := users.Column("name")
	if !name.NotNull || name.Type != "TEXT" {
		t.Errorf("name column: %+v", name)
	}
	email := users.Column("email")
	if email.Default == nil || *email.Default != "'none'" {
		t.Errorf("email default: %+v", email.Default)
	}
}

func TestExtractDiscoveryOrder(t *testing.T) {
	path := createTestDB(t,
		"CREATE TABLE zebra (id INTEGER)",
		"CREATE TABLE apple (id INTEGER)",
		"CREATE TABLE mango (id INTEGER)",
	)

	model, err := openExtractor(t, path).Extract(context.Background())
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}

	got := model.TableNames()
	want := []string{"zebra", "apple", "mango"}
	if len(got) != len(want) {
		t.Fatalf("expected %d tables, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("tables must keep catalog order, got %v want %v", got, want)
		}
	}
}

func TestExtractIndexesTriggersViews(t *testing.T) {
	path := createTestDB(t,
		"CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT UNIQUE, age INT)",
		"CREATE INDEX idx_users_age ON users (age)",
		"CREATE UNIQUE INDEX idx_users_name_age ON users (name, age)",
		"CREATE TRIGGER users_touch AFTER UPDATE ON users BEGIN SELECT 1; END",
		"CREATE VIEW adults AS SELECT * FROM users WHERE age >= 18",
	)

	model, err := openExtractor(t, path).Extract(context.Background())
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}

	users := model.Table("users")

	// The implicit index behind the UNIQUE constraint has no SQL in the
	// catalog and must not appear; the constraint is folded onto the column.
	if len(users.Indexes) != 2 {
		t.Fatalf("expected 2 explicit indexes, got %+v", users.Indexes)
	}
	if !users.Column("name").Unique {
		t.Error("column-level UNIQUE must be captured from the constraint's auto-index")
	}
	if users.Column("age").Unique {
		t.Error("unconstrained column must not be marked unique")
	}
	byName := map[string]int{}
	for i, idx := range users.Indexes {
		byName[idx.Name] = i
	}
	plain := users.Indexes[byName["idx_users_age"]]
	if plain.Unique || len(plain.Columns) != 1 || plain.Columns[0] != "age" {
		t.Errorf("idx_users_age: %+v", plain)
	}
	unique := users.Indexes[byName["idx_users_name_age"]]
	if !unique.Unique || len(unique.Columns) != 2 || unique.Columns[0] != "name" {
		t.Errorf("idx_users_name_age: %+v", unique)
	}
	if !strings.Contains(unique.SQL, "CREATE UNIQUE INDEX idx_users_name_age") {
		t.Errorf("verbatim index SQL not captured: %q", unique.SQL)
	}

	if len(users.Triggers) != 1 || users.Triggers[0].Name != "users_touch" {
		t.Fatalf("triggers: %+v", users.Triggers)
	}
	if !strings.Contains(users.Triggers[0].SQL, "AFTER UPDATE ON users") {
		t.Errorf("verbatim trigger SQL not captured: %q", users.Triggers[0].SQL)
	}

	if len(model.Views) != 1 || model.Views[0].Name != "adults" {
		t.Fatalf("views: %+v", model.Views)
	}
}

func TestExtractForeignKeys(t *testing.T) {
	path := createTestDB(t,
		"CREATE TABLE users (id INTEGER PRIMARY KEY)",
		`CREATE TABLE orders (
			id INTEGER PRIMARY KEY,
			user_id INTEGER REFERENCES users(id) ON DELETE CASCADE
		)`,
	)

	model, err := openExtractor(t, path).Extract(context.Background())
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}

	orders := model.Table("orders")
	if len(orders.ForeignKeys) != 1 {
		t.Fatalf("foreign keys: %+v", orders.ForeignKeys)
	}
	fk := orders.ForeignKeys[0]
	if fk.FromColumn != "user_id" || fk.RefTable != "users" || fk.RefColumn != "id" {
		t.Errorf("fk target: %+v", fk)
	}
	if fk.OnDelete != "CASCADE" {
		t.Errorf("fk on delete: %q", fk.OnDelete)
	}
}

func TestExtractGeneratedColumnOpaque(t *testing.T) {
	path := createTestDB(t,
		`CREATE TABLE prices (
			amount INTEGER,
			doubled INTEGER GENERATED ALWAYS AS (amount * 2) VIRTUAL
		)`,
	)

	model, err := openExtractor(t, path).Extract(context.Background())
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}

	prices := model.Table("prices")
	if !prices.Opaque {
		t.Error("table with a generated column must be opaque")
	}
	if prices.Column("doubled") != nil {
		t.Error("generated column must not appear in the structured column list")
	}
	if prices.Column("amount") == nil {
		t.Error("ordinary column must still be modeled")
	}
	if !strings.Contains(prices.SQL, "GENERATED ALWAYS") {
		t.Errorf("verbatim SQL must keep the generated clause: %q", prices.SQL)
	}
}

func TestExtractSkipsInternalTables(t *testing.T) {
	path := createTestDB(t,
		"CREATE TABLE items (id INTEGER PRIMARY KEY AUTOINCREMENT, label TEXT)",
	)

	model, err := openExtractor(t, path).Extract(context.Background())
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}

	// AUTOINCREMENT creates sqlite_sequence, which must be filtered out.
	if len(model.Tables) != 1 || model.Tables[0].Name != "items" {
		t.Errorf("internal tables leaked into the model: %v", model.TableNames())
	}
}

func TestNewSQLiteClientNotFound(t *testing.T) {
	_, err := NewSQLiteClient(context.Background(), filepath.Join(t.TempDir(), "missing.db"))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestNewSQLiteClientCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.db")
	if err := os.WriteFile(path, []byte("this is not a database file at all"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := NewSQLiteClient(context.Background(), path)
	if !errors.Is(err, ErrCorrupt) {
		t.Errorf("expected ErrCorrupt, got %v", err)
	}
}

func TestClassifyError(t *testing.T) {
	if err := classifyError(sqlite3.Error{Code: sqlite3.ErrBusy}); !errors.Is(err, ErrLocked) {
		t.Errorf("busy should map to ErrLocked, got %v", err)
	}
	if err := classifyError(sqlite3.Error{Code: sqlite3.ErrNotADB}); !errors.Is(err, ErrCorrupt) {
		t.Errorf("not-a-db should map to ErrCorrupt, got %v", err)
	}
	plain := errors.New("unrelated")
	if err := classifyError(plain); err != plain {
		t.Errorf("unrelated errors must pass through, got %v", err)
	}
}

func TestPartialError(t *testing.T) {
	inner := errors.New("boom")
	perr := &PartialError{Tables: []*TableError{
		{Table: "users", Err: inner},
		{Table: "orders", Err: errors.New("other")},
	}}

	if !strings.Contains(perr.Error(), "2 tables failed") {
		t.Errorf("unexpected message: %v", perr)
	}
	if !errors.Is(perr, inner) {
		t.Error("PartialError must unwrap to the per-table causes")
	}

	single := &PartialError{Tables: perr.Tables[:1]}
	if !strings.Contains(single.Error(), "table users") {
		t.Errorf("unexpected single-table message: %v", single)
	}
}
