package schemadelta

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
)

func TestParseSource(t *testing.T) {
	tests := []struct {
		source  string
		engine  string
		connStr string
		wantErr bool
	}{
		{source: "app.db", engine: "sqlite", connStr: "app.db"},
		{source: "/var/data/app.db", engine: "sqlite", connStr: "/var/data/app.db"},
		{source: "sqlite://app.db", engine: "sqlite", connStr: "app.db"},
		{source: "postgres://u:p@localhost:5432/db", engine: "postgres", connStr: "postgres://u:p@localhost:5432/db"},
		{source: "postgresql://u:p@localhost/db", engine: "postgres", connStr: "postgresql://u:p@localhost/db"},
		{source: "mysql://u:p@tcp(localhost:3306)/db", engine: "mysql", connStr: "u:p@tcp(localhost:3306)/db"},
		{source: "redis://localhost", wantErr: true},
		{source: "", wantErr: true},
	}

	for _, tt := range tests {
		engine, connStr, err := parseSource(tt.source)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseSource(%q) expected error", tt.source)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseSource(%q) error: %v", tt.source, err)
			continue
		}
		if engine != tt.engine || connStr != tt.connStr {
			t.Errorf("parseSource(%q) = (%q, %q), want (%q, %q)", tt.source, engine, connStr, tt.engine, tt.connStr)
		}
	}
}

func TestExtractNotFound(t *testing.T) {
	_, err := Extract(context.Background(), filepath.Join(t.TempDir(), "missing.db"))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func buildDB(t *testing.T, name string, stmts ...string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
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

// TestMigrationRoundTrip extracts two databases, generates a migration from
// the structural diff, applies it to the old database, and verifies the
// migrated database matches the new structure with its data intact.
func TestMigrationRoundTrip(t *testing.T) {
	ctx := context.Background()

	oldPath := buildDB(t, "old.db",
		"CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT)",
		"CREATE TABLE orders (id INTEGER PRIMARY KEY, user_id INTEGER)",
		"INSERT INTO users (id, name) VALUES (1, 'alice'), (2, 'bob')",
		"INSERT INTO orders (id, user_id) VALUES (10, 1)",
	)
	newPath := buildDB(t, "new.db",
		"CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL, email TEXT NOT NULL DEFAULT '')",
		"CREATE TABLE audit (id INTEGER PRIMARY KEY, msg TEXT)",
	)

	oldModel, err := Extract(ctx, oldPath)
	if err != nil {
		t.Fatalf("extract old: %v", err)
	}
	newModel, err := Extract(ctx, newPath)
	if err != nil {
		t.Fatalf("extract new: %v", err)
	}

	d := Compare(oldModel, newModel)
	script := GenerateMigration(d, oldModel, newModel, &MigrationOptions{IncludeDrop: true})

	conn, err := sql.Open("sqlite3", oldPath)
	if err != nil {
		t.Fatalf("failed to reopen old database: %v", err)
	}
	if _, err := conn.Exec(script); err != nil {
		conn.Close()
		t.Fatalf("migration failed: %v\n%s", err, script)
	}

	// The migrated database must match the new structure.
	migrated, err := Extract(ctx, oldPath)
	if err != nil {
		conn.Close()
		t.Fatalf("extract migrated: %v", err)
	}
	if residual := Compare(migrated, newModel); !residual.Empty() {
		t.Errorf("migrated schema still differs from target:\n%s", Report(residual, "migrated", "target"))
	}

	// Existing rows survive the recreation; the added column takes its
	// declared default.
	rows, err := conn.Query("SELECT id, name, email FROM users ORDER BY id")
	if err != nil {
		conn.Close()
		t.Fatalf("query migrated users: %v", err)
	}
	var got []struct {
		id    int
		name  string
		email string
	}
	for rows.Next() {
		var r struct {
			id    int
			name  string
			email string
		}
		if err := rows.Scan(&r.id, &r.name, &r.email); err != nil {
			t.Fatalf("scan: %v", err)
		}
		got = append(got, r)
	}
	rows.Close()

	if len(got) != 2 || got[0].name != "alice" || got[1].name != "bob" {
		t.Fatalf("row data lost in migration: %+v", got)
	}
	for _, r := range got {
		if r.email != "" {
			t.Errorf("added column must take its default, got %q", r.email)
		}
	}

	var n int
	if err := conn.QueryRow("SELECT count(*) FROM sqlite_master WHERE name = 'orders'").Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Error("removed table must be dropped with IncludeDrop")
	}
	if err := conn.QueryRow("SELECT count(*) FROM sqlite_master WHERE name = 'audit'").Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Error("added table must exist after migration")
	}
	conn.Close()
}

// TestAdditiveMigrationRoundTrip covers the pure ALTER path: a nullable
// column addition must not recreate the table.
func TestAdditiveMigrationRoundTrip(t *testing.T) {
	ctx := context.Background()

	oldPath := buildDB(t, "old.db",
		"CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT)",
		"INSERT INTO notes (id, body) VALUES (1, 'hello')",
	)
	newPath := buildDB(t, "new.db",
		"CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT, tag TEXT)",
	)

	oldModel, err := Extract(ctx, oldPath)
	if err != nil {
		t.Fatalf("extract old: %v", err)
	}
	newModel, err := Extract(ctx, newPath)
	if err != nil {
		t.Fatalf("extract new: %v", err)
	}

	script := GenerateMigration(Compare(oldModel, newModel), oldModel, newModel, nil)

	conn, err := sql.Open("sqlite3", oldPath)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	if _, err := conn.Exec(script); err != nil {
		t.Fatalf("migration failed: %v\n%s", err, script)
	}

	migrated, err := Extract(ctx, oldPath)
	if err != nil {
		t.Fatalf("extract migrated: %v", err)
	}
	if residual := Compare(migrated, newModel); !residual.Empty() {
		t.Errorf("migrated schema still differs from target:\n%s", Report(residual, "migrated", "target"))
	}

	var body string
	var tag *string
	if err := conn.QueryRow("SELECT body, tag FROM notes WHERE id = 1").Scan(&body, &tag); err != nil {
		t.Fatalf("query migrated notes: %v", err)
	}
	if body != "hello" || tag != nil {
		t.Errorf("unexpected row after additive migration: body=%q tag=%v", body, tag)
	}
}

// TestUniqueColumnMigrationRoundTrip adds a column carrying a UNIQUE
// constraint. The constraint cannot be expressed with ALTER TABLE, so the
// migration must recreate the table; afterwards duplicate values must still
// be rejected.
func TestUniqueColumnMigrationRoundTrip(t *testing.T) {
	ctx := context.Background()

	oldPath := buildDB(t, "old.db",
		"CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT)",
		"INSERT INTO users (id, name) VALUES (1, 'alice')",
	)
	newPath := buildDB(t, "new.db",
		"CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT, email TEXT UNIQUE)",
	)

	oldModel, err := Extract(ctx, oldPath)
	if err != nil {
		t.Fatalf("extract old: %v", err)
	}
	newModel, err := Extract(ctx, newPath)
	if err != nil {
		t.Fatalf("extract new: %v", err)
	}

	script := GenerateMigration(Compare(oldModel, newModel), oldModel, newModel, nil)

	conn, err := sql.Open("sqlite3", oldPath)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	if _, err := conn.Exec(script); err != nil {
		t.Fatalf("migration failed: %v\n%s", err, script)
	}

	migrated, err := Extract(ctx, oldPath)
	if err != nil {
		t.Fatalf("extract migrated: %v", err)
	}
	if residual := Compare(migrated, newModel); !residual.Empty() {
		t.Errorf("migrated schema still differs from target:\n%s", Report(residual, "migrated", "target"))
	}

	if _, err := conn.Exec("UPDATE users SET email = 'a@b' WHERE id = 1"); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := conn.Exec("INSERT INTO users (id, name, email) VALUES (2, 'bob', 'a@b')"); err == nil {
		t.Error("duplicate value accepted: the uniqueness constraint was lost in migration")
	}
}

func TestRenderSchemaEndToEnd(t *testing.T) {
	ctx := context.Background()

	path := buildDB(t, "app.db",
		"CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT)",
		"CREATE INDEX idx_users_name ON users (name)",
	)
	model, err := Extract(ctx, path)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	// The rendered DDL must rebuild an equivalent database.
	opts := DefaultRenderOptions()
	opts.IncludeComments = false
	ddl := RenderSchema(model, &opts)

	clonePath := buildDB(t, "clone.db", ddl)
	clone, err := Extract(ctx, clonePath)
	if err != nil {
		t.Fatalf("extract clone: %v", err)
	}
	if residual := Compare(model, clone); !residual.Empty() {
		t.Errorf("re-created schema differs from original:\n%s", Report(residual, "original", "clone"))
	}
}
