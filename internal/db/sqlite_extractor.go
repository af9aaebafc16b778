package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/schemadelta/schemadelta/internal/schema"
)

// SQLiteExtractor builds a schema model from one SQLite database file.
// Tables are enumerated in catalog discovery order (the order sqlite_master
// reports them), so output is reproducible run to run for an unchanged file.
type SQLiteExtractor struct {
	client *SQLiteClient
}

// NewSQLiteExtractor creates a new SQLite schema extractor
func NewSQLiteExtractor(client *SQLiteClient) *SQLiteExtractor {
	return &SQLiteExtractor{
		client: client,
	}
}

// Extract builds the full schema model. Single-table failures do not abort
// the pass: the returned model covers every table that extracted cleanly,
// and the failures are reported together as a *PartialError.
func (e *SQLiteExtractor) Extract(ctx context.Context) (*schema.Model, error) {
	model := &schema.Model{Source: e.client.Path()}

	tables, err := e.tableCatalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate tables: %w", err)
	}

	var failed []*TableError
	for _, entry := range tables {
		table, err := e.extractTable(ctx, entry.name, entry.sql)
		if err != nil {
			failed = append(failed, &TableError{Table: entry.name, Err: err})
			continue
		}
		model.Tables = append(model.Tables, *table)
	}

	views, err := e.Views(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate views: %w", err)
	}
	model.Views = views

	if len(failed) > 0 {
		return model, &PartialError{Tables: failed}
	}
	return model, nil
}

type catalogEntry struct {
	name string
	sql  string
}

// tableCatalog lists user tables with their verbatim CREATE statements.
// No ORDER BY: the sqlite_master scan order is the discovery order the
// rest of the pipeline depends on.
func (e *SQLiteExtractor) tableCatalog(ctx context.Context) ([]catalogEntry, error) {
	query := `
		SELECT name, sql
		FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query)
	if err != nil {
		return nil, classifyError(err)
	}
	defer rows.Close()

	var entries []catalogEntry
	for rows.Next() {
		var name string
		var createSQL sql.NullString
		if err := rows.Scan(&name, &createSQL); err != nil {
			return nil, err
		}
		entries = append(entries, catalogEntry{name: name, sql: createSQL.String})
	}

	return entries, rows.Err()
}

// extractTable gathers everything for a single table. Extraction of a table
// either fully succeeds or the table is omitted and the error surfaced; a
// model never contains a partially populated table.
func (e *SQLiteExtractor) extractTable(ctx context.Context, tableName, createSQL string) (*schema.Table, error) {
	table := &schema.Table{Name: tableName, SQL: createSQL}

	columns, opaque, err := e.columns(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to extract columns: %w", err)
	}
	table.Columns = columns
	table.Opaque = opaque

	if err := e.markUniqueColumns(ctx, tableName, table); err != nil {
		return nil, fmt.Errorf("failed to resolve unique constraints: %w", err)
	}

	indexes, err := e.Indexes(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to extract indexes: %w", err)
	}
	table.Indexes = indexes

	triggers, err := e.Triggers(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to extract triggers: %w", err)
	}
	table.Triggers = triggers

	fks, err := e.ForeignKeys(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to extract foreign keys: %w", err)
	}
	table.ForeignKeys = fks

	return table, nil
}

// Columns returns the column list in the exact ordinal order the engine
// reports.
func (e *SQLiteExtractor) Columns(ctx context.Context, tableName string) ([]schema.Column, error) {
	columns, _, err := e.columns(ctx, tableName)
	return columns, err
}

// columns introspects via PRAGMA table_xinfo so generated columns are
// visible. Generated columns cannot be modeled faithfully: they are skipped
// and the table is reported opaque, keeping the verbatim SQL authoritative.
func (e *SQLiteExtractor) columns(ctx context.Context, tableName string) ([]schema.Column, bool, error) {
	query := fmt.Sprintf("PRAGMA table_xinfo(%s)", quotePragmaArg(tableName))

	rows, err := e.client.GetDB().QueryContext(ctx, query)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	var columns []schema.Column
	opaque := false

	for rows.Next() {
		var cid, notNull, pk, hidden int
		var name, colType string
		var defaultValue sql.NullString

		if err := rows.Scan(&cid, &name, &colType, &notNull, &defaultValue, &pk, &hidden); err != nil {
			return nil, false, err
		}

		// hidden: 0 = ordinary, 1 = hidden (virtual tables),
		// 2 = generated virtual, 3 = generated stored
		if hidden != 0 {
			opaque = true
			continue
		}

		col := schema.Column{
			Name:       name,
			Type:       colType,
			NotNull:    notNull != 0,
			PrimaryKey: pk > 0,
			Ordinal:    cid,
		}
		if defaultValue.Valid {
			v := defaultValue.String
			col.Default = &v
		}

		columns = append(columns, col)
	}

	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	if len(columns) == 0 && !opaque {
		return nil, false, fmt.Errorf("%w: no column metadata for table %s", ErrCorrupt, tableName)
	}

	return columns, opaque, nil
}

// markUniqueColumns resolves column-level UNIQUE constraints. The engine
// backs each UNIQUE constraint with an auto-generated index (index_list
// origin 'u') that stores no SQL, so it never appears among the explicit
// indexes; a single-column one is folded back onto its column here so the
// constraint survives diffing and migration.
func (e *SQLiteExtractor) markUniqueColumns(ctx context.Context, tableName string, table *schema.Table) error {
	listQuery := fmt.Sprintf("PRAGMA index_list(%s)", quotePragmaArg(tableName))
	rows, err := e.client.GetDB().QueryContext(ctx, listQuery)
	if err != nil {
		return err
	}

	var autoUnique []string
	for rows.Next() {
		var seq, unique, partial int
		var name, origin string
		if err := rows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
			rows.Close()
			return err
		}
		if origin == "u" && unique == 1 {
			autoUnique = append(autoUnique, name)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for _, indexName := range autoUnique {
		cols, err := e.indexColumns(ctx, indexName)
		if err != nil {
			return err
		}
		if len(cols) != 1 {
			// Multi-column UNIQUE lives in the table constraint list, which
			// the verbatim creation text already carries.
			continue
		}
		if col := table.Column(cols[0]); col != nil {
			col.Unique = true
		}
	}
	return nil
}

// Indexes returns the explicitly created indexes for a table, with their
// verbatim CREATE INDEX statements. Auto-generated primary key and UNIQUE
// constraint indexes carry no SQL in the catalog and are skipped.
func (e *SQLiteExtractor) Indexes(ctx context.Context, tableName string) ([]schema.Index, error) {
	query := `
		SELECT name, sql
		FROM sqlite_master
		WHERE type = 'index' AND tbl_name = ? AND sql IS NOT NULL
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query, tableName)
	if err != nil {
		return nil, err
	}

	var indexes []schema.Index
	for rows.Next() {
		var name, createSQL string
		if err := rows.Scan(&name, &createSQL); err != nil {
			rows.Close()
			return nil, err
		}
		indexes = append(indexes, schema.Index{Name: name, Table: tableName, SQL: createSQL})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	// Fill in column lists and uniqueness from the index pragmas.
	for i := range indexes {
		if err := e.describeIndex(ctx, tableName, &indexes[i]); err != nil {
			return nil, err
		}
	}

	return indexes, nil
}

func (e *SQLiteExtractor) describeIndex(ctx context.Context, tableName string, idx *schema.Index) error {
	listQuery := fmt.Sprintf("PRAGMA index_list(%s)", quotePragmaArg(tableName))
	rows, err := e.client.GetDB().QueryContext(ctx, listQuery)
	if err != nil {
		return err
	}
	for rows.Next() {
		var seq, unique, partial int
		var name, origin string
		if err := rows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
			rows.Close()
			return err
		}
		if name == idx.Name {
			idx.Unique = unique == 1
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	cols, err := e.indexColumns(ctx, idx.Name)
	if err != nil {
		return err
	}
	idx.Columns = cols
	return nil
}

func (e *SQLiteExtractor) indexColumns(ctx context.Context, indexName string) ([]string, error) {
	infoQuery := fmt.Sprintf("PRAGMA index_info(%s)", quotePragmaArg(indexName))
	rows, err := e.client.GetDB().QueryContext(ctx, infoQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var seqno, cid int
		var colName sql.NullString
		if err := rows.Scan(&seqno, &cid, &colName); err != nil {
			return nil, err
		}
		if colName.Valid {
			cols = append(cols, colName.String)
		}
	}
	return cols, rows.Err()
}

// Triggers returns the triggers attached to a table with verbatim SQL.
func (e *SQLiteExtractor) Triggers(ctx context.Context, tableName string) ([]schema.Trigger, error) {
	query := `
		SELECT name, sql
		FROM sqlite_master
		WHERE type = 'trigger' AND tbl_name = ? AND sql IS NOT NULL
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var triggers []schema.Trigger
	for rows.Next() {
		var name, createSQL string
		if err := rows.Scan(&name, &createSQL); err != nil {
			return nil, err
		}
		triggers = append(triggers, schema.Trigger{Name: name, Table: tableName, SQL: createSQL})
	}

	return triggers, rows.Err()
}

// ForeignKeys returns the foreign key constraints declared on a table.
func (e *SQLiteExtractor) ForeignKeys(ctx context.Context, tableName string) ([]schema.ForeignKey, error) {
	query := fmt.Sprintf("PRAGMA foreign_key_list(%s)", quotePragmaArg(tableName))

	rows, err := e.client.GetDB().QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fks []schema.ForeignKey
	for rows.Next() {
		var id, seq int
		var refTable, fromCol, onUpdate, onDelete, match string
		var toCol sql.NullString // NULL when the FK targets the implicit primary key

		if err := rows.Scan(&id, &seq, &refTable, &fromCol, &toCol, &onUpdate, &onDelete, &match); err != nil {
			return nil, err
		}

		fks = append(fks, schema.ForeignKey{
			FromColumn: fromCol,
			RefTable:   refTable,
			RefColumn:  toCol.String,
			OnUpdate:   onUpdate,
			OnDelete:   onDelete,
		})
	}

	return fks, rows.Err()
}

// Views returns all views in catalog discovery order.
func (e *SQLiteExtractor) Views(ctx context.Context) ([]schema.View, error) {
	query := `
		SELECT name, sql
		FROM sqlite_master
		WHERE type = 'view'
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var views []schema.View
	for rows.Next() {
		var name string
		var createSQL sql.NullString
		if err := rows.Scan(&name, &createSQL); err != nil {
			return nil, err
		}
		views = append(views, schema.View{Name: name, SQL: createSQL.String})
	}

	return views, rows.Err()
}

// quotePragmaArg quotes an object name for interpolation into a PRAGMA
// statement, which cannot take bound parameters.
func quotePragmaArg(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
