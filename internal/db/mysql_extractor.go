package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/schemadelta/schemadelta/internal/schema"
)

// MySQLExtractor builds a schema model from a MySQL database via
// information_schema. Like Postgres, MySQL keeps no verbatim CREATE text in
// a queryable catalog row, so creation statements are synthesized from the
// structured model when rendered.
type MySQLExtractor struct {
	client     *MySQLClient
	schemaName string
}

// NewMySQLExtractor creates a new MySQL schema extractor
func NewMySQLExtractor(client *MySQLClient, schemaName string) *MySQLExtractor {
	return &MySQLExtractor{
		client:     client,
		schemaName: schemaName,
	}
}

// Extract builds the full schema model, collecting single-table failures
// instead of aborting the pass.
func (e *MySQLExtractor) Extract(ctx context.Context) (*schema.Model, error) {
	model := &schema.Model{Source: "mysql:" + e.schemaName}

	tableNames, err := e.tableNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get table names: %w", err)
	}

	var failed []*TableError
	for _, tableName := range tableNames {
		table, err := e.extractTable(ctx, tableName)
		if err != nil {
			failed = append(failed, &TableError{Table: tableName, Err: err})
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

func (e *MySQLExtractor) tableNames(ctx context.Context) ([]string, error) {
	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = ? AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query, e.schemaName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return nil, err
		}
		tables = append(tables, tableName)
	}

	return tables, rows.Err()
}

func (e *MySQLExtractor) extractTable(ctx context.Context, tableName string) (*schema.Table, error) {
	table := &schema.Table{Name: tableName}

	columns, err := e.Columns(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to extract columns: %w", err)
	}
	table.Columns = columns

	fks, err := e.ForeignKeys(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to extract foreign keys: %w", err)
	}
	table.ForeignKeys = fks

	indexes, err := e.Indexes(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to extract indexes: %w", err)
	}
	table.Indexes = indexes

	return table, nil
}

// Columns returns the column list ordered by ordinal_position. The
// column_key field distinguishes primary key membership from single-column
// uniqueness.
func (e *MySQLExtractor) Columns(ctx context.Context, tableName string) ([]schema.Column, error) {
	query := `
		SELECT
			column_name,
			column_type,
			is_nullable,
			column_default,
			ordinal_position,
			column_key
		FROM information_schema.columns
		WHERE table_schema = ? AND table_name = ?
		ORDER BY ordinal_position
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query, e.schemaName, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []schema.Column
	for rows.Next() {
		var col schema.Column
		var nullable, columnKey string
		var defaultVal sql.NullString
		var ordinal int

		if err := rows.Scan(&col.Name, &col.Type, &nullable, &defaultVal, &ordinal, &columnKey); err != nil {
			return nil, err
		}

		col.PrimaryKey = columnKey == "PRI"
		col.Unique = columnKey == "UNI"
		col.NotNull = nullable != "YES"
		if defaultVal.Valid {
			v := defaultVal.String
			col.Default = &v
		}
		col.Ordinal = ordinal - 1

		columns = append(columns, col)
	}

	return columns, rows.Err()
}

// ForeignKeys returns the foreign key constraints with referential actions.
func (e *MySQLExtractor) ForeignKeys(ctx context.Context, tableName string) ([]schema.ForeignKey, error) {
	query := `
		SELECT
			kcu.column_name,
			kcu.referenced_table_name,
			kcu.referenced_column_name,
			rc.update_rule,
			rc.delete_rule
		FROM information_schema.key_column_usage kcu
		JOIN information_schema.referential_constraints rc
			ON rc.constraint_name = kcu.constraint_name
			AND rc.constraint_schema = kcu.table_schema
		WHERE kcu.table_schema = ?
			AND kcu.table_name = ?
			AND kcu.referenced_table_name IS NOT NULL
		ORDER BY kcu.ordinal_position
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query, e.schemaName, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fks []schema.ForeignKey
	for rows.Next() {
		var fk schema.ForeignKey
		if err := rows.Scan(&fk.FromColumn, &fk.RefTable, &fk.RefColumn, &fk.OnUpdate, &fk.OnDelete); err != nil {
			return nil, err
		}
		fks = append(fks, fk)
	}

	return fks, rows.Err()
}

// Indexes returns non-primary-key indexes, grouping information_schema
// statistics rows into ordered column lists.
func (e *MySQLExtractor) Indexes(ctx context.Context, tableName string) ([]schema.Index, error) {
	query := `
		SELECT index_name, column_name, non_unique
		FROM information_schema.statistics
		WHERE table_schema = ?
			AND table_name = ?
			AND index_name != 'PRIMARY'
		ORDER BY index_name, seq_in_index
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query, e.schemaName, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var indexes []schema.Index
	for rows.Next() {
		var indexName, columnName string
		var nonUnique int
		if err := rows.Scan(&indexName, &columnName, &nonUnique); err != nil {
			return nil, err
		}

		if n := len(indexes); n > 0 && indexes[n-1].Name == indexName {
			indexes[n-1].Columns = append(indexes[n-1].Columns, columnName)
			continue
		}
		indexes = append(indexes, schema.Index{
			Name:    indexName,
			Table:   tableName,
			Columns: []string{columnName},
			Unique:  nonUnique == 0,
		})
	}

	return indexes, rows.Err()
}

// Views returns the views in the schema.
func (e *MySQLExtractor) Views(ctx context.Context) ([]schema.View, error) {
	query := `
		SELECT table_name, view_definition
		FROM information_schema.views
		WHERE table_schema = ?
		ORDER BY table_name
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query, e.schemaName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var views []schema.View
	for rows.Next() {
		var name string
		var definition sql.NullString
		if err := rows.Scan(&name, &definition); err != nil {
			return nil, err
		}
		v := schema.View{Name: name}
		if definition.Valid {
			v.SQL = fmt.Sprintf("CREATE VIEW %s AS\n%s", schema.Ident(name), definition.String)
		}
		views = append(views, v)
	}

	return views, rows.Err()
}
