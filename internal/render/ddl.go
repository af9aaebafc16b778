// Package render turns schema models and diffs into text: executable DDL,
// diff reports, and human-readable table documentation.
package render

import (
	"fmt"
	"io"

	"github.com/schemadelta/schemadelta/internal/schema"
)

// Options configures DDL rendering.
type Options struct {
	// IncludeDrop prefixes each table and view with a DROP ... IF EXISTS.
	IncludeDrop bool
	// IncludeIndexes emits CREATE INDEX statements after each table.
	IncludeIndexes bool
	// IncludeTriggers emits CREATE TRIGGER statements after each table.
	IncludeTriggers bool
	// IncludeViews emits CREATE VIEW statements after all tables.
	IncludeViews bool
	// IncludeComments emits banner and section comments.
	IncludeComments bool
}

// DefaultOptions returns the rendering defaults: everything included
// except DROP statements.
func DefaultOptions() Options {
	return Options{
		IncludeIndexes:  true,
		IncludeTriggers: true,
		IncludeViews:    true,
		IncludeComments: true,
	}
}

const banner = "-- ============================================"

// Schema writes the model as executable DDL. Tables are emitted in
// discovery order, each as DROP (if requested), verbatim CREATE TABLE,
// indexes, then triggers; views follow all tables. The output is not
// topologically sorted by foreign key dependency: callers needing FK-safe
// creation order must apply it with deferred foreign key checking.
func Schema(w io.Writer, m *schema.Model, opts Options) error {
	if opts.IncludeComments {
		if err := writeHeader(w, m); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "\n-- Found %d tables\n", len(m.Tables)); err != nil {
			return err
		}
	}

	for i := range m.Tables {
		if err := table(w, &m.Tables[i], opts); err != nil {
			return err
		}
	}

	if opts.IncludeViews && len(m.Views) > 0 {
		if opts.IncludeComments {
			if _, err := fmt.Fprintf(w, "\n%s\n-- Views (%d total)\n%s\n\n", banner, len(m.Views), banner); err != nil {
				return err
			}
		}
		for _, v := range m.Views {
			if opts.IncludeDrop {
				if _, err := fmt.Fprintf(w, "DROP VIEW IF EXISTS %s;\n", schema.Ident(v.Name)); err != nil {
					return err
				}
			}
			if _, err := fmt.Fprintf(w, "%s;\n\n", v.SQL); err != nil {
				return err
			}
		}
	}

	if opts.IncludeComments {
		if _, err := fmt.Fprintf(w, "%s\n-- End of schema export\n%s\n", banner, banner); err != nil {
			return err
		}
	}
	return nil
}

// Table writes the DDL for a single table from the model.
func Table(w io.Writer, m *schema.Model, tableName string, opts Options) error {
	t := m.Table(tableName)
	if t == nil {
		return fmt.Errorf("table %s not found in schema", tableName)
	}
	return table(w, t, opts)
}

func table(w io.Writer, t *schema.Table, opts Options) error {
	if opts.IncludeComments {
		if _, err := fmt.Fprintf(w, "\n%s\n-- Table: %s\n%s\n\n", banner, t.Name, banner); err != nil {
			return err
		}
	}

	if opts.IncludeDrop {
		if _, err := fmt.Fprintf(w, "DROP TABLE IF EXISTS %s;\n", schema.Ident(t.Name)); err != nil {
			return err
		}
	}

	if _, err := fmt.Fprintf(w, "%s;\n", t.CreateSQL()); err != nil {
		return err
	}

	if opts.IncludeIndexes && len(t.Indexes) > 0 {
		if opts.IncludeComments {
			if _, err := fmt.Fprintf(w, "\n-- Indexes for %s\n", t.Name); err != nil {
				return err
			}
		}
		for _, idx := range t.Indexes {
			if _, err := fmt.Fprintf(w, "%s;\n", idx.CreateSQL()); err != nil {
				return err
			}
		}
	}

	if opts.IncludeTriggers && len(t.Triggers) > 0 {
		if opts.IncludeComments {
			if _, err := fmt.Fprintf(w, "\n-- Triggers for %s\n", t.Name); err != nil {
				return err
			}
		}
		for _, tr := range t.Triggers {
			if _, err := fmt.Fprintf(w, "%s;\n", tr.SQL); err != nil {
				return err
			}
		}
	}

	_, err := fmt.Fprintln(w)
	return err
}

func writeHeader(w io.Writer, m *schema.Model) error {
	_, err := fmt.Fprintf(w, "%s\n-- Database schema export\n%s\n-- Source: %s\n%s\n", banner, banner, m.Source, banner)
	return err
}
