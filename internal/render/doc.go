package render

import (
	"fmt"
	"io"

	"github.com/schemadelta/schemadelta/internal/schema"
)

// Document writes human-readable documentation for every table in the
// model: a fixed-width column listing plus foreign key and index sections.
func Document(w io.Writer, m *schema.Model) error {
	if _, err := fmt.Fprintf(w, "Database: %s\n", m.Source); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Contains %d tables\n", len(m.Tables)); err != nil {
		return err
	}

	for i := range m.Tables {
		if err := documentTable(w, &m.Tables[i]); err != nil {
			return err
		}
	}

	if len(m.Views) > 0 {
		if _, err := fmt.Fprintf(w, "\nVIEWS (%d)\n", len(m.Views)); err != nil {
			return err
		}
		for _, v := range m.Views {
			if _, err := fmt.Fprintf(w, "  %s\n", v.Name); err != nil {
				return err
			}
		}
	}
	return nil
}

func documentTable(w io.Writer, t *schema.Table) error {
	divider := "------------------------------------------------------------"

	if _, err := fmt.Fprintf(w, "\n%s\nTABLE: %s\n%s\n\n", divider, t.Name, divider); err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "COLUMNS:\n%-20s %-15s %-6s %-4s %s\n%s\n",
		"Name", "Type", "Null", "PK", "Default", divider); err != nil {
		return err
	}
	for _, c := range t.Columns {
		nullStr := "YES"
		if c.NotNull {
			nullStr = "NO"
		}
		pkStr := "NO"
		if c.PrimaryKey {
			pkStr = "YES"
		}
		defaultStr := ""
		if c.Default != nil {
			defaultStr = *c.Default
		}
		if _, err := fmt.Fprintf(w, "%-20s %-15s %-6s %-4s %s\n", c.Name, c.Type, nullStr, pkStr, defaultStr); err != nil {
			return err
		}
	}

	if t.Opaque {
		if _, err := fmt.Fprintf(w, "\nNOTE: table contains constructs not modeled above; see its DDL\n"); err != nil {
			return err
		}
	}

	if len(t.ForeignKeys) > 0 {
		if _, err := fmt.Fprintf(w, "\nFOREIGN KEYS:\n"); err != nil {
			return err
		}
		for _, fk := range t.ForeignKeys {
			if _, err := fmt.Fprintf(w, "  %s -> %s.%s\n", fk.FromColumn, fk.RefTable, fk.RefColumn); err != nil {
				return err
			}
		}
	}

	if len(t.Indexes) > 0 {
		if _, err := fmt.Fprintf(w, "\nINDEXES:\n"); err != nil {
			return err
		}
		for _, idx := range t.Indexes {
			if _, err := fmt.Fprintf(w, "  %s\n", idx.CreateSQL()); err != nil {
				return err
			}
		}
	}
	return nil
}
