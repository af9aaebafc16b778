package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/schemadelta/schemadelta/internal/diff"
	"github.com/schemadelta/schemadelta/internal/schema"
)

const rule = "======================================================================"

// Report writes a human-readable comparison report. Sections appear in a
// fixed order and the body carries no timestamps, so identical inputs
// always produce byte-identical output.
func Report(w io.Writer, d *diff.Diff, oldLabel, newLabel string) error {
	out := func(format string, args ...any) error {
		_, err := fmt.Fprintf(w, format, args...)
		return err
	}

	if err := out("%s\nDATABASE SCHEMA COMPARISON REPORT\n%s\n", rule, rule); err != nil {
		return err
	}
	if err := out("Old: %s\nNew: %s\n%s\n", oldLabel, newLabel, rule); err != nil {
		return err
	}

	if err := out("\nTABLES\n"); err != nil {
		return err
	}
	if err := out("  Total in old: %d\n  Total in new: %d\n", d.OldTableCount, d.NewTableCount); err != nil {
		return err
	}
	if err := out("  Added: %d\n  Removed: %d\n  Common: %d\n", len(d.Added), len(d.Removed), len(d.Common)); err != nil {
		return err
	}

	if len(d.Added) > 0 {
		if err := out("\nADDED TABLES (%d)\n", len(d.Added)); err != nil {
			return err
		}
		for _, t := range d.Added {
			if err := out("  + %s%s\n", t.Name, opaqueNote(&t)); err != nil {
				return err
			}
		}
	}

	if len(d.Removed) > 0 {
		if err := out("\nREMOVED TABLES (%d)\n", len(d.Removed)); err != nil {
			return err
		}
		for _, t := range d.Removed {
			if err := out("  - %s%s\n", t.Name, opaqueNote(&t)); err != nil {
				return err
			}
		}
	}

	// A table belongs in the modified section when it has column-level
	// deltas or an index/trigger-only change; the latter must not be
	// invisible just because no column moved.
	changed := changedTables(d)
	if len(changed) > 0 {
		if err := out("\nMODIFIED TABLES (%d)\n", len(changed)); err != nil {
			return err
		}
		for _, name := range changed {
			if err := reportTable(out, name, d.Modified[name], d); err != nil {
				return err
			}
		}
	}

	return out("\n%s\nEND OF REPORT\n%s\n", rule, rule)
}

// changedTables lists common tables with any delta at all, in the old
// model's order.
func changedTables(d *diff.Diff) []string {
	var names []string
	for _, name := range d.Common {
		if _, ok := d.Modified[name]; ok || d.IndexesChanged[name] || d.TriggersChanged[name] {
			names = append(names, name)
		}
	}
	return names
}

// reportTable writes one modified-table entry. td is nil for tables whose
// only delta is an index or trigger change.
func reportTable(out func(string, ...any) error, name string, td *diff.TableDiff, d *diff.Diff) error {
	if err := out("\n  Table: %s\n", name); err != nil {
		return err
	}

	if td != nil {
		if td.Rebuild {
			if err := out("    ! Structure changed (opaque table, compared wholesale)\n"); err != nil {
				return err
			}
		}

		if len(td.AddedColumns) > 0 {
			if err := out("    + Added columns: %s\n", columnNameList(td.AddedColumns)); err != nil {
				return err
			}
		}
		if len(td.RemovedColumns) > 0 {
			if err := out("    - Removed columns: %s\n", columnNameList(td.RemovedColumns)); err != nil {
				return err
			}
		}
		if len(td.ChangedColumns) > 0 {
			if err := out("    ~ Changed columns:\n"); err != nil {
				return err
			}
			for _, ch := range td.ChangedColumns {
				if err := out("      %s\n        old: %s\n        new: %s\n",
					ch.Old.Name, describeColumn(ch.Old), describeColumn(ch.New)); err != nil {
					return err
				}
			}
		}
	}

	if d.IndexesChanged[name] {
		if err := out("    ~ Indexes changed\n"); err != nil {
			return err
		}
	}
	if d.TriggersChanged[name] {
		if err := out("    ~ Triggers changed\n"); err != nil {
			return err
		}
	}
	return nil
}

func opaqueNote(t *schema.Table) string {
	if t.Opaque {
		return " (opaque)"
	}
	return ""
}

func columnNameList(cols []schema.Column) string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return strings.Join(names, ", ")
}

// describeColumn summarizes a column's attributes for old-vs-new pairs.
func describeColumn(c schema.Column) string {
	parts := []string{c.Type}
	if c.Type == "" {
		parts = []string{"(untyped)"}
	}
	if c.NotNull {
		parts = append(parts, "NOT NULL")
	} else {
		parts = append(parts, "NULL")
	}
	if c.Unique {
		parts = append(parts, "UNIQUE")
	}
	if c.Default != nil {
		parts = append(parts, "DEFAULT "+*c.Default)
	}
	if c.PrimaryKey {
		parts = append(parts, "PK")
	}
	return strings.Join(parts, " ")
}
