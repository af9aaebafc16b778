// Package migrate turns a schema diff into an executable SQLite migration
// script. SQLite allows ALTER TABLE only for renames and column additions,
// so every other structural change goes through table recreation: create a
// shadow table with the new structure, copy the intersecting columns, drop
// the original, rename the shadow into place, and re-create the indexes and
// triggers that referenced the original.
package migrate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/schemadelta/schemadelta/internal/diff"
	"github.com/schemadelta/schemadelta/internal/schema"
)

// Options configures migration generation.
type Options struct {
	// IncludeDrop emits DROP TABLE statements for removed tables.
	IncludeDrop bool
}

const banner = "-- ============================================"

// Generate emits an ordered SQL script transforming the old structure into
// the new one. Sections are emitted in a fixed order — new tables, modified
// tables, index changes, removed tables — so no statement references a
// structure that is not yet created or already dropped. Output is
// deterministic for identical inputs.
func Generate(d *diff.Diff, oldModel, newModel *schema.Model, opts Options) string {
	var b strings.Builder

	writeHeader(&b, oldModel.Source, newModel.Source)

	recreated := make(map[string]bool)

	if len(d.Added) > 0 {
		writeSection(&b, "NEW TABLES")
		for _, t := range d.Added {
			fmt.Fprintf(&b, "-- Add table: %s\n", t.Name)
			b.WriteString(t.CreateSQL() + ";\n")
			for _, idx := range t.Indexes {
				b.WriteString(idx.CreateSQL() + ";\n")
			}
			for _, tr := range t.Triggers {
				b.WriteString(tr.SQL + ";\n")
			}
			b.WriteString("\n")
		}
	}

	if len(d.Modified) > 0 {
		writeSection(&b, "MODIFIED TABLES")
		for _, name := range d.Common {
			td, ok := d.Modified[name]
			if !ok {
				continue
			}
			if alterOnly(td) {
				writeColumnAdditions(&b, name, td)
				continue
			}
			writeRecreation(&b, name, oldModel, newModel)
			recreated[name] = true
		}
	}

	writeIndexChanges(&b, d, oldModel, newModel, recreated)

	if opts.IncludeDrop && len(d.Removed) > 0 {
		writeSection(&b, "REMOVED TABLES")
		for _, t := range d.Removed {
			fmt.Fprintf(&b, "-- Remove table: %s\n", t.Name)
			fmt.Fprintf(&b, "DROP TABLE IF EXISTS %s;\n\n", schema.Ident(t.Name))
		}
	}

	b.WriteString(banner + "\n")
	b.WriteString("-- End of migration script\n")
	b.WriteString(banner + "\n")

	return b.String()
}

func writeHeader(b *strings.Builder, from, to string) {
	b.WriteString(banner + "\n")
	b.WriteString("-- Schema migration script\n")
	b.WriteString(banner + "\n")
	fmt.Fprintf(b, "-- From: %s\n", from)
	fmt.Fprintf(b, "-- To: %s\n", to)
	b.WriteString(banner + "\n\n")
	b.WriteString("-- SQLite supports ALTER TABLE only for renames and column additions;\n")
	b.WriteString("-- other structural changes below recreate the affected table.\n")
	b.WriteString("-- Apply this script inside a single transaction. SQLite DDL is\n")
	b.WriteString("-- transactional; without a transaction a failure mid-script leaves\n")
	b.WriteString("-- the database partially migrated.\n\n")
}

func writeSection(b *strings.Builder, title string) {
	b.WriteString(banner + "\n")
	b.WriteString("-- " + title + "\n")
	b.WriteString(banner + "\n\n")
}

// alterOnly reports whether every change is an added column that SQLite can
// express as ALTER TABLE ADD COLUMN: nullable or carrying a non-null
// default, and never part of the primary key or a uniqueness constraint
// (SQLite rejects ADD COLUMN with PRIMARY KEY or UNIQUE outright).
func alterOnly(td *diff.TableDiff) bool {
	if td.Rebuild || len(td.RemovedColumns) > 0 || len(td.ChangedColumns) > 0 {
		return false
	}
	for _, c := range td.AddedColumns {
		if c.PrimaryKey || c.Unique {
			return false
		}
		if c.NotNull && c.Default == nil {
			return false
		}
	}
	return len(td.AddedColumns) > 0
}

func writeColumnAdditions(b *strings.Builder, table string, td *diff.TableDiff) {
	fmt.Fprintf(b, "-- Table: %s\n", table)
	for _, c := range td.AddedColumns {
		fmt.Fprintf(b, "ALTER TABLE %s ADD COLUMN %s;\n", schema.Ident(table), c.Definition())
	}
	b.WriteString("\n")
}

func writeRecreation(b *strings.Builder, name string, oldModel, newModel *schema.Model) {
	oldTable := oldModel.Table(name)
	newTable := newModel.Table(name)
	shadow := shadowName(name, oldModel, newModel)

	fmt.Fprintf(b, "-- Table %s requires recreation: the changes cannot be\n", name)
	b.WriteString("-- expressed with SQLite's restricted ALTER TABLE.\n")

	if pkChanged(oldTable, newTable) {
		b.WriteString("-- WARNING: the primary key definition changed between the old and\n")
		b.WriteString("-- new structure; the data copy below may violate uniqueness under\n")
		b.WriteString("-- the new key and must be reviewed before applying.\n")
	}

	fmt.Fprintf(b, "-- Step 1: create replacement table\n")
	b.WriteString(retargetCreate(newTable, shadow) + ";\n")

	common := intersectingColumns(oldTable, newTable)
	if len(common) > 0 {
		cols := strings.Join(common, ", ")
		b.WriteString("-- Step 2: copy data; removed columns are dropped, added columns\n")
		b.WriteString("-- take their declared defaults\n")
		fmt.Fprintf(b, "INSERT INTO %s (%s)\nSELECT %s\nFROM %s;\n", schema.Ident(shadow), cols, cols, schema.Ident(name))
	} else {
		b.WriteString("-- Step 2: no columns in common; data is not carried over\n")
	}

	fmt.Fprintf(b, "-- Step 3: drop original table\nDROP TABLE %s;\n", schema.Ident(name))
	fmt.Fprintf(b, "-- Step 4: rename replacement into place\nALTER TABLE %s RENAME TO %s;\n", schema.Ident(shadow), schema.Ident(name))

	if len(newTable.Indexes) > 0 || len(newTable.Triggers) > 0 {
		b.WriteString("-- Step 5: recreate indexes and triggers\n")
		for _, idx := range newTable.Indexes {
			b.WriteString(idx.CreateSQL() + ";\n")
		}
		for _, tr := range newTable.Triggers {
			b.WriteString(tr.SQL + ";\n")
		}
	}
	b.WriteString("\n")
}

// writeIndexChanges drops removed and creates added or redefined indexes on
// common tables that were not recreated (recreation already re-emits the
// new model's indexes).
func writeIndexChanges(b *strings.Builder, d *diff.Diff, oldModel, newModel *schema.Model, recreated map[string]bool) {
	var lines []string
	for _, name := range d.Common {
		if recreated[name] || !d.IndexesChanged[name] {
			continue
		}
		oldTable := oldModel.Table(name)
		newTable := newModel.Table(name)

		newByName := make(map[string]schema.Index, len(newTable.Indexes))
		for _, idx := range newTable.Indexes {
			newByName[idx.Name] = idx
		}
		oldByName := make(map[string]schema.Index, len(oldTable.Indexes))
		for _, idx := range oldTable.Indexes {
			oldByName[idx.Name] = idx
		}

		var tableLines []string
		for _, idx := range oldTable.Indexes {
			newIdx, ok := newByName[idx.Name]
			if ok && indexSignature(idx) == indexSignature(newIdx) {
				continue
			}
			tableLines = append(tableLines, fmt.Sprintf("DROP INDEX IF EXISTS %s;", schema.Ident(idx.Name)))
		}
		for _, idx := range newTable.Indexes {
			oldIdx, ok := oldByName[idx.Name]
			if ok && indexSignature(idx) == indexSignature(oldIdx) {
				continue
			}
			tableLines = append(tableLines, idx.CreateSQL()+";")
		}
		if len(tableLines) > 0 {
			lines = append(lines, "-- Table: "+name)
			lines = append(lines, tableLines...)
			lines = append(lines, "")
		}
	}

	if len(lines) > 0 {
		writeSection(b, "INDEX CHANGES")
		b.WriteString(strings.Join(lines, "\n"))
	}
}

func indexSignature(idx schema.Index) string {
	unique := ""
	if idx.Unique {
		unique = " unique"
	}
	return idx.Name + unique + " (" + strings.Join(idx.Columns, ",") + ")"
}

// shadowName picks a deterministic name for the replacement table that
// collides with no table in either model.
func shadowName(base string, models ...*schema.Model) string {
	taken := make(map[string]bool)
	for _, m := range models {
		for _, t := range m.Tables {
			taken[t.Name] = true
		}
	}
	name := base + "_new"
	for taken[name] {
		name += "_new"
	}
	return name
}

func pkChanged(oldTable, newTable *schema.Table) bool {
	oldPK := oldTable.PrimaryKey()
	newPK := newTable.PrimaryKey()
	if len(oldPK) != len(newPK) {
		return true
	}
	for i := range oldPK {
		if oldPK[i] != newPK[i] {
			return true
		}
	}
	return false
}

// intersectingColumns lists the columns present in both structures, in the
// new table's declaration order. Removed columns are omitted; added columns
// are left to their declared defaults.
func intersectingColumns(oldTable, newTable *schema.Table) []string {
	var cols []string
	for _, c := range newTable.Columns {
		if oldTable.Column(c.Name) != nil {
			cols = append(cols, schema.Ident(c.Name))
		}
	}
	return cols
}

var createTableRe = regexp.MustCompile(`(?is)^(\s*CREATE\s+TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?)("(?:[^"]|"")+"|` + "`[^`]+`" + `|\[[^\]]+\]|[A-Za-z_][A-Za-z0-9_$]*)`)

// retargetCreate rewrites the table's creation statement to target the
// shadow name, honoring whichever identifier quoting style the original
// statement used. When the verbatim text cannot be rewritten, a statement
// is synthesized from the structured column list instead.
func retargetCreate(t *schema.Table, shadow string) string {
	createSQL := t.CreateSQL()
	loc := createTableRe.FindStringSubmatchIndex(createSQL)
	if loc == nil {
		clone := *t
		clone.Name = shadow
		clone.SQL = ""
		return clone.CreateSQL()
	}
	// Splice the shadow name over the original identifier (submatch 2).
	return createSQL[:loc[4]] + schema.Ident(shadow) + createSQL[loc[5]:]
}
