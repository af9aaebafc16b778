// Package diff computes structural deltas between two schema models.
package diff

import (
	"sort"
	"strings"

	"github.com/schemadelta/schemadelta/internal/schema"
)

// Diff describes the structural delta between an old and a new model.
// Every sequence is explicitly ordered so the same pair of inputs always
// produces the same Diff: added tables follow the new model's discovery
// order, removed and common tables follow the old model's.
type Diff struct {
	Added   []schema.Table
	Removed []schema.Table
	Common  []string

	// Modified holds per-table column deltas, keyed by table name. Only
	// tables with at least one column-level delta (or a wholesale rebuild)
	// appear here; iterate it through Common for deterministic order.
	Modified map[string]*TableDiff

	// IndexesChanged and TriggersChanged flag coarser non-column differences
	// on common tables, tracked separately from column changes.
	IndexesChanged  map[string]bool
	TriggersChanged map[string]bool

	OldTableCount int
	NewTableCount int
}

// TableDiff describes the column-level delta of one common table.
type TableDiff struct {
	AddedColumns   []schema.Column
	RemovedColumns []schema.Column
	ChangedColumns []ColumnChange

	// Rebuild is set when the table is opaque on either side and its
	// creation text differs: no column detail is available and the table
	// must be replaced wholesale.
	Rebuild bool
}

// ColumnChange pairs the old and new definitions of a column whose type,
// nullability, default, primary-key, or uniqueness flag differ after
// normalization.
type ColumnChange struct {
	Old schema.Column
	New schema.Column
}

// Empty reports whether the diff contains no differences at all.
func (d *Diff) Empty() bool {
	if len(d.Added) > 0 || len(d.Removed) > 0 || len(d.Modified) > 0 {
		return false
	}
	for _, changed := range d.IndexesChanged {
		if changed {
			return false
		}
	}
	for _, changed := range d.TriggersChanged {
		if changed {
			return false
		}
	}
	return true
}

// Compare computes the structural delta between two models.
func Compare(oldModel, newModel *schema.Model) *Diff {
	d := &Diff{
		Modified:        make(map[string]*TableDiff),
		IndexesChanged:  make(map[string]bool),
		TriggersChanged: make(map[string]bool),
		OldTableCount:   len(oldModel.Tables),
		NewTableCount:   len(newModel.Tables),
	}

	oldNames := make(map[string]bool, len(oldModel.Tables))
	for _, t := range oldModel.Tables {
		oldNames[t.Name] = true
	}
	newNames := make(map[string]bool, len(newModel.Tables))
	for _, t := range newModel.Tables {
		newNames[t.Name] = true
	}

	for _, t := range newModel.Tables {
		if !oldNames[t.Name] {
			d.Added = append(d.Added, t)
		}
	}
	for _, t := range oldModel.Tables {
		if !newNames[t.Name] {
			d.Removed = append(d.Removed, t)
			continue
		}
		d.Common = append(d.Common, t.Name)
	}

	for _, name := range d.Common {
		oldTable := oldModel.Table(name)
		newTable := newModel.Table(name)

		if td := compareTable(oldTable, newTable); td != nil {
			d.Modified[name] = td
		}
		d.IndexesChanged[name] = !indexesEqual(oldTable.Indexes, newTable.Indexes)
		d.TriggersChanged[name] = !triggersEqual(oldTable.Triggers, newTable.Triggers)
	}

	return d
}

// compareTable returns the column delta for one table, or nil when the
// structures match.
func compareTable(oldTable, newTable *schema.Table) *TableDiff {
	// Opaque tables carry constructs the extractor could not model, so a
	// column-level diff would be misleading. Compare the creation text
	// wholesale: identical means unchanged, anything else means rebuild.
	if oldTable.Opaque || newTable.Opaque {
		if normalizeSQL(oldTable.SQL) == normalizeSQL(newTable.SQL) {
			return nil
		}
		return &TableDiff{Rebuild: true}
	}

	td := &TableDiff{}

	oldCols := make(map[string]schema.Column, len(oldTable.Columns))
	for _, c := range oldTable.Columns {
		oldCols[c.Name] = c
	}
	newCols := make(map[string]schema.Column, len(newTable.Columns))
	for _, c := range newTable.Columns {
		newCols[c.Name] = c
	}

	// Columns are matched by name, not ordinal, since columns may be added
	// or removed anywhere in the declaration order.
	for _, c := range newTable.Columns {
		if _, ok := oldCols[c.Name]; !ok {
			td.AddedColumns = append(td.AddedColumns, c)
		}
	}
	for _, c := range oldTable.Columns {
		newCol, ok := newCols[c.Name]
		if !ok {
			td.RemovedColumns = append(td.RemovedColumns, c)
			continue
		}
		if !columnsEquivalent(c, newCol) {
			td.ChangedColumns = append(td.ChangedColumns, ColumnChange{Old: c, New: newCol})
		}
	}

	if len(td.AddedColumns) == 0 && len(td.RemovedColumns) == 0 && len(td.ChangedColumns) == 0 {
		return nil
	}
	return td
}

// columnsEquivalent compares two column definitions after normalization:
// declared types are compared case-insensitively token by token, and an
// absent default is equivalent to an explicit NULL default.
func columnsEquivalent(a, b schema.Column) bool {
	return normalizeType(a.Type) == normalizeType(b.Type) &&
		a.NotNull == b.NotNull &&
		normalizeDefault(a.Default) == normalizeDefault(b.Default) &&
		a.PrimaryKey == b.PrimaryKey &&
		a.Unique == b.Unique
}

// normalizeType compares declared types as case-insensitive token
// sequences; whitespace between tokens is insignificant.
func normalizeType(t string) string {
	return strings.ToUpper(strings.Join(strings.Fields(t), ""))
}

func normalizeDefault(d *string) string {
	if d == nil {
		return ""
	}
	v := strings.TrimSpace(*d)
	if strings.EqualFold(v, "NULL") {
		return ""
	}
	return v
}

func normalizeSQL(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func indexesEqual(a, b []schema.Index) bool {
	return strings.Join(indexSignatures(a), "\n") == strings.Join(indexSignatures(b), "\n")
}

func indexSignatures(indexes []schema.Index) []string {
	sigs := make([]string, len(indexes))
	for i, idx := range indexes {
		unique := ""
		if idx.Unique {
			unique = " unique"
		}
		sigs[i] = idx.Name + unique + " (" + strings.Join(idx.Columns, ",") + ")"
	}
	sort.Strings(sigs)
	return sigs
}

func triggersEqual(a, b []schema.Trigger) bool {
	return strings.Join(triggerSignatures(a), "\n") == strings.Join(triggerSignatures(b), "\n")
}

func triggerSignatures(triggers []schema.Trigger) []string {
	sigs := make([]string, len(triggers))
	for i, tr := range triggers {
		sigs[i] = tr.Name + ": " + normalizeSQL(tr.SQL)
	}
	sort.Strings(sigs)
	return sigs
}
