package schema

// Model is a snapshot of one database's structure. It is built in a single
// extraction pass and never mutated afterwards; re-extracting produces a new
// instance. Tables and views keep catalog discovery order.
type Model struct {
	Source string
	Tables []Table
	Views  []View
}

// Table returns the table with the given name, or nil if absent.
// Name comparison is case-sensitive, matching how the engine stores names.
func (m *Model) Table(name string) *Table {
	for i := range m.Tables {
		if m.Tables[i].Name == name {
			return &m.Tables[i]
		}
	}
	return nil
}

// TableNames returns all table names in discovery order.
func (m *Model) TableNames() []string {
	names := make([]string, len(m.Tables))
	for i, t := range m.Tables {
		names[i] = t.Name
	}
	return names
}

// Table represents a database table
type Table struct {
	Name        string
	Columns     []Column
	Indexes     []Index
	Triggers    []Trigger
	ForeignKeys []ForeignKey

	// SQL is the verbatim CREATE TABLE statement as stored in the catalog.
	// Engines whose catalogs keep no original text get an empty string here;
	// CreateSQL synthesizes a statement from the structured columns instead.
	SQL string

	// Opaque marks a table containing constructs the extractor cannot model
	// column by column (e.g. generated columns). The verbatim SQL is still
	// captured; the differ compares opaque tables wholesale.
	Opaque bool
}

// Column returns the column with the given name, or nil if absent.
func (t *Table) Column(name string) *Column {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// ColumnNames returns the column names in declaration order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// PrimaryKey returns the primary key column names in declaration order.
func (t *Table) PrimaryKey() []string {
	var pk []string
	for _, c := range t.Columns {
		if c.PrimaryKey {
			pk = append(pk, c.Name)
		}
	}
	return pk
}

// Column represents a table column. Ordinal is the position reported by the
// catalog; column order is semantically significant and preserved end to end.
type Column struct {
	Name       string
	Type       string
	NotNull    bool
	Default    *string
	PrimaryKey bool

	// Unique marks a single-column uniqueness constraint. For SQLite this is
	// resolved from the constraint's auto-generated index, which carries no
	// SQL of its own in the catalog.
	Unique  bool
	Ordinal int
}

// ForeignKey represents a foreign key relationship
type ForeignKey struct {
	FromColumn string
	RefTable   string
	RefColumn  string
	OnUpdate   string
	OnDelete   string
}

// Index represents a database index
type Index struct {
	Name    string
	Table   string
	Columns []string
	Unique  bool

	// SQL is the verbatim CREATE INDEX statement when the catalog stores one.
	SQL string
}

// Trigger represents a trigger, kept as its verbatim creation statement.
type Trigger struct {
	Name  string
	Table string
	SQL   string
}

// View represents a view, kept as its verbatim creation statement.
type View struct {
	Name string
	SQL  string
}
