package schema

import (
	"regexp"
	"strings"
)

var bareIdent = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Ident returns name in a form safe to interpolate into a SQL statement.
// Ordinary identifiers pass through bare; anything else is double-quoted.
func Ident(name string) string {
	if bareIdent.MatchString(name) {
		return name
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Definition renders the column as it would appear in a column list, e.g.
// `email TEXT NOT NULL DEFAULT ''`. The PRIMARY KEY clause is handled by
// CreateSQL since it may span multiple columns.
func (c Column) Definition() string {
	parts := []string{Ident(c.Name)}
	if c.Type != "" {
		parts = append(parts, c.Type)
	}
	if c.NotNull {
		parts = append(parts, "NOT NULL")
	}
	if c.Unique {
		parts = append(parts, "UNIQUE")
	}
	if c.Default != nil {
		parts = append(parts, "DEFAULT "+*c.Default)
	}
	return strings.Join(parts, " ")
}

// CreateSQL returns the CREATE TABLE statement for the table: the verbatim
// catalog text when available, otherwise a statement synthesized from the
// structured column list, primary key, and foreign keys.
func (t *Table) CreateSQL() string {
	if t.SQL != "" {
		return t.SQL
	}

	var b strings.Builder
	b.WriteString("CREATE TABLE " + Ident(t.Name) + " (\n")

	var lines []string
	pk := t.PrimaryKey()
	for _, c := range t.Columns {
		def := c.Definition()
		if c.PrimaryKey && len(pk) == 1 {
			def += " PRIMARY KEY"
		}
		lines = append(lines, "    "+def)
	}
	if len(pk) > 1 {
		quoted := make([]string, len(pk))
		for i, name := range pk {
			quoted[i] = Ident(name)
		}
		lines = append(lines, "    PRIMARY KEY ("+strings.Join(quoted, ", ")+")")
	}
	for _, fk := range t.ForeignKeys {
		line := "    FOREIGN KEY (" + Ident(fk.FromColumn) + ") REFERENCES " + Ident(fk.RefTable)
		if fk.RefColumn != "" {
			line += " (" + Ident(fk.RefColumn) + ")"
		}
		if fk.OnUpdate != "" && !strings.EqualFold(fk.OnUpdate, "NO ACTION") {
			line += " ON UPDATE " + fk.OnUpdate
		}
		if fk.OnDelete != "" && !strings.EqualFold(fk.OnDelete, "NO ACTION") {
			line += " ON DELETE " + fk.OnDelete
		}
		lines = append(lines, line)
	}

	b.WriteString(strings.Join(lines, ",\n"))
	b.WriteString("\n)")
	return b.String()
}

// CreateSQL returns the CREATE INDEX statement for the index: the verbatim
// catalog text when available, otherwise a synthesized statement.
func (i Index) CreateSQL() string {
	if i.SQL != "" {
		return i.SQL
	}
	kind := "INDEX"
	if i.Unique {
		kind = "UNIQUE INDEX"
	}
	cols := make([]string, len(i.Columns))
	for n, c := range i.Columns {
		cols[n] = Ident(c)
	}
	return "CREATE " + kind + " " + Ident(i.Name) + " ON " + Ident(i.Table) +
		" (" + strings.Join(cols, ", ") + ")"
}
