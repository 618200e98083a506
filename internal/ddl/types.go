package ddl

// Kind is the inferred logical type of a column. Kinds are ordered so that
// KindInteger widens to KindFloat, and every kind widens to KindText.
type Kind int

const (
	// KindNull is a column that has only seen empty cells so far.
	KindNull Kind = iota
	KindInteger
	KindFloat
	KindBoolean
	KindDate
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindBoolean:
		return "boolean"
	case KindDate:
		return "date"
	default:
		return "text"
	}
}

// ColumnDef describes a single column of a table definition.
//
// Fields:
//   - Name: column name, unquoted; quoting happens at render time
//   - Kind: inferred logical type
//   - SQLType: dialect type; filled in by the backend from Kind
//   - Nullable: whether NULL is allowed
//   - PrimaryKey: whether the column is part of the primary key
type ColumnDef struct {
	Name       string
	Kind       Kind
	SQLType    string
	Nullable   bool
	PrimaryKey bool
	Default    string
}

// TableDef holds the table name and an ordered list of columns.
type TableDef struct {
	FQN     string
	Columns []ColumnDef
}

// Names returns the column names in order.
func (t TableDef) Names() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// WithTypes returns a copy of t with SQLType set from each column's Kind.
func (t TableDef) WithTypes(mapType func(Kind) string) TableDef {
	cols := make([]ColumnDef, len(t.Columns))
	for i, c := range t.Columns {
		c.SQLType = mapType(c.Kind)
		cols[i] = c
	}
	return TableDef{FQN: t.FQN, Columns: cols}
}

// Rename returns a copy of t under another table name.
func (t TableDef) Rename(fqn string) TableDef {
	return TableDef{FQN: fqn, Columns: append([]ColumnDef(nil), t.Columns...)}
}
