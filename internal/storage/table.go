package storage

// Column names shared by both tables.
const (
	ValueColumn = "pw"
	CountColumn = "count"
)

// ColumnType is a logical column type; each backend maps it to SQL.
type ColumnType int

const (
	// TypeValue holds an extracted password. Backends must compare it
	// byte-for-byte (binary collation) so distinct values never merge.
	TypeValue ColumnType = iota
	// TypeCount holds a positive 64-bit occurrence count.
	TypeCount
)

// Column is one column of a Table.
type Column struct {
	Name string
	Type ColumnType
}

// Table is a backend-neutral table definition.
type Table struct {
	Name       string
	Columns    []Column
	PrimaryKey []string
}

// ColumnNames returns the column names of t in order.
func (t Table) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// RawTable is the append-only table the loader fills: one row per value per
// shard, duplicates across shards allowed.
func RawTable(name string) Table {
	return Table{
		Name: name,
		Columns: []Column{
			{Name: ValueColumn, Type: TypeValue},
			{Name: CountColumn, Type: TypeCount},
		},
	}
}

// MergedTable holds exactly one row per distinct value.
func MergedTable(name string) Table {
	t := RawTable(name)
	t.PrimaryKey = []string{ValueColumn}
	return t
}
