// Package sqldb implements storage.Repository on top of database/sql for the
// backends whose drivers plug into it (sqlite, mysql, mssql). Everything
// engine-specific is behind Dialect; the statements themselves are shared.
package sqldb

import (
	"fmt"
	"strings"

	"breachpw/internal/storage"
)

// Dialect captures the SQL differences between engines.
type Dialect interface {
	// Name prefixes error messages, e.g. "sqlite".
	Name() string

	// Quote quotes an identifier.
	Quote(ident string) string

	// Placeholder returns the n-th (1-based) bind parameter marker.
	Placeholder(n int) string

	// ColumnSQL returns the column type (with collation) for t.
	ColumnSQL(t storage.ColumnType) string

	// TableOptions returns a suffix appended after the column list.
	TableOptions(t storage.Table) string

	// TableExistsQuery returns a query taking the table name as its only
	// parameter and yielding a single integer row (> 0 when it exists).
	TableExistsQuery() string

	// CountExpr is the row count aggregate, e.g. "COUNT(*)".
	CountExpr() string

	// TopQuery selects the value and count columns of up to k rows of
	// table ordered by count descending, value ascending.
	TopQuery(table string, k int) string

	// CompactStatements reclaim space; table is the surviving table.
	CompactStatements(table string) []string

	// Accepts reports whether value fits the value column unchanged.
	Accepts(value string) bool
}

// CreateTableSQL renders CREATE TABLE for t. All columns are NOT NULL.
func CreateTableSQL(d Dialect, t storage.Table) (string, error) {
	if strings.TrimSpace(t.Name) == "" {
		return "", fmt.Errorf("%s ddl: table name must not be empty", d.Name())
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("%s ddl: at least one column is required", d.Name())
	}

	defs := make([]string, 0, len(t.Columns)+1)
	for _, c := range t.Columns {
		defs = append(defs, fmt.Sprintf("%s %s NOT NULL", d.Quote(c.Name), d.ColumnSQL(c.Type)))
	}
	if len(t.PrimaryKey) > 0 {
		defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(quoteAll(d, t.PrimaryKey), ", ")))
	}

	return fmt.Sprintf("CREATE TABLE %s (\n  %s\n)%s",
		d.Quote(t.Name),
		strings.Join(defs, ",\n  "),
		d.TableOptions(t),
	), nil
}

// InsertSQL renders a single-row INSERT with one placeholder per column.
func InsertSQL(d Dialect, table string, columns []string) string {
	ph := make([]string, len(columns))
	for i := range ph {
		ph[i] = d.Placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		d.Quote(table),
		strings.Join(quoteAll(d, columns), ", "),
		strings.Join(ph, ", "),
	)
}

// MergeSQL renders the server-side aggregation of src into dst.
func MergeSQL(d Dialect, src, dst string) string {
	pw, cnt := d.Quote(storage.ValueColumn), d.Quote(storage.CountColumn)
	return fmt.Sprintf("INSERT INTO %s (%s, %s) SELECT %s, SUM(%s) FROM %s GROUP BY %s",
		d.Quote(dst), pw, cnt,
		pw, cnt, d.Quote(src), pw,
	)
}

// TotalsSQL renders the row count and count sum of table.
func TotalsSQL(d Dialect, table string) string {
	return fmt.Sprintf("SELECT %s, COALESCE(SUM(%s), 0) FROM %s",
		d.CountExpr(), d.Quote(storage.CountColumn), d.Quote(table))
}

// DropSQL renders DROP TABLE.
func DropSQL(d Dialect, table string) string {
	return "DROP TABLE " + d.Quote(table)
}

func quoteAll(d Dialect, names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = d.Quote(n)
	}
	return out
}
