// Package mysql implements a MySQL-backed storage.Repository on database/sql
// with github.com/go-sql-driver/mysql.
//
// Values are stored as VARBINARY so comparisons and grouping are byte-exact;
// any case- or accent-insensitive collation would merge distinct passwords.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"unicode/utf8"

	"breachpw/internal/storage"
	"breachpw/internal/storage/sqldb"

	"github.com/go-sql-driver/mysql"
)

// maxValueBytes is the widest value InnoDB can index in the merged table's
// primary key.
const maxValueBytes = 3072

// Config holds MySQL repository configuration.
type Config struct {
	DSN string // e.g. "user:pass@tcp(127.0.0.1:3306)/breach"
}

// Repository is a MySQL-backed implementation of storage.Repository.
type Repository struct {
	*sqldb.Store
	cfg Config
}

// Dialect is the MySQL flavour of sqldb.Dialect.
type Dialect struct{}

var _ sqldb.Dialect = Dialect{}

func (Dialect) Name() string { return "mysql" }

// Quote wraps id in backticks, escaping embedded backticks.
func (Dialect) Quote(id string) string { return "`" + strings.ReplaceAll(id, "`", "``") + "`" }

func (Dialect) Placeholder(int) string { return "?" }

func (Dialect) ColumnSQL(t storage.ColumnType) string {
	if t == storage.TypeCount {
		return "BIGINT"
	}
	return fmt.Sprintf("VARBINARY(%d)", maxValueBytes)
}

func (Dialect) TableOptions(storage.Table) string { return " ENGINE=InnoDB ROW_FORMAT=DYNAMIC" }

func (Dialect) TableExistsQuery() string {
	return "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?"
}

func (Dialect) CountExpr() string { return "COUNT(*)" }

func (d Dialect) TopQuery(table string, k int) string {
	return fmt.Sprintf("SELECT %s, %s FROM %s ORDER BY %s DESC, %s ASC LIMIT %d",
		d.Quote(storage.ValueColumn), d.Quote(storage.CountColumn), d.Quote(table),
		d.Quote(storage.CountColumn), d.Quote(storage.ValueColumn), k)
}

// CompactStatements rebuilds the surviving table; InnoDB returns the space
// of dropped tables to the OS on its own when file-per-table is enabled.
func (d Dialect) CompactStatements(table string) []string {
	return []string{"OPTIMIZE TABLE " + d.Quote(table)}
}

func (Dialect) Accepts(v string) bool {
	return len(v) <= maxValueBytes && utf8.ValidString(v)
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	mc, err := mysql.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("mysql dsn: %w", err)
	}
	if mc.DBName == "" {
		return nil, nil, fmt.Errorf("mysql dsn: database name is required")
	}
	mc.MultiStatements = false

	conn, err := mysql.NewConnector(mc)
	if err != nil {
		return nil, nil, fmt.Errorf("mysql connector: %w", err)
	}
	db := sql.OpenDB(conn)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}

	store := sqldb.New(db, Dialect{})
	return &Repository{Store: store, cfg: cfg}, store.Close, nil
}
