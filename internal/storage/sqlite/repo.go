// Package sqlite implements a SQLite-backed storage.Repository using
// database/sql and the pure-Go modernc.org/sqlite driver. It is the default
// store: a single local file, no server.
//
// SQLite has no bulk-load API like Postgres COPY; batches are inserted with a
// prepared statement inside one transaction each.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"breachpw/internal/storage"
	"breachpw/internal/storage/sqldb"

	_ "modernc.org/sqlite"
)

// Repository is a SQLite-backed implementation of storage.Repository.
type Repository struct {
	*sqldb.Store
	cfg Config
}

// Dialect is the SQLite flavour of sqldb.Dialect.
type Dialect struct{}

var _ sqldb.Dialect = Dialect{}

func (Dialect) Name() string { return "sqlite" }

// Quote wraps id in double quotes, escaping embedded quotes.
func (Dialect) Quote(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

func (Dialect) Placeholder(int) string { return "?" }

// ColumnSQL uses TEXT with the default BINARY collation, which compares
// values byte for byte.
func (Dialect) ColumnSQL(t storage.ColumnType) string {
	if t == storage.TypeCount {
		return "INTEGER"
	}
	return "TEXT"
}

// TableOptions stores keyed tables clustered on their key, so the merged
// table does not carry a second copy of every value in a rowid index.
func (Dialect) TableOptions(t storage.Table) string {
	if len(t.PrimaryKey) > 0 {
		return " WITHOUT ROWID"
	}
	return ""
}

func (Dialect) TableExistsQuery() string {
	return "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?"
}

func (Dialect) CountExpr() string { return "COUNT(*)" }

func (d Dialect) TopQuery(table string, k int) string {
	return fmt.Sprintf("SELECT %s, %s FROM %s ORDER BY %s DESC, %s ASC LIMIT %d",
		d.Quote(storage.ValueColumn), d.Quote(storage.CountColumn), d.Quote(table),
		d.Quote(storage.CountColumn), d.Quote(storage.ValueColumn), k)
}

func (Dialect) CompactStatements(string) []string { return []string{"VACUUM"} }

func (Dialect) Accepts(v string) bool { return utf8.ValidString(v) }

// Open opens dsn with the SQLite driver limited to a single connection; the
// file is locked per writer anyway and VACUUM needs exclusive access.
func Open(dsn string) (*sql.DB, error) {
	if dir := fileDir(dsn); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// fileDir returns the directory to create for a plain file DSN, or "" for
// URIs and in-memory databases.
func fileDir(dsn string) string {
	if dsn == "" || strings.HasPrefix(dsn, "file:") || strings.HasPrefix(dsn, ":memory:") {
		return ""
	}
	dir := filepath.Dir(dsn)
	if dir == "." {
		return ""
	}
	return dir
}

// NewRepository opens a SQLite database and returns a Repository plus a
// Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("sqlite: DSN must not be empty")
	}

	db, err := Open(cfg.DSN)
	if err != nil {
		return nil, nil, err
	}

	// Fail fast on unusable paths.
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	store := sqldb.New(db, Dialect{})
	return &Repository{Store: store, cfg: cfg}, store.Close, nil
}
