// Package postgres implements a Postgres repository using pgx v5. Batches
// are loaded with COPY (pgx CopyFrom); the merge runs as a single
// INSERT ... SELECT ... GROUP BY inside a transaction.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"breachpw/internal/storage"
	"breachpw/internal/storage/sqldb"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Config holds Postgres repository configuration.
type Config struct {
	DSN string // connection string for pgxpool
}

// Repository is a Postgres-backed implementation of storage.Repository.
type Repository struct {
	pool *pgxpool.Pool
	cfg  Config
}

// Dialect renders Postgres SQL. Statements are executed through pgx, not
// database/sql; the dialect only shares the builders in sqldb.
type Dialect struct{}

var _ sqldb.Dialect = Dialect{}

func (Dialect) Name() string { return "postgres" }

// Quote double-quotes an identifier, escaping embedded quotes.
func (Dialect) Quote(id string) string { return pgIdent(id) }

func (Dialect) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

// ColumnSQL uses TEXT with the "C" collation so equality and ordering are
// byte-wise regardless of the database default.
func (Dialect) ColumnSQL(t storage.ColumnType) string {
	if t == storage.TypeCount {
		return "BIGINT"
	}
	return `TEXT COLLATE "C"`
}

func (Dialect) TableOptions(storage.Table) string { return "" }

func (Dialect) TableExistsQuery() string {
	return "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = $1"
}

func (Dialect) CountExpr() string { return "COUNT(*)" }

func (d Dialect) TopQuery(table string, k int) string {
	return fmt.Sprintf("SELECT %s, %s FROM %s ORDER BY %s DESC, %s ASC LIMIT %d",
		d.Quote(storage.ValueColumn), d.Quote(storage.CountColumn), d.Quote(table),
		d.Quote(storage.CountColumn), d.Quote(storage.ValueColumn), k)
}

// CompactStatements returns a plain VACUUM; the dropped table's files are
// already gone, this refreshes the free space map and statistics.
func (Dialect) CompactStatements(string) []string { return []string{"VACUUM"} }

// Accepts rejects NUL bytes, which Postgres text cannot hold.
func (Dialect) Accepts(v string) bool {
	return utf8.ValidString(v) && !strings.ContainsRune(v, 0)
}

// totalsSQL casts the numeric SUM back to bigint for scanning.
func totalsSQL(table string) string {
	d := Dialect{}
	return fmt.Sprintf("SELECT COUNT(*), COALESCE(SUM(%s), 0)::bigint FROM %s",
		d.Quote(storage.CountColumn), d.Quote(table))
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}
	return &Repository{pool: pool, cfg: cfg}, pool.Close, nil
}

func (r *Repository) CreateTable(ctx context.Context, t storage.Table) error {
	ddl, err := sqldb.CreateTableSQL(Dialect{}, t)
	if err != nil {
		return err
	}
	if _, err := r.pool.Exec(ctx, ddl); err != nil {
		return pgErrorf(err, "create table %s", t.Name)
	}
	return nil
}

func (r *Repository) TableExists(ctx context.Context, name string) (bool, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, (Dialect{}).TableExistsQuery(), name).Scan(&n); err != nil {
		return false, pgErrorf(err, "table exists %s", name)
	}
	return n > 0, nil
}

func (r *Repository) DropTable(ctx context.Context, name string) error {
	if _, err := r.pool.Exec(ctx, sqldb.DropSQL(Dialect{}, name)); err != nil {
		return pgErrorf(err, "drop table %s", name)
	}
	return nil
}

// CopyFrom streams rows into table with COPY. A COPY is a single statement,
// so a batch commits or fails as a whole.
func (r *Repository) CopyFrom(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	n, err := r.pool.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, pgErrorf(err, "copy into %s", table)
	}
	return n, nil
}

func (r *Repository) MergeCounts(ctx context.Context, src, dst string) (int64, error) {
	var n int64
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, sqldb.MergeSQL(Dialect{}, src, dst))
		if err != nil {
			return err
		}
		n = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, pgErrorf(err, "merge %s into %s", src, dst)
	}
	return n, nil
}

func (r *Repository) Totals(ctx context.Context, table string) (rows, sum int64, err error) {
	if err := r.pool.QueryRow(ctx, totalsSQL(table)).Scan(&rows, &sum); err != nil {
		return 0, 0, pgErrorf(err, "totals %s", table)
	}
	return rows, sum, nil
}

func (r *Repository) TopValues(ctx context.Context, table string, k int, fn func(string, int64) error) error {
	if k <= 0 {
		return nil
	}
	rows, err := r.pool.Query(ctx, Dialect{}.TopQuery(table, k))
	if err != nil {
		return pgErrorf(err, "top %d of %s", k, table)
	}
	defer rows.Close()

	var (
		value string
		count int64
	)
	for rows.Next() {
		if err := rows.Scan(&value, &count); err != nil {
			return fmt.Errorf("postgres: scan: %w", err)
		}
		if err := fn(value, count); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return pgErrorf(err, "rows")
	}
	return nil
}

// Compact runs VACUUM over the simple protocol; it cannot run inside a
// transaction block.
func (r *Repository) Compact(ctx context.Context, table string) error {
	d := Dialect{}
	for _, stmt := range d.CompactStatements(table) {
		if _, err := r.pool.Exec(ctx, stmt, pgx.QueryExecModeSimpleProtocol); err != nil {
			return pgErrorf(err, "compact")
		}
	}
	return nil
}

func (r *Repository) Accepts(v string) bool { return Dialect{}.Accepts(v) }

// pgErrorf wraps err with context, surfacing the server's detail and
// SQLSTATE when available.
func pgErrorf(err error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Detail != "" {
		return fmt.Errorf("postgres: %s: %w (%s, %s)", msg, err, pgErr.Detail, pgErr.SQLState())
	}
	return fmt.Errorf("postgres: %s: %w", msg, err)
}

// pgIdent safely double-quotes an identifier.
func pgIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }
