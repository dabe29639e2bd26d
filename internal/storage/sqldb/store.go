package sqldb

import (
	"context"
	"database/sql"
	"fmt"

	"breachpw/internal/storage"
)

// Store is a database/sql backed storage.Repository.
type Store struct {
	DB      *sql.DB
	Dialect Dialect
}

var _ storage.Repository = (*Store)(nil)

// New wraps db. The Store owns db and closes it on Close.
func New(db *sql.DB, d Dialect) *Store {
	return &Store{DB: db, Dialect: d}
}

func (s *Store) errorf(format string, args ...any) error {
	return fmt.Errorf(s.Dialect.Name()+": "+format, args...)
}

// Exec executes a single statement (typically DDL).
func (s *Store) Exec(ctx context.Context, query string) error {
	if _, err := s.DB.ExecContext(ctx, query); err != nil {
		return s.errorf("exec: %w", err)
	}
	return nil
}

func (s *Store) CreateTable(ctx context.Context, t storage.Table) error {
	ddl, err := CreateTableSQL(s.Dialect, t)
	if err != nil {
		return err
	}
	if _, err := s.DB.ExecContext(ctx, ddl); err != nil {
		return s.errorf("create table %s: %w", t.Name, err)
	}
	return nil
}

func (s *Store) TableExists(ctx context.Context, name string) (bool, error) {
	var n int64
	if err := s.DB.QueryRowContext(ctx, s.Dialect.TableExistsQuery(), name).Scan(&n); err != nil {
		return false, s.errorf("table exists %s: %w", name, err)
	}
	return n > 0, nil
}

func (s *Store) DropTable(ctx context.Context, name string) error {
	if _, err := s.DB.ExecContext(ctx, DropSQL(s.Dialect, name)); err != nil {
		return s.errorf("drop table %s: %w", name, err)
	}
	return nil
}

// CopyFrom inserts rows inside a single transaction using a prepared INSERT.
func (s *Store) CopyFrom(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(columns) == 0 {
		return 0, s.errorf("CopyFrom: columns must not be empty")
	}
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, s.errorf("begin tx: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, InsertSQL(s.Dialect, table, columns))
	if err != nil {
		_ = tx.Rollback()
		return 0, s.errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, row := range rows {
		if len(row) != len(columns) {
			_ = tx.Rollback()
			return 0, s.errorf("CopyFrom: row %d length %d != columns length %d", i, len(row), len(columns))
		}
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			_ = tx.Rollback()
			return 0, s.errorf("insert: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, s.errorf("commit: %w", err)
	}
	return int64(len(rows)), nil
}

func (s *Store) MergeCounts(ctx context.Context, src, dst string) (int64, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, s.errorf("begin tx: %w", err)
	}
	res, err := tx.ExecContext(ctx, MergeSQL(s.Dialect, src, dst))
	if err != nil {
		_ = tx.Rollback()
		return 0, s.errorf("merge %s into %s: %w", src, dst, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		_ = tx.Rollback()
		return 0, s.errorf("rows affected: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, s.errorf("commit: %w", err)
	}
	return n, nil
}

func (s *Store) Totals(ctx context.Context, table string) (rows, sum int64, err error) {
	if err := s.DB.QueryRowContext(ctx, TotalsSQL(s.Dialect, table)).Scan(&rows, &sum); err != nil {
		return 0, 0, s.errorf("totals %s: %w", table, err)
	}
	return rows, sum, nil
}

func (s *Store) TopValues(ctx context.Context, table string, k int, fn func(string, int64) error) error {
	if k <= 0 {
		return nil
	}
	rows, err := s.DB.QueryContext(ctx, s.Dialect.TopQuery(table, k))
	if err != nil {
		return s.errorf("top %d of %s: %w", k, table, err)
	}
	defer rows.Close()

	var (
		value string
		count int64
	)
	for rows.Next() {
		if err := rows.Scan(&value, &count); err != nil {
			return s.errorf("scan: %w", err)
		}
		if err := fn(value, count); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return s.errorf("rows: %w", err)
	}
	return nil
}

func (s *Store) Compact(ctx context.Context, table string) error {
	for _, stmt := range s.Dialect.CompactStatements(table) {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return s.errorf("compact: %w", err)
		}
	}
	return nil
}

func (s *Store) Accepts(value string) bool { return s.Dialect.Accepts(value) }

func (s *Store) Close() { _ = s.DB.Close() }
