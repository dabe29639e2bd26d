// Package storage contains the storage-agnostic contracts of the pipeline:
// the Repository interface every backend implements, a small factory
// registry keyed by storage kind, the two table definitions, and the batched
// loader used by the load stage.
//
// Backends live in subpackages and register themselves from init; import
// breachpw/internal/storage/all to link every built-in backend.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Config selects and configures a backend.
type Config struct {
	Kind string // "sqlite", "postgres", "mysql", "mssql"
	DSN  string
}

// Repository is the store used by the load, merge, compact and report
// stages. Implementations are not safe for concurrent use by several stages;
// the pipeline only ever drives one at a time.
type Repository interface {
	// CreateTable creates t. It fails when the table already exists.
	CreateTable(ctx context.Context, t Table) error

	// TableExists reports whether a table named name exists.
	TableExists(ctx context.Context, name string) (bool, error)

	// DropTable drops the table named name.
	DropTable(ctx context.Context, name string) error

	// CopyFrom bulk-inserts rows (aligned to columns) into table and returns
	// the number of rows inserted. A batch is committed atomically.
	CopyFrom(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)

	// MergeCounts inserts one row per distinct value of src into dst with the
	// summed count. The aggregation runs inside the engine in a single
	// transaction. It returns the number of rows written to dst.
	MergeCounts(ctx context.Context, src, dst string) (int64, error)

	// Totals returns the row count and the sum of the count column of table.
	// The sum of an empty table is 0.
	Totals(ctx context.Context, table string) (rows, sum int64, err error)

	// TopValues streams up to k values of table ordered by count descending,
	// then value ascending, calling fn for each. A non-nil error from fn
	// stops the scan and is returned.
	TopValues(ctx context.Context, table string, k int, fn func(value string, count int64) error) error

	// Compact reclaims space after tables were dropped. table names the
	// surviving table for engines that optimize per table.
	Compact(ctx context.Context, table string) error

	// Accepts reports whether the backend can store value unchanged in the
	// value column.
	Accepts(value string) bool

	Close()
}

// Factory constructs a Repository for a given Config.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

// ErrUnsupportedKind is returned by New for kinds nobody registered.
var ErrUnsupportedKind = errors.New("unsupported storage.kind")

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register installs (or replaces) the factory for kind.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// New opens a Repository using the factory registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w=%s", ErrUnsupportedKind, cfg.Kind)
	}
	return f(ctx, cfg)
}

// ListKinds returns a sorted snapshot of the registered kinds.
func ListKinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
