package storagetest

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"breachpw/internal/storage"
)

// Memory is an in-memory storage.Repository for stage tests. Reject, when
// set, decides which values Accepts turns away; Fail, when set, is
// consulted before every mutating call and its error returned.
type Memory struct {
	Reject func(value string) bool
	Fail   func(op, table string) error

	mu        sync.Mutex
	tables    map[string]*memTable
	compacted int
	closed    bool
}

type memRow struct {
	value string
	count int64
}

type memTable struct {
	def  storage.Table
	rows []memRow
	keys map[string]struct{}
}

// NewMemory returns an empty Memory repository.
func NewMemory() *Memory {
	return &Memory{tables: make(map[string]*memTable)}
}

func (m *Memory) fail(op, table string) error {
	if m.Fail == nil {
		return nil
	}
	return m.Fail(op, table)
}

func (m *Memory) table(name string) (*memTable, error) {
	t, ok := m.tables[name]
	if !ok {
		return nil, fmt.Errorf("memory: no such table: %s", name)
	}
	return t, nil
}

func (m *Memory) CreateTable(_ context.Context, t storage.Table) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("create", t.Name); err != nil {
		return err
	}
	if _, ok := m.tables[t.Name]; ok {
		return fmt.Errorf("memory: table %s already exists", t.Name)
	}
	mt := &memTable{def: t}
	if len(t.PrimaryKey) > 0 {
		mt.keys = make(map[string]struct{})
	}
	m.tables[t.Name] = mt
	return nil
}

func (m *Memory) TableExists(_ context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.tables[name]
	return ok, nil
}

func (m *Memory) DropTable(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("drop", name); err != nil {
		return err
	}
	if _, err := m.table(name); err != nil {
		return err
	}
	delete(m.tables, name)
	return nil
}

// CopyFrom validates the whole batch before inserting any row.
func (m *Memory) CopyFrom(_ context.Context, table string, columns []string, rows [][]any) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("copy", table); err != nil {
		return 0, err
	}
	t, err := m.table(table)
	if err != nil {
		return 0, err
	}
	if len(columns) != len(t.def.Columns) {
		return 0, fmt.Errorf("memory: %d columns, table has %d", len(columns), len(t.def.Columns))
	}

	batch := make([]memRow, 0, len(rows))
	seen := make(map[string]struct{})
	for i, r := range rows {
		if len(r) != len(columns) {
			return 0, fmt.Errorf("memory: row %d length %d != columns length %d", i, len(r), len(columns))
		}
		v, ok1 := r[0].(string)
		c, ok2 := r[1].(int64)
		if !ok1 || !ok2 {
			return 0, fmt.Errorf("memory: row %d has types %T, %T", i, r[0], r[1])
		}
		if t.keys != nil {
			_, dup := seen[v]
			if _, exists := t.keys[v]; exists || dup {
				return 0, fmt.Errorf("memory: duplicate key %q in %s", v, table)
			}
			seen[v] = struct{}{}
		}
		batch = append(batch, memRow{v, c})
	}
	for _, r := range batch {
		t.rows = append(t.rows, r)
		if t.keys != nil {
			t.keys[r.value] = struct{}{}
		}
	}
	return int64(len(batch)), nil
}

func (m *Memory) MergeCounts(_ context.Context, src, dst string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("merge", dst); err != nil {
		return 0, err
	}
	s, err := m.table(src)
	if err != nil {
		return 0, err
	}
	d, err := m.table(dst)
	if err != nil {
		return 0, err
	}

	sums := make(map[string]int64)
	for _, r := range s.rows {
		sums[r.value] += r.count
	}
	for v := range sums {
		if _, exists := d.keys[v]; exists {
			return 0, fmt.Errorf("memory: duplicate key %q in %s", v, dst)
		}
	}
	for v, c := range sums {
		d.rows = append(d.rows, memRow{v, c})
		if d.keys != nil {
			d.keys[v] = struct{}{}
		}
	}
	return int64(len(sums)), nil
}

func (m *Memory) Totals(_ context.Context, table string) (rows, sum int64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, err := m.table(table)
	if err != nil {
		return 0, 0, err
	}
	for _, r := range t.rows {
		sum += r.count
	}
	return int64(len(t.rows)), sum, nil
}

func (m *Memory) TopValues(ctx context.Context, table string, k int, fn func(string, int64) error) error {
	m.mu.Lock()
	t, err := m.table(table)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	ranked := append([]memRow(nil), t.rows...)
	m.mu.Unlock()

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].value < ranked[j].value
	})
	if k < len(ranked) {
		ranked = ranked[:max(k, 0)]
	}
	for _, r := range ranked {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(r.value, r.count); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) Compact(_ context.Context, table string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("compact", table); err != nil {
		return err
	}
	m.compacted++
	return nil
}

// Compacted returns how many times Compact succeeded.
func (m *Memory) Compacted() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.compacted
}

func (m *Memory) Accepts(value string) bool {
	return m.Reject == nil || !m.Reject(value)
}

func (m *Memory) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}

// Closed reports whether Close was called.
func (m *Memory) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

var _ storage.Repository = (*Memory)(nil)
