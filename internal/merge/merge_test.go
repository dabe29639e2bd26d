package merge

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"breachpw/internal/config"
	"breachpw/internal/metrics"
	"breachpw/internal/storage"
	"breachpw/internal/storage/storagetest"
)

var tables = config.Storage{RawTable: "table1", MergedTable: "table2"}

func seeded(tb testing.TB, rows ...[]any) *storagetest.Memory {
	tb.Helper()
	ctx := context.Background()
	repo := storagetest.NewMemory()
	raw := storage.RawTable(tables.RawTable)
	require.NoError(tb, repo.CreateTable(ctx, raw))
	_, err := repo.CopyFrom(ctx, raw.Name, raw.ColumnNames(), rows)
	require.NoError(tb, err)
	return repo
}

func newMerger(repo storage.Repository, verify bool) *Merger {
	log, _ := test.NewNullLogger()
	return New(tables, config.Merge{Verify: verify}, repo, log)
}

func TestMerge_SumsPerValue(t *testing.T) {
	t.Parallel()

	repo := seeded(t,
		[]any{"abcd", int64(2)}, []any{"1234", int64(1)},
		[]any{"abcd", int64(5)}, []any{"ABCD", int64(1)},
	)
	stats, err := newMerger(repo, true).Merge(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(3), stats.Get(metrics.KindMerged))
	assert.Equal(t, int64(9), stats.Get(metrics.KindTotal))

	var got []string
	require.NoError(t, repo.TopValues(context.Background(), "table2", 10, func(v string, c int64) error {
		got = append(got, v)
		return nil
	}))
	assert.Equal(t, []string{"abcd", "1234", "ABCD"}, got)
}

func TestMerge_EmptyRawTable(t *testing.T) {
	t.Parallel()

	repo := seeded(t)
	stats, err := newMerger(repo, true).Merge(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Get(metrics.KindMerged))

	rows, sum, err := repo.Totals(context.Background(), "table2")
	require.NoError(t, err)
	assert.Zero(t, rows)
	assert.Zero(t, sum)
}

func TestMerge_MergedTableExists(t *testing.T) {
	t.Parallel()

	repo := seeded(t, []any{"x", int64(1)})
	m := newMerger(repo, true)
	_, err := m.Merge(context.Background())
	require.NoError(t, err)

	_, err = m.Merge(context.Background())
	require.Error(t, err)
}

// lossyRepo drops one unit of count on merge.
type lossyRepo struct{ *storagetest.Memory }

func (r lossyRepo) Totals(ctx context.Context, table string) (int64, int64, error) {
	rows, sum, err := r.Memory.Totals(ctx, table)
	if table == tables.MergedTable {
		sum--
	}
	return rows, sum, err
}

func TestMerge_ConservationViolation(t *testing.T) {
	t.Parallel()

	repo := lossyRepo{seeded(t, []any{"x", int64(3)})}

	_, err := newMerger(repo, true).Merge(context.Background())
	require.ErrorIs(t, err, ErrConservation)

	_, err = newMerger(repo, false).Compact(context.Background())
	require.ErrorIs(t, err, ErrConservation)
	ok, err := repo.TableExists(context.Background(), "table1")
	require.NoError(t, err)
	assert.True(t, ok, "raw table must survive a failed check")
}

func TestCompact_DropsRawAndCompacts(t *testing.T) {
	t.Parallel()

	repo := seeded(t, []any{"x", int64(3)})
	m := newMerger(repo, true)
	_, err := m.Merge(context.Background())
	require.NoError(t, err)

	stats, err := m.Compact(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Get(metrics.KindDeleted))
	assert.Equal(t, 1, repo.Compacted())

	ok, err := repo.TableExists(context.Background(), "table1")
	require.NoError(t, err)
	assert.False(t, ok)

	// Re-running only compacts again.
	_, err = m.Compact(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, repo.Compacted())
}

func TestCompact_RequiresMergedTable(t *testing.T) {
	t.Parallel()

	repo := seeded(t, []any{"x", int64(1)})
	_, err := newMerger(repo, true).Compact(context.Background())
	require.ErrorIs(t, err, ErrMergedMissing)

	ok, err := repo.TableExists(context.Background(), "table1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Zero(t, repo.Compacted())
}

func TestCompact_StoreErrorPropagates(t *testing.T) {
	t.Parallel()

	repo := seeded(t, []any{"x", int64(1)})
	m := newMerger(repo, false)
	_, err := m.Merge(context.Background())
	require.NoError(t, err)

	boom := errors.New("locked")
	repo.Fail = func(op, _ string) error {
		if op == "compact" {
			return boom
		}
		return nil
	}
	_, err = m.Compact(context.Background())
	require.ErrorIs(t, err, boom)
}
