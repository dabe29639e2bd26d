// Package storagetest holds a behavioural test suite every
// storage.Repository implementation must pass.
package storagetest

import (
	"context"
	"testing"

	"breachpw/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run exercises repo end to end: create, bulk load, merge, totals, ranked
// scan, drop and compaction. raw and merged must not exist yet; they are
// dropped again when the test ends.
func Run(t *testing.T, repo storage.Repository, raw, merged string) {
	t.Helper()
	ctx := context.Background()

	t.Cleanup(func() {
		for _, name := range []string{raw, merged} {
			if ok, _ := repo.TableExists(ctx, name); ok {
				_ = repo.DropTable(ctx, name)
			}
		}
	})

	ok, err := repo.TableExists(ctx, raw)
	require.NoError(t, err)
	require.False(t, ok, "table %s must not exist before the suite", raw)

	rawT := storage.RawTable(raw)
	require.NoError(t, repo.CreateTable(ctx, rawT))
	require.Error(t, repo.CreateTable(ctx, rawT), "creating an existing table must fail")

	ok, err = repo.TableExists(ctx, raw)
	require.NoError(t, err)
	require.True(t, ok)

	rows, sum, err := repo.Totals(ctx, raw)
	require.NoError(t, err)
	assert.Zero(t, rows)
	assert.Zero(t, sum, "sum of an empty table is 0")

	// Two "files" worth of rows. Values differing only in case, accents or
	// trailing space must never be merged.
	cols := rawT.ColumnNames()
	batches := [][][]any{
		{{"password", int64(3)}, {"Password", int64(1)}, {"café", int64(2)}, {"a\tb", int64(1)}},
		{{"password", int64(2)}, {"cafe", int64(1)}, {"café", int64(1)}, {"password ", int64(1)}, {"zz", int64(3)}},
	}
	var want int64
	for _, b := range batches {
		for _, r := range b {
			want += r[1].(int64)
		}
		n, err := repo.CopyFrom(ctx, raw, cols, b)
		require.NoError(t, err)
		assert.Equal(t, int64(len(b)), n)
	}
	n, err := repo.CopyFrom(ctx, raw, cols, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	rows, sum, err = repo.Totals(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, int64(9), rows)
	require.Equal(t, int64(15), want)
	assert.Equal(t, want, sum)

	require.NoError(t, repo.CreateTable(ctx, storage.MergedTable(merged)))
	distinct, err := repo.MergeCounts(ctx, raw, merged)
	require.NoError(t, err)
	assert.Equal(t, int64(7), distinct)

	rows, sum, err = repo.Totals(ctx, merged)
	require.NoError(t, err)
	assert.Equal(t, int64(7), rows)
	assert.Equal(t, want, sum, "merging conserves the total count")

	type vc struct {
		Value string
		Count int64
	}
	var got []vc
	require.NoError(t, repo.TopValues(ctx, merged, 100, func(v string, c int64) error {
		got = append(got, vc{v, c})
		return nil
	}))
	assert.Equal(t, []vc{
		{"password", 5},
		{"café", 3},
		{"zz", 3},
		{"Password", 1},
		{"a\tb", 1},
		{"cafe", 1},
		{"password ", 1},
	}, got)

	got = got[:0]
	require.NoError(t, repo.TopValues(ctx, merged, 2, func(v string, c int64) error {
		got = append(got, vc{v, c})
		return nil
	}))
	assert.Equal(t, []vc{{"password", 5}, {"café", 3}}, got)

	require.NoError(t, repo.DropTable(ctx, raw))
	ok, err = repo.TableExists(ctx, raw)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.Compact(ctx, merged))

	rows, _, err = repo.Totals(ctx, merged)
	require.NoError(t, err)
	assert.Equal(t, int64(7), rows, "compaction keeps the merged table intact")

	assert.True(t, repo.Accepts("plain password"))
}
