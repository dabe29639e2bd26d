package report

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"breachpw/internal/charset"
	"breachpw/internal/config"
	"breachpw/internal/metrics"
	"breachpw/internal/storage"
	"breachpw/internal/storage/storagetest"
)

func merged(tb testing.TB, rows ...[]any) *storagetest.Memory {
	tb.Helper()
	ctx := context.Background()
	repo := storagetest.NewMemory()
	tbl := storage.MergedTable("table2")
	require.NoError(tb, repo.CreateTable(ctx, tbl))
	_, err := repo.CopyFrom(ctx, tbl.Name, tbl.ColumnNames(), rows)
	require.NoError(tb, err)
	return repo
}

func newReporter(dst string, ks []int, repo Store) *Reporter {
	log, _ := test.NewNullLogger()
	return New(config.Report{Destination: dst, TopK: ks, CheckUnique: true}, "table2", repo, charset.Latin1, log)
}

func lines(tb testing.TB, path string) []string {
	tb.Helper()
	b, err := os.ReadFile(path)
	require.NoError(tb, err)
	s := strings.TrimSuffix(string(b), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func TestFileName(t *testing.T) {
	t.Parallel()

	cases := map[int]string{
		100000:  "top_100_k.txt",
		200000:  "top_200_k.txt",
		1000000: "top_1_mio.txt",
		2500000: "top_2500_k.txt",
		1000:    "top_1_k.txt",
		10:      "top_10.txt",
		1500:    "top_1500.txt",
	}
	for k, want := range cases {
		assert.Equal(t, want, FileName(k), "k=%d", k)
	}
}

func TestRun_Scenario(t *testing.T) {
	t.Parallel()

	dst := t.TempDir()
	repo := merged(t, []any{"abcd", int64(2)}, []any{"1234", int64(1)})

	stats, err := newReporter(dst, []int{1, 100000}, repo).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"abcd"}, lines(t, filepath.Join(dst, "top_1.txt")))
	assert.Equal(t, []string{"abcd", "1234"}, lines(t, filepath.Join(dst, "top_100_k.txt")))
	assert.Equal(t, []string{
		"Amount of unique passwords:2",
		"Amount of passwords:3",
	}, lines(t, filepath.Join(dst, StatsFile)))
	assert.Equal(t, int64(2), stats.Get(metrics.KindDistinct))
	assert.Equal(t, int64(3), stats.Get(metrics.KindTotal))
}

func TestRun_TiesAndPrefixes(t *testing.T) {
	t.Parallel()

	dst := t.TempDir()
	repo := merged(t,
		[]any{"c", int64(2)}, []any{"a", int64(2)}, []any{"z", int64(9)},
		[]any{"b", int64(2)}, []any{"y", int64(1)},
	)

	_, err := newReporter(dst, []int{4, 2, 4}, repo).Run(context.Background())
	require.NoError(t, err)

	top4 := lines(t, filepath.Join(dst, "top_4.txt"))
	top2 := lines(t, filepath.Join(dst, "top_2.txt"))
	assert.Equal(t, []string{"z", "a", "b", "c"}, top4, "ties ordered by value, duplicate sizes written once")
	assert.Equal(t, top4[:2], top2)
}

func TestRun_EmptyTable(t *testing.T) {
	t.Parallel()

	dst := t.TempDir()
	_, err := newReporter(dst, []int{100}, merged(t)).Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, lines(t, filepath.Join(dst, "top_100.txt")))
	assert.Equal(t, []string{
		"Amount of unique passwords:0",
		"Amount of passwords:0",
	}, lines(t, filepath.Join(dst, StatsFile)))
}

func TestRun_AppendsToExistingFiles(t *testing.T) {
	t.Parallel()

	dst := t.TempDir()
	repo := merged(t, []any{"x", int64(1)})
	r := newReporter(dst, []int{10}, repo)

	_, err := r.Run(context.Background())
	require.NoError(t, err)
	_, err = r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"x", "x"}, lines(t, filepath.Join(dst, "top_10.txt")))
	assert.Len(t, lines(t, filepath.Join(dst, StatsFile)), 4)
}

// dupStore yields the same value twice.
type dupStore struct{}

func (dupStore) Totals(context.Context, string) (int64, int64, error) { return 2, 2, nil }

func (dupStore) TopValues(_ context.Context, _ string, _ int, fn func(string, int64) error) error {
	if err := fn("same", 1); err != nil {
		return err
	}
	return fn("same", 1)
}

func TestRun_DuplicateValueIsFatal(t *testing.T) {
	t.Parallel()

	_, err := newReporter(t.TempDir(), []int{5}, dupStore{}).Run(context.Background())
	require.ErrorIs(t, err, ErrDuplicateValue)
}

func TestRun_NoSizesWritesOnlyStats(t *testing.T) {
	t.Parallel()

	dst := t.TempDir()
	_, err := newReporter(dst, nil, merged(t, []any{"x", int64(4)})).Run(context.Background())
	require.NoError(t, err)

	entries, err := os.ReadDir(dst)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, StatsFile, entries[0].Name())
}

func TestRun_Latin1Output(t *testing.T) {
	t.Parallel()

	dst := t.TempDir()
	_, err := newReporter(dst, []int{1}, merged(t, []any{"café", int64(1)})).Run(context.Background())
	require.NoError(t, err)

	b, err := os.ReadFile(filepath.Join(dst, "top_1.txt"))
	require.NoError(t, err)
	assert.Equal(t, []byte("caf\xe9\n"), b)
}
