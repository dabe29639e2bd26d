package mysql

import (
	"context"
	"strings"
	"testing"

	"breachpw/internal/storage"
	"breachpw/internal/storage/sqldb"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTableSQL(t *testing.T) {
	t.Parallel()

	got, err := sqldb.CreateTableSQL(Dialect{}, storage.MergedTable("table2"))
	require.NoError(t, err)
	assert.Equal(t,
		"CREATE TABLE `table2` (\n  `pw` VARBINARY(3072) NOT NULL,\n  `count` BIGINT NOT NULL,\n  PRIMARY KEY (`pw`)\n) ENGINE=InnoDB ROW_FORMAT=DYNAMIC",
		got)
}

func TestDialectStatements(t *testing.T) {
	t.Parallel()

	d := Dialect{}
	assert.Equal(t, "SELECT `pw`, `count` FROM `table2` ORDER BY `count` DESC, `pw` ASC LIMIT 5", d.TopQuery("table2", 5))
	assert.Equal(t, []string{"OPTIMIZE TABLE `table2`"}, d.CompactStatements("table2"))
	assert.Equal(t, "INSERT INTO `table1` (`pw`, `count`) VALUES (?, ?)", sqldb.InsertSQL(d, "table1", []string{"pw", "count"}))
	assert.Equal(t, "SELECT COUNT(*), COALESCE(SUM(`count`), 0) FROM `table1`", sqldb.TotalsSQL(d, "table1"))
	assert.Equal(t, "`we``ird`", d.Quote("we`ird"))
}

func TestAccepts(t *testing.T) {
	t.Parallel()

	d := Dialect{}
	assert.True(t, d.Accepts("password"))
	assert.True(t, d.Accepts(strings.Repeat("a", maxValueBytes)))
	assert.False(t, d.Accepts(strings.Repeat("a", maxValueBytes+1)))
	assert.False(t, d.Accepts(strings.Repeat("é", maxValueBytes/2+1)), "length is measured in bytes")
}

func TestNewRepository_InvalidDSN(t *testing.T) {
	t.Parallel()

	_, _, err := NewRepository(context.Background(), Config{DSN: "not a dsn"})
	require.Error(t, err)

	_, _, err = NewRepository(context.Background(), Config{DSN: "user:pass@tcp(127.0.0.1:3306)/"})
	require.ErrorContains(t, err, "database name is required")
}

// TestRegistrationUsesNewRepositoryHook swaps a package global and must not
// run in parallel.
func TestRegistrationUsesNewRepositoryHook(t *testing.T) {
	orig := newRepository
	t.Cleanup(func() { newRepository = orig })

	var (
		gotCfg Config
		closed bool
		fake   = &Repository{}
	)
	newRepository = func(ctx context.Context, cfg Config) (*Repository, func(), error) {
		gotCfg = cfg
		return fake, func() { closed = true }, nil
	}

	dsn := "u:p@tcp(db:3306)/breach"
	repo, err := storage.New(context.Background(), storage.Config{Kind: "mysql", DSN: dsn})
	require.NoError(t, err)
	assert.Equal(t, dsn, gotCfg.DSN)

	w, ok := repo.(*wrappedRepo)
	require.True(t, ok)
	assert.Same(t, fake, w.Repository)

	repo.Close()
	assert.True(t, closed)
}
