package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mastr/internal/storage"
)

func spec() storage.TableSpec {
	return storage.TableSpec{
		Schema: "sandbox",
		Name:   "wind",
		Columns: []storage.ColumnSpec{
			{Name: "w-id", Type: storage.TypeFloat},
			{Name: "Ort", Type: storage.TypeString, Length: 100},
		},
	}
}

func openTemp(t *testing.T) *Repo {
	t.Helper()
	repo, err := storage.New(context.Background(), storage.Config{
		Kind: "sqlite",
		DSN:  filepath.Join(t.TempDir(), "warehouse.db"),
	})
	require.NoError(t, err)
	t.Cleanup(repo.Close)
	return repo.(*Repo)
}

func count(t *testing.T, r *Repo, s storage.TableSpec) int {
	t.Helper()
	var n int
	require.NoError(t, r.DB().QueryRow("SELECT count(*) FROM "+tableIdent(s)).Scan(&n))
	return n
}

func TestBuildCreateSQL(t *testing.T) {
	t.Parallel()

	ddl, err := buildCreateSQL(spec())
	require.NoError(t, err)
	assert.Equal(t, `CREATE TABLE IF NOT EXISTS "sandbox.wind" ("w-id" REAL, "Ort" TEXT);`, ddl)
}

func TestBuildInsertSQL(t *testing.T) {
	t.Parallel()

	q, args := buildInsertSQL(`"t"`, []string{"a", "b"}, [][]any{{1.0, "x"}, {2.0, nil}})
	assert.Equal(t, `INSERT INTO "t" ("a", "b") VALUES (?, ?), (?, ?)`, q)
	assert.Equal(t, []any{1.0, "x", 2.0, nil}, args)
}

func TestRepo_CreateIsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := openTemp(t)
	s := spec()

	ok, err := r.TableExists(ctx, s.Schema, s.Name)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, r.CreateTable(ctx, s))
	require.NoError(t, r.CreateTable(ctx, s))

	ok, err = r.TableExists(ctx, s.Schema, s.Name)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.TableExists(ctx, "", "wind")
	require.NoError(t, err)
	assert.False(t, ok, "unqualified name is a different table")
}

func TestRepo_ReplaceAndRollback(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := openTemp(t)
	s := spec()
	require.NoError(t, r.CreateTable(ctx, s))

	replace := func(rows [][]any) {
		tx, err := r.Begin(ctx)
		require.NoError(t, err)
		_, err = tx.DeleteAll(ctx, s)
		require.NoError(t, err)
		n, err := tx.InsertRows(ctx, s, s.ColumnNames(), rows)
		require.NoError(t, err)
		assert.EqualValues(t, len(rows), n)
		require.NoError(t, tx.Commit(ctx))
	}

	replace([][]any{{1.0, "Aurich"}, {2.0, nil}, {3.0, "Husum"}})
	assert.Equal(t, 3, count(t, r, s))

	replace([][]any{{4.0, "Emden"}})
	assert.Equal(t, 1, count(t, r, s))

	tx, err := r.Begin(ctx)
	require.NoError(t, err)
	_, err = tx.DeleteAll(ctx, s)
	require.NoError(t, err)
	require.NoError(t, tx.Rollback(ctx))
	assert.Equal(t, 1, count(t, r, s), "rollback keeps previous contents")
}

func TestRepo_InsertWideRowsPastVariableLimit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := openTemp(t)
	s := storage.TableSpec{Schema: "sandbox", Name: "wide"}
	for i := 0; i < 142; i++ {
		s.Columns = append(s.Columns, storage.ColumnSpec{Name: fmt.Sprintf("c%03d", i), Type: storage.TypeFloat})
	}
	require.NoError(t, r.CreateTable(ctx, s))

	// 300 rows x 142 columns is 42600 variables, above SQLite's 32766.
	rows := make([][]any, 300)
	for i := range rows {
		rows[i] = make([]any, len(s.Columns))
		for j := range rows[i] {
			rows[i][j] = float64(i*1000 + j)
		}
	}

	tx, err := r.Begin(ctx)
	require.NoError(t, err)
	n, err := tx.InsertRows(ctx, s, s.ColumnNames(), rows)
	require.NoError(t, err)
	assert.EqualValues(t, 300, n)
	require.NoError(t, tx.Commit(ctx))
	assert.Equal(t, 300, count(t, r, s))
}
