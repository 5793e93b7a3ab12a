package loader

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"mastr/internal/powerunit"
	"mastr/internal/storage"
	_ "mastr/internal/storage/sqlite"
	"mastr/internal/warehouse"
)

// memRepo is an in-memory warehouse with transactional replace.
type memRepo struct {
	tables     map[string][][]any
	created    int
	inserts    int
	rollbacks  int
	closed     int
	failInsert int // 1-based insert call that fails; 0 never
	failCommit bool
}

func newMemRepo() *memRepo { return &memRepo{tables: map[string][][]any{}} }

func (m *memRepo) TableExists(_ context.Context, schema, table string) (bool, error) {
	_, ok := m.tables[schema+"."+table]
	return ok, nil
}

func (m *memRepo) CreateTable(_ context.Context, spec storage.TableSpec) error {
	m.created++
	m.tables[spec.QualifiedName()] = nil
	return nil
}

func (m *memRepo) Begin(context.Context) (storage.Tx, error) { return &memTx{repo: m}, nil }
func (m *memRepo) Close()                                    { m.closed++ }

type memTx struct {
	repo   *memRepo
	table  string
	staged [][]any
}

func (t *memTx) DeleteAll(_ context.Context, spec storage.TableSpec) (int64, error) {
	t.table = spec.QualifiedName()
	n := int64(len(t.repo.tables[t.table]))
	t.staged = nil
	return n, nil
}

func (t *memTx) InsertRows(_ context.Context, _ storage.TableSpec, _ []string, rows [][]any) (int64, error) {
	t.repo.inserts++
	if t.repo.failInsert == t.repo.inserts {
		return 0, errors.New("value too long for type character varying(20)")
	}
	t.staged = append(t.staged, rows...)
	return int64(len(rows)), nil
}

func (t *memTx) Commit(context.Context) error {
	if t.repo.failCommit {
		return errors.New("connection reset")
	}
	t.repo.tables[t.table] = t.staged
	return nil
}

func (t *memTx) Rollback(context.Context) error {
	t.repo.rollbacks++
	return nil
}

type opener struct {
	repo  *memRepo
	err   error
	opens int
}

func (o *opener) Open(context.Context) (*warehouse.Session, error) {
	o.opens++
	if o.err != nil {
		return nil, o.err
	}
	return &warehouse.Session{Conn: o.repo, Catalog: o.repo}, nil
}

func frame(n int, offset float64) *storage.Frame {
	f := &storage.Frame{Columns: []string{"w-id", "EinheitMastrNummer"}}
	for i := 0; i < n; i++ {
		f.Rows = append(f.Rows, []any{offset + float64(i), "SEE"})
	}
	return f
}

func newLoader(o SessionOpener) (*Loader, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return New(o, "", 0, zap.New(core).Sugar()), logs
}

func TestLoad_CreatesOnlyWhenAbsent(t *testing.T) {
	t.Parallel()

	repo := newMemRepo()
	o := &opener{repo: repo}
	l, logs := newLoader(o)
	ctx := context.Background()

	require.NoError(t, l.Load(ctx, "wind", frame(2, 0)))
	require.NoError(t, l.Load(ctx, "wind", frame(2, 0)))

	assert.Equal(t, 1, repo.created)
	assert.Equal(t, 1, logs.FilterMessage("trying to create table").Len())
	assert.Equal(t, 1, logs.FilterMessage("created table").Len())
	assert.Equal(t, 1, logs.FilterMessage("table already exists").Len())
	assert.Equal(t, 2, logs.FilterMessage("connection established").Len())
	assert.Equal(t, 2, logs.FilterMessage("table name: sandbox.wind").Len())
	assert.Equal(t, 2, o.opens)
	assert.Equal(t, 2, repo.closed, "every session is closed")
}

func TestLoad_ReplacesContents(t *testing.T) {
	t.Parallel()

	repo := newMemRepo()
	l, _ := newLoader(&opener{repo: repo})
	ctx := context.Background()

	require.NoError(t, l.Load(ctx, "hydro", frame(5, 0)))
	require.NoError(t, l.Load(ctx, "hydro", frame(3, 100)))

	rows := repo.tables["sandbox.hydro"]
	require.Len(t, rows, 3)
	assert.Equal(t, 100.0, rows[0][0])
}

func TestLoad_InsertsInBatchesOf100(t *testing.T) {
	t.Parallel()

	repo := newMemRepo()
	l, _ := newLoader(&opener{repo: repo})

	require.NoError(t, l.Load(context.Background(), "biomass", frame(250, 0)))
	assert.Equal(t, 3, repo.inserts)
	assert.Len(t, repo.tables["sandbox.biomass"], 250)
}

func TestLoad_EmptyFrameClearsTable(t *testing.T) {
	t.Parallel()

	repo := newMemRepo()
	l, _ := newLoader(&opener{repo: repo})
	ctx := context.Background()

	require.NoError(t, l.Load(ctx, "wind", frame(4, 0)))
	require.NoError(t, l.Load(ctx, "wind", frame(0, 0)))
	assert.Empty(t, repo.tables["sandbox.wind"])
}

func TestLoad_InsertFailureRollsBackAndKeepsPrevious(t *testing.T) {
	t.Parallel()

	repo := newMemRepo()
	l, logs := newLoader(&opener{repo: repo})
	ctx := context.Background()

	require.NoError(t, l.Load(ctx, "wind", frame(2, 0)))

	repo.failInsert = repo.inserts + 2
	err := l.Load(ctx, "wind", frame(150, 10))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "value too long")
	assert.Contains(t, err.Error(), "replace sandbox.wind")

	assert.Equal(t, 1, repo.rollbacks)
	assert.Equal(t, 1, logs.FilterMessage("insert incomplete").Len())
	assert.Len(t, repo.tables["sandbox.wind"], 2)
}

func TestLoad_CommitFailureRollsBack(t *testing.T) {
	t.Parallel()

	repo := newMemRepo()
	repo.failCommit = true
	l, _ := newLoader(&opener{repo: repo})

	err := l.Load(context.Background(), "wind", frame(1, 0))
	require.Error(t, err)
	assert.Equal(t, 1, repo.rollbacks)
}

func TestLoad_OpenErrorPropagates(t *testing.T) {
	t.Parallel()

	boom := errors.New("dial tcp: no route to host")
	l, _ := newLoader(&opener{err: boom})

	err := l.Load(context.Background(), "wind", frame(1, 0))
	assert.Equal(t, boom, errors.Cause(err))
}

func TestLoad_RejectsUnknownColumnsBeforeConnecting(t *testing.T) {
	t.Parallel()

	o := &opener{repo: newMemRepo()}
	l, _ := newLoader(o)

	err := l.Load(context.Background(), "wind", &storage.Frame{Columns: []string{"NotAColumn"}, Rows: [][]any{{"x"}}})
	require.Error(t, err)
	assert.Zero(t, o.opens)
}

// A full-width batch larger than one statement can carry must still load.
func TestLoad_FullLayoutLargeBatchIntoSQLite(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "warehouse.db")
	log := zap.NewNop().Sugar()
	opener := warehouse.NewOpener(nil, warehouse.Config{Kind: "sqlite", DSN: dbPath}, log)
	l := New(opener, "sandbox", 300, log)

	layout := powerunit.Table("sandbox", "wind")
	f := &storage.Frame{Columns: layout.ColumnNames()}
	for i := 0; i < 300; i++ {
		row := make([]any, len(layout.Columns))
		for j, c := range layout.Columns {
			if c.Type == storage.TypeFloat {
				row[j] = float64(i)
			} else {
				row[j] = "x"
			}
		}
		f.Rows = append(f.Rows, row)
	}

	require.NoError(t, l.Load(ctx, "wind", f))

	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	defer db.Close()
	var n int
	require.NoError(t, db.QueryRow(`SELECT count(*) FROM "sandbox.wind"`).Scan(&n))
	assert.Equal(t, 300, n)
}
