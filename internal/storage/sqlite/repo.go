package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"mastr/internal/storage"
)

// Repo implements storage.Repository for SQLite.
//
// SQLite has no schemas. A schema-qualified table "sandbox.wind" is stored
// as a single table whose name contains the dot, so qualified names stay
// distinct without ATTACH DATABASE.
type Repo struct {
	db *sql.DB
}

// maxParams is SQLITE_MAX_VARIABLE_NUMBER in the bundled SQLite build.
const maxParams = 32766

func init() {
	storage.Register("sqlite", New)
}

func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	// One writer; also keeps ":memory:" databases on a single connection.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repo{db: db}, nil
}

func (r *Repo) Close() { _ = r.db.Close() }

// DB exposes the underlying handle for read-side tooling and tests.
func (r *Repo) DB() *sql.DB { return r.db }

func (r *Repo) TableExists(ctx context.Context, schema, table string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?`,
		tableName(schema, table),
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("sqlite: lookup %s: %w", tableName(schema, table), err)
	}
	return n > 0, nil
}

func (r *Repo) CreateTable(ctx context.Context, spec storage.TableSpec) error {
	ddl, err := buildCreateSQL(spec)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create table %s: %w", spec.QualifiedName(), err)
	}
	return nil
}

func (r *Repo) Begin(ctx context.Context) (storage.Tx, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: begin: %w", err)
	}
	return &sqliteTx{tx: tx}, nil
}

type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) DeleteAll(ctx context.Context, spec storage.TableSpec) (int64, error) {
	res, err := t.tx.ExecContext(ctx, "DELETE FROM "+tableIdent(spec))
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", spec.QualifiedName(), err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (t *sqliteTx) InsertRows(ctx context.Context, spec storage.TableSpec, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if err := storage.CheckRows(columns, rows); err != nil {
		return 0, err
	}
	var total int64
	for _, chunk := range storage.Batches(rows, storage.RowsPerStatement(len(columns), maxParams, 0)) {
		q, args := buildInsertSQL(tableIdent(spec), columns, chunk)
		res, err := t.tx.ExecContext(ctx, q, args...)
		if err != nil {
			return total, fmt.Errorf("insert into %s: %w", spec.QualifiedName(), err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

func (t *sqliteTx) Commit(context.Context) error   { return t.tx.Commit() }
func (t *sqliteTx) Rollback(context.Context) error { return t.tx.Rollback() }

func sqlIdent(id string) string {
	// SQLite supports "quoted identifiers"
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

func tableName(schema, table string) string {
	if schema == "" {
		return table
	}
	return schema + "." + table
}

func tableIdent(t storage.TableSpec) string {
	return sqlIdent(tableName(t.Schema, t.Name))
}

// buildCreateSQL maps float columns to REAL and string columns to TEXT;
// SQLite does not enforce varchar lengths.
func buildCreateSQL(t storage.TableSpec) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}
	defs := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		typ := "TEXT"
		if c.Type == storage.TypeFloat {
			typ = "REAL"
		}
		defs = append(defs, sqlIdent(c.Name)+" "+typ)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s);", tableIdent(t), strings.Join(defs, ", ")), nil
}

func buildInsertSQL(table string, columns []string, rows [][]any) (string, []any) {
	cols := make([]string, len(columns))
	for i, c := range columns {
		cols[i] = sqlIdent(c)
	}
	tuple := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ") + ")"

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(table)
	b.WriteString(" (")
	b.WriteString(strings.Join(cols, ", "))
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(tuple)
		args = append(args, row...)
	}
	return b.String(), args
}
