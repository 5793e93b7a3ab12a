package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/microsoft/go-mssqldb"

	"mastr/internal/storage"
)

// SQL Server rejects statements with more than 2100 parameters and
// VALUES lists longer than 1000 rows.
const (
	maxParams       = 2000
	maxRowsPerValue = 1000
)

func init() {
	storage.Register("mssql", New)
}

// dbConn is the subset of *sql.DB the repository uses; go-sqlmock's
// *sql.DB satisfies it in tests.
type dbConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
	Close() error
}

// Repo implements storage.Repository for Microsoft SQL Server.
type Repo struct {
	db dbConn
}

// New opens a "sqlserver" database/sql handle and validates connectivity.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	raw, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := raw.PingContext(ctx); err != nil {
		_ = raw.Close()
		return nil, err
	}
	return &Repo{db: raw}, nil
}

func (r *Repo) Close() {
	if r == nil || r.db == nil {
		return
	}
	_ = r.db.Close()
}

const tableExistsSQL = `SELECT COUNT(*) FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_SCHEMA = @p1 AND TABLE_NAME = @p2`

func (r *Repo) TableExists(ctx context.Context, schema, table string) (bool, error) {
	if schema == "" {
		schema = "dbo"
	}
	var n int
	if err := r.db.QueryRowContext(ctx, tableExistsSQL, schema, table).Scan(&n); err != nil {
		return false, fmt.Errorf("mssql: lookup %s.%s: %w", schema, table, err)
	}
	return n > 0, nil
}

func (r *Repo) CreateTable(ctx context.Context, spec storage.TableSpec) error {
	schemaSQL, tableSQL, err := buildCreateSQL(spec)
	if err != nil {
		return err
	}
	if schemaSQL != "" {
		if _, err := r.db.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create schema %s: %w", spec.Schema, err)
		}
	}
	if _, err := r.db.ExecContext(ctx, tableSQL); err != nil {
		return fmt.Errorf("create table %s: %w", spec.QualifiedName(), err)
	}
	return nil
}

func (r *Repo) Begin(ctx context.Context) (storage.Tx, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("mssql: begin: %w", err)
	}
	return &mssqlTx{tx: tx}, nil
}

type mssqlTx struct {
	tx *sql.Tx
}

func (t *mssqlTx) DeleteAll(ctx context.Context, spec storage.TableSpec) (int64, error) {
	res, err := t.tx.ExecContext(ctx, "DELETE FROM "+tableIdent(spec)+";")
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", spec.QualifiedName(), err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// InsertRows splits rows into statements that stay under SQL Server's
// parameter limit. A wide table therefore needs several statements per batch.
func (t *mssqlTx) InsertRows(ctx context.Context, spec storage.TableSpec, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if err := storage.CheckRows(columns, rows); err != nil {
		return 0, err
	}
	var total int64
	for _, chunk := range storage.Batches(rows, rowsPerStatement(len(columns))) {
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

func (t *mssqlTx) Commit(context.Context) error   { return t.tx.Commit() }
func (t *mssqlTx) Rollback(context.Context) error { return t.tx.Rollback() }

func rowsPerStatement(columns int) int {
	return storage.RowsPerStatement(columns, maxParams, maxRowsPerValue)
}

// buildCreateSQL returns idempotent schema and table DDL.
func buildCreateSQL(t storage.TableSpec) (schemaSQL, tableSQL string, err error) {
	if err := t.Validate(); err != nil {
		return "", "", err
	}
	if t.Schema != "" {
		// CREATE SCHEMA must be the only statement in its batch, hence EXEC.
		schemaSQL = fmt.Sprintf(
			"IF SCHEMA_ID(N'%s') IS NULL EXEC(N'CREATE SCHEMA %s');",
			escapeLiteral(t.Schema),
			escapeLiteral(mssqlIdent(t.Schema)),
		)
	}
	defs := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		defs = append(defs, mssqlIdent(c.Name)+" "+mssqlType(c)+" NULL")
	}
	return schemaSQL, wrapCreateIfMissing(t, strings.Join(defs, ", ")), nil
}

func wrapCreateIfMissing(t storage.TableSpec, innerDefs string) string {
	return fmt.Sprintf(
		"IF OBJECT_ID(N'%s', N'U') IS NULL BEGIN CREATE TABLE %s (%s); END;",
		escapeLiteral(tableIdent(t)),
		tableIdent(t),
		innerDefs,
	)
}

func mssqlType(c storage.ColumnSpec) string {
	if c.Type == storage.TypeFloat {
		return "FLOAT"
	}
	if c.Length > 0 && c.Length <= 4000 {
		return fmt.Sprintf("NVARCHAR(%d)", c.Length)
	}
	return "NVARCHAR(MAX)"
}

func buildInsertSQL(table string, columns []string, rows [][]any) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(table)
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(mssqlIdent(c))
	}
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	p := 1
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "@p%d", p)
			args = append(args, row[j])
			p++
		}
		b.WriteString(")")
	}
	b.WriteString(";")
	return b.String(), args
}

// mssqlIdent returns a bracket-quoted identifier.
func mssqlIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

func tableIdent(t storage.TableSpec) string {
	if t.Schema == "" {
		return mssqlIdent(t.Name)
	}
	return mssqlIdent(t.Schema) + "." + mssqlIdent(t.Name)
}

func escapeLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
