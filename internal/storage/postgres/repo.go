package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"mastr/internal/storage"
)

// maxParams is the PostgreSQL wire protocol's bind parameter limit.
const maxParams = 65535

func init() {
	storage.Register("postgres", New)
}

// connection is the subset of *pgxpool.Pool the repository uses, so that
// pgxmock.PgxPoolIface can stand in for it in tests.
type connection interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// Repo implements storage.Repository for PostgreSQL.
type Repo struct {
	conn connection
}

// New opens a pgx pool for cfg.DSN and verifies connectivity.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Repo{conn: pool}, nil
}

func newWithConn(conn connection) *Repo { return &Repo{conn: conn} }

// Close closes the connection pool.
func (r *Repo) Close() { r.conn.Close() }

const tableExistsSQL = `SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = $1 AND table_name = $2)`

const schemaExistsSQL = `SELECT EXISTS (SELECT 1 FROM pg_namespace WHERE nspname = $1)`

// TableExists reports whether schema.table is visible in information_schema.
// An empty schema means "public".
func (r *Repo) TableExists(ctx context.Context, schema, table string) (bool, error) {
	if schema == "" {
		schema = "public"
	}
	var ok bool
	if err := r.conn.QueryRow(ctx, tableExistsSQL, schema, table).Scan(&ok); err != nil {
		return false, fmt.Errorf("postgres: lookup %s.%s: %w", schema, table, err)
	}
	return ok, nil
}

// CreateTable creates the schema when it is missing, then the table.
//
// The schema is looked up first because shared warehouses usually grant
// CREATE on an existing schema but not CREATE SCHEMA on the database.
func (r *Repo) CreateTable(ctx context.Context, spec storage.TableSpec) error {
	schemaSQL, tableSQL, err := buildCreateSQL(spec)
	if err != nil {
		return err
	}
	if schemaSQL != "" {
		var exists bool
		if err := r.conn.QueryRow(ctx, schemaExistsSQL, spec.Schema).Scan(&exists); err != nil {
			return fmt.Errorf("postgres: lookup schema %s: %w", spec.Schema, err)
		}
		if !exists {
			if _, err := r.conn.Exec(ctx, schemaSQL); err != nil {
				return fmt.Errorf("create schema %s: %w", spec.Schema, err)
			}
		}
	}
	if _, err := r.conn.Exec(ctx, tableSQL); err != nil {
		return fmt.Errorf("create table %s: %w", spec.QualifiedName(), err)
	}
	return nil
}

// Begin opens a transaction for a replace-load.
func (r *Repo) Begin(ctx context.Context) (storage.Tx, error) {
	tx, err := r.conn.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres: begin: %w", err)
	}
	return &pgTx{tx: tx}, nil
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) DeleteAll(ctx context.Context, spec storage.TableSpec) (int64, error) {
	cmd, err := t.tx.Exec(ctx, "DELETE FROM "+tableIdent(spec))
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", spec.QualifiedName(), err)
	}
	return cmd.RowsAffected(), nil
}

// InsertRows writes rows with as few statements as the parameter limit allows.
func (t *pgTx) InsertRows(ctx context.Context, spec storage.TableSpec, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if err := storage.CheckRows(columns, rows); err != nil {
		return 0, err
	}
	var total int64
	for _, chunk := range storage.Batches(rows, storage.RowsPerStatement(len(columns), maxParams, 0)) {
		sql, args := buildInsertSQL(tableIdent(spec), columns, chunk)
		cmd, err := t.tx.Exec(ctx, sql, args...)
		if err != nil {
			return total, fmt.Errorf("insert into %s: %w", spec.QualifiedName(), err)
		}
		total += cmd.RowsAffected()
	}
	return total, nil
}

func (t *pgTx) Commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t *pgTx) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }

// buildCreateSQL returns the schema DDL (empty for unqualified tables) and
// the table DDL. It is pure so the generated SQL can be tested without a
// database.
func buildCreateSQL(t storage.TableSpec) (schemaSQL, tableSQL string, err error) {
	if err := t.Validate(); err != nil {
		return "", "", err
	}
	if t.Schema != "" {
		schemaSQL = fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s;`, pgIdent(t.Schema))
	}

	defs := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		defs = append(defs, pgIdent(c.Name)+" "+pgType(c))
	}
	tableSQL = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (%s);`, tableIdent(t), strings.Join(defs, ", "))
	return schemaSQL, tableSQL, nil
}

func pgType(c storage.ColumnSpec) string {
	switch c.Type {
	case storage.TypeFloat:
		return "double precision"
	default:
		if c.Length > 0 {
			return fmt.Sprintf("varchar(%d)", c.Length)
		}
		return "text"
	}
}

// buildInsertSQL constructs a single multi-row INSERT and its args.
//
// Constraints:
//   - rows must have the same length as columns for every row.
//   - columns must be non-empty.
func buildInsertSQL(table string, columns []string, rows [][]any) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(table)
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(pgIdent(c))
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
			fmt.Fprintf(&b, "$%d", p)
			args = append(args, row[j])
			p++
		}
		b.WriteString(")")
	}
	return b.String(), args
}

// pgIdent quotes an identifier. Registry column names contain dashes
// ("w-id") and mixed case, so every identifier is quoted.
func pgIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func tableIdent(t storage.TableSpec) string {
	if t.Schema == "" {
		return pgIdent(t.Name)
	}
	return pgIdent(t.Schema) + "." + pgIdent(t.Name)
}
