// Package loader replace-loads one decoded source file into its category
// table.
package loader

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"mastr/internal/metrics"
	"mastr/internal/powerunit"
	"mastr/internal/storage"
	"mastr/internal/warehouse"
)

// DefaultBatchSize is the number of rows per INSERT statement.
const DefaultBatchSize = 100

// SessionOpener opens a warehouse session; *warehouse.Opener satisfies it.
type SessionOpener interface {
	Open(ctx context.Context) (*warehouse.Session, error)
}

// Loader writes frames into category tables of one warehouse schema.
type Loader struct {
	sessions  SessionOpener
	schema    string
	batchSize int
	log       *zap.SugaredLogger
}

// New returns a Loader; an empty schema means sandbox and batchSize <= 0
// means DefaultBatchSize.
func New(sessions SessionOpener, schema string, batchSize int, log *zap.SugaredLogger) *Loader {
	if schema == "" {
		schema = powerunit.DefaultSchema
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Loader{sessions: sessions, schema: schema, batchSize: batchSize, log: log}
}

// Load makes the table exist, then replaces its contents with frame in a
// single transaction. A failed load leaves the previous contents intact.
func (l *Loader) Load(ctx context.Context, table string, frame *storage.Frame) (err error) {
	start := time.Now()
	defer func() { metrics.RecordStep("load", start, err) }()

	if err := powerunit.Validate(frame.Columns); err != nil {
		return errors.Wrapf(err, "load %s", table)
	}
	if err := storage.CheckRows(frame.Columns, frame.Rows); err != nil {
		return errors.Wrapf(err, "load %s", table)
	}

	sess, err := l.sessions.Open(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()
	l.log.Info("connection established")

	spec := powerunit.Table(l.schema, table)
	l.log.Infof("table name: %s", spec.QualifiedName())

	if err := l.ensureTable(ctx, sess, spec); err != nil {
		return err
	}

	n, err := l.replace(ctx, sess.Conn, spec, frame)
	if err != nil {
		return err
	}
	metrics.RecordRows(table, n)
	l.log.Infow("inserted", "table", spec.QualifiedName(), "rows", n)
	return nil
}

func (l *Loader) ensureTable(ctx context.Context, sess *warehouse.Session, spec storage.TableSpec) error {
	exists, err := sess.Catalog.TableExists(ctx, spec.Schema, spec.Name)
	if err != nil {
		return errors.Wrapf(err, "check %s", spec.QualifiedName())
	}
	if exists {
		l.log.Info("table already exists")
		return nil
	}
	l.log.Info("trying to create table")
	if err := sess.Conn.CreateTable(ctx, spec); err != nil {
		return errors.Wrapf(err, "create %s", spec.QualifiedName())
	}
	l.log.Info("created table")
	return nil
}

func (l *Loader) replace(ctx context.Context, repo storage.Repository, spec storage.TableSpec, frame *storage.Frame) (int64, error) {
	tx, err := repo.Begin(ctx)
	if err != nil {
		return 0, errors.Wrapf(err, "replace %s", spec.QualifiedName())
	}

	n, err := l.write(ctx, tx, spec, frame)
	if err == nil {
		err = tx.Commit(ctx)
	}
	if err != nil {
		l.log.Errorw("insert incomplete", "table", spec.QualifiedName(), "error", err)
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			l.log.Warnw("rollback failed", "table", spec.QualifiedName(), "error", rbErr)
		}
		return 0, errors.Wrapf(err, "replace %s", spec.QualifiedName())
	}
	return n, nil
}

func (l *Loader) write(ctx context.Context, tx storage.Tx, spec storage.TableSpec, frame *storage.Frame) (int64, error) {
	deleted, err := tx.DeleteAll(ctx, spec)
	if err != nil {
		return 0, err
	}
	l.log.Debugw("cleared table", "table", spec.QualifiedName(), "rows", deleted)

	var total int64
	for _, batch := range storage.Batches(frame.Rows, l.batchSize) {
		n, err := tx.InsertRows(ctx, spec, frame.Columns, batch)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}
