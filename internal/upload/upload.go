// Package upload walks the category source files and loads each one.
package upload

import (
	"context"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"mastr/internal/metrics"
	csvparser "mastr/internal/parser/csv"
	"mastr/internal/powerunit"
	"mastr/internal/storage"
)

// Source pairs a CSV file with the table it is loaded into.
type Source struct {
	Path     string
	Category string
}

// Categories is the fixed processing order.
var Categories = []string{"hydro", "wind", "biomass"}

// DefaultSources returns <dir>/<category>.csv for every category, in order.
func DefaultSources(dir string) []Source {
	out := make([]Source, len(Categories))
	for i, c := range Categories {
		out[i] = Source{Path: filepath.Join(dir, c+".csv"), Category: c}
	}
	return out
}

// TableLoader is the loader contract; *loader.Loader satisfies it.
type TableLoader interface {
	Load(ctx context.Context, table string, frame *storage.Frame) error
}

// Uploader loads a fixed list of source files, one table each.
type Uploader struct {
	fs      afero.Fs
	sources []Source
	loader  TableLoader
	opts    csvparser.Options
	log     *zap.SugaredLogger
}

// New returns an Uploader reading sources from fs with opts.
func New(fs afero.Fs, sources []Source, loader TableLoader, opts csvparser.Options, log *zap.SugaredLogger) *Uploader {
	return &Uploader{fs: fs, sources: sources, loader: loader, opts: opts, log: log}
}

// Run loads every existing source in order. Missing files are skipped;
// the first read or load error aborts the run.
func (u *Uploader) Run(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { metrics.RecordStep("upload", start, err) }()

	log := u.log.With("run_id", uuid.NewString())
	var loaded int
	for _, src := range u.sources {
		if err := ctx.Err(); err != nil {
			return err
		}

		ok, err := afero.Exists(u.fs, src.Path)
		if err != nil {
			return errors.Wrapf(err, "stat %s", src.Path)
		}
		if !ok {
			log.Infow("file not found", "path", src.Path, "category", src.Category)
			continue
		}

		frame, err := csvparser.ReadFile(ctx, u.fs, src.Path, u.opts)
		if err != nil {
			return errors.Wrapf(err, "read %s", src.Path)
		}
		log.Infow("read source", "path", src.Path, "rows", len(frame.Rows), "columns", len(frame.Columns))

		if err := u.loader.Load(ctx, src.Category, frame); err != nil {
			return err
		}
		loaded++
	}
	log.Infow("upload finished", "loaded", loaded, "elapsed", time.Since(start).Truncate(time.Millisecond))
	return nil
}

// ReadOptions are the CSV options for registry exports: ';' delimited,
// with the float layout columns and identifier overrides as floats.
func ReadOptions(encoding string) csvparser.Options {
	opt := csvparser.DefaultOptions(powerunit.FloatColumns())
	if encoding != "" {
		opt.Encoding = encoding
	}
	return opt
}
