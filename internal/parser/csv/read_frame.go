package csv

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"mastr/internal/storage"
)

// Options controls how a registry export is decoded.
type Options struct {
	// Comma is the field delimiter; registry exports use ';'.
	Comma rune
	// Encoding is "utf-8" (default, BOM tolerated, UTF-16 with BOM detected)
	// or "windows-1252".
	Encoding   string
	TrimSpace  bool
	LazyQuotes bool
	// HeaderMap renames source headers before they are matched.
	HeaderMap map[string]string
	// FloatColumns are decoded to float64; all other columns stay strings.
	FloatColumns map[string]bool
}

// DefaultOptions matches the registry CSV exports.
func DefaultOptions(floatColumns map[string]bool) Options {
	return Options{Comma: ';', Encoding: "utf-8", TrimSpace: true, FloatColumns: floatColumns}
}

// ParseError points at the line and column that could not be decoded.
type ParseError struct {
	Line   int
	Column string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("line %d column %q: %v", e.Line, e.Column, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ReadFile opens path on fs and decodes it with Read.
func ReadFile(ctx context.Context, fs afero.Fs, path string, opt Options) (*storage.Frame, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(ctx, f, opt)
}

// Read decodes a header line plus records into a Frame.
//
// Empty cells become nil. Float columns are parsed with strconv.ParseFloat;
// NaN is treated as missing. Columns whose header is empty (an exported
// index) are dropped. A malformed record fails the whole read.
func Read(ctx context.Context, src io.Reader, opt Options) (*storage.Frame, error) {
	dec, err := decoder(src, opt.Encoding)
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(dec)
	cr.Comma = opt.Comma
	if cr.Comma == 0 {
		cr.Comma = ';'
	}
	cr.LazyQuotes = opt.LazyQuotes
	cr.FieldsPerRecord = -1

	line := 1
	hdr, err := cr.Read()
	if err == io.EOF {
		return nil, &ParseError{Line: line, Err: fmt.Errorf("empty file")}
	}
	if err != nil {
		return nil, &ParseError{Line: line, Err: fmt.Errorf("read header: %w", err)}
	}

	// srcIx[i] is the record index feeding output column i.
	var (
		columns []string
		srcIx   []int
		isFloat []bool
	)
	for i, h := range hdr {
		if i == 0 {
			h = strings.TrimPrefix(h, "\uFEFF")
		}
		h = strings.TrimSpace(h)
		if mapped, ok := opt.HeaderMap[h]; ok {
			h = mapped
		}
		if h == "" {
			continue
		}
		columns = append(columns, h)
		srcIx = append(srcIx, i)
		isFloat = append(isFloat, opt.FloatColumns[h])
	}

	frame := &storage.Frame{Columns: columns}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rec, err := cr.Read()
		if err == io.EOF {
			return frame, nil
		}
		line++
		if err != nil {
			return nil, &ParseError{Line: line, Err: err}
		}

		row := make([]any, len(columns))
		for t := range columns {
			si := srcIx[t]
			if si >= len(rec) {
				continue
			}
			v := rec[si]
			if opt.TrimSpace {
				v = strings.TrimSpace(v)
			}
			if v == "" {
				continue
			}
			if !isFloat[t] {
				row[t] = v
				continue
			}
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, &ParseError{Line: line, Column: columns[t], Err: err}
			}
			if !math.IsNaN(f) {
				row[t] = f
			}
		}
		frame.Rows = append(frame.Rows, row)
	}
}

func decoder(src io.Reader, encoding string) (io.Reader, error) {
	switch strings.ToLower(encoding) {
	case "", "utf-8", "utf8":
		return transform.NewReader(src, unicode.BOMOverride(unicode.UTF8.NewDecoder())), nil
	case "windows-1252", "cp1252":
		return transform.NewReader(src, charmap.Windows1252.NewDecoder()), nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", encoding)
	}
}
