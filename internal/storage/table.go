// TableSpec lives here so the table layout and every backend package can
// import it without circular deps.
package storage

import (
	"fmt"
	"strings"
)

// ColumnType is the logical type of a column. Backends map it to their own
// dialect (double precision / REAL / FLOAT, varchar(n) / TEXT / NVARCHAR(n)).
type ColumnType string

const (
	TypeFloat  ColumnType = "float"
	TypeString ColumnType = "string"
)

type ColumnSpec struct {
	Name string     `json:"name"`
	Type ColumnType `json:"type"`
	// Length is the maximum character length for TypeString; 0 means unbounded.
	Length int `json:"length,omitempty"`
}

// TableSpec describes a destination table. All columns are nullable.
type TableSpec struct {
	Schema  string       `json:"schema,omitempty"`
	Name    string       `json:"name"`
	Columns []ColumnSpec `json:"columns"`
}

// QualifiedName returns "schema.name", or just the name when no schema is set.
func (t TableSpec) QualifiedName() string {
	if t.Schema == "" {
		return t.Name
	}
	return t.Schema + "." + t.Name
}

// ColumnNames returns the column names in declaration order.
func (t TableSpec) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// Column looks up a column by exact name.
func (t TableSpec) Column(name string) (ColumnSpec, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnSpec{}, false
}

// Validate checks the spec is usable for DDL generation.
func (t TableSpec) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("table name is empty")
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("table %s has no columns", t.QualifiedName())
	}
	seen := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("table %s: column name is empty", t.QualifiedName())
		}
		if seen[c.Name] {
			return fmt.Errorf("table %s: duplicate column %q", t.QualifiedName(), c.Name)
		}
		seen[c.Name] = true
		switch c.Type {
		case TypeFloat, TypeString:
		default:
			return fmt.Errorf("table %s: column %q has unsupported type %q", t.QualifiedName(), c.Name, c.Type)
		}
	}
	return nil
}

// Frame is a decoded source file: a header plus rows aligned with it.
type Frame struct {
	Columns []string
	Rows    [][]any
}

// Batches splits rows into consecutive slices of at most size rows.
// A non-positive size yields a single batch.
func Batches(rows [][]any, size int) [][][]any {
	if len(rows) == 0 {
		return nil
	}
	if size <= 0 || size >= len(rows) {
		return [][][]any{rows}
	}
	out := make([][][]any, 0, (len(rows)+size-1)/size)
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		out = append(out, rows[start:end])
	}
	return out
}

// RowsPerStatement is how many rows of the given width fit in one
// multi-row INSERT without exceeding maxParams bind parameters. maxRows
// caps the result when positive. It is always at least 1.
func RowsPerStatement(columns, maxParams, maxRows int) int {
	if columns <= 0 {
		return 1
	}
	n := maxParams / columns
	if maxRows > 0 && n > maxRows {
		n = maxRows
	}
	if n < 1 {
		n = 1
	}
	return n
}
