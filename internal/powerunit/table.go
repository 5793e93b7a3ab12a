// Package powerunit holds the fixed warehouse layout of flattened
// registry power-unit records.
package powerunit

import (
	"fmt"
	"strings"

	"mastr/internal/storage"
)

// DefaultSchema is the warehouse schema every category table lives in.
const DefaultSchema = "sandbox"

// FloatOverrides are identifier columns that are always read as floats,
// whatever the CSV text looks like.
var FloatOverrides = []string{"w-id", "pu-id", "lid"}

// Table binds the layout to schema.name. The layout does not depend on the
// category; only the name differs.
func Table(schema, name string) storage.TableSpec {
	cols := make([]storage.ColumnSpec, len(Columns))
	copy(cols, Columns)
	return storage.TableSpec{Schema: schema, Name: name, Columns: cols}
}

// FloatColumns returns the set of columns that must be coerced to float:
// the float-typed layout columns plus FloatOverrides.
func FloatColumns() map[string]bool {
	out := make(map[string]bool, len(Columns))
	for _, c := range Columns {
		if c.Type == storage.TypeFloat {
			out[c.Name] = true
		}
	}
	for _, n := range FloatOverrides {
		out[n] = true
	}
	return out
}

// MissingColumnsError lists source columns the layout does not know.
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("columns not in power-unit layout: %s", strings.Join(e.Columns, ", "))
}

// Validate checks that every source column is part of the layout. Source
// files may carry fewer columns than the table; absent ones stay NULL.
func Validate(columns []string) error {
	known := make(map[string]bool, len(Columns))
	for _, c := range Columns {
		known[c.Name] = true
	}
	var missing []string
	seen := map[string]bool{}
	for _, c := range columns {
		if seen[c] {
			return fmt.Errorf("duplicate source column %q", c)
		}
		seen[c] = true
		if !known[c] {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return &MissingColumnsError{Columns: missing}
	}
	return nil
}
