package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Config is the minimal configuration needed to open a warehouse repository.
//
// Edge cases:
//   - Kind must be non-empty and must match a registered backend kind.
//   - DSN is passed through to the backend factory; validation is backend-specific.
type Config struct {
	Kind string
	DSN  string
}

// ErrColumnMismatch is returned when a row does not line up with its column list.
var ErrColumnMismatch = errors.New("storage: row length does not match column count")

// Catalog answers structural questions about the warehouse. It is the
// metadata handle a loader consults before writing.
type Catalog interface {
	TableExists(ctx context.Context, schema, table string) (bool, error)
}

// Tx is one write transaction. A replace-load is DeleteAll followed by one
// or more InsertRows calls and a Commit; any failure is followed by Rollback.
type Tx interface {
	DeleteAll(ctx context.Context, spec TableSpec) (int64, error)
	InsertRows(ctx context.Context, spec TableSpec, columns []string, rows [][]any) (int64, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Repository is the backend-agnostic warehouse handle.
//
// Each backend implements the same semantics in its own dialect: schema
// qualified tables, create-if-missing DDL, and transactional replace loads.
type Repository interface {
	Catalog

	// CreateTable creates the table (and its schema when the backend has
	// schemas) if it does not exist yet. Existing tables are never altered.
	CreateTable(ctx context.Context, spec TableSpec) error

	// Begin opens a write transaction.
	Begin(ctx context.Context) (Tx, error)

	// Close releases backend resources. Call once.
	Close()
}

// Factory opens a Repository for one backend kind.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers a backend under a kind (e.g. "postgres", "sqlite").
//
// Call Register from an init() function in a backend package.
//
// Panics:
//   - If kind is empty.
//   - If f is nil.
//   - If kind is already registered.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}
	factories[kind] = f
}

// New constructs a Repository using the registered backend factory.
//
// Errors:
//   - Returns an error if cfg.Kind is empty or unsupported.
//   - Returns whatever error the registered factory returns.
func New(ctx context.Context, cfg Config) (Repository, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported storage.kind=%s (registered: %v)", cfg.Kind, Kinds())
	}
	return f(ctx, cfg)
}

// Kinds lists the registered backend kinds in sorted order.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// CheckRows verifies every row has exactly one value per column.
func CheckRows(columns []string, rows [][]any) error {
	if len(columns) == 0 {
		return fmt.Errorf("storage: no columns")
	}
	for i, r := range rows {
		if len(r) != len(columns) {
			return fmt.Errorf("row %d has %d values for %d columns: %w", i, len(r), len(columns), ErrColumnMismatch)
		}
	}
	return nil
}
