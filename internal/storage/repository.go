package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Config is the minimal configuration needed to open a repository.
//
// Edge cases:
//   - Kind must be non-empty and must match a registered backend kind.
//   - DSN is passed through to the backend factory; validation is backend-specific.
//   - BatchSize <= 0 means DefaultBatchSize.
type Config struct {
	Kind      string
	DSN       string
	BatchSize int
}

// DefaultBatchSize is the number of rows per INSERT statement when the
// caller does not choose one. Backends lower it further to stay under their
// bind-parameter limits.
const DefaultBatchSize = 500

// Repository is a backend-agnostic sink for whole tables.
//
// Each backend implements these semantics in its own idiomatic way; every
// method must leave the database unchanged when it returns an error.
type Repository interface {
	// Close releases any backend resources (connections, pools).
	//
	// Edge cases:
	//   - Callers should treat Close as "call once".
	Close()

	// ReplaceTable drops the table if it exists, recreates it from spec and
	// inserts rows, all in one transaction. Running it twice with the same
	// input leaves the same table behind.
	//
	// rows must be aligned with spec.Columns. Cells are string, int64,
	// float64, bool or nil; NaN floats are stored as NULL.
	ReplaceTable(ctx context.Context, spec TableSpec, rows [][]any) (int64, error)
}

type factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a backend under a kind (e.g. "postgres", "sqlite").
//
// When to use:
//   - Call Register from an init() function in a backend package.
//
// Panics:
//   - If kind is empty, f is nil, or kind is already registered.
func Register(kind string, f factory) {
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
// Concurrency:
//   - Safe for concurrent use with Register.
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
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	return f(ctx, cfg)
}

// Kinds returns the registered backend kinds, sorted.
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
