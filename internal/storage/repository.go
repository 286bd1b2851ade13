// Package storage is the database sink of cmd/datenorm. Backends register
// themselves by kind from their init functions; import
// datenorm/internal/storage/all to link every backend.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Config selects and connects a backend.
type Config struct {
	Kind string
	DSN  string
}

// Repository is the small surface the sink needs from a database.
type Repository interface {
	// Close releases connections. Call once.
	Close()

	// EnsureTable creates the table when missing. Existing tables are left
	// untouched.
	EnsureTable(ctx context.Context, t TableSpec) error

	// InsertRows inserts rows whose cells follow columns. With dedupe
	// columns the insert skips rows whose key already exists, in the table
	// or earlier in the same call, and the returned count excludes them.
	InsertRows(ctx context.Context, table string, columns []string, rows [][]any, dedupe []string) (int64, error)
}

// Factory opens a backend.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a backend available to New. It panics on an empty kind, a
// nil factory or a duplicate registration.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if kind == "" {
		panic("storage: Register with empty kind")
	}
	if f == nil {
		panic("storage: Register with nil factory")
	}
	if _, dup := factories[kind]; dup {
		panic(fmt.Sprintf("storage: kind %q registered twice", kind))
	}
	factories[kind] = f
}

// Kinds lists registered backends, sorted.
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

// New opens the backend named by cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing kind")
	}
	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()
	if f == nil {
		return nil, fmt.Errorf("storage: unsupported kind %q (registered: %v)", cfg.Kind, Kinds())
	}
	return f(ctx, cfg)
}
