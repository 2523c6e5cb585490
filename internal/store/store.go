// Package store persists pipeline run artifacts (ingestion report plus
// plan, both as JSON) to a relational backend.
//
// Backends register themselves under a kind string from an init
// function in their own package; callers blank-import the backends they
// want and open a repository by kind. This mirrors database/sql driver
// registration and keeps the batch runner free of backend imports.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Config selects and configures a backend.
type Config struct {
	// Kind is a registered backend kind: "sqlite", "postgres", "mssql".
	Kind string
	// DSN is passed through to the backend; validation is backend-specific.
	DSN string
}

// RunRecord is one persisted pipeline run.
type RunRecord struct {
	Path       string
	Capability string
	Success    bool
	Report     []byte // report JSON
	Plan       []byte // plan JSON
	CreatedAt  time.Time
}

// Repository stores run records.
type Repository interface {
	// Init creates the backing table when it does not exist. Idempotent.
	Init(ctx context.Context) error

	// SaveRun appends one run record.
	SaveRun(ctx context.Context, rec RunRecord) error

	// Close releases backend resources. Call once at shutdown.
	Close()
}

type factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a backend under a kind. Call from an init function
// in a backend package. Registering the same kind twice panics, to fail
// fast on ambiguous backend selection.
func Register(kind string, f factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("store: Register called with empty kind")
	}
	if f == nil {
		panic("store: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("store: factory already registered for kind=%q", kind))
	}
	factories[kind] = f
}

// Open constructs a Repository using the registered backend factory.
func Open(ctx context.Context, cfg Config) (Repository, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("store: missing Kind")
	}

	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("store: unsupported kind %q", cfg.Kind)
	}
	return f(ctx, cfg)
}
