// Package journal is the public entry point for opening a healthlog
// journal. It selects the storage backend once, from the Config, and keeps
// the backend implementations internal.
package journal

import (
	"fmt"
	"log/slog"

	"github.com/mesh-intelligence/healthlog/internal/fixture"
	"github.com/mesh-intelligence/healthlog/internal/metrics"
	"github.com/mesh-intelligence/healthlog/internal/sqlite"
	"github.com/mesh-intelligence/healthlog/pkg/types"
)

type options struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures the journal built by New.
type Option func(*options)

// WithLogger sets the logger handed to the backend.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics sets the collectors handed to the backend.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// New returns a detached journal for the named backend.
//
// Example:
//
//	j, err := journal.New(types.BackendSQLite)
//	if err != nil { ... }
//	err = j.Attach(types.Config{Backend: types.BackendSQLite, DataDir: dir})
//	defer j.Detach()
func New(backend string, opts ...Option) (types.Journal, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	switch backend {
	case types.BackendSQLite:
		return sqlite.NewBackend(sqlite.WithLogger(o.logger), sqlite.WithMetrics(o.metrics)), nil
	case types.BackendFixture:
		return fixture.NewBackend(fixture.WithLogger(o.logger), fixture.WithMetrics(o.metrics)), nil
	case "":
		return nil, types.ErrBackendEmpty
	default:
		return nil, fmt.Errorf("%w: %q", types.ErrBackendUnknown, backend)
	}
}

// Open builds the journal named by cfg.Backend and attaches it.
func Open(cfg types.Config, opts ...Option) (types.Journal, error) {
	j, err := New(cfg.Backend, opts...)
	if err != nil {
		return nil, err
	}
	if err := j.Attach(cfg); err != nil {
		return nil, err
	}
	return j, nil
}
