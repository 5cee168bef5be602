package backup

import (
	"errors"
	"log/slog"
	"time"

	"github.com/mesh-intelligence/healthlog/internal/metrics"
	"github.com/mesh-intelligence/healthlog/pkg/types"
)

// Repository is the journal surface the engine reads and writes.
type Repository interface {
	types.CatalogRepository
	types.LogRepository
}

// Engine exports and imports snapshots of one journal.
type Engine struct {
	repo    Repository
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	// detailLimit bounds concurrent item detail reads during export.
	detailLimit int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. A nil logger leaves slog.Default in place.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics records import outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithClock sets the time source for exportedAtUtc.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine returns an engine over repo.
func NewEngine(repo Repository, opts ...Option) (*Engine, error) {
	if repo == nil {
		return nil, errors.New("backup: repository is required")
	}
	e := &Engine{
		repo:        repo,
		logger:      slog.Default(),
		now:         time.Now,
		detailLimit: 8,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}
