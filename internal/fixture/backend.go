// Package fixture implements the healthlog Journal in memory. It satisfies
// the same contract as the SQLite backend and is used for demos and for
// tests that do not need a database file.
package fixture

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/healthlog/internal/metrics"
	"github.com/mesh-intelligence/healthlog/internal/seed"
	"github.com/mesh-intelligence/healthlog/pkg/types"
)

var _ types.Journal = (*Backend)(nil)

type entry struct {
	id        string
	timestamp time.Time
	typeID    string
	comment   string
	createdAt time.Time
	items     []entryItem
}

type entryItem struct {
	itemID         string
	sourceBundleID string
	values         []types.QuantifierValueInput
}

// Backend holds every table as a map guarded by one lock. Reads take the
// read lock, writes the write lock, so each write is atomic.
type Backend struct {
	mu       sync.RWMutex
	attached bool

	types       map[string]*types.Type
	categories  map[string]*types.Category
	items       map[string]*types.Item
	quantifiers map[string]*types.ItemQuantifier
	bundles     map[string]*types.Bundle
	members     map[string][]types.BundleMember
	entries     map[string]*entry

	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option configures a Backend.
type Option func(*Backend)

// WithLogger sets the logger used for lifecycle messages.
func WithLogger(l *slog.Logger) Option {
	return func(b *Backend) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithMetrics sets the collectors that observe write operations.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Backend) { b.metrics = m }
}

// NewBackend returns a detached fixture backend.
func NewBackend(opts ...Option) *Backend {
	b := &Backend{logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Attach resets the store to the seeded taxonomy. DataDir is ignored.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}

	b.types = map[string]*types.Type{}
	b.categories = map[string]*types.Category{}
	b.items = map[string]*types.Item{}
	b.quantifiers = map[string]*types.ItemQuantifier{}
	b.bundles = map[string]*types.Bundle{}
	b.members = map[string][]types.BundleMember{}
	b.entries = map[string]*entry{}
	b.seedDefaults()

	b.attached = true
	b.logger.Debug("journal attached", "backend", types.BackendFixture)
	return nil
}

// Detach drops all data. Idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}
	b.attached = false
	b.types, b.categories, b.items, b.quantifiers = nil, nil, nil, nil
	b.bundles, b.members, b.entries = nil, nil, nil
	b.logger.Debug("journal detached")
	return nil
}

func (b *Backend) seedDefaults() {
	for order, st := range seed.Types {
		b.types[st.ID] = &types.Type{ID: st.ID, Name: st.Name, DisplayOrder: order, Color: st.Color}
		for _, sc := range st.Categories {
			b.categories[sc.ID] = &types.Category{ID: sc.ID, TypeID: st.ID, Name: sc.Name}
		}
	}
	b.items[seed.WelcomeItemID] = &types.Item{
		ID: seed.WelcomeItemID, CategoryID: seed.WelcomeCategoryID, Name: seed.WelcomeItemName,
	}
	now := b.stamp()
	b.entries[seed.WelcomeEntryID] = &entry{
		id:        seed.WelcomeEntryID,
		timestamp: now,
		typeID:    seed.TypeCondition,
		comment:   seed.WelcomeComment,
		createdAt: now,
		items:     []entryItem{{itemID: seed.WelcomeItemID}},
	}
}

// stamp returns the current time at stored precision.
func (b *Backend) stamp() time.Time {
	return b.now().UTC().Truncate(time.Millisecond)
}

func (b *Backend) read() (func(), error) {
	b.mu.RLock()
	if !b.attached {
		b.mu.RUnlock()
		return nil, types.ErrJournalDetached
	}
	return b.mu.RUnlock, nil
}

func (b *Backend) write() (func(), error) {
	b.mu.Lock()
	if !b.attached {
		b.mu.Unlock()
		return nil, types.ErrJournalDetached
	}
	return b.mu.Unlock, nil
}

func newID() string {
	return uuid.NewString()
}

// sameName compares names the way the SQLite backend's NOCASE columns do.
func sameName(a, b string) bool {
	return strings.EqualFold(a, b)
}

// lessName orders names case-insensitively.
func lessName(a, b string) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	if la != lb {
		return la < lb
	}
	return a < b
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
