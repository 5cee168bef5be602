package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/healthlog/internal/metrics"
	"github.com/mesh-intelligence/healthlog/pkg/types"
)

// DatabaseFile is the name of the database inside Config.DataDir.
const DatabaseFile = "healthlog.db"

// connPragmas are applied by the driver to every connection it opens.
const connPragmas = "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

var _ types.Journal = (*Backend)(nil)

// Backend implements types.Journal on SQLite. It owns one *sql.DB limited to
// a single connection: the journal is a single-writer, single-device store.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	db       *sql.DB

	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Backend.
type Option func(*Backend)

// WithLogger sets the logger used for lifecycle and seed messages.
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

// NewBackend creates a new SQLite backend instance.
// The backend is not attached; call Attach with a Config to initialize.
func NewBackend(opts ...Option) *Backend {
	b := &Backend{logger: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Attach opens (creating if needed) the database in config.DataDir, applies
// the schema and migrations, and seeds the default taxonomy on first run.
// Returns ErrAlreadyAttached if already attached.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}

	dataDir := config.DataDir
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, DatabaseFile)
	db, err := sql.Open("sqlite", dbPath+connPragmas)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("connecting to database: %w", err)
	}
	if err := applySchema(ctx, db); err != nil {
		db.Close()
		return fmt.Errorf("applying schema: %w", err)
	}
	seeded, err := seedDefaults(ctx, db)
	if err != nil {
		db.Close()
		return fmt.Errorf("seeding defaults: %w", err)
	}
	if seeded {
		b.logger.Info("seeded default taxonomy", "path", dbPath)
	}

	b.db = db
	b.config = config
	b.attached = true
	b.logger.Debug("journal attached", "backend", types.BackendSQLite, "path", dbPath)
	return nil
}

// Detach closes the database. After Detach, all operations return
// ErrJournalDetached. Detach is idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}
	if b.db != nil {
		if err := b.db.Close(); err != nil {
			return err
		}
		b.db = nil
	}
	b.attached = false
	b.logger.Debug("journal detached")
	return nil
}

// acquire takes the read lock and checks that the backend is attached.
// On success the caller must call the returned release function.
func (b *Backend) acquire() (release func(), err error) {
	b.mu.RLock()
	if !b.attached {
		b.mu.RUnlock()
		return nil, types.ErrJournalDetached
	}
	return b.mu.RUnlock, nil
}

// newID generates a UUID v4 string for entity IDs.
func newID() string {
	return uuid.NewString()
}

// nullString maps "" to SQL NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// nullFloat maps nil to SQL NULL.
func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

// floatPtr maps SQL NULL to nil.
func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}
