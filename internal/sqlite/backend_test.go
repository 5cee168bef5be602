package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/healthlog/internal/metrics"
	"github.com/mesh-intelligence/healthlog/internal/seed"
	"github.com/mesh-intelligence/healthlog/pkg/types"
)

// newTestBackend attaches a backend to a fresh data directory and detaches it
// when the test ends.
func newTestBackend(t *testing.T, opts ...Option) (*Backend, string) {
	t.Helper()
	dir := t.TempDir()
	b := NewBackend(opts...)
	require.NoError(t, b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: dir}))
	t.Cleanup(func() { _ = b.Detach() })
	return b, dir
}

// countRows returns the number of rows in table matching where.
func countRows(t *testing.T, b *Backend, table, where string, args ...any) int {
	t.Helper()
	query := "SELECT COUNT(*) FROM " + table
	if where != "" {
		query += " WHERE " + where
	}
	var n int
	require.NoError(t, b.db.QueryRow(query, args...).Scan(&n))
	return n
}

func TestBackend_Attach(t *testing.T) {
	b, dir := newTestBackend(t)

	_, err := os.Stat(filepath.Join(dir, DatabaseFile))
	require.NoError(t, err, "database file should exist")

	err = b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: dir})
	assert.ErrorIs(t, err, types.ErrAlreadyAttached)
}

func TestBackend_AttachInvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  types.Config
		wantErr error
	}{
		{"empty backend", types.Config{DataDir: t.TempDir()}, types.ErrBackendEmpty},
		{"unknown backend", types.Config{Backend: "postgres", DataDir: t.TempDir()}, types.ErrBackendUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewBackend().Attach(tt.config)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestBackend_Detach(t *testing.T) {
	b, _ := newTestBackend(t)
	ctx := context.Background()

	require.NoError(t, b.Detach())
	require.NoError(t, b.Detach(), "detach should be idempotent")

	_, err := b.ListTypes(ctx)
	assert.ErrorIs(t, err, types.ErrJournalDetached)
	_, err = b.CreateLogEntry(ctx, types.LogEntryInput{})
	assert.ErrorIs(t, err, types.ErrJournalDetached)
	_, err = b.GetTypeStats(ctx)
	assert.ErrorIs(t, err, types.ErrJournalDetached)
}

func TestBackend_SeedsOnFirstAttach(t *testing.T) {
	b, _ := newTestBackend(t)
	ctx := context.Background()

	ts, err := b.ListTypes(ctx)
	require.NoError(t, err)
	require.Len(t, ts, 3)
	assert.Equal(t, "Activity", ts[0].Name)
	assert.Equal(t, "Condition", ts[1].Name)
	assert.Equal(t, "Outcome", ts[2].Name)
	assert.Equal(t, 0, ts[0].DisplayOrder)
	assert.Equal(t, 2, ts[2].DisplayOrder)

	cats, err := b.ListCategories(ctx, "")
	require.NoError(t, err)
	assert.Len(t, cats, 9)

	entries, err := b.GetAllLogEntries(ctx, types.LogFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, seed.WelcomeEntryID, entries[0].ID)
	assert.Equal(t, seed.TypeCondition, entries[0].TypeID)
	require.Len(t, entries[0].Items, 1)
	assert.Equal(t, seed.WelcomeItemID, entries[0].Items[0].ItemID)
	assert.Equal(t, "Mood", entries[0].Items[0].CategoryName)
}

func TestBackend_SeedRunsOnce(t *testing.T) {
	dir := t.TempDir()
	cfg := types.Config{Backend: types.BackendSQLite, DataDir: dir}
	ctx := context.Background()

	first := NewBackend()
	require.NoError(t, first.Attach(cfg))
	_, err := first.GetOrCreateType(ctx, "Custom")
	require.NoError(t, err)
	require.NoError(t, first.Detach())

	second := NewBackend()
	require.NoError(t, second.Attach(cfg))
	defer second.Detach()

	assert.Equal(t, 4, countRows(t, second, "types", ""))
	assert.Equal(t, 9, countRows(t, second, "categories", ""))
	assert.Equal(t, 1, countRows(t, second, "log_entries", ""))
}

func TestBackend_RejectsNewerSchema(t *testing.T) {
	dir := t.TempDir()
	cfg := types.Config{Backend: types.BackendSQLite, DataDir: dir}

	b := NewBackend()
	require.NoError(t, b.Attach(cfg))
	require.NoError(t, b.Detach())

	db, err := sql.Open("sqlite", filepath.Join(dir, DatabaseFile))
	require.NoError(t, err)
	_, err = db.Exec("PRAGMA user_version = 99")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	err = NewBackend().Attach(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newer than supported")
}

func TestBackend_SchemaVersionRecorded(t *testing.T) {
	b, _ := newTestBackend(t)

	var version int
	require.NoError(t, b.db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, currentSchemaVersion, version)
}

func TestBackend_ObservesWrites(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)
	b, _ := newTestBackend(t, WithMetrics(m))
	ctx := context.Background()

	_, err = b.UpsertItem(ctx, types.ItemInput{TypeName: "Activity", CategoryName: "Eating", Name: "Toast"})
	require.NoError(t, err)
	_, err = b.UpsertItem(ctx, types.ItemInput{TypeName: "Activity", CategoryName: "Eating", Name: "Toast", ID: "other"})
	require.ErrorIs(t, err, types.ErrDuplicateName)

	expected := `
# HELP healthlog_journal_writes_total Number of repository write operations, labeled by operation and status.
# TYPE healthlog_journal_writes_total counter
healthlog_journal_writes_total{operation="upsert_item",status="error"} 1
healthlog_journal_writes_total{operation="upsert_item",status="success"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "healthlog_journal_writes_total"))
}
