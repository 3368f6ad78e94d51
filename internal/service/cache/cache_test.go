package cache

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crmsync/internal/domain"
	"crmsync/internal/remote"
	"crmsync/internal/testutil"
)

func seedStore(t *testing.T, tables map[string]*domain.Snapshot) *remote.MemoryStore {
	t.Helper()
	store := remote.NewMemoryStore()
	for name, snap := range tables {
		_, err := store.Create(context.Background(), name, snap)
		require.NoError(t, err)
	}
	return store
}

func companiesSnapshot() *domain.Snapshot {
	return &domain.Snapshot{
		Columns: []string{"id", "name"},
		Rows: []domain.Row{
			{"id": "10", "name": "Acme"},
			{"id": "11", "name": "Globex"},
		},
	}
}

func TestTableCache_LoadTable_MissThenHit(t *testing.T) {
	counting := &testutil.MockRemoteStore{}
	backing := seedStore(t, map[string]*domain.Snapshot{"companies": companiesSnapshot()})
	counting.FindByNameFn = backing.FindByName
	counting.ReadFn = backing.Read

	c := New(counting, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))

	snap, err := c.LoadTable(context.Background(), "companies")
	require.NoError(t, err)
	assert.Equal(t, 2, snap.RowCount())
	assert.Equal(t, 1, counting.ReadCalls)

	again, err := c.LoadTable(context.Background(), "companies")
	require.NoError(t, err)
	assert.Same(t, snap, again)
	assert.Equal(t, 1, counting.ReadCalls)
}

func TestTableCache_LoadTable_NotFound(t *testing.T) {
	c := New(remote.NewMemoryStore(), 0, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := c.LoadTable(context.Background(), "companies")
	require.Error(t, err)
	assert.True(t, domain.IsNotFound(err))
}

func TestTableCache_Invalidate_ForcesReload(t *testing.T) {
	counting := &testutil.MockRemoteStore{}
	backing := seedStore(t, map[string]*domain.Snapshot{"companies": companiesSnapshot()})
	counting.FindByNameFn = backing.FindByName
	counting.ReadFn = backing.Read

	c := New(counting, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := c.LoadTable(context.Background(), "companies")
	require.NoError(t, err)

	c.Invalidate("companies")

	_, err = c.LoadTable(context.Background(), "companies")
	require.NoError(t, err)
	assert.Equal(t, 2, counting.ReadCalls)
}

func TestTableCache_TTLExpiry(t *testing.T) {
	counting := &testutil.MockRemoteStore{}
	backing := seedStore(t, map[string]*domain.Snapshot{"companies": companiesSnapshot()})
	counting.FindByNameFn = backing.FindByName
	counting.ReadFn = backing.Read

	c := New(counting, 10*time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))
	current := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return current }

	_, err := c.LoadTable(context.Background(), "companies")
	require.NoError(t, err)

	// Within TTL: served from cache.
	current = current.Add(9 * time.Minute)
	_, err = c.LoadTable(context.Background(), "companies")
	require.NoError(t, err)
	assert.Equal(t, 1, counting.ReadCalls)

	// Past TTL: reloaded.
	current = current.Add(2 * time.Minute)
	_, err = c.LoadTable(context.Background(), "companies")
	require.NoError(t, err)
	assert.Equal(t, 2, counting.ReadCalls)
}

func TestTableCache_LoadTables_PartialAvailability(t *testing.T) {
	store := seedStore(t, map[string]*domain.Snapshot{"companies": companiesSnapshot()})
	c := New(store, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))

	results := c.LoadTables(context.Background(), []string{"companies", "tickets"})
	require.Len(t, results, 2)

	require.NoError(t, results["companies"].Err)
	assert.Equal(t, 2, results["companies"].Snapshot.RowCount())

	require.Error(t, results["tickets"].Err)
	assert.True(t, domain.IsNotFound(results["tickets"].Err))
	assert.Nil(t, results["tickets"].Snapshot)
}

func TestTableCache_ReloadReflectsRemoteChanges(t *testing.T) {
	store := seedStore(t, map[string]*domain.Snapshot{"companies": companiesSnapshot()})
	c := New(store, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))

	snap, err := c.LoadTable(context.Background(), "companies")
	require.NoError(t, err)
	require.Equal(t, 2, snap.RowCount())

	handle, err := store.FindByName(context.Background(), "companies")
	require.NoError(t, err)
	_, err = store.AppendRows(context.Background(), handle, []domain.Row{{"id": "12", "name": "Initech"}})
	require.NoError(t, err)

	// Stale until invalidated.
	snap, err = c.LoadTable(context.Background(), "companies")
	require.NoError(t, err)
	assert.Equal(t, 2, snap.RowCount())

	c.Invalidate("companies")
	snap, err = c.LoadTable(context.Background(), "companies")
	require.NoError(t, err)
	assert.Equal(t, 3, snap.RowCount())
}
