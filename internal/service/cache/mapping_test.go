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
)

func TestMappingCache_BuildMapping(t *testing.T) {
	store := seedStore(t, map[string]*domain.Snapshot{"companies": companiesSnapshot()})
	tables := New(store, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	m := NewMappingCache(tables)

	mapping, err := m.BuildMapping(context.Background(), "companies", "id", "name")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"10": "Acme", "11": "Globex"}, mapping)
}

func TestMappingCache_DuplicateIDsLastSeenWins(t *testing.T) {
	store := seedStore(t, map[string]*domain.Snapshot{"companies": {
		Columns: []string{"id", "name"},
		Rows: []domain.Row{
			{"id": "10", "name": "Acme"},
			{"id": "10", "name": "Acme Renamed"},
		},
	}})
	tables := New(store, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	m := NewMappingCache(tables)

	mapping, err := m.BuildMapping(context.Background(), "companies", "id", "name")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"10": "Acme Renamed"}, mapping)
}

func TestMappingCache_SkipsEmptyIdentifiers(t *testing.T) {
	store := seedStore(t, map[string]*domain.Snapshot{"companies": {
		Columns: []string{"id", "name"},
		Rows: []domain.Row{
			{"id": "10", "name": "Acme"},
			{"id": "", "name": "orphan"},
		},
	}})
	tables := New(store, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	m := NewMappingCache(tables)

	mapping, err := m.BuildMapping(context.Background(), "companies", "id", "name")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"10": "Acme"}, mapping)
}

func TestMappingCache_MissingColumn(t *testing.T) {
	store := seedStore(t, map[string]*domain.Snapshot{"companies": companiesSnapshot()})
	tables := New(store, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	m := NewMappingCache(tables)

	_, err := m.BuildMapping(context.Background(), "companies", "id", "display_name")
	require.Error(t, err)
	var validationErr *domain.ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestMappingCache_CachedUntilBackingReload(t *testing.T) {
	store := seedStore(t, map[string]*domain.Snapshot{"companies": companiesSnapshot()})
	tables := New(store, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	current := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	tables.now = func() time.Time {
		current = current.Add(time.Second)
		return current
	}
	m := NewMappingCache(tables)

	first, err := m.BuildMapping(context.Background(), "companies", "id", "name")
	require.NoError(t, err)

	// Same backing load generation: the cached map is returned.
	second, err := m.BuildMapping(context.Background(), "companies", "id", "name")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, m.entries, 1)

	// Remote changes land once the backing entry is invalidated.
	handle, err := store.FindByName(context.Background(), "companies")
	require.NoError(t, err)
	_, err = store.AppendRows(context.Background(), handle, []domain.Row{{"id": "12", "name": "Initech"}})
	require.NoError(t, err)
	tables.Invalidate("companies")

	rebuilt, err := m.BuildMapping(context.Background(), "companies", "id", "name")
	require.NoError(t, err)
	assert.Len(t, rebuilt, 3)
	assert.Equal(t, "Initech", rebuilt["12"])
}
