package cache

import (
	"context"
	"sync"
	"time"

	"crmsync/internal/domain"
)

// MappingKey identifies one identifier→display-name mapping.
type MappingKey struct {
	Table      string
	IDColumn   string
	NameColumn string
}

// MappingCache derives identifier→display-name lookups from cached reference
// tables (the CRM's companies, cities, call types, and similar). Mappings
// are never independently invalidated: a mapping is rebuilt lazily when the
// backing cache entry has been reloaded since the mapping was computed.
type MappingCache struct {
	tables *TableCache

	mu      sync.Mutex
	entries map[MappingKey]*mappingEntry
}

type mappingEntry struct {
	mapping map[string]string
	builtOn time.Time // loadedAt of the backing cache entry
}

// NewMappingCache creates a mapping cache over the table cache.
func NewMappingCache(tables *TableCache) *MappingCache {
	return &MappingCache{
		tables:  tables,
		entries: make(map[MappingKey]*mappingEntry),
	}
}

// BuildMapping returns the identifier→name mapping for a reference table,
// computing and caching it on first use. Duplicate identifiers are a
// data-quality signal, not an error: the last-seen row wins. The returned
// map is shared and must be treated as read-only.
func (m *MappingCache) BuildMapping(ctx context.Context, sourceTable, idColumn, nameColumn string) (map[string]string, error) {
	backing, err := m.tables.loadEntry(ctx, sourceTable)
	if err != nil {
		return nil, err
	}

	key := MappingKey{Table: sourceTable, IDColumn: idColumn, NameColumn: nameColumn}

	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[key]; ok && e.builtOn.Equal(backing.loadedAt) {
		return e.mapping, nil
	}

	snapshot := backing.snapshot
	if !snapshot.HasColumn(idColumn) {
		return nil, domain.ErrValidation("table %q has no column %q", sourceTable, idColumn)
	}
	if !snapshot.HasColumn(nameColumn) {
		return nil, domain.ErrValidation("table %q has no column %q", sourceTable, nameColumn)
	}

	mapping := make(map[string]string, snapshot.RowCount())
	for _, row := range snapshot.Rows {
		id := row[idColumn]
		if id == "" {
			continue
		}
		mapping[id] = row[nameColumn]
	}

	m.entries[key] = &mappingEntry{mapping: mapping, builtOn: backing.loadedAt}
	return mapping, nil
}
