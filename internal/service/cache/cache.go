// Package cache implements the read-through snapshot cache and the derived
// identifier→name mapping cache.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"crmsync/internal/domain"
)

// TableCache serves table snapshots to consumers, loading from the remote
// store on miss. Entries are removed by explicit invalidation after a sync,
// or by TTL expiry when a TTL is configured. One entry per table name,
// atomically replaced as a whole on reload.
type TableCache struct {
	store  domain.RemoteStore
	ttl    time.Duration // zero disables expiry
	logger *slog.Logger

	mu      sync.RWMutex
	entries map[string]*entry

	now func() time.Time // injectable clock for TTL tests
}

// entry is one cached table: the snapshot as loaded, when it was loaded, and
// the column signature observed at load time.
type entry struct {
	snapshot  *domain.Snapshot
	loadedAt  time.Time
	signature []string
}

// TableResult is one table's outcome in a batch load: either a snapshot or
// the per-table error marker, never both. Partial availability lets a
// dashboard render with an explicit gap instead of failing the whole page.
type TableResult struct {
	Snapshot *domain.Snapshot
	Err      error
}

// New creates a read-through cache over the given store. A zero ttl means
// entries live until invalidated.
func New(store domain.RemoteStore, ttl time.Duration, logger *slog.Logger) *TableCache {
	return &TableCache{
		store:   store,
		ttl:     ttl,
		logger:  logger,
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// LoadTable returns the table's cached snapshot, fetching from the remote
// store on miss. Returned snapshots are shared and must be treated as
// read-only.
func (c *TableCache) LoadTable(ctx context.Context, tableName string) (*domain.Snapshot, error) {
	e, err := c.loadEntry(ctx, tableName)
	if err != nil {
		return nil, err
	}
	return e.snapshot, nil
}

// LoadTables applies LoadTable per name. A single missing or unreadable
// table yields an error marker in its slot rather than aborting the batch.
func (c *TableCache) LoadTables(ctx context.Context, tableNames []string) map[string]TableResult {
	results := make(map[string]TableResult, len(tableNames))
	for _, name := range tableNames {
		snapshot, err := c.LoadTable(ctx, name)
		if err != nil {
			c.logger.Warn("table unavailable in batch load", "table", name, "error", err)
			results[name] = TableResult{Err: err}
			continue
		}
		results[name] = TableResult{Snapshot: snapshot}
	}
	return results
}

// Invalidate removes the table's entry so the next load re-fetches. Called
// by the sync engine after each successful table sync.
func (c *TableCache) Invalidate(tableName string) {
	c.mu.Lock()
	delete(c.entries, tableName)
	c.mu.Unlock()
}

// loadEntry returns the live entry for a table, reloading on miss or TTL
// expiry. The mapping cache uses the entry's loadedAt as its rebuild
// generation.
func (c *TableCache) loadEntry(ctx context.Context, tableName string) (*entry, error) {
	c.mu.RLock()
	e, ok := c.entries[tableName]
	c.mu.RUnlock()
	if ok && !c.expired(e) {
		return e, nil
	}

	handle, err := c.store.FindByName(ctx, tableName)
	if err != nil {
		return nil, err
	}
	snapshot, err := c.store.Read(ctx, handle)
	if err != nil {
		return nil, err
	}

	fresh := &entry{
		snapshot:  snapshot,
		loadedAt:  c.now(),
		signature: snapshot.Signature(),
	}

	c.mu.Lock()
	// A concurrent loader may have repopulated the entry while this fetch
	// was in flight; last write wins, the entry is replaced as a whole.
	c.entries[tableName] = fresh
	c.mu.Unlock()

	return fresh, nil
}

func (c *TableCache) expired(e *entry) bool {
	return c.ttl > 0 && c.now().Sub(e.loadedAt) > c.ttl
}
