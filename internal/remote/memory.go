package remote

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"crmsync/internal/domain"
)

// Compile-time check: MemoryStore implements the remote store contract.
var _ domain.RemoteStore = (*MemoryStore)(nil)

// MemoryStore is an in-memory remote store used by tests and the dev
// profile. It honours the same contract as the real backends, including
// whole-file writes and SchemaMismatch on drifted appends.
type MemoryStore struct {
	mu    sync.RWMutex
	files map[string][]byte // file name → CSV bytes
	ids   map[string]string // file name → remote ID
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		files: make(map[string][]byte),
		ids:   make(map[string]string),
	}
}

// FindByName looks up the handle for a table's file.
func (s *MemoryStore) FindByName(_ context.Context, tableName string) (*domain.RemoteFileHandle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	name := fileName(tableName)
	id, ok := s.ids[name]
	if !ok {
		return nil, domain.ErrNotFound("remote file %q not found", name)
	}
	return &domain.RemoteFileHandle{TableName: tableName, RemoteID: id}, nil
}

// Read returns the file's snapshot and refreshes the handle's signature and
// row count.
func (s *MemoryStore) Read(_ context.Context, handle *domain.RemoteFileHandle) (*domain.Snapshot, error) {
	s.mu.RLock()
	data, ok := s.files[fileName(handle.TableName)]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrNotFound("remote file %q not found", fileName(handle.TableName))
	}

	snapshot, err := decodeSnapshot(data)
	if err != nil {
		return nil, err
	}
	refreshHandle(handle, snapshot)
	return snapshot, nil
}

// Create writes a brand-new file for the table.
func (s *MemoryStore) Create(_ context.Context, tableName string, snapshot *domain.Snapshot) (*domain.RemoteFileHandle, error) {
	data, err := encodeSnapshot(snapshot)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := fileName(tableName)
	id := uuid.NewString()
	s.files[name] = data
	s.ids[name] = id

	handle := &domain.RemoteFileHandle{TableName: tableName, RemoteID: id}
	refreshHandle(handle, snapshot)
	return handle, nil
}

// Replace overwrites the file with the full snapshot.
func (s *MemoryStore) Replace(_ context.Context, handle *domain.RemoteFileHandle, snapshot *domain.Snapshot) (*domain.RemoteFileHandle, error) {
	data, err := encodeSnapshot(snapshot)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := fileName(handle.TableName)
	if _, ok := s.ids[name]; !ok {
		return nil, domain.ErrNotFound("remote file %q not found", name)
	}
	s.files[name] = data

	refreshHandle(handle, snapshot)
	return handle, nil
}

// AppendRows merges rows into the existing file. Rows must match the file's
// current column signature exactly.
func (s *MemoryStore) AppendRows(_ context.Context, handle *domain.RemoteFileHandle, rows []domain.Row) (*domain.RemoteFileHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := fileName(handle.TableName)
	data, ok := s.files[name]
	if !ok {
		return nil, domain.ErrNotFound("remote file %q not found", name)
	}
	existing, err := decodeSnapshot(data)
	if err != nil {
		return nil, err
	}
	merged, err := appendToSnapshot(existing, rows)
	if err != nil {
		return nil, err
	}
	encoded, err := encodeSnapshot(merged)
	if err != nil {
		return nil, err
	}
	s.files[name] = encoded

	refreshHandle(handle, merged)
	return handle, nil
}
