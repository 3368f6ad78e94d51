// Package testutil provides shared mock implementations of domain interfaces
// for use in tests across the codebase.
package testutil

import (
	"context"
	"sync"

	"crmsync/internal/domain"
)

// === Remote Store Mock ===

// MockRemoteStore implements domain.RemoteStore for testing. Unset functions
// panic so tests fail loudly on unexpected calls.
type MockRemoteStore struct {
	FindByNameFn func(ctx context.Context, tableName string) (*domain.RemoteFileHandle, error)
	ReadFn       func(ctx context.Context, handle *domain.RemoteFileHandle) (*domain.Snapshot, error)
	CreateFn     func(ctx context.Context, tableName string, snapshot *domain.Snapshot) (*domain.RemoteFileHandle, error)
	ReplaceFn    func(ctx context.Context, handle *domain.RemoteFileHandle, snapshot *domain.Snapshot) (*domain.RemoteFileHandle, error)
	AppendRowsFn func(ctx context.Context, handle *domain.RemoteFileHandle, rows []domain.Row) (*domain.RemoteFileHandle, error)

	mu          sync.Mutex
	FindCalls   int
	ReadCalls   int
	CreateCalls int
	ReplaceCall int
	AppendCalls int
}

// FindByName implements the interface method for testing.
func (m *MockRemoteStore) FindByName(ctx context.Context, tableName string) (*domain.RemoteFileHandle, error) {
	m.count(&m.FindCalls)
	if m.FindByNameFn == nil {
		panic("unexpected call to MockRemoteStore.FindByName")
	}
	return m.FindByNameFn(ctx, tableName)
}

// Read implements the interface method for testing.
func (m *MockRemoteStore) Read(ctx context.Context, handle *domain.RemoteFileHandle) (*domain.Snapshot, error) {
	m.count(&m.ReadCalls)
	if m.ReadFn == nil {
		panic("unexpected call to MockRemoteStore.Read")
	}
	return m.ReadFn(ctx, handle)
}

// Create implements the interface method for testing.
func (m *MockRemoteStore) Create(ctx context.Context, tableName string, snapshot *domain.Snapshot) (*domain.RemoteFileHandle, error) {
	m.count(&m.CreateCalls)
	if m.CreateFn == nil {
		panic("unexpected call to MockRemoteStore.Create")
	}
	return m.CreateFn(ctx, tableName, snapshot)
}

// Replace implements the interface method for testing.
func (m *MockRemoteStore) Replace(ctx context.Context, handle *domain.RemoteFileHandle, snapshot *domain.Snapshot) (*domain.RemoteFileHandle, error) {
	m.count(&m.ReplaceCall)
	if m.ReplaceFn == nil {
		panic("unexpected call to MockRemoteStore.Replace")
	}
	return m.ReplaceFn(ctx, handle, snapshot)
}

// AppendRows implements the interface method for testing.
func (m *MockRemoteStore) AppendRows(ctx context.Context, handle *domain.RemoteFileHandle, rows []domain.Row) (*domain.RemoteFileHandle, error) {
	m.count(&m.AppendCalls)
	if m.AppendRowsFn == nil {
		panic("unexpected call to MockRemoteStore.AppendRows")
	}
	return m.AppendRowsFn(ctx, handle, rows)
}

func (m *MockRemoteStore) count(field *int) {
	m.mu.Lock()
	*field++
	m.mu.Unlock()
}

var _ domain.RemoteStore = (*MockRemoteStore)(nil)

// === Source Reader Mock ===

// FetchCall records the arguments of one FetchRows invocation.
type FetchCall struct {
	TableName string
	Since     *domain.Watermark
}

// MockSourceReader implements domain.SourceReader for testing.
type MockSourceReader struct {
	FetchRowsFn func(ctx context.Context, tableName string, since *domain.Watermark) (*domain.Snapshot, error)

	mu    sync.Mutex
	Calls []FetchCall
}

// FetchRows implements the interface method for testing.
func (m *MockSourceReader) FetchRows(ctx context.Context, tableName string, since *domain.Watermark) (*domain.Snapshot, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, FetchCall{TableName: tableName, Since: since})
	m.mu.Unlock()
	if m.FetchRowsFn == nil {
		panic("unexpected call to MockSourceReader.FetchRows")
	}
	return m.FetchRowsFn(ctx, tableName, since)
}

// LastCall returns the most recent FetchRows call, or nil if none.
func (m *MockSourceReader) LastCall() *FetchCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Calls) == 0 {
		return nil
	}
	return &m.Calls[len(m.Calls)-1]
}

var _ domain.SourceReader = (*MockSourceReader)(nil)

// === Invalidation recorder ===

// InvalidationRecorder collects cache invalidation signals for assertions.
type InvalidationRecorder struct {
	mu     sync.Mutex
	Tables []string
}

// Invalidate records the invalidated table name.
func (r *InvalidationRecorder) Invalidate(tableName string) {
	r.mu.Lock()
	r.Tables = append(r.Tables, tableName)
	r.mu.Unlock()
}

// Has reports whether the named table was invalidated.
func (r *InvalidationRecorder) Has(tableName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.Tables {
		if t == tableName {
			return true
		}
	}
	return false
}
