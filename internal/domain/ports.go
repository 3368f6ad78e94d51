package domain

import "context"

// RemoteStore is the uniform contract against the named-file remote backend
// (one file per table, "<table>.csv"). Implementations perform no business
// logic: append-vs-replace is decided by the sync engine.
//
// FindByName and Read return NotFoundError when the named file does not
// exist. Any operation may return RemoteUnavailableError on transient
// backend failure. AppendRows returns SchemaMismatchError when the given
// rows do not match the remote file's current column signature. Replace and
// AppendRows finish with a single whole-file write, so a concurrent reader
// observes either the pre-write or post-write file, never a partial state.
type RemoteStore interface {
	FindByName(ctx context.Context, tableName string) (*RemoteFileHandle, error)
	Read(ctx context.Context, handle *RemoteFileHandle) (*Snapshot, error)
	Create(ctx context.Context, tableName string, snapshot *Snapshot) (*RemoteFileHandle, error)
	Replace(ctx context.Context, handle *RemoteFileHandle, snapshot *Snapshot) (*RemoteFileHandle, error)
	AppendRows(ctx context.Context, handle *RemoteFileHandle, rows []Row) (*RemoteFileHandle, error)
}

// SourceReader pulls rows from the source-of-record. A nil since requests
// the full table; otherwise only rows whose watermark column exceeds
// since.Value are returned. The returned snapshot carries the source's
// column signature even when zero rows match. Failures are reported as
// SourceUnavailableError.
type SourceReader interface {
	FetchRows(ctx context.Context, tableName string, since *Watermark) (*Snapshot, error)
}
