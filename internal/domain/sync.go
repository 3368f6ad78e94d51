package domain

// SyncPolicy is the update policy chosen by the schema reconciler for one
// table sync.
type SyncPolicy string

const (
	// PolicyCreate writes the proposed rows as a brand-new remote file.
	PolicyCreate SyncPolicy = "CREATE"
	// PolicyAppend appends only rows not already present remotely.
	PolicyAppend SyncPolicy = "APPEND"
	// PolicyReplace overwrites the remote file with the full proposed
	// dataset after a schema drift.
	PolicyReplace SyncPolicy = "REPLACE"
	// PolicyNoop means the proposed row set was empty after incremental
	// filtering; nothing was written.
	PolicyNoop SyncPolicy = "NOOP"
)

// SyncResult is the per-table outcome of one sync invocation. It is produced
// once, handed to the caller for reporting, and not persisted.
type SyncResult struct {
	TableName   string
	Policy      SyncPolicy
	RowsWritten int

	// Warning is set only for REPLACE and names the signature delta that
	// forced the overwrite.
	Warning string

	// Err is set when the table's sync failed. A failed table never aborts
	// its siblings.
	Err error
}

// Failed reports whether the sync attempt ended in an error.
func (r SyncResult) Failed() bool { return r.Err != nil }

// Watermark is an incremental-pull filter: only source rows whose Column
// value exceeds Value are wanted.
type Watermark struct {
	Column string
	Value  string
}
