// Package sync implements the per-table incremental synchronization engine:
// it extracts rows from the source-of-record, consults the schema
// reconciler, applies the chosen policy through the remote store adapter,
// and invalidates the read-through cache after each successful write.
package sync

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"crmsync/internal/domain"
	"crmsync/internal/service/schema"
)

const (
	// remoteAttempts bounds retries of transient remote failures per
	// operation.
	remoteAttempts = 3
	// defaultParallelism bounds concurrent tables in SyncAll. Tables are
	// independent (different remote files, different cache entries), so no
	// cross-table ordering is provided.
	defaultParallelism = 4
)

// Invalidator is the cache surface the engine needs: remove one table's
// entry so the next load re-fetches.
type Invalidator interface {
	Invalidate(tableName string)
}

// Engine synchronizes tables from the source-of-record into the remote
// store. One Engine serves the whole process; SyncTable is sequential within
// a table, SyncAll fans out across tables.
type Engine struct {
	store  domain.RemoteStore
	source domain.SourceReader
	cache  Invalidator
	logger *slog.Logger

	// Parallelism overrides the SyncAll fan-out width when positive.
	Parallelism int
	// RetryInitialInterval seeds the exponential backoff. Tests shrink it.
	RetryInitialInterval time.Duration
}

// NewEngine creates a sync engine. cache may be nil when no cache is wired
// (the CLI's one-shot mode).
func NewEngine(store domain.RemoteStore, source domain.SourceReader, cache Invalidator, logger *slog.Logger) *Engine {
	return &Engine{
		store:                store,
		source:               source,
		cache:                cache,
		logger:               logger,
		RetryInitialInterval: 500 * time.Millisecond,
	}
}

// SyncAll runs SyncTable for each descriptor with bounded parallelism and
// collects one result per table. A table's failure never aborts its
// siblings; failures are reported in the corresponding SyncResult.
func (e *Engine) SyncAll(ctx context.Context, descriptors []domain.TableDescriptor) []domain.SyncResult {
	results := make([]domain.SyncResult, len(descriptors))

	parallelism := e.Parallelism
	if parallelism <= 0 {
		parallelism = defaultParallelism
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for i := range descriptors {
		i := i
		g.Go(func() error {
			results[i] = e.SyncTable(gctx, descriptors[i])
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; failures live in results

	return results
}

// SyncTable runs one table's sync: read remote state, pull the full or
// incremental row set, reconcile signatures, write, invalidate the cache
// entry. All remote round trips retry transient failures within a bounded
// budget.
func (e *Engine) SyncTable(ctx context.Context, desc domain.TableDescriptor) domain.SyncResult {
	result := domain.SyncResult{TableName: desc.Name}

	handle, remote, err := e.readRemoteState(ctx, desc.Name)
	if err != nil {
		result.Err = err
		return result
	}

	since := e.watermarkFilter(desc, handle, remote)
	proposed, err := e.source.FetchRows(ctx, desc.Name, since)
	if err != nil {
		result.Err = err
		return result
	}

	decision := schema.Decide(proposed.Signature(), handle)
	switch decision.Policy {
	case domain.PolicyCreate:
		result = e.applyCreate(ctx, desc, proposed)
	case domain.PolicyAppend:
		result = e.applyAppend(ctx, desc, handle, remote, proposed)
	case domain.PolicyReplace:
		result = e.applyReplace(ctx, desc, handle, decision, proposed, since != nil)
	default:
		result.Err = domain.ErrValidation("unexpected policy %q for table %q", decision.Policy, desc.Name)
	}

	if result.Err == nil && result.Policy != domain.PolicyNoop {
		e.invalidate(desc.Name)
		e.logger.Info("table synced",
			"table", desc.Name,
			"policy", result.Policy,
			"rows_written", result.RowsWritten,
		)
	}
	return result
}

// readRemoteState resolves the table's remote handle and, when the file
// exists, re-reads its snapshot so reconciliation and incremental filtering
// run against the current signature. A missing file yields (nil, nil, nil).
func (e *Engine) readRemoteState(ctx context.Context, tableName string) (*domain.RemoteFileHandle, *domain.Snapshot, error) {
	var handle *domain.RemoteFileHandle
	err := e.retryRemote(ctx, func() error {
		var findErr error
		handle, findErr = e.store.FindByName(ctx, tableName)
		return findErr
	})
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, nil, nil
		}
		return nil, nil, err
	}

	var remote *domain.Snapshot
	err = e.retryRemote(ctx, func() error {
		var readErr error
		remote, readErr = e.store.Read(ctx, handle)
		return readErr
	})
	if err != nil {
		if domain.IsNotFound(err) {
			// File vanished between lookup and read; treat as first sync.
			return nil, nil, nil
		}
		return nil, nil, err
	}
	return handle, remote, nil
}

// watermarkFilter derives the incremental-pull filter: the maximum watermark
// value observed in the remote snapshot. Full pull when no watermark column
// is configured, no remote file exists, or the remote copy holds no usable
// watermark values.
func (e *Engine) watermarkFilter(desc domain.TableDescriptor, handle *domain.RemoteFileHandle, remote *domain.Snapshot) *domain.Watermark {
	if desc.WatermarkColumn == "" || handle == nil || remote == nil {
		return nil
	}
	max, ok := remote.MaxValue(desc.WatermarkColumn)
	if !ok {
		return nil
	}
	return &domain.Watermark{Column: desc.WatermarkColumn, Value: max}
}

func (e *Engine) applyCreate(ctx context.Context, desc domain.TableDescriptor, proposed *domain.Snapshot) domain.SyncResult {
	result := domain.SyncResult{TableName: desc.Name, Policy: domain.PolicyCreate}
	err := e.retryRemote(ctx, func() error {
		_, createErr := e.store.Create(ctx, desc.Name, proposed)
		return createErr
	})
	if err != nil {
		result.Err = err
		return result
	}
	result.RowsWritten = proposed.RowCount()
	return result
}

// applyAppend filters the proposed rows down to ones not already present
// remotely and appends them. An empty filtered set is a NOOP. A
// SchemaMismatch from the store (the remote signature changed between
// decision and write) escalates to REPLACE once instead of failing, so a
// concurrent writer cannot cause a lost update.
func (e *Engine) applyAppend(ctx context.Context, desc domain.TableDescriptor, handle *domain.RemoteFileHandle, remote, proposed *domain.Snapshot) domain.SyncResult {
	result := domain.SyncResult{TableName: desc.Name, Policy: domain.PolicyAppend}

	newRows := filterNewRows(desc, remote, proposed)
	if len(newRows) == 0 {
		result.Policy = domain.PolicyNoop
		return result
	}

	err := e.retryRemote(ctx, func() error {
		_, appendErr := e.store.AppendRows(ctx, handle, newRows)
		return appendErr
	})
	if err == nil {
		result.RowsWritten = len(newRows)
		return result
	}
	if !domain.IsSchemaMismatch(err) {
		result.Err = err
		return result
	}

	e.logger.Warn("append raced a remote schema change, escalating to replace",
		"table", desc.Name)
	return e.escalateToReplace(ctx, desc)
}

// escalateToReplace re-reads the remote signature once and overwrites the
// file with the full current source dataset.
func (e *Engine) escalateToReplace(ctx context.Context, desc domain.TableDescriptor) domain.SyncResult {
	result := domain.SyncResult{TableName: desc.Name, Policy: domain.PolicyReplace}

	handle, _, err := e.readRemoteState(ctx, desc.Name)
	if err != nil {
		result.Err = err
		return result
	}

	full, err := e.source.FetchRows(ctx, desc.Name, nil)
	if err != nil {
		result.Err = err
		return result
	}

	if handle == nil {
		// The concurrent writer deleted the file; fall back to CREATE.
		return e.applyCreate(ctx, desc, full)
	}

	decision := schema.Decide(full.Signature(), handle)
	result.Warning = decision.Warning()
	if result.Warning == "" {
		result.Warning = "schema drift detected during append, replaced remote file"
	}

	err = e.retryRemote(ctx, func() error {
		_, replaceErr := e.store.Replace(ctx, handle, full)
		return replaceErr
	})
	if err != nil {
		result.Err = err
		return result
	}
	result.RowsWritten = full.RowCount()
	return result
}

// applyReplace overwrites the remote file with the complete current dataset.
// When the proposed snapshot was an incremental pull, the full table is
// re-fetched first.
func (e *Engine) applyReplace(ctx context.Context, desc domain.TableDescriptor, handle *domain.RemoteFileHandle, decision schema.Decision, proposed *domain.Snapshot, incremental bool) domain.SyncResult {
	result := domain.SyncResult{TableName: desc.Name, Policy: domain.PolicyReplace, Warning: decision.Warning()}

	full := proposed
	if incremental {
		var err error
		full, err = e.source.FetchRows(ctx, desc.Name, nil)
		if err != nil {
			result.Err = err
			return result
		}
	}

	err := e.retryRemote(ctx, func() error {
		_, replaceErr := e.store.Replace(ctx, handle, full)
		return replaceErr
	})
	if err != nil {
		result.Err = err
		return result
	}
	result.RowsWritten = full.RowCount()
	return result
}

// filterNewRows drops proposed rows already present remotely. Rows with a
// primary-key value are matched by key; rows without one (NULL or empty in
// the source) are matched by full-row equality so they cannot be re-appended
// on every pass. Watermark-filtered pulls arrive pre-filtered but are still
// deduplicated, which keeps a repeated run idempotent even when the
// watermark ties.
func filterNewRows(desc domain.TableDescriptor, remote, proposed *domain.Snapshot) []domain.Row {
	existingKeys := remote.KeySet(desc.PrimaryKey)
	unkeyed := unkeyedRowSet(desc.PrimaryKey, remote.Rows)
	newRows := make([]domain.Row, 0, len(proposed.Rows))
	for _, row := range proposed.Rows {
		key := row[desc.PrimaryKey]
		if key != "" {
			if _, dup := existingKeys[key]; dup {
				continue
			}
		} else if _, dup := unkeyed[canonicalRow(row)]; dup {
			continue
		}
		newRows = append(newRows, row)
	}
	return newRows
}

// unkeyedRowSet collects the remote rows that carry no primary-key value,
// keyed by their canonical rendering.
func unkeyedRowSet(primaryKey string, rows []domain.Row) map[string]struct{} {
	set := make(map[string]struct{})
	for _, row := range rows {
		if row[primaryKey] != "" {
			continue
		}
		set[canonicalRow(row)] = struct{}{}
	}
	return set
}

// canonicalRow renders a row as a comparison key: columns sorted, each
// name/value pair joined with unit and record separators.
func canonicalRow(row domain.Row) string {
	cols := make([]string, 0, len(row))
	for col := range row {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	var b strings.Builder
	for _, col := range cols {
		b.WriteString(col)
		b.WriteByte('\x1f')
		b.WriteString(row[col])
		b.WriteByte('\x1e')
	}
	return b.String()
}

// retryRemote runs op, retrying RemoteUnavailable failures with exponential
// backoff up to the attempt budget. Any other error aborts immediately.
func (e *Engine) retryRemote(ctx context.Context, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.RetryInitialInterval
	bo.RandomizationFactor = 0.2
	bo.Multiplier = 2

	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if domain.IsRemoteUnavailable(err) {
			return err // retryable
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(backoff.WithMaxRetries(bo, remoteAttempts-1), ctx))
}

func (e *Engine) invalidate(tableName string) {
	if e.cache == nil {
		return
	}
	e.cache.Invalidate(tableName)
}
