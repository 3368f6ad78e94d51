// Package remote implements the remote store adapter: uniform named-file
// operations (find, read, create, replace, append) against Google Drive,
// S3-compatible object storage, Azure Blob, or an in-memory store. Files are
// CSV, one per table, named "<table>.csv".
package remote

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"crmsync/internal/domain"
)

const fileExtension = ".csv"

// fileName returns the remote file name for a table.
func fileName(tableName string) string { return tableName + fileExtension }

// encodeSnapshot renders a snapshot as CSV bytes, header first, rows in the
// snapshot's column order.
func encodeSnapshot(snapshot *domain.Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(snapshot.Columns); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	record := make([]string, len(snapshot.Columns))
	for _, row := range snapshot.Rows {
		for i, col := range snapshot.Columns {
			record[i] = row[col]
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// decodeSnapshot parses CSV bytes into a snapshot. The first record is the
// header; an empty file decodes to an empty snapshot with no columns.
func decodeSnapshot(data []byte) (*domain.Snapshot, error) {
	r := csv.NewReader(bytes.NewReader(data))
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return &domain.Snapshot{}, nil
	}

	columns := records[0]
	rows := make([]domain.Row, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(domain.Row, len(columns))
		for i, col := range columns {
			if i < len(record) {
				row[col] = record[i]
			}
		}
		rows = append(rows, row)
	}
	return &domain.Snapshot{Columns: columns, Rows: rows}, nil
}

// appendToSnapshot merges rows into an existing snapshot after verifying
// each row carries exactly the snapshot's column set. Incoming rows are
// keyed by column name, so source-side column reordering is harmless.
func appendToSnapshot(existing *domain.Snapshot, rows []domain.Row) (*domain.Snapshot, error) {
	signature := existing.Signature()
	for _, row := range rows {
		rowCols := make([]string, 0, len(row))
		for col := range row {
			rowCols = append(rowCols, col)
		}
		if !domain.SignaturesEqual(rowCols, signature) {
			return nil, domain.ErrSchemaMismatch(
				"appended row signature %v does not match remote signature %v",
				domain.NormalizeSignature(rowCols), signature)
		}
	}
	merged := &domain.Snapshot{
		Columns: existing.Columns,
		Rows:    make([]domain.Row, 0, len(existing.Rows)+len(rows)),
	}
	merged.Rows = append(merged.Rows, existing.Rows...)
	merged.Rows = append(merged.Rows, rows...)
	return merged, nil
}

// refreshHandle records the signature and row count of the last successful
// read or write on the handle.
func refreshHandle(handle *domain.RemoteFileHandle, snapshot *domain.Snapshot) {
	handle.Signature = snapshot.Signature()
	handle.RowCount = snapshot.RowCount()
}
