// Package source implements the source-of-record reader over database/sql.
package source

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	"crmsync/internal/domain"
)

// Compile-time check: DBReader implements the source reader contract.
var _ domain.SourceReader = (*DBReader)(nil)

// identPattern restricts table and column identifiers interpolated into
// SQL text. Descriptors are trusted configuration, but a typo should fail
// loudly, not become SQL.
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// DBReader reads tables from the authoritative relational database. The
// driver and DSN come from configuration, so the same reader serves MySQL in
// production and in-memory SQLite in tests.
type DBReader struct {
	db     *sql.DB
	schema string // optional schema/database qualifier
}

// NewDBReader creates a reader over an opened database handle. schema may be
// empty when the DSN already selects a default database.
func NewDBReader(db *sql.DB, schema string) *DBReader {
	return &DBReader{db: db, schema: schema}
}

// FetchRows pulls the full table, or only rows whose watermark column
// exceeds since.Value when since is non-nil. The returned snapshot carries
// the table's column signature even when no rows match.
func (r *DBReader) FetchRows(ctx context.Context, tableName string, since *domain.Watermark) (*domain.Snapshot, error) {
	if !identPattern.MatchString(tableName) {
		return nil, domain.ErrValidation("invalid table name %q", tableName)
	}

	query := fmt.Sprintf("SELECT * FROM %s", r.qualify(tableName))
	var args []any
	if since != nil {
		if !identPattern.MatchString(since.Column) {
			return nil, domain.ErrValidation("invalid watermark column %q", since.Column)
		}
		query += fmt.Sprintf(" WHERE %s > ?", since.Column)
		args = append(args, since.Value)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.ErrSourceUnavailable(err, "query table %q", tableName)
	}
	defer rows.Close() //nolint:errcheck

	columns, err := rows.Columns()
	if err != nil {
		return nil, domain.ErrSourceUnavailable(err, "read columns of %q", tableName)
	}

	snapshot := &domain.Snapshot{Columns: columns}
	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, domain.ErrSourceUnavailable(err, "scan row of %q", tableName)
		}
		row := make(domain.Row, len(columns))
		for i, col := range columns {
			row[col] = formatValue(values[i])
		}
		snapshot.Rows = append(snapshot.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrSourceUnavailable(err, "iterate rows of %q", tableName)
	}
	return snapshot, nil
}

func (r *DBReader) qualify(tableName string) string {
	if r.schema == "" {
		return tableName
	}
	return r.schema + "." + tableName
}

// formatValue renders a scanned database value as the string stored in CSV.
// NULL becomes the empty string, timestamps use RFC 3339.
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(val)
	case string:
		return val
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", val)
	}
}
