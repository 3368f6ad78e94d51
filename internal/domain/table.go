// Package domain defines core types, interfaces, and errors for the table
// synchronization service.
package domain

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// TableDescriptor declares one source table to mirror into the remote store.
// Descriptors are configuration: immutable once declared, one per table name.
type TableDescriptor struct {
	// Name matches both the source-of-record table and the remote file
	// basename (the remote file is "<name>.csv").
	Name string `yaml:"name"`

	// PrimaryKey is the single-column primary key used to detect rows
	// already present remotely.
	PrimaryKey string `yaml:"primary_key"`

	// WatermarkColumn, when set, enables incremental pulls: only source
	// rows whose watermark exceeds the maximum observed remotely are
	// fetched. Empty means full pulls.
	WatermarkColumn string `yaml:"watermark_column,omitempty"`

	// ExpectedColumns is the canonical schema, used for validation and
	// documentation. It does not constrain reconciliation, which compares
	// the live source signature against the live remote signature.
	ExpectedColumns []string `yaml:"expected_columns,omitempty"`
}

// Row is a single record keyed by column name. Values are kept as strings,
// matching the CSV representation stored remotely.
type Row map[string]string

// Snapshot is a point-in-time tabular read of a table, either from the
// source-of-record, the remote store, or cache. Columns preserves the
// original column order; Rows are keyed by column name so consumers are
// insensitive to reordering.
type Snapshot struct {
	Columns []string
	Rows    []Row
}

// Signature returns the column-name set of the snapshot as a sorted slice.
func (s *Snapshot) Signature() []string {
	return NormalizeSignature(s.Columns)
}

// RowCount returns the number of rows in the snapshot.
func (s *Snapshot) RowCount() int { return len(s.Rows) }

// HasColumn reports whether the snapshot contains the named column.
func (s *Snapshot) HasColumn(name string) bool {
	for _, c := range s.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// MaxValue returns the maximum non-empty value of the named column using
// watermark ordering. ok is false when the column is absent or holds no
// non-empty values.
func (s *Snapshot) MaxValue(column string) (max string, ok bool) {
	if !s.HasColumn(column) {
		return "", false
	}
	for _, row := range s.Rows {
		v := row[column]
		if v == "" {
			continue
		}
		if !ok || CompareWatermarks(v, max) > 0 {
			max = v
			ok = true
		}
	}
	return max, ok
}

// KeySet returns the set of values in the named column, used to drop rows
// whose primary key is already present remotely.
func (s *Snapshot) KeySet(column string) map[string]struct{} {
	keys := make(map[string]struct{}, len(s.Rows))
	for _, row := range s.Rows {
		if v, exists := row[column]; exists && v != "" {
			keys[v] = struct{}{}
		}
	}
	return keys
}

// RemoteFileHandle is an opaque reference to a table's remote file. Signature
// and RowCount reflect the last successful read or write through the adapter.
type RemoteFileHandle struct {
	TableName string
	RemoteID  string
	Signature []string
	RowCount  int
}

// NormalizeSignature returns a sorted, de-duplicated copy of the given
// column names. Signatures are compared as name sets: column order and
// declared types never matter.
func NormalizeSignature(columns []string) []string {
	seen := make(map[string]struct{}, len(columns))
	out := make([]string, 0, len(columns))
	for _, c := range columns {
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// SignaturesEqual reports whether two column signatures denote the same
// column-name set.
func SignaturesEqual(a, b []string) bool {
	na, nb := NormalizeSignature(a), NormalizeSignature(b)
	if len(na) != len(nb) {
		return false
	}
	for i := range na {
		if na[i] != nb[i] {
			return false
		}
	}
	return true
}

// watermarkTimeLayouts are the timestamp formats accepted for watermark
// comparison, tried in order. They cover RFC 3339 plus the plain layouts
// MySQL emits for DATETIME and DATE columns.
var watermarkTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// CompareWatermarks orders two watermark values. Both-numeric values compare
// numerically, both-timestamp values compare chronologically, anything else
// falls back to lexicographic order. Returns -1, 0, or 1.
func CompareWatermarks(a, b string) int {
	if fa, errA := strconv.ParseFloat(a, 64); errA == nil {
		if fb, errB := strconv.ParseFloat(b, 64); errB == nil {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			default:
				return 0
			}
		}
	}
	if ta, okA := parseWatermarkTime(a); okA {
		if tb, okB := parseWatermarkTime(b); okB {
			switch {
			case ta.Before(tb):
				return -1
			case ta.After(tb):
				return 1
			default:
				return 0
			}
		}
	}
	return strings.Compare(a, b)
}

func parseWatermarkTime(v string) (time.Time, bool) {
	for _, layout := range watermarkTimeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
