package source

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crmsync/internal/domain"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "source.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
		CREATE TABLE tickets (
			id INTEGER PRIMARY KEY,
			subject TEXT NOT NULL,
			status TEXT,
			updated_at TEXT
		)`)
	require.NoError(t, err)
	_, err = db.Exec(`
		INSERT INTO tickets (id, subject, status, updated_at) VALUES
			(1, 'printer down', 'open', '2024-01-05 12:00:00'),
			(2, 'vpn flaky', NULL, '2024-02-01 08:30:00'),
			(3, 'disk full', 'open', '2024-03-01 09:00:00')`)
	require.NoError(t, err)
	return db
}

func TestDBReader_FetchRows_FullPull(t *testing.T) {
	reader := NewDBReader(openTestDB(t), "")

	snap, err := reader.FetchRows(context.Background(), "tickets", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "subject", "status", "updated_at"}, snap.Columns)
	assert.Equal(t, 3, snap.RowCount())
	assert.Equal(t, "printer down", snap.Rows[0]["subject"])
	// NULL scans to the empty string.
	assert.Equal(t, "", snap.Rows[1]["status"])
}

func TestDBReader_FetchRows_WatermarkFilter(t *testing.T) {
	reader := NewDBReader(openTestDB(t), "")

	snap, err := reader.FetchRows(context.Background(), "tickets", &domain.Watermark{
		Column: "updated_at",
		Value:  "2024-02-01 08:30:00",
	})
	require.NoError(t, err)
	require.Equal(t, 1, snap.RowCount())
	assert.Equal(t, "3", snap.Rows[0]["id"])
	// The signature is carried even on a narrow slice.
	assert.Equal(t, []string{"id", "subject", "status", "updated_at"}, snap.Columns)
}

func TestDBReader_FetchRows_WatermarkMatchesNothing(t *testing.T) {
	reader := NewDBReader(openTestDB(t), "")

	snap, err := reader.FetchRows(context.Background(), "tickets", &domain.Watermark{
		Column: "updated_at",
		Value:  "2099-01-01 00:00:00",
	})
	require.NoError(t, err)
	assert.Zero(t, snap.RowCount())
	assert.Equal(t, []string{"id", "subject", "status", "updated_at"}, snap.Columns)
}

func TestDBReader_FetchRows_InvalidTableName(t *testing.T) {
	reader := NewDBReader(openTestDB(t), "")

	_, err := reader.FetchRows(context.Background(), "tickets; DROP TABLE tickets", nil)
	require.Error(t, err)
	var validationErr *domain.ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestDBReader_FetchRows_InvalidWatermarkColumn(t *testing.T) {
	reader := NewDBReader(openTestDB(t), "")

	_, err := reader.FetchRows(context.Background(), "tickets", &domain.Watermark{
		Column: "updated_at OR 1=1",
		Value:  "x",
	})
	require.Error(t, err)
	var validationErr *domain.ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestDBReader_FetchRows_MissingTable(t *testing.T) {
	reader := NewDBReader(openTestDB(t), "")

	_, err := reader.FetchRows(context.Background(), "nonexistent", nil)
	require.Error(t, err)
	var sourceErr *domain.SourceUnavailableError
	assert.ErrorAs(t, err, &sourceErr)
}
