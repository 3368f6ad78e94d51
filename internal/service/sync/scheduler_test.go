package sync

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crmsync/internal/domain"
	"crmsync/internal/remote"
	"crmsync/internal/testutil"
)

func TestScheduler_Start_InvalidSchedule(t *testing.T) {
	engine := newTestEngine(remote.NewMemoryStore(), staticSource(&domain.Snapshot{}), nil)
	s := NewScheduler(engine, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	err := s.Start("not a cron expression")
	require.Error(t, err)
	var validationErr *domain.ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestScheduler_StartStop(t *testing.T) {
	engine := newTestEngine(remote.NewMemoryStore(), staticSource(&domain.Snapshot{}), nil)
	s := NewScheduler(engine, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.NoError(t, s.Start("*/10 * * * *"))
	s.Stop()
}

func TestScheduler_RunSyncsAllTables(t *testing.T) {
	store := remote.NewMemoryStore()
	source := staticSource(&domain.Snapshot{
		Columns: []string{"id", "name"},
		Rows:    []domain.Row{{"id": "1", "name": "Acme"}},
	})
	recorder := &testutil.InvalidationRecorder{}
	engine := newTestEngine(store, source, recorder)

	descriptors := []domain.TableDescriptor{
		{Name: "companies", PrimaryKey: "id"},
		{Name: "cities", PrimaryKey: "id"},
	}
	s := NewScheduler(engine, descriptors, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.run()

	assert.True(t, recorder.Has("companies"))
	assert.True(t, recorder.Has("cities"))
}
