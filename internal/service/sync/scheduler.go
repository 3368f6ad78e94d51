package sync

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"

	"crmsync/internal/domain"
)

// Scheduler runs unattended refresh passes on a cron schedule. The on-demand
// refresh endpoint and the CLI call the engine directly; the scheduler only
// adds the periodic trigger.
type Scheduler struct {
	cron        *cron.Cron
	engine      *Engine
	descriptors []domain.TableDescriptor
	logger      *slog.Logger
}

// NewScheduler creates a scheduler over the given engine and table set.
func NewScheduler(engine *Engine, descriptors []domain.TableDescriptor, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:        cron.New(),
		engine:      engine,
		descriptors: descriptors,
		logger:      logger,
	}
}

// Start registers the schedule and starts the cron loop. The schedule uses
// the standard five-field cron syntax.
func (s *Scheduler) Start(schedule string) error {
	_, err := s.cron.AddFunc(schedule, s.run)
	if err != nil {
		return domain.ErrValidation("invalid sync schedule %q: %v", schedule, err)
	}
	s.cron.Start()
	s.logger.Info("sync scheduler started", "schedule", schedule, "tables", len(s.descriptors))
	return nil
}

// Stop gracefully stops the cron loop.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.logger.Info("sync scheduler stopped")
}

func (s *Scheduler) run() {
	results := s.engine.SyncAll(context.Background(), s.descriptors)

	var written, failed int
	for _, r := range results {
		if r.Failed() {
			failed++
			s.logger.Warn("scheduled sync failed for table", "table", r.TableName, "error", r.Err)
			continue
		}
		written += r.RowsWritten
	}
	s.logger.Info("scheduled sync pass finished",
		"tables", len(results),
		"rows_written", written,
		"failed", failed,
	)
}
