// Package app provides application-level wiring for the sync service.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"crmsync/internal/config"
	"crmsync/internal/domain"
	"crmsync/internal/remote"
	"crmsync/internal/service/cache"
	syncsvc "crmsync/internal/service/sync"
	"crmsync/internal/source"
)

// Deps holds the external dependencies that main() must provide: config,
// the opened source database handle, and the logger.
type Deps struct {
	Cfg      *config.Config
	SourceDB *sql.DB
	Logger   *slog.Logger
}

// App holds the fully-wired application.
type App struct {
	Store       domain.RemoteStore
	Engine      *syncsvc.Engine
	Tables      *cache.TableCache
	Mappings    *cache.MappingCache
	Descriptors []domain.TableDescriptor
	Scheduler   *syncsvc.Scheduler // nil when no SYNC_SCHEDULE is configured
}

// New wires the remote store, source reader, caches, engine, and optional
// scheduler from the provided deps.
func New(ctx context.Context, deps Deps) (*App, error) {
	cfg := deps.Cfg

	store, err := newRemoteStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create remote store: %w", err)
	}

	descriptors, err := cfg.LoadDescriptors()
	if err != nil {
		return nil, fmt.Errorf("load table descriptors: %w", err)
	}

	reader := source.NewDBReader(deps.SourceDB, cfg.SourceSchema)
	tables := cache.New(store, cfg.CacheTTL, deps.Logger.With("component", "cache"))
	mappings := cache.NewMappingCache(tables)

	engine := syncsvc.NewEngine(store, reader, tables, deps.Logger.With("component", "sync"))
	engine.Parallelism = cfg.SyncParallelism

	app := &App{
		Store:       store,
		Engine:      engine,
		Tables:      tables,
		Mappings:    mappings,
		Descriptors: descriptors,
	}
	if cfg.SyncSchedule != "" {
		app.Scheduler = syncsvc.NewScheduler(engine, descriptors, deps.Logger.With("component", "scheduler"))
	}
	return app, nil
}

// newRemoteStore builds the configured remote store backend.
func newRemoteStore(ctx context.Context, cfg *config.Config) (domain.RemoteStore, error) {
	switch cfg.RemoteBackend {
	case config.BackendMemory:
		return remote.NewMemoryStore(), nil
	case config.BackendDrive:
		return remote.NewDriveStore(ctx, cfg.Drive.CredentialsFile, cfg.Drive.FolderID)
	case config.BackendS3:
		return remote.NewS3Store(remote.S3Options{
			KeyID:    cfg.S3.KeyID,
			Secret:   cfg.S3.Secret,
			Endpoint: cfg.S3.Endpoint,
			Region:   cfg.S3.Region,
			Bucket:   cfg.S3.Bucket,
			Prefix:   cfg.S3.Prefix,
		})
	case config.BackendAzure:
		return remote.NewAzureStore(remote.AzureOptions{
			AccountName: cfg.Azure.AccountName,
			AccountKey:  cfg.Azure.AccountKey,
			Container:   cfg.Azure.Container,
		})
	default:
		return nil, fmt.Errorf("unknown remote backend %q", cfg.RemoteBackend)
	}
}
