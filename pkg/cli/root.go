// Package cli implements the crmsync command-line interface: one-shot sync
// passes and snapshot/mapping inspection against the configured backends.
package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	_ "github.com/mattn/go-sqlite3"

	"crmsync/internal/app"
	"crmsync/internal/config"
)

// Execute runs the CLI.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "crmsync",
		Short:         "CRM table sync CLI",
		Long:          "Mirrors CRM tables from the source database into the remote file store and inspects the synced copies.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(newSyncCmd())
	rootCmd.AddCommand(newTablesCmd())
	rootCmd.AddCommand(newMappingCmd())
	return rootCmd
}

// buildApp loads configuration and wires the application for one command
// invocation. The returned cleanup closes the source database.
func buildApp(ctx context.Context) (*app.App, func(), error) {
	if err := config.LoadDotEnv(".env"); err != nil {
		return nil, nil, err
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, nil, err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}

	sourceDB, err := sql.Open(cfg.SourceDriver, cfg.SourceDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open source database: %w", err)
	}

	application, err := app.New(ctx, app.Deps{Cfg: cfg, SourceDB: sourceDB, Logger: logger})
	if err != nil {
		_ = sourceDB.Close()
		return nil, nil, err
	}
	cleanup := func() { _ = sourceDB.Close() }
	return application, cleanup, nil
}
