package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/phrazzld/runq/internal/config"
	"github.com/phrazzld/runq/internal/platform/filestore"
	"github.com/phrazzld/runq/internal/platform/postgres"
	"github.com/phrazzld/runq/internal/platform/sqlite"
	"github.com/phrazzld/runq/internal/queue"
)

// openBackend builds the queue backend selected by cfg. Database backends
// are migrated before use; the returned *sql.DB is nil for the others and
// must be closed by the caller otherwise.
func openBackend(ctx context.Context, cfg config.QueueConfig, log *slog.Logger) (queue.Backend, *sql.DB, error) {
	switch cfg.Backend {
	case "memory":
		return nil, nil, nil

	case "file":
		b, err := filestore.New(cfg.FilePath, log)
		if err != nil {
			return nil, nil, err
		}
		return b, nil, nil

	case "sqlite":
		db, err := sqlite.Open(ctx, cfg.SQLitePath, log)
		if err != nil {
			return nil, nil, err
		}
		b, err := sqlite.NewBackend(db, cfg.Name, log)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return b, db, nil

	case "postgres":
		db, err := postgres.Open(ctx, cfg.DatabaseURL, log)
		if err != nil {
			return nil, nil, err
		}
		b, err := postgres.NewBackend(db, cfg.Name, log)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return b, db, nil

	default:
		return nil, nil, fmt.Errorf("unknown queue backend %q", cfg.Backend)
	}
}
