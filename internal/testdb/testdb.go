package testdb

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/runq/internal/ciutil"
	"github.com/phrazzld/runq/internal/platform/logger"
	"github.com/phrazzld/runq/internal/platform/postgres"
	"github.com/phrazzld/runq/internal/platform/sqlite"
)

const openTimeout = 15 * time.Second

// SQLite opens a migrated database file in t's temp dir. It is closed on
// cleanup.
func SQLite(t *testing.T) *sql.DB {
	t.Helper()
	log, _ := logger.GetTestLogger(t)

	ctx, cancel := context.WithTimeout(context.Background(), openTimeout)
	defer cancel()

	db, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "runq.db"), log)
	if err != nil {
		t.Fatalf("failed to open sqlite test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// ShouldSkipPostgres reports whether postgres tests have no database to run
// against.
func ShouldSkipPostgres() bool {
	return ciutil.TestDatabaseURL(nil) == ""
}

// Postgres opens and migrates the postgres database named by the test
// database URL. It is closed on cleanup.
func Postgres(t *testing.T) *sql.DB {
	t.Helper()
	log, _ := logger.GetTestLogger(t)

	url := ciutil.TestDatabaseURL(log)
	if url == "" {
		if ciutil.IsCI() {
			t.Fatalf("%s must be set in CI", ciutil.EnvTestDatabaseURL)
		}
		t.Skipf("%s not set", ciutil.EnvTestDatabaseURL)
	}

	ctx, cancel := context.WithTimeout(context.Background(), openTimeout)
	defer cancel()

	db, err := postgres.Open(ctx, url, log)
	if err != nil {
		t.Fatalf("failed to open postgres test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// QueueName returns a queue name unique to this test run so that tests can
// share a database without seeing each other's rows.
func QueueName(t *testing.T) string {
	t.Helper()
	return "test-" + uuid.NewString()
}

// WithTx runs fn in a transaction that is always rolled back.
func WithTx(t *testing.T, db *sql.DB, fn func(t *testing.T, tx *sql.Tx)) {
	t.Helper()

	tx, err := db.BeginTx(context.Background(), nil)
	if err != nil {
		t.Fatalf("failed to begin transaction: %v", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			t.Logf("failed to roll back test transaction: %v", err)
		}
	}()

	fn(t, tx)
}
