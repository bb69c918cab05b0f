package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/phrazzld/runq/internal/config"
	"github.com/phrazzld/runq/internal/platform/filestore"
	"github.com/phrazzld/runq/internal/platform/logger"
	"github.com/phrazzld/runq/internal/platform/sqlite"
	"github.com/phrazzld/runq/internal/task"
	"github.com/phrazzld/runq/internal/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server:   config.ServerConfig{Port: 0, LogLevel: "debug"},
		Executor: config.ExecutorConfig{WorkerCount: 1, QueueSize: 4, ReAddBurst: 1},
		Queue:    config.QueueConfig{Name: "transfers", Backend: "memory"},
		Auth:     config.AuthConfig{TokenLifetimeMinutes: 60},
	}
}

func TestExecutorConfig(t *testing.T) {
	t.Parallel()

	cfg := executorConfig(config.ExecutorConfig{WorkerCount: 3, QueueSize: 10, ReAddBurst: 2})
	assert.Equal(t, task.Config{WorkerCount: 3, QueueSize: 10, ReAddRate: rate.Inf, ReAddBurst: 2}, cfg)

	cfg = executorConfig(config.ExecutorConfig{ReAddPerSecond: 0.5, ReAddBurst: 1})
	assert.Equal(t, rate.Limit(0.5), cfg.ReAddRate)
}

func TestExceptionHandler(t *testing.T) {
	t.Parallel()

	assert.IsType(t, task.LogOnly{}, exceptionHandler(config.ExecutorConfig{}))
	assert.IsType(t, task.FailFast{}, exceptionHandler(config.ExecutorConfig{FailFast: true}))
}

func TestOpenBackend(t *testing.T) {
	t.Parallel()

	log, _ := logger.GetTestLogger(t)
	ctx := context.Background()
	dir := t.TempDir()

	t.Run("memory", func(t *testing.T) {
		b, db, err := openBackend(ctx, config.QueueConfig{Name: "q", Backend: "memory"}, log)
		require.NoError(t, err)
		assert.Nil(t, b)
		assert.Nil(t, db)
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(dir, "queue.jsonl")
		b, db, err := openBackend(ctx, config.QueueConfig{Name: "q", Backend: "file", FilePath: path}, log)
		require.NoError(t, err)
		assert.Nil(t, db)
		require.IsType(t, &filestore.Backend{}, b)
		assert.Equal(t, path, b.(*filestore.Backend).Path())
	})

	t.Run("sqlite", func(t *testing.T) {
		path := filepath.Join(dir, "queue.db")
		b, db, err := openBackend(ctx, config.QueueConfig{Name: "q", Backend: "sqlite", SQLitePath: path}, log)
		require.NoError(t, err)
		require.NotNil(t, db)
		t.Cleanup(func() { _ = db.Close() })
		assert.IsType(t, &sqlite.Backend{}, b)
	})

	t.Run("unknown", func(t *testing.T) {
		_, _, err := openBackend(ctx, config.QueueConfig{Name: "q", Backend: "redis"}, log)
		assert.Error(t, err)
	})
}

func TestNewApplication_AuthRequiresStrongSecret(t *testing.T) {
	t.Parallel()

	log, _ := logger.GetTestLogger(t)
	cfg := testConfig(t)
	cfg.Auth.JWTSecret = "short"

	_, err := newApplication(context.Background(), cfg, log)
	assert.Error(t, err)
}

func TestApplication_RunAndShutdown(t *testing.T) {
	t.Parallel()

	log, buf := logger.GetTestLogger(t)
	cfg := testConfig(t)
	cfg.Queue.Backend = "file"
	cfg.Queue.FilePath = filepath.Join(t.TempDir(), "queue.jsonl")

	ctx, cancel := context.WithCancel(context.Background())
	app, err := newApplication(ctx, cfg, log)
	require.NoError(t, err)

	// an upload of a missing file fails fast and stays queued for retry
	item, err := app.service.Enqueue(ctx, transfer.Request{
		Direction: transfer.DirectionUpload,
		File:      filepath.Join(t.TempDir(), "missing.bin"),
		URL:       "http://127.0.0.1:1/upload",
	})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- app.run(ctx) }()

	require.Eventually(t, func() bool {
		return app.service.Stats().Failed == 1
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("application did not shut down")
	}
	logger.AssertLogContains(t, buf, "shutdown complete")

	// the failed item survives the restart
	b, err := filestore.New(cfg.Queue.FilePath, log)
	require.NoError(t, err)
	records, err := b.ReadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, item.ID(), records[0].ID)
}
