package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/phrazzld/runq/internal/api"
	"github.com/phrazzld/runq/internal/api/middleware"
	"github.com/phrazzld/runq/internal/auth"
	"github.com/phrazzld/runq/internal/config"
	"github.com/phrazzld/runq/internal/dispatch"
	"github.com/phrazzld/runq/internal/events"
	"github.com/phrazzld/runq/internal/queue"
	"github.com/phrazzld/runq/internal/task"
	"github.com/phrazzld/runq/internal/transfer"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const shutdownTimeout = 10 * time.Second

// application holds the daemon's long-lived components.
type application struct {
	config  *config.Config
	logger  *slog.Logger
	db      *sql.DB
	loop    *dispatch.Loop
	queue   *queue.Queue[*transfer.Item]
	service *transfer.Service
	server  *http.Server
}

// newApplication wires the queue, executor, service and HTTP server.
func newApplication(ctx context.Context, cfg *config.Config, log *slog.Logger) (*application, error) {
	app := &application{
		config: cfg,
		logger: log,
		loop:   dispatch.NewLoop(0, log),
	}

	backend, db, err := openBackend(ctx, cfg.Queue, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open queue backend: %w", err)
	}
	app.db = db

	app.queue, err = queue.New(ctx, queue.Options[*transfer.Item]{
		Name:      cfg.Queue.Name,
		MaxSize:   cfg.Queue.MaxSize,
		Backend:   backend,
		Codec:     transfer.NewCodec(),
		Logger:    log,
		Listeners: []events.Listener{events.NewLoggingListener(log)},
	})
	if err != nil {
		app.closeDB()
		return nil, fmt.Errorf("failed to create queue: %w", err)
	}

	opts := []task.ExecutorOption{
		task.WithDispatcher(app.loop),
		task.WithExceptionHandler(exceptionHandler(cfg.Executor)),
	}
	app.service, err = transfer.NewService(
		app.queue,
		transfer.NewHTTPTransferer(nil, log),
		executorConfig(cfg.Executor),
		log,
		opts...,
	)
	if err != nil {
		app.closeDB()
		return nil, fmt.Errorf("failed to create transfer service: %w", err)
	}

	routerCfg := api.RouterConfig{Service: app.service, Logger: log}
	if cfg.Auth.AuthEnabled() {
		tokens, err := newTokenService(cfg.Auth)
		if err != nil {
			app.closeDB()
			return nil, err
		}
		routerCfg.Tokens = tokens
	}

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.NewRouter(routerCfg),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return app, nil
}

// run serves until ctx is cancelled or a component fails, then shuts down:
// the HTTP server first, then the transfer service, then the dispatch loop.
func (app *application) run(ctx context.Context) error {
	defer app.closeDB()

	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()
	loopDone := make(chan error, 1)
	go func() { loopDone <- app.loop.Run(loopCtx) }()

	if err := app.service.Start(ctx); err != nil {
		return fmt.Errorf("failed to start transfer service: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		app.logger.Info("starting server", "addr", app.server.Addr)
		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		app.logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := app.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})

	err := g.Wait()

	app.service.Stop()
	app.queue.Release()
	stopLoop()
	<-loopDone

	app.logger.Info("shutdown complete")
	return err
}

func (app *application) closeDB() {
	if app.db == nil {
		return
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error("failed to close database", "error", err)
	}
	app.db = nil
}

func executorConfig(cfg config.ExecutorConfig) task.Config {
	limit := rate.Inf
	if cfg.ReAddPerSecond > 0 {
		limit = rate.Limit(cfg.ReAddPerSecond)
	}
	return task.Config{
		WorkerCount: cfg.WorkerCount,
		QueueSize:   cfg.QueueSize,
		ReAddRate:   limit,
		ReAddBurst:  cfg.ReAddBurst,
	}
}

func exceptionHandler(cfg config.ExecutorConfig) task.ExceptionHandler {
	if cfg.FailFast {
		return task.FailFast{}
	}
	return task.LogOnly{}
}

func newTokenService(cfg config.AuthConfig) (middleware.TokenValidator, error) {
	tokens, err := auth.NewTokenService(cfg.JWTSecret, time.Duration(cfg.TokenLifetimeMinutes)*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("failed to create token service: %w", err)
	}
	return tokens, nil
}
