// Package sqlite stores queue snapshots in an embedded SQLite database using
// the pure Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/runq/internal/queue"
	"github.com/phrazzld/runq/internal/store"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Open opens the database file at path, migrates it and limits the pool to a
// single connection, which serialises writers.
func Open(ctx context.Context, path string, logger *slog.Logger) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: database path cannot be empty", store.ErrInvalidEntity)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := Migrate(ctx, db, logger); err != nil {
		_ = db.Close()
		return nil, err
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return db, nil
}

// Backend implements queue.Backend for one named queue. Several backends may
// share a database as long as their queue names differ.
type Backend struct {
	db     *sql.DB
	queue  string
	logger *slog.Logger
}

var _ queue.Backend = (*Backend)(nil)

// NewBackend returns a backend storing the rows of queueName in db. The
// schema must already be migrated.
func NewBackend(db *sql.DB, queueName string, logger *slog.Logger) (*Backend, error) {
	if db == nil {
		return nil, errors.New("db cannot be nil")
	}
	if queueName == "" {
		return nil, errors.New("queue name cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		db:     db,
		queue:  queueName,
		logger: logger.With("component", "sqlite_backend", "queue", queueName),
	}, nil
}

// Write replaces the stored rows of the queue with records in one
// transaction.
func (b *Backend) Write(ctx context.Context, records []queue.Record) error {
	err := store.RunInTransaction(ctx, b.db, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM queue_items WHERE queue = ?`, b.queue); err != nil {
			return mapError(err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO queue_items (queue, position, id, name, kind, payload)
			VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return mapError(err)
		}
		defer func() { _ = stmt.Close() }()

		for i, rec := range records {
			var payload sql.NullString
			if len(rec.Payload) > 0 {
				payload = sql.NullString{String: string(rec.Payload), Valid: true}
			}
			if _, err := stmt.ExecContext(ctx, b.queue, i, rec.ID, rec.Name, rec.Kind, payload); err != nil {
				return fmt.Errorf("failed to insert record %d: %w", rec.ID, mapError(err))
			}
		}
		return nil
	})
	if err != nil {
		return store.NewStoreError("queue_items", "write", "replace queue "+b.queue, err)
	}

	b.logger.Debug("snapshot written", "records", len(records))
	return nil
}

// ReadAll returns the queue's rows in position order.
func (b *Backend) ReadAll(ctx context.Context) ([]queue.Record, error) {
	rows, err := b.db.QueryContext(ctx, `
		SELECT id, name, kind, payload
		FROM queue_items
		WHERE queue = ?
		ORDER BY position`, b.queue)
	if err != nil {
		return nil, store.NewStoreError("queue_items", "read", "load queue "+b.queue, mapError(err))
	}
	defer func() { _ = rows.Close() }()

	var records []queue.Record
	for rows.Next() {
		var (
			rec     queue.Record
			payload sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Kind, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan queue item: %w", err)
		}
		if payload.Valid {
			rec.Payload = []byte(payload.String)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return records, nil
}

// mapError translates SQLite constraint failures into store errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %v", store.ErrNotFound, err)
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%w: %v", store.ErrDuplicate, err)
		case sqlite3.SQLITE_CONSTRAINT_CHECK, sqlite3.SQLITE_CONSTRAINT_NOTNULL:
			return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
		}
	}
	return err
}
