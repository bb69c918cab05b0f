package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/phrazzld/runq/internal/queue"
	"github.com/phrazzld/runq/internal/store"
)

// Open connects to the database at url, verifies the connection and applies
// migrations.
func Open(ctx context.Context, url string, logger *slog.Logger) (*sql.DB, error) {
	if url == "" {
		return nil, fmt.Errorf("%w: database URL cannot be empty", store.ErrInvalidEntity)
	}

	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := Migrate(ctx, db, logger); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Backend implements queue.Backend for one named queue.
type Backend struct {
	db     *sql.DB
	queue  string
	logger *slog.Logger
}

var _ queue.Backend = (*Backend)(nil)

// NewBackend returns a backend storing the rows of queueName in db.
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
		logger: logger.With("component", "postgres_backend", "queue", queueName),
	}, nil
}

// Write replaces the stored rows of the queue with records in one
// transaction.
func (b *Backend) Write(ctx context.Context, records []queue.Record) error {
	err := store.RunInTransaction(ctx, b.db, func(ctx context.Context, tx *sql.Tx) error {
		return replaceRows(ctx, tx, b.queue, records)
	})
	if err != nil {
		return store.NewStoreError("queue_items", "write", "replace queue "+b.queue, err)
	}

	b.logger.Debug("snapshot written", "records", len(records))
	return nil
}

func replaceRows(ctx context.Context, db store.DBTX, queueName string, records []queue.Record) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM queue_items WHERE queue = $1`, queueName); err != nil {
		return MapError(err)
	}

	stmt, err := db.PrepareContext(ctx, `
		INSERT INTO queue_items (queue, position, id, name, kind, payload)
		VALUES ($1, $2, $3, $4, $5, $6)`)
	if err != nil {
		return MapError(err)
	}
	defer func() { _ = stmt.Close() }()

	for i, rec := range records {
		var payload sql.NullString
		if len(rec.Payload) > 0 {
			payload = sql.NullString{String: string(rec.Payload), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, queueName, i, rec.ID, rec.Name, rec.Kind, payload); err != nil {
			return insertError(rec, i, err)
		}
	}
	return nil
}

// insertError names the offending record. Constraint violations mean the
// snapshot itself is invalid, so retrying the same write cannot succeed.
func insertError(rec queue.Record, pos int, err error) error {
	switch {
	case IsUniqueViolation(err):
		return fmt.Errorf("record %d at position %d repeats an id in the snapshot: %w", rec.ID, pos, MapError(err))
	case IsCheckConstraintViolation(err):
		return fmt.Errorf("record %d at position %d has a negative id: %w", rec.ID, pos, MapError(err))
	default:
		return fmt.Errorf("failed to insert record %d: %w", rec.ID, MapError(err))
	}
}

// ReadAll returns the queue's rows in position order.
func (b *Backend) ReadAll(ctx context.Context) ([]queue.Record, error) {
	rows, err := b.db.QueryContext(ctx, `
		SELECT id, name, kind, payload
		FROM queue_items
		WHERE queue = $1
		ORDER BY position`, b.queue)
	if err != nil {
		return nil, store.NewStoreError("queue_items", "read", "load queue "+b.queue, MapError(err))
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
		return nil, MapError(err)
	}
	return records, nil
}
