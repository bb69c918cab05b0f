package postgres_test

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/phrazzld/runq/internal/platform/postgres"
	"github.com/phrazzld/runq/internal/store"
	"github.com/stretchr/testify/assert"
)

func newPgError(code string) *pgconn.PgError {
	return &pgconn.PgError{
		Code:           code,
		Message:        "error message",
		TableName:      "queue_items",
		ColumnName:     "kind",
		ConstraintName: "queue_items_queue_id_key",
	}
}

func TestMapError(t *testing.T) {
	t.Parallel()

	genericErr := errors.New("connection reset")

	tests := []struct {
		name       string
		err        error
		wantTarget error
		wantSame   bool
	}{
		{name: "nil error", err: nil},
		{name: "no rows", err: sql.ErrNoRows, wantTarget: store.ErrNotFound},
		{name: "unique violation", err: newPgError("23505"), wantTarget: store.ErrDuplicate},
		{name: "check violation", err: newPgError("23514"), wantTarget: store.ErrInvalidEntity},
		{name: "not null violation", err: newPgError("23502"), wantTarget: store.ErrInvalidEntity},
		{
			name:       "wrapped unique violation",
			err:        fmt.Errorf("insert: %w", newPgError("23505")),
			wantTarget: store.ErrDuplicate,
		},
		{name: "unmapped postgres code", err: newPgError("40001"), wantSame: true},
		{name: "generic error", err: genericErr, wantSame: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := postgres.MapError(tc.err)
			switch {
			case tc.err == nil:
				assert.NoError(t, got)
			case tc.wantSame:
				assert.Equal(t, tc.err, got)
			default:
				assert.ErrorIs(t, got, tc.wantTarget)
				assert.Contains(t, got.Error(), tc.err.Error(), "original error is kept in the message")
			}
		})
	}
}

func TestViolationPredicates(t *testing.T) {
	t.Parallel()

	assert.True(t, postgres.IsUniqueViolation(newPgError("23505")))
	assert.True(t, postgres.IsUniqueViolation(fmt.Errorf("wrapped: %w", newPgError("23505"))))
	assert.False(t, postgres.IsUniqueViolation(newPgError("23514")))
	assert.False(t, postgres.IsUniqueViolation(nil))

	assert.True(t, postgres.IsCheckConstraintViolation(newPgError("23514")))
	assert.False(t, postgres.IsCheckConstraintViolation(errors.New("generic")))
}
