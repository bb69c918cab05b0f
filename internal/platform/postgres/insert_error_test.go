package postgres

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/phrazzld/runq/internal/queue"
	"github.com/phrazzld/runq/internal/store"
	"github.com/stretchr/testify/assert"
)

func TestInsertError(t *testing.T) {
	t.Parallel()

	rec := queue.Record{ID: 7, Kind: "transfer"}

	tests := []struct {
		name     string
		err      error
		contains string
		sentinel error
	}{
		{
			name:     "repeated id",
			err:      &pgconn.PgError{Code: uniqueViolationCode, ConstraintName: "queue_items_queue_id_key"},
			contains: "record 7 at position 2 repeats an id",
			sentinel: store.ErrDuplicate,
		},
		{
			name:     "negative id",
			err:      &pgconn.PgError{Code: checkViolationCode, ConstraintName: "queue_items_id_check"},
			contains: "record 7 at position 2 has a negative id",
			sentinel: store.ErrInvalidEntity,
		},
		{
			name:     "other failure",
			err:      errors.New("connection reset"),
			contains: "failed to insert record 7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := insertError(rec, 2, tt.err)
			assert.Contains(t, err.Error(), tt.contains)
			if tt.sentinel != nil {
				assert.ErrorIs(t, err, tt.sentinel)
			}
		})
	}
}
