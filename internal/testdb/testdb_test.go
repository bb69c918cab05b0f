package testdb

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLite_IsMigrated(t *testing.T) {
	db := SQLite(t)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM queue_items`).Scan(&count))
	assert.Zero(t, count)
}

func TestWithTx_RollsBack(t *testing.T) {
	db := SQLite(t)
	name := QueueName(t)

	WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
		_, err := tx.ExecContext(context.Background(),
			`INSERT INTO queue_items (queue, position, id, name, kind, payload) VALUES (?, 0, 1, '', 'upload', '{}')`, name)
		require.NoError(t, err)
	})

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM queue_items WHERE queue = ?`, name).Scan(&count))
	assert.Zero(t, count)
}

func TestQueueName_IsUnique(t *testing.T) {
	assert.NotEqual(t, QueueName(t), QueueName(t))
}
