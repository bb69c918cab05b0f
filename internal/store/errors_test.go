package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorPredicates(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		isNotFound  bool
		isDuplicate bool
	}{
		{name: "nil error"},
		{name: "generic error", err: errors.New("some error")},
		{name: "ErrNotFound", err: ErrNotFound, isNotFound: true},
		{name: "wrapped ErrNotFound", err: fmt.Errorf("read queue: %w", ErrNotFound), isNotFound: true},
		{name: "ErrDuplicate", err: ErrDuplicate, isDuplicate: true},
		{name: "wrapped ErrDuplicate", err: fmt.Errorf("write queue: %w", ErrDuplicate), isDuplicate: true},
		{name: "ErrInvalidEntity", err: ErrInvalidEntity},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.isNotFound, IsNotFoundError(tc.err))
			assert.Equal(t, tc.isDuplicate, IsDuplicateError(tc.err))
		})
	}
}

func TestStoreError(t *testing.T) {
	t.Run("with wrapped error", func(t *testing.T) {
		err := NewStoreError("queue_items", "write", "replace rows", ErrDuplicate)

		assert.Equal(t, "write operation on queue_items failed: replace rows: entity already exists", err.Error())
		assert.ErrorIs(t, err, ErrDuplicate)
		assert.True(t, IsDuplicateError(err))
	})

	t.Run("without wrapped error", func(t *testing.T) {
		err := NewStoreError("queue_items", "read", "no table", nil)

		assert.Equal(t, "read operation on queue_items failed: no table", err.Error())
		assert.NoError(t, errors.Unwrap(err))
	})
}
