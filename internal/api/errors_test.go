package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/phrazzld/runq/internal/auth"
	"github.com/phrazzld/runq/internal/task"
	"github.com/phrazzld/runq/internal/transfer"
	"github.com/stretchr/testify/assert"
)

func TestMapErrorToStatusCode(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
	}{
		{"nil error", nil, http.StatusInternalServerError},
		{"invalid token", auth.ErrInvalidToken, http.StatusUnauthorized},
		{"wrapped expired token", fmt.Errorf("auth: %w", auth.ErrExpiredToken), http.StatusUnauthorized},
		{"not found", transfer.ErrNotFound, http.StatusNotFound},
		{"wrapped not found", fmt.Errorf("%w: 7", transfer.ErrNotFound), http.StatusNotFound},
		{"invalid request", transfer.ErrInvalidRequest, http.StatusBadRequest},
		{"invalid argument", task.ErrInvalidArgument, http.StatusBadRequest},
		{"invalid path id", errInvalidID, http.StatusBadRequest},
		{"already running", task.ErrAlreadyRunning, http.StatusConflict},
		{"already finished", task.ErrAlreadyFinished, http.StatusConflict},
		{"duplicate id", task.ErrDuplicateID, http.StatusConflict},
		{"rejected", transfer.ErrRejected, http.StatusServiceUnavailable},
		{"executor queue full", task.ErrQueueFull, http.StatusServiceUnavailable},
		{"executor stopped", task.ErrExecutorStopped, http.StatusServiceUnavailable},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expectedStatus, MapErrorToStatusCode(tt.err))
		})
	}
}

func TestGetSafeErrorMessage(t *testing.T) {
	tests := []struct {
		name            string
		err             error
		expectedMessage string
	}{
		{"nil error", nil, "An unexpected error occurred"},
		{"expired token", auth.ErrExpiredToken, "Token expired"},
		{"wrong token type", auth.ErrWrongTokenType, "Invalid token"},
		{"not found", fmt.Errorf("%w: 3", transfer.ErrNotFound), "Transfer not found"},
		{"already running", task.ErrAlreadyRunning, "Transfer is already running"},
		{"queue full", transfer.ErrRejected, "Transfer queue is full"},
		{"stopping", task.ErrExecutorStopped, "Service is shutting down"},
		{
			"internal details are hidden",
			fmt.Errorf("write /var/lib/runq/queue.jsonl: %w", errors.New("no space left on device")),
			"An unexpected error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expectedMessage, GetSafeErrorMessage(tt.err))
		})
	}
}

func TestSanitizeValidationError(t *testing.T) {
	t.Run("validator errors name the fields", func(t *testing.T) {
		req := CreateTransferRequest{Direction: "sideways", URL: "not a url"}
		err := validateForTest(req)

		msg := SanitizeValidationError(err)
		assert.Contains(t, msg, "direction: invalid value")
		assert.Contains(t, msg, "file: required field")
		assert.Contains(t, msg, "url: invalid url")
	})

	t.Run("other errors get a generic message", func(t *testing.T) {
		assert.Equal(t, "Validation error", SanitizeValidationError(errors.New("boom")))
	})
}
