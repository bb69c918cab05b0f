package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/runq/internal/api/shared"
	"github.com/phrazzld/runq/internal/auth"
	"github.com/phrazzld/runq/internal/task"
	"github.com/phrazzld/runq/internal/transfer"
)

// errInvalidID is returned for path ids that are not non-negative integers.
var errInvalidID = errors.New("invalid transfer id")

// MapErrorToStatusCode maps service errors to HTTP status codes.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrWrongTokenType),
		errors.Is(err, auth.ErrMissingToken):
		return http.StatusUnauthorized

	case errors.Is(err, transfer.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, transfer.ErrInvalidRequest),
		errors.Is(err, task.ErrInvalidArgument),
		errors.Is(err, errInvalidID):
		return http.StatusBadRequest

	case errors.Is(err, task.ErrAlreadyRunning),
		errors.Is(err, task.ErrAlreadyFinished),
		errors.Is(err, task.ErrDuplicateID):
		return http.StatusConflict

	case errors.Is(err, transfer.ErrRejected),
		errors.Is(err, task.ErrQueueFull),
		errors.Is(err, task.ErrExecutorStopped):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a client-facing message for err that never
// includes internal details.
func GetSafeErrorMessage(err error) string {
	switch {
	case err == nil:
		return "An unexpected error occurred"
	case errors.Is(err, auth.ErrExpiredToken):
		return "Token expired"
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrWrongTokenType),
		errors.Is(err, auth.ErrMissingToken):
		return "Invalid token"
	case errors.Is(err, transfer.ErrNotFound):
		return "Transfer not found"
	case errors.Is(err, errInvalidID):
		return "Invalid transfer id"
	case errors.Is(err, transfer.ErrInvalidRequest),
		errors.Is(err, task.ErrInvalidArgument):
		return "Invalid transfer request"
	case errors.Is(err, task.ErrAlreadyRunning):
		return "Transfer is already running"
	case errors.Is(err, task.ErrAlreadyFinished):
		return "Transfer has already finished"
	case errors.Is(err, task.ErrDuplicateID):
		return "Transfer id is in use"
	case errors.Is(err, transfer.ErrRejected),
		errors.Is(err, task.ErrQueueFull):
		return "Transfer queue is full"
	case errors.Is(err, task.ErrExecutorStopped):
		return "Service is shutting down"
	default:
		return "An unexpected error occurred"
	}
}

// HandleAPIError writes the response for err. A non-empty message replaces
// the default safe message.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, message string) {
	status := MapErrorToStatusCode(err)
	if message == "" {
		message = GetSafeErrorMessage(err)
	}
	shared.RespondWithErrorAndLog(w, r, status, message, err)
}

// SanitizeValidationError turns validator errors into a message naming the
// offending field and rule.
func SanitizeValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Validation error"
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s: %s", strings.ToLower(fe.Field()), validationTagMessage(fe.Tag())))
	}
	return "Invalid request: " + strings.Join(parts, ", ")
}

func validationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "url":
		return "invalid url"
	case "max":
		return "too long"
	case "oneof":
		return "invalid value"
	default:
		return "validation failed"
	}
}
