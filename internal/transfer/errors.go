package transfer

import "errors"

var (
	// ErrInvalidRequest is returned when a transfer request fails validation.
	ErrInvalidRequest = errors.New("invalid transfer request")

	// ErrRejected is returned when the queue refuses a new transfer, usually
	// because it is full.
	ErrRejected = errors.New("transfer rejected")

	// ErrNotFound is returned for ids that are not queued.
	ErrNotFound = errors.New("transfer not found")

	// ErrUnknownKind is returned when a persisted record has no registered decoder.
	ErrUnknownKind = errors.New("unknown transfer kind")

	// ErrRemote is returned when the remote end answers with a failure status.
	ErrRemote = errors.New("remote transfer failed")
)
