package queue

import "errors"

var (
	// ErrInvalidArgument is returned for items with a negative id or bad options.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrIndexOutOfRange is returned when a position is outside the queue.
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrDisposed is returned by mutations after Release.
	ErrDisposed = errors.New("queue has been released")

	// ErrNotFound is returned when no item carries the requested id.
	ErrNotFound = errors.New("item not found")

	// ErrEmpty is returned by poll and peek operations on an empty queue.
	ErrEmpty = errors.New("queue is empty")
)
