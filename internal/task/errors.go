package task

import (
	"errors"
	"fmt"
)

// Argument errors are returned immediately at the call boundary and are never retried.
var (
	ErrInvalidArgument = errors.New("invalid argument")
)

// State errors are fatal to the call; the caller must not retry with the same object.
var (
	ErrAlreadyRunning    = errors.New("task already submitted or running")
	ErrAlreadyFinished   = errors.New("task already finished")
	ErrDuplicateID       = errors.New("another active task has the same id")
	ErrExecutorStopped   = errors.New("executor is stopped")
	ErrQueueFull         = errors.New("executor queue is full")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// PanicError is the ExecutionFailure produced when a work body panics.
type PanicError struct {
	TaskID int
	Value  any
	Stack  []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task %d panicked: %v", e.TaskID, e.Value)
}

// Unwrap exposes the panic value when it was itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
