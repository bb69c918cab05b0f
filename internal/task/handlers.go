package task

import (
	"context"

	"github.com/phrazzld/runq/internal/dispatch"
)

// Validator decides after every execution whether the task should run again.
type Validator interface {
	NeedToReAdd(t *Task, err error) bool
}

// ValidatorFunc adapts a function to the Validator interface.
type ValidatorFunc func(t *Task, err error) bool

// NeedToReAdd implements Validator.
func (f ValidatorFunc) NeedToReAdd(t *Task, err error) bool {
	return f(t, err)
}

// DefaultValidator re-adds a task only when it succeeded, was not cancelled
// and its origin still holds its id.
type DefaultValidator struct{}

// NeedToReAdd implements Validator.
func (DefaultValidator) NeedToReAdd(t *Task, err error) bool {
	if err != nil || t.IsCancelled() {
		return false
	}
	origin := t.Origin()
	return origin != nil && origin.Contains(t.ID())
}

// ExceptionHandler receives panics recovered from work bodies. The dispatcher
// is the executor's callback context.
type ExceptionHandler interface {
	HandleException(d dispatch.Dispatcher, t *Task, perr *PanicError)
}

// HandlerFunc adapts a function to the ExceptionHandler interface.
type HandlerFunc func(d dispatch.Dispatcher, t *Task, perr *PanicError)

// HandleException implements ExceptionHandler.
func (f HandlerFunc) HandleException(d dispatch.Dispatcher, t *Task, perr *PanicError) {
	f(d, t, perr)
}

// FailFast re-raises the panic on the dispatcher so that it surfaces on the
// callback goroutine.
type FailFast struct{}

// HandleException implements ExceptionHandler.
func (FailFast) HandleException(d dispatch.Dispatcher, _ *Task, perr *PanicError) {
	d.Post(func() {
		panic(perr)
	})
}

// LogOnly leaves the failure in the log and in the task result.
type LogOnly struct{}

// HandleException implements ExceptionHandler.
func (LogOnly) HandleException(dispatch.Dispatcher, *Task, *PanicError) {}

// Restorer turns persisted descriptors back into tasks when the executor starts.
type Restorer interface {
	// Pending returns the descriptors of work that had not completed.
	Pending(ctx context.Context) ([]*Descriptor, error)

	// Restore builds a runnable task for a persisted descriptor.
	Restore(desc *Descriptor) (*Task, error)

	// Abandon is called when a task returned by Restore could not be
	// submitted, so the restorer can undo whatever Restore recorded.
	Abandon(desc *Descriptor, err error)
}
