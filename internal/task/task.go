package task

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// TaskStatus represents the current state of a task
type TaskStatus string

// Possible task status values
const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusFinished  TaskStatus = "finished"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// IsTerminal reports whether no further transitions are possible.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusFinished || s == TaskStatusCancelled
}

// Work is the body of a task. It should check t.IsCancelled() or ctx.Done()
// at safe points and return early once cancelled.
type Work func(ctx context.Context, t *Task) (any, error)

// Origin is the collection a task's descriptor was taken from.
type Origin interface {
	Contains(id int) bool
}

// Result is the outcome of one execution, keyed by descriptor id.
type Result struct {
	ID    int
	Value any
	Err   error
}

// Option configures a Task.
type Option func(*Task)

// WithPreExecute registers a hook that runs on the dispatcher before the body.
func WithPreExecute(fn func(*Task)) Option {
	return func(t *Task) {
		t.pre = fn
	}
}

// WithPostExecute registers a hook that runs on the dispatcher after the body,
// including when the task was cancelled before it ran.
func WithPostExecute(fn func(*Task, Result)) Option {
	return func(t *Task) {
		t.post = fn
	}
}

// WithOrigin records the collection the descriptor belongs to. The default
// validator only re-adds tasks whose origin still holds their id.
func WithOrigin(origin Origin) Option {
	return func(t *Task) {
		t.origin = origin
	}
}

// Task is a single-use execution of Work over a Descriptor.
type Task struct {
	desc   *Descriptor
	work   Work
	pre    func(*Task)
	post   func(*Task, Result)
	origin Origin

	mu        sync.Mutex
	status    TaskStatus
	submitted bool
	result    Result
	hasResult bool
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}

	progress atomic.Int32
}

// New creates a pending task.
func New(desc *Descriptor, work Work, opts ...Option) (*Task, error) {
	if desc == nil {
		return nil, fmt.Errorf("%w: descriptor is nil", ErrInvalidArgument)
	}
	if work == nil {
		return nil, fmt.Errorf("%w: work is nil", ErrInvalidArgument)
	}

	t := &Task{
		desc:   desc,
		work:   work,
		status: TaskStatusPending,
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Descriptor returns the task's descriptor.
func (t *Task) Descriptor() *Descriptor {
	return t.desc
}

// ID returns the descriptor id.
func (t *Task) ID() int {
	return t.desc.ID()
}

// Name returns the descriptor name.
func (t *Task) Name() string {
	return t.desc.Name()
}

// IsCancelled reports whether the descriptor has been cancelled.
func (t *Task) IsCancelled() bool {
	return t.desc.IsCancelled()
}

// Origin returns the collection set with WithOrigin, or nil.
func (t *Task) Origin() Origin {
	return t.origin
}

// Status returns the current status.
func (t *Task) Status() TaskStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Result returns the execution result once the task has reached a terminal state.
func (t *Task) Result() (Result, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result, t.hasResult
}

// Done is closed after the post-execute hook has returned.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// SetProgress records progress as a percentage, clamped to 0..100.
func (t *Task) SetProgress(progress int) {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	t.progress.Store(int32(progress))
}

// Progress returns the last recorded percentage.
func (t *Task) Progress() int {
	return int(t.progress.Load())
}

// Clone returns a fresh pending task over the same descriptor, work, hooks and origin.
func (t *Task) Clone() *Task {
	return &Task{
		desc:   t.desc,
		work:   t.work,
		pre:    t.pre,
		post:   t.post,
		origin: t.origin,
		status: TaskStatusPending,
		done:   make(chan struct{}),
	}
}

func (t *Task) String() string {
	return fmt.Sprintf("task %s [%s]", t.desc, t.Status())
}

// setStatus moves the task to a new status if the transition is valid.
func (t *Task) setStatus(status TaskStatus) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !isValidTransition(t.status, status) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, t.status, status)
	}
	t.status = status
	return nil
}

// isValidTransition must be called with the task lock held.
func isValidTransition(from, to TaskStatus) bool {
	switch from {
	case TaskStatusPending:
		return to == TaskStatusRunning || to == TaskStatusCancelled
	case TaskStatusRunning:
		return to == TaskStatusFinished || to == TaskStatusCancelled
	default:
		return false
	}
}

// markSubmitted claims the task for one executor and binds its context.
func (t *Task) markSubmitted() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status.IsTerminal() {
		return ErrAlreadyFinished
	}
	if t.submitted || t.status == TaskStatusRunning {
		return ErrAlreadyRunning
	}
	t.submitted = true
	t.ctx, t.cancel = context.WithCancel(context.Background())
	return nil
}

// unmarkSubmitted reverts markSubmitted when the executor refused the task.
func (t *Task) unmarkSubmitted() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}
	t.submitted = false
	t.ctx, t.cancel = nil, nil
}

func (t *Task) workContext() context.Context {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ctx == nil {
		return context.Background()
	}
	return t.ctx
}

// cancelWork sets the descriptor flag and cancels the task context.
// It reports whether this call performed the flag transition.
func (t *Task) cancelWork() bool {
	changed := t.desc.Cancel()

	t.mu.Lock()
	cancel := t.cancel
	t.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return changed
}

// complete records the terminal status and result. The task must be running
// or, for work that never started, pending.
func (t *Task) complete(status TaskStatus, result Result) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !isValidTransition(t.status, status) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, t.status, status)
	}
	t.status = status
	t.result = result
	t.hasResult = true
	return nil
}

// release cancels the task context and closes Done.
func (t *Task) release() {
	t.mu.Lock()
	cancel := t.cancel
	t.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	close(t.done)
}
