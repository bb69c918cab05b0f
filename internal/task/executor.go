package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/phrazzld/runq/internal/dispatch"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds configuration for the executor
type Config struct {
	// WorkerCount bounds how many task bodies run at once
	WorkerCount int

	// QueueSize determines the buffer size for submitted but not yet running tasks
	QueueSize int

	// ReAddRate limits how fast tasks are resubmitted by the validator
	ReAddRate rate.Limit

	// ReAddBurst is the limiter burst for re-added tasks
	ReAddBurst int
}

// DefaultConfig returns a Config with reasonable defaults
func DefaultConfig() Config {
	return Config{
		WorkerCount: 2,
		QueueSize:   100,
		ReAddRate:   rate.Inf,
		ReAddBurst:  1,
	}
}

// Stats is a point-in-time view of executor activity.
type Stats struct {
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Finished  int `json:"finished"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
	ReAdded   int `json:"readded"`
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithDispatcher sets the callback context used for hooks and exception
// handling. Defaults to dispatch.Immediate.
func WithDispatcher(d dispatch.Dispatcher) ExecutorOption {
	return func(e *Executor) {
		if d != nil {
			e.dispatcher = d
		}
	}
}

// WithValidator sets the re-add policy. Defaults to DefaultValidator.
func WithValidator(v Validator) ExecutorOption {
	return func(e *Executor) {
		if v != nil {
			e.validator = v
		}
	}
}

// WithRestorer sets the source of persisted work replayed by Start.
func WithRestorer(r Restorer) ExecutorOption {
	return func(e *Executor) {
		e.restorer = r
	}
}

// WithExceptionHandler sets the panic policy. Defaults to FailFast.
func WithExceptionHandler(h ExceptionHandler) ExecutorOption {
	return func(e *Executor) {
		if h != nil {
			e.handler = h
		}
	}
}

// Executor runs tasks on a bounded pool of goroutines
type Executor struct {
	config     Config
	logger     *slog.Logger
	dispatcher dispatch.Dispatcher
	validator  Validator
	restorer   Restorer
	handler    ExceptionHandler
	limiter    *rate.Limiter
	sem        *semaphore.Weighted
	slots      *semaphore.Weighted

	taskChan   chan *Task
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup

	mu      sync.Mutex
	active  map[int]*Task
	started bool
	stopped bool
	counts  Stats
}

// NewExecutor creates a new Executor. Tasks may be submitted before Start;
// they wait in the buffer until the executor is started.
func NewExecutor(config Config, logger *slog.Logger, opts ...ExecutorOption) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "task_executor")

	if config.WorkerCount <= 0 {
		logger.Warn("non-positive worker count, using a single worker",
			"worker_count", config.WorkerCount)
		config.WorkerCount = 1
	}
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultConfig().QueueSize
	}
	if config.ReAddRate == 0 {
		config.ReAddRate = rate.Inf
	}
	if config.ReAddBurst <= 0 {
		config.ReAddBurst = 1
	}

	ctx, cancel := context.WithCancel(context.Background())

	e := &Executor{
		config:     config,
		logger:     logger,
		dispatcher: dispatch.Immediate{},
		validator:  DefaultValidator{},
		handler:    FailFast{},
		limiter:    rate.NewLimiter(config.ReAddRate, config.ReAddBurst),
		sem:        semaphore.NewWeighted(int64(config.WorkerCount)),
		slots:      semaphore.NewWeighted(int64(config.QueueSize)),
		taskChan:   make(chan *Task, config.QueueSize),
		ctx:        ctx,
		cancelFunc: cancel,
		active:     make(map[int]*Task),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start begins running tasks and replays persisted work. ctx only bounds
// the restore step. Restored tasks wait for buffer space instead of being
// refused with ErrQueueFull.
func (e *Executor) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return ErrExecutorStopped
	}
	if e.started {
		e.mu.Unlock()
		return fmt.Errorf("executor already started")
	}
	e.started = true
	e.mu.Unlock()

	var descs []*Descriptor
	if e.restorer != nil {
		var err error
		if descs, err = e.restorer.Pending(ctx); err != nil {
			return fmt.Errorf("failed to restore tasks: %w", err)
		}
	}

	e.wg.Add(1)
	go e.loop()

	e.logger.Info("executor started", "worker_count", e.config.WorkerCount)

	if e.restorer != nil {
		e.restore(ctx, descs)
	}
	return nil
}

// restore resubmits persisted descriptors. Individual failures are logged,
// reported back to the restorer and skipped.
func (e *Executor) restore(ctx context.Context, descs []*Descriptor) {
	e.logger.Info("restoring unfinished tasks", "pending_count", len(descs))

	// stop waiting for buffer space once the executor itself shuts down
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer context.AfterFunc(e.ctx, cancel)()

	restored := 0
	for _, desc := range descs {
		t, err := e.restorer.Restore(desc)
		if err != nil {
			e.logger.Error("failed to restore task",
				"task_id", desc.ID(),
				"error", err)
			continue
		}
		if err := e.executeWait(ctx, t); err != nil {
			e.logger.Error("failed to resubmit restored task",
				"task_id", desc.ID(),
				"error", err)
			e.restorer.Abandon(desc, err)
			continue
		}
		restored++
	}

	e.logger.Info("restored tasks", "restored_count", restored)
}

// Execute submits a task. It never blocks: a full buffer yields ErrQueueFull.
func (e *Executor) Execute(t *Task) error {
	if t == nil {
		return fmt.Errorf("%w: task is nil", ErrInvalidArgument)
	}
	if !e.slots.TryAcquire(1) {
		return ErrQueueFull
	}
	return e.submit(t)
}

// executeWait is Execute that blocks until the buffer has room or ctx ends.
func (e *Executor) executeWait(ctx context.Context, t *Task) error {
	if t == nil {
		return fmt.Errorf("%w: task is nil", ErrInvalidArgument)
	}
	if err := e.slots.Acquire(ctx, 1); err != nil {
		e.mu.Lock()
		stopped := e.stopped
		e.mu.Unlock()
		if stopped {
			return ErrExecutorStopped
		}
		return err
	}
	return e.submit(t)
}

// submit buffers t. The caller holds one buffer slot, which is handed back
// on refusal and otherwise freed when the loop or Stop takes t off the buffer.
func (e *Executor) submit(t *Task) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.admit(t); err != nil {
		e.slots.Release(1)
		return err
	}

	select {
	case e.taskChan <- t:
	default:
		t.unmarkSubmitted()
		e.slots.Release(1)
		return ErrQueueFull
	}

	e.active[t.ID()] = t
	e.logger.Debug("task submitted", "task_id", t.ID(), "task_name", t.Name())
	return nil
}

// admit claims t for submission. e.mu must be held.
func (e *Executor) admit(t *Task) error {
	if e.stopped {
		return ErrExecutorStopped
	}
	if err := t.markSubmitted(); err != nil {
		return err
	}
	if other, ok := e.active[t.ID()]; ok && other != t {
		t.unmarkSubmitted()
		return fmt.Errorf("%w: %d", ErrDuplicateID, t.ID())
	}
	return nil
}

// Cancel cancels the active task with the given id and reports whether this
// call cancelled it.
func (e *Executor) Cancel(id int) bool {
	e.mu.Lock()
	t, ok := e.active[id]
	e.mu.Unlock()
	if !ok {
		return false
	}

	cancelled := t.cancelWork()
	if cancelled {
		e.logger.Info("task cancelled", "task_id", id)
	}
	return cancelled
}

// CancelScope cancels every active task whose id is in scope and returns how
// many were newly cancelled.
func (e *Executor) CancelScope(scope Scope) int {
	return e.cancelMatching(scope.Contains)
}

// CancelAllTasks cancels every active task and returns how many were newly cancelled.
func (e *Executor) CancelAllTasks() int {
	return e.cancelMatching(func(int) bool { return true })
}

func (e *Executor) cancelMatching(match func(id int) bool) int {
	var targets []*Task
	e.mu.Lock()
	for id, t := range e.active {
		if match(id) {
			targets = append(targets, t)
		}
	}
	e.mu.Unlock()

	cancelled := 0
	for _, t := range targets {
		if t.cancelWork() {
			cancelled++
		}
	}
	if cancelled > 0 {
		e.logger.Info("tasks cancelled", "count", cancelled)
	}
	return cancelled
}

// Stats returns current counters.
func (e *Executor) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	stats := e.counts
	for _, t := range e.active {
		switch t.Status() {
		case TaskStatusPending:
			stats.Pending++
		case TaskStatusRunning:
			stats.Running++
		}
	}
	return stats
}

// Stop stops accepting work and waits for running bodies to return. Tasks
// that never started are cancelled and their post-execute hooks still run.
func (e *Executor) Stop() {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.stopped = true
	e.mu.Unlock()

	e.cancelFunc()
	e.wg.Wait()

	for {
		select {
		case t := <-e.taskChan:
			e.slots.Release(1)
			e.cancelPending(t)
		default:
			e.logger.Info("executor stopped")
			return
		}
	}
}

// loop hands buffered tasks to goroutines, at most WorkerCount at a time.
func (e *Executor) loop() {
	defer e.wg.Done()

	for {
		select {
		case <-e.ctx.Done():
			return

		case t := <-e.taskChan:
			e.slots.Release(1)
			if err := e.sem.Acquire(e.ctx, 1); err != nil {
				e.cancelPending(t)
				return
			}

			e.wg.Add(1)
			go func() {
				defer e.wg.Done()

				result := e.run(t)
				e.sem.Release(1)

				if e.validator.NeedToReAdd(t, result.Err) {
					e.reAdd(t)
				}
			}()
		}
	}
}

// run executes one task: pre hook, body, post hook, then Done.
func (e *Executor) run(t *Task) Result {
	logger := e.logger.With("task_id", t.ID(), "task_name", t.Name())

	if err := t.setStatus(TaskStatusRunning); err != nil {
		logger.Error("failed to start task", "error", err)
		return Result{ID: t.ID(), Err: err}
	}

	if t.pre != nil {
		e.await(logger, func() { t.pre(t) })
	}

	logger.Debug("running task")
	value, err := e.invoke(t)

	var perr *PanicError
	switch {
	case errors.As(err, &perr):
		logger.Error("task panicked", "panic", fmt.Sprint(perr.Value), "stack", string(perr.Stack))
	case err != nil:
		logger.Error("task execution failed", "error", err)
	default:
		logger.Debug("task completed")
	}

	status := TaskStatusFinished
	if t.IsCancelled() {
		status = TaskStatusCancelled
	}
	result := Result{ID: t.ID(), Value: value, Err: err}
	if cerr := t.complete(status, result); cerr != nil {
		logger.Error("failed to complete task", "error", cerr)
	}
	e.record(status, err)

	e.finish(logger, t, result)

	if perr != nil {
		e.handler.HandleException(e.dispatcher, t, perr)
	}
	return result
}

// invoke calls the work body and converts a panic into a *PanicError.
func (e *Executor) invoke(t *Task) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			value = nil
			err = &PanicError{TaskID: t.ID(), Value: r, Stack: debug.Stack()}
		}
	}()
	return t.work(t.workContext(), t)
}

// cancelPending moves a task that never ran to cancelled and fires its post hook.
func (e *Executor) cancelPending(t *Task) {
	logger := e.logger.With("task_id", t.ID(), "task_name", t.Name())

	result := Result{ID: t.ID(), Err: ErrExecutorStopped}
	if err := t.complete(TaskStatusCancelled, result); err != nil {
		logger.Error("failed to cancel pending task", "error", err)
		return
	}
	e.record(TaskStatusCancelled, result.Err)
	logger.Info("pending task cancelled on stop")

	e.finish(logger, t, result)
}

// finish runs the post hook, forgets the task and closes Done.
func (e *Executor) finish(logger *slog.Logger, t *Task, result Result) {
	if t.post != nil {
		e.await(logger, func() { t.post(t, result) })
	}

	e.mu.Lock()
	if e.active[t.ID()] == t {
		delete(e.active, t.ID())
	}
	e.mu.Unlock()

	t.release()
}

// reAdd resubmits a fresh copy of t once the limiter allows it.
func (e *Executor) reAdd(t *Task) {
	if err := e.limiter.Wait(e.ctx); err != nil {
		e.logger.Debug("re-add abandoned", "task_id", t.ID(), "error", err)
		return
	}

	if err := e.Execute(t.Clone()); err != nil {
		e.logger.Warn("failed to re-add task", "task_id", t.ID(), "error", err)
		return
	}

	e.mu.Lock()
	e.counts.ReAdded++
	e.mu.Unlock()
	e.logger.Debug("task re-added", "task_id", t.ID())
}

func (e *Executor) record(status TaskStatus, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch {
	case status == TaskStatusCancelled:
		e.counts.Cancelled++
	case err != nil:
		e.counts.Failed++
	default:
		e.counts.Finished++
	}
}

// await runs fn on the dispatcher and waits for it.
func (e *Executor) await(logger *slog.Logger, fn func()) {
	if err := dispatch.Await(context.Background(), e.dispatcher, fn); err != nil {
		logger.Warn("hook did not run", "error", err)
	}
}
