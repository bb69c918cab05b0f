package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/phrazzld/runq/internal/idpool"
	"github.com/phrazzld/runq/internal/platform/logger"
	"github.com/phrazzld/runq/internal/queue"
	"github.com/phrazzld/runq/internal/task"
)

// Request describes a transfer to enqueue.
type Request struct {
	Direction Direction
	File      string
	URL       string
	Name      string
}

// State is the run state of a queued transfer.
type State string

const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// View is a read-only snapshot of a queued transfer and its latest run.
type View struct {
	ID        int       `json:"id"`
	Name      string    `json:"name,omitempty"`
	Direction Direction `json:"direction"`
	File      string    `json:"file"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
	State     State     `json:"state"`
	Progress  int       `json:"progress"`
	Error     string    `json:"error,omitempty"`
}

// Stats combines executor counters with the queue size.
type Stats struct {
	task.Stats
	QueueSize int `json:"queue_size"`
}

// run tracks the latest task submitted for a queued item.
type run struct {
	task   *task.Task
	active bool
}

// Service queues transfers and runs them on an executor.
type Service struct {
	queue      *queue.Queue[*Item]
	ids        *idpool.Pool
	executor   *task.Executor
	transferer Transferer
	logger     *slog.Logger
	now        func() time.Time

	mu   sync.Mutex
	runs map[int]*run
}

var _ task.Restorer = (*Service)(nil)

// NewService builds a service over q. The id pool is seeded with the ids of
// restored items, and the executor is created with the service as its
// restorer, so Start resubmits everything still queued.
func NewService(
	q *queue.Queue[*Item],
	transferer Transferer,
	config task.Config,
	log *slog.Logger,
	opts ...task.ExecutorOption,
) (*Service, error) {
	if q == nil {
		return nil, errors.New("queue cannot be nil")
	}
	if transferer == nil {
		return nil, errors.New("transferer cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}

	items := q.All()
	ids := make([]int, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID())
	}
	pool, err := idpool.New(ids...)
	if err != nil {
		return nil, fmt.Errorf("failed to seed id pool: %w", err)
	}

	s := &Service{
		queue:      q,
		ids:        pool,
		transferer: transferer,
		logger:     log.With("component", "transfer_service", "queue", q.Name()),
		now:        func() time.Time { return time.Now().UTC() },
		runs:       make(map[int]*run),
	}

	opts = append(opts, task.WithRestorer(s))
	s.executor = task.NewExecutor(config, log, opts...)
	return s, nil
}

// Start resubmits restored transfers and starts the executor.
func (s *Service) Start(ctx context.Context) error {
	return s.executor.Start(ctx)
}

// Stop cancels every transfer and waits for running ones to return.
// Queued items stay persisted and are resumed by the next Start.
func (s *Service) Stop() {
	n := s.executor.CancelAllTasks()
	s.logger.Info("stopping transfer service", "cancelled", n)
	s.executor.Stop()
}

// Enqueue queues a new transfer and submits it for execution.
func (s *Service) Enqueue(ctx context.Context, req Request) (*Item, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if !req.Direction.Valid() {
		return nil, fmt.Errorf("%w: unknown direction %q", ErrInvalidRequest, req.Direction)
	}

	id := s.ids.IncrementAndGet()
	desc, err := task.NewDescriptor(id, req.Name)
	if err != nil {
		s.ids.Remove(id)
		return nil, err
	}
	item, err := NewItem(desc, req.Direction, req.File, req.URL, s.now())
	if err != nil {
		s.ids.Remove(id)
		return nil, err
	}

	added, err := s.queue.Add(item)
	if err != nil {
		s.ids.Remove(id)
		return nil, fmt.Errorf("failed to queue transfer: %w", err)
	}
	if !added {
		s.ids.Remove(id)
		log.Warn("transfer rejected", "transfer_id", id, "queue_size", s.queue.Size())
		return nil, ErrRejected
	}

	if err := s.submit(item); err != nil {
		s.discard(item)
		return nil, err
	}

	log.Info("transfer queued",
		"transfer_id", id,
		"direction", item.Direction,
		"file", item.File)
	return item, nil
}

// Cancel cancels a queued transfer and removes it from the queue.
func (s *Service) Cancel(ctx context.Context, id int) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	item, ok := s.queue.FindByID(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}

	item.Cancel()
	s.executor.Cancel(id)

	if _, err := s.queue.RemoveByID(id); err != nil && !errors.Is(err, queue.ErrNotFound) {
		return fmt.Errorf("failed to remove transfer %d: %w", id, err)
	}

	// an active run frees the id from its post hook instead
	s.mu.Lock()
	if r, ok := s.runs[id]; !ok || !r.active {
		delete(s.runs, id)
		s.ids.Remove(id)
	}
	s.mu.Unlock()

	log.Info("transfer cancelled", "transfer_id", id)
	return nil
}

// Retry resubmits a queued transfer whose last run failed.
func (s *Service) Retry(ctx context.Context, id int) (*Item, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	item, ok := s.queue.FindByID(id)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if item.IsCancelled() {
		return nil, fmt.Errorf("%w: transfer %d is cancelled", task.ErrAlreadyFinished, id)
	}

	if err := s.submit(item); err != nil {
		return nil, err
	}

	log.Info("transfer resubmitted", "transfer_id", id)
	return item, nil
}

// List returns the queued transfers in queue order.
func (s *Service) List() []*Item {
	return s.queue.All()
}

// Get returns the queued transfer with the given id.
func (s *Service) Get(id int) (*Item, error) {
	item, ok := s.queue.FindByID(id)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return item, nil
}

// View describes item together with its latest run.
func (s *Service) View(item *Item) View {
	v := View{
		ID:        item.ID(),
		Name:      item.Name(),
		Direction: item.Direction,
		File:      item.File,
		URL:       item.URL,
		CreatedAt: item.CreatedAt,
		State:     StateQueued,
	}

	s.mu.Lock()
	r := s.runs[item.ID()]
	s.mu.Unlock()

	if item.IsCancelled() {
		v.State = StateCancelled
	}
	if r == nil {
		return v
	}

	v.Progress = r.task.Progress()
	switch r.task.Status() {
	case task.TaskStatusRunning:
		v.State = StateRunning
	case task.TaskStatusCancelled:
		v.State = StateCancelled
	case task.TaskStatusFinished:
		if res, ok := r.task.Result(); ok && res.Err != nil {
			v.State = StateFailed
			v.Error = res.Err.Error()
		}
	}
	return v
}

// Stats reports executor counters and the queue size.
func (s *Service) Stats() Stats {
	return Stats{
		Stats:     s.executor.Stats(),
		QueueSize: s.queue.Size(),
	}
}

// Pending implements task.Restorer.
func (s *Service) Pending(context.Context) ([]*task.Descriptor, error) {
	items := s.queue.All()
	descs := make([]*task.Descriptor, 0, len(items))
	for _, item := range items {
		descs = append(descs, item.Descriptor)
	}
	return descs, nil
}

// Restore implements task.Restorer.
func (s *Service) Restore(desc *task.Descriptor) (*task.Task, error) {
	item, ok := s.queue.FindByID(desc.ID())
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, desc.ID())
	}

	t, err := s.newTask(item)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.runs[item.ID()]; ok && r.active {
		return nil, fmt.Errorf("%w: transfer %d", task.ErrAlreadyRunning, item.ID())
	}
	s.runs[item.ID()] = &run{task: t, active: true}
	return t, nil
}

// Abandon implements task.Restorer. It clears the run recorded by Restore
// so the item can be retried, and frees the id if the item already left.
func (s *Service) Abandon(desc *task.Descriptor, err error) {
	id := desc.ID()
	s.logger.Warn("restored transfer was not resubmitted", "transfer_id", id, "error", err)

	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.runs[id]; ok && r.active && r.task.Status() == task.TaskStatusPending {
		delete(s.runs, id)
	}
	if _, ok := s.runs[id]; !ok && !s.queue.Contains(id) {
		s.ids.Remove(id)
	}
}

// submit creates a task for item and hands it to the executor. At most one
// task per item is active.
func (s *Service) submit(item *Item) error {
	t, err := s.newTask(item)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if r, ok := s.runs[item.ID()]; ok && r.active {
		s.mu.Unlock()
		return fmt.Errorf("%w: transfer %d", task.ErrAlreadyRunning, item.ID())
	}
	s.runs[item.ID()] = &run{task: t, active: true}
	s.mu.Unlock()

	if err := s.executor.Execute(t); err != nil {
		s.mu.Lock()
		if r, ok := s.runs[item.ID()]; ok && r.task == t {
			delete(s.runs, item.ID())
		}
		s.mu.Unlock()
		return fmt.Errorf("failed to submit transfer %d: %w", item.ID(), err)
	}
	return nil
}

// discard drops an item that was queued but could not be submitted.
func (s *Service) discard(item *Item) {
	if _, err := s.queue.RemoveByID(item.ID()); err != nil && !errors.Is(err, queue.ErrNotFound) {
		s.logger.Error("failed to drop unsubmitted transfer", "transfer_id", item.ID(), "error", err)
	}
	s.ids.Remove(item.ID())
}

func (s *Service) newTask(item *Item) (*task.Task, error) {
	return task.New(item.Descriptor, s.work(item),
		task.WithOrigin(queueOrigin{s.queue}),
		task.WithPostExecute(s.afterRun))
}

// work is the task body for item. Successful transfers leave the queue.
func (s *Service) work(item *Item) task.Work {
	return func(ctx context.Context, t *task.Task) (any, error) {
		if t.IsCancelled() {
			s.logger.Debug("skipping cancelled transfer", "transfer_id", item.ID())
			return nil, nil
		}

		if err := s.transferer.Transfer(ctx, item, t.SetProgress); err != nil {
			return nil, err
		}

		if _, err := s.queue.RemoveByID(item.ID()); err != nil && !errors.Is(err, queue.ErrNotFound) {
			s.logger.Error("failed to dequeue finished transfer", "transfer_id", item.ID(), "error", err)
		}
		s.logger.Info("transfer finished", "transfer_id", item.ID(), "direction", item.Direction)
		return item.File, nil
	}
}

// afterRun marks the run inactive and frees the id once the item has left
// the queue.
func (s *Service) afterRun(t *task.Task, _ task.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.runs[t.ID()]
	if ok && r.task == t {
		r.active = false
	}
	if !s.queue.Contains(t.ID()) {
		delete(s.runs, t.ID())
		s.ids.Remove(t.ID())
	}
}

// queueOrigin reports queue membership as the task origin.
type queueOrigin struct {
	q *queue.Queue[*Item]
}

func (o queueOrigin) Contains(id int) bool {
	return o.q.Contains(id)
}
