package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/phrazzld/runq/internal/events"
)

// Unlimited is the MaxSize of a queue without a capacity bound.
const Unlimited = 0

// Options configures a Queue.
type Options[T Item] struct {
	// Name identifies the queue in logs and listener callbacks
	Name string

	// MaxSize bounds the number of items; Unlimited disables the bound
	MaxSize int

	// Backend persists the queue; nil keeps it in memory only
	Backend Backend

	// Codec converts items to records; required with a Backend
	Codec Codec[T]

	Logger    *slog.Logger
	Listeners []events.Listener
}

// Queue is an ordered, bounded, thread-safe list of items with unique ids.
//
// Capacity and duplicate checks report (false, nil); misuse such as a bad
// index, a nil item or a negative id returns an error. Listener callbacks and
// backend writes happen after the queue lock is released. Size notifications
// are delivered in commit order, each after its own snapshot was persisted;
// the goroutine of a concurrent mutation may be the one delivering them.
type Queue[T Item] struct {
	name      string
	maxSize   int
	backend   Backend
	codec     Codec[T]
	logger    *slog.Logger
	listeners *events.Registry

	mu       sync.RWMutex
	items    []T
	disposed bool
	version  uint64

	persistMu sync.Mutex
	persisted uint64

	noticeMu sync.Mutex
	notices  []*sizeNotice
	draining bool
}

// sizeNotice is a pending size notification. Notices are queued in commit
// order and delivered once ready, that is once their change was persisted.
type sizeNotice struct {
	size  int
	ready bool
}

// change describes the state left behind by one mutation.
type change[T Item] struct {
	version     uint64
	items       []T
	size        int
	sizeChanged bool
	notice      *sizeNotice
}

// New creates a queue and restores its contents from the backend, if any.
// Restore problems are logged and leave the queue empty.
func New[T Item](ctx context.Context, opts Options[T]) (*Queue[T], error) {
	if opts.MaxSize < 0 {
		return nil, fmt.Errorf("%w: max size %d is negative", ErrInvalidArgument, opts.MaxSize)
	}
	if opts.Backend != nil && opts.Codec == nil {
		return nil, fmt.Errorf("%w: a backend requires a codec", ErrInvalidArgument)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "queue", "queue", opts.Name)

	q := &Queue[T]{
		name:      opts.Name,
		maxSize:   opts.MaxSize,
		backend:   opts.Backend,
		codec:     opts.Codec,
		logger:    logger,
		listeners: events.NewRegistry(logger),
	}
	for _, l := range opts.Listeners {
		q.listeners.Register(l)
	}

	if q.backend != nil {
		q.restore(ctx)
	}
	return q, nil
}

// Name returns the queue name.
func (q *Queue[T]) Name() string {
	return q.name
}

// MaxSize returns the capacity bound, or Unlimited.
func (q *Queue[T]) MaxSize() int {
	return q.maxSize
}

func (q *Queue[T]) restore(ctx context.Context) {
	records, err := q.backend.ReadAll(ctx)
	if err != nil {
		q.logger.Error("failed to read persisted queue", "error", err)
		records = nil
	}

	items := make([]T, 0, len(records))
	seen := make(map[int]struct{}, len(records))
	for _, rec := range records {
		item, err := q.codec.Decode(rec)
		if err != nil {
			q.logger.Warn("skipping undecodable record",
				"item_id", rec.ID,
				"kind", rec.Kind,
				"error", err)
			continue
		}
		if item.ID() < 0 {
			q.logger.Warn("skipping record with negative id", "item_id", item.ID())
			continue
		}
		if _, dup := seen[item.ID()]; dup {
			q.logger.Warn("skipping duplicate record", "item_id", item.ID())
			continue
		}
		seen[item.ID()] = struct{}{}
		items = append(items, item)
	}

	if q.maxSize != Unlimited && len(items) > q.maxSize {
		q.logger.Warn("restored queue exceeds max size, truncating",
			"restored_count", len(items),
			"max_size", q.maxSize)
		items = items[:q.maxSize]
	}

	q.mu.Lock()
	q.items = items
	q.mu.Unlock()

	q.logger.Info("queue restored", "restored_count", len(items))
	q.listeners.NotifyRestored(q.name, len(items))
}

// Add appends item. It returns false when the queue is full or already holds
// an item with the same id.
func (q *Queue[T]) Add(item T) (bool, error) {
	q.mu.Lock()
	if err := q.checkWritable(item); err != nil {
		q.mu.Unlock()
		return false, err
	}
	if !q.canAccept(item) {
		q.mu.Unlock()
		return false, nil
	}
	q.items = append(q.items, item)
	ch := q.commit(len(q.items) - 1)
	q.mu.Unlock()

	q.logger.Debug("item added", "item_id", item.ID(), "size", ch.size)
	q.publish(ch)
	return true, nil
}

// Insert places item at pos, shifting later items back. pos may equal Size.
func (q *Queue[T]) Insert(item T, pos int) (bool, error) {
	q.mu.Lock()
	if err := q.checkWritable(item); err != nil {
		q.mu.Unlock()
		return false, err
	}
	if pos < 0 || pos > len(q.items) {
		size := len(q.items)
		q.mu.Unlock()
		return false, fmt.Errorf("%w: insert at %d, size %d", ErrIndexOutOfRange, pos, size)
	}
	if !q.canAccept(item) {
		q.mu.Unlock()
		return false, nil
	}

	var zero T
	q.items = append(q.items, zero)
	copy(q.items[pos+1:], q.items[pos:])
	q.items[pos] = item
	ch := q.commit(len(q.items) - 1)
	q.mu.Unlock()

	q.logger.Debug("item inserted", "item_id", item.ID(), "position", pos, "size", ch.size)
	q.publish(ch)
	return true, nil
}

// AddWithRule appends item, asking rule for an item to evict when the queue
// is full. Eviction and insertion happen atomically.
func (q *Queue[T]) AddWithRule(item T, rule AddRule[T]) (bool, error) {
	if rule == nil {
		return false, fmt.Errorf("%w: add rule is nil", ErrInvalidArgument)
	}

	q.mu.Lock()
	if err := q.checkWritable(item); err != nil {
		q.mu.Unlock()
		return false, err
	}
	if q.indexOf(item.ID()) >= 0 {
		q.mu.Unlock()
		return false, nil
	}

	before := len(q.items)
	var evicted T
	hasEvicted := false
	if q.isFull() {
		victim := rule.Victim(append([]T(nil), q.items...), item)
		if victim < 0 {
			q.mu.Unlock()
			return false, nil
		}
		if victim >= len(q.items) {
			q.mu.Unlock()
			return false, fmt.Errorf("%w: add rule chose %d, size %d", ErrIndexOutOfRange, victim, before)
		}
		evicted = q.removeAtLocked(victim)
		hasEvicted = true
	}
	q.items = append(q.items, item)
	ch := q.commit(before)
	q.mu.Unlock()

	if hasEvicted {
		q.logger.Info("item evicted by add rule",
			"evicted_id", evicted.ID(),
			"item_id", item.ID())
	}
	q.logger.Debug("item added", "item_id", item.ID(), "size", ch.size)
	q.publish(ch)
	return true, nil
}

// Set replaces the item at pos. It returns false when another position holds
// an item with the same id.
func (q *Queue[T]) Set(item T, pos int) (bool, error) {
	q.mu.Lock()
	if err := q.checkWritable(item); err != nil {
		q.mu.Unlock()
		return false, err
	}
	if pos < 0 || pos >= len(q.items) {
		size := len(q.items)
		q.mu.Unlock()
		return false, fmt.Errorf("%w: set at %d, size %d", ErrIndexOutOfRange, pos, size)
	}
	if i := q.indexOf(item.ID()); i >= 0 && i != pos {
		q.mu.Unlock()
		return false, nil
	}
	q.items[pos] = item
	ch := q.commit(len(q.items))
	q.mu.Unlock()

	q.publish(ch)
	return true, nil
}

// Remove removes the item with the same id as item.
func (q *Queue[T]) Remove(item T) (T, error) {
	if isNil(item) {
		var zero T
		return zero, fmt.Errorf("%w: item is nil", ErrInvalidArgument)
	}
	return q.RemoveByID(item.ID())
}

// RemoveByID removes the item carrying id.
func (q *Queue[T]) RemoveByID(id int) (T, error) {
	var zero T

	q.mu.Lock()
	if q.disposed {
		q.mu.Unlock()
		return zero, ErrDisposed
	}
	i := q.indexOf(id)
	if i < 0 {
		q.mu.Unlock()
		return zero, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	removed := q.removeAtLocked(i)
	ch := q.commit(len(q.items) + 1)
	q.mu.Unlock()

	q.logger.Debug("item removed", "item_id", id, "size", ch.size)
	q.publish(ch)
	return removed, nil
}

// RemoveAt removes the item at pos.
func (q *Queue[T]) RemoveAt(pos int) (T, error) {
	var zero T

	q.mu.Lock()
	if q.disposed {
		q.mu.Unlock()
		return zero, ErrDisposed
	}
	if pos < 0 || pos >= len(q.items) {
		size := len(q.items)
		q.mu.Unlock()
		return zero, fmt.Errorf("%w: remove at %d, size %d", ErrIndexOutOfRange, pos, size)
	}
	removed := q.removeAtLocked(pos)
	ch := q.commit(len(q.items) + 1)
	q.mu.Unlock()

	q.logger.Debug("item removed", "item_id", removed.ID(), "size", ch.size)
	q.publish(ch)
	return removed, nil
}

// PollFirst removes and returns the head.
func (q *Queue[T]) PollFirst() (T, error) {
	return q.poll(true)
}

// PollLast removes and returns the tail.
func (q *Queue[T]) PollLast() (T, error) {
	return q.poll(false)
}

func (q *Queue[T]) poll(first bool) (T, error) {
	var zero T

	q.mu.Lock()
	if q.disposed {
		q.mu.Unlock()
		return zero, ErrDisposed
	}
	if len(q.items) == 0 {
		q.mu.Unlock()
		return zero, ErrEmpty
	}
	pos := len(q.items) - 1
	if first {
		pos = 0
	}
	removed := q.removeAtLocked(pos)
	ch := q.commit(len(q.items) + 1)
	q.mu.Unlock()

	q.logger.Debug("item polled", "item_id", removed.ID(), "size", ch.size)
	q.publish(ch)
	return removed, nil
}

// PeekFirst returns the head without removing it.
func (q *Queue[T]) PeekFirst() (T, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	var zero T
	if len(q.items) == 0 {
		return zero, ErrEmpty
	}
	return q.items[0], nil
}

// PeekLast returns the tail without removing it.
func (q *Queue[T]) PeekLast() (T, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	var zero T
	if len(q.items) == 0 {
		return zero, ErrEmpty
	}
	return q.items[len(q.items)-1], nil
}

// Get returns the item at pos.
func (q *Queue[T]) Get(pos int) (T, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	var zero T
	if pos < 0 || pos >= len(q.items) {
		return zero, fmt.Errorf("%w: get at %d, size %d", ErrIndexOutOfRange, pos, len(q.items))
	}
	return q.items[pos], nil
}

// FindByID returns the item carrying id.
func (q *Queue[T]) FindByID(id int) (T, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	var zero T
	if i := q.indexOf(id); i >= 0 {
		return q.items[i], true
	}
	return zero, false
}

// Contains reports whether an item with id is queued.
func (q *Queue[T]) Contains(id int) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.indexOf(id) >= 0
}

// Size returns the number of queued items.
func (q *Queue[T]) Size() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.items)
}

// IsEmpty reports whether the queue has no items.
func (q *Queue[T]) IsEmpty() bool {
	return q.Size() == 0
}

// All returns a copy of the queued items in order.
func (q *Queue[T]) All() []T {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return append([]T(nil), q.items...)
}

// Clear removes every item. The queue stays usable.
func (q *Queue[T]) Clear() error {
	q.mu.Lock()
	if q.disposed {
		q.mu.Unlock()
		return ErrDisposed
	}
	if len(q.items) == 0 {
		q.mu.Unlock()
		return nil
	}
	before := len(q.items)
	q.items = nil
	ch := q.commit(before)
	q.mu.Unlock()

	q.logger.Info("queue cleared", "removed_count", before)
	q.publish(ch)
	return nil
}

// Release drops the items and listeners and disposes the queue. The persisted
// form is kept so that a new queue over the same backend restores it.
// Releasing twice is a no-op.
func (q *Queue[T]) Release() {
	q.mu.Lock()
	if q.disposed {
		q.mu.Unlock()
		return
	}
	q.disposed = true
	q.items = nil
	q.version++
	q.mu.Unlock()

	q.listeners.Clear()
	q.logger.Info("queue released")
}

// AddListener registers a listener for size and restore notifications.
func (q *Queue[T]) AddListener(l events.Listener) {
	q.mu.RLock()
	disposed := q.disposed
	q.mu.RUnlock()
	if disposed {
		q.logger.Warn("ignoring listener added after release")
		return
	}
	q.listeners.Register(l)
}

// RemoveListener unregisters a listener and reports whether it was registered.
func (q *Queue[T]) RemoveListener(l events.Listener) bool {
	return q.listeners.Unregister(l)
}

// checkWritable must be called with q.mu held.
func (q *Queue[T]) checkWritable(item T) error {
	if q.disposed {
		return ErrDisposed
	}
	if isNil(item) {
		return fmt.Errorf("%w: item is nil", ErrInvalidArgument)
	}
	if item.ID() < 0 {
		return fmt.Errorf("%w: item id %d is negative", ErrInvalidArgument, item.ID())
	}
	return nil
}

// canAccept must be called with q.mu held.
func (q *Queue[T]) canAccept(item T) bool {
	if q.indexOf(item.ID()) >= 0 {
		q.logger.Debug("rejected duplicate item", "item_id", item.ID())
		return false
	}
	if q.isFull() {
		q.logger.Debug("rejected item, queue is full", "item_id", item.ID(), "max_size", q.maxSize)
		return false
	}
	return true
}

func (q *Queue[T]) isFull() bool {
	return q.maxSize != Unlimited && len(q.items) >= q.maxSize
}

func (q *Queue[T]) indexOf(id int) int {
	for i, item := range q.items {
		if item.ID() == id {
			return i
		}
	}
	return -1
}

func (q *Queue[T]) removeAtLocked(pos int) T {
	removed := q.items[pos]
	copy(q.items[pos:], q.items[pos+1:])
	var zero T
	q.items[len(q.items)-1] = zero
	q.items = q.items[:len(q.items)-1]
	return removed
}

// commit bumps the version and captures the post-mutation state. It must be
// called with q.mu held; before is the size prior to the mutation.
func (q *Queue[T]) commit(before int) change[T] {
	q.version++
	ch := change[T]{
		version:     q.version,
		items:       append([]T(nil), q.items...),
		size:        len(q.items),
		sizeChanged: before != len(q.items),
	}
	if ch.sizeChanged {
		ch.notice = &sizeNotice{size: ch.size}
		q.noticeMu.Lock()
		q.notices = append(q.notices, ch.notice)
		q.noticeMu.Unlock()
	}
	return ch
}

// publish persists a committed change and notifies listeners. It must be
// called without q.mu held.
func (q *Queue[T]) publish(ch change[T]) {
	q.persist(ch)
	if ch.notice == nil {
		return
	}

	q.noticeMu.Lock()
	ch.notice.ready = true
	q.noticeMu.Unlock()
	q.drainNotices()
}

// drainNotices delivers ready notices from the head of the list. Only one
// goroutine drains at a time; a listener that mutates the queue only appends
// to the list, and the outer drain delivers its notice afterwards.
func (q *Queue[T]) drainNotices() {
	q.noticeMu.Lock()
	if q.draining {
		q.noticeMu.Unlock()
		return
	}
	q.draining = true

	for {
		if len(q.notices) == 0 || !q.notices[0].ready {
			q.draining = false
			q.noticeMu.Unlock()
			return
		}
		n := q.notices[0]
		q.notices[0] = nil
		q.notices = q.notices[1:]

		q.noticeMu.Unlock()
		q.deliver(n.size)
		q.noticeMu.Lock()
	}
}

// deliver notifies listeners with q.noticeMu released. A panicking listener
// gives up the drain so that later mutations can deliver again.
func (q *Queue[T]) deliver(size int) {
	delivered := false
	defer func() {
		if !delivered {
			q.noticeMu.Lock()
			q.draining = false
			q.noticeMu.Unlock()
		}
	}()
	q.listeners.NotifySizeChanged(q.name, size)
	delivered = true
}

// isNil reports a nil item. T is usually a pointer type, and a nil pointer
// in an interface does not compare equal to nil.
func isNil[T Item](item T) bool {
	if n, ok := any(item).(interface{ IsNil() bool }); ok {
		return n.IsNil()
	}
	return any(item) == nil
}

func (q *Queue[T]) persist(ch change[T]) {
	if q.backend == nil {
		return
	}

	q.persistMu.Lock()
	defer q.persistMu.Unlock()

	// a later mutation already wrote a newer snapshot
	if ch.version <= q.persisted {
		return
	}

	records := make([]Record, 0, len(ch.items))
	for _, item := range ch.items {
		rec, err := q.codec.Encode(item)
		if err != nil {
			q.logger.Error("failed to encode item, snapshot not persisted",
				"item_id", item.ID(),
				"error", err)
			return
		}
		records = append(records, rec)
	}

	if err := q.backend.Write(context.Background(), records); err != nil {
		q.logger.Error("failed to persist queue", "size", len(records), "error", err)
		return
	}
	q.persisted = ch.version
}
