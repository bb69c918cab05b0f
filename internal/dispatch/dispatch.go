package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrLoopClosed is returned by Await when the loop stopped before running the callback.
var ErrLoopClosed = errors.New("dispatch loop closed")

// Dispatcher accepts a zero-argument callback and runs it on its own goroutine
// of choice.
type Dispatcher interface {
	Post(fn func())
}

// Immediate runs every callback synchronously on the posting goroutine.
type Immediate struct{}

// Post implements Dispatcher.
func (Immediate) Post(fn func()) {
	if fn != nil {
		fn()
	}
}

// Loop is a single-goroutine dispatcher. Callbacks posted from any goroutine
// run one at a time, in posting order, on the goroutine that calls Run.
// Panics raised by callbacks are not recovered.
type Loop struct {
	queue  chan func()
	done   chan struct{}
	once   sync.Once
	logger *slog.Logger
}

// NewLoop creates a loop with the given callback buffer size.
func NewLoop(buffer int, logger *slog.Logger) *Loop {
	if buffer <= 0 {
		buffer = 64
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		queue:  make(chan func(), buffer),
		done:   make(chan struct{}),
		logger: logger.With("component", "dispatch_loop"),
	}
}

// Post enqueues fn. It blocks while the buffer is full and drops the callback
// once the loop has stopped.
func (l *Loop) Post(fn func()) {
	if fn == nil {
		return
	}
	select {
	case <-l.done:
		l.logger.Warn("dropping callback posted after loop stopped")
		return
	default:
	}
	select {
	case <-l.done:
		l.logger.Warn("dropping callback posted after loop stopped")
	case l.queue <- fn:
	}
}

// Run executes callbacks until ctx is cancelled. Callbacks still buffered at
// that point are discarded.
func (l *Loop) Run(ctx context.Context) error {
	defer l.once.Do(func() { close(l.done) })

	l.logger.Debug("dispatch loop started")
	for {
		select {
		case <-ctx.Done():
			l.logger.Debug("dispatch loop stopped", "pending_callbacks", len(l.queue))
			return nil
		case fn := <-l.queue:
			fn()
		}
	}
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Await posts fn to d and waits until it has run or ctx is done.
func Await(ctx context.Context, d Dispatcher, fn func()) error {
	finished := make(chan struct{})
	d.Post(func() {
		defer close(finished)
		fn()
	})

	var loopDone <-chan struct{}
	if l, ok := d.(*Loop); ok {
		loopDone = l.done
	}

	select {
	case <-finished:
		return nil
	case <-loopDone:
		// the callback may have been the last one the loop ran
		select {
		case <-finished:
			return nil
		default:
			return ErrLoopClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}
